package response

import (
	"errors"
	"net/http"

	"homestay/internal/gateway"

	"github.com/gin-gonic/gin"
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

// SuccessWithMessage mirrors the backend envelope, which carries a message next to data.
func SuccessWithMessage(c *gin.Context, statusCode int, data interface{}, message string) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
		"message": message,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// GatewayError writes the envelope for a failed backend call and reports
// whether err was one. Authentication failures carry the login redirect.
func GatewayError(c *gin.Context, err error) bool {
	var gerr *gateway.Error
	if !errors.As(err, &gerr) {
		return false
	}

	body := gin.H{
		"code":    gerr.Code,
		"message": gerr.Message,
	}
	if gerr.Redirect != "" {
		body["redirect"] = gerr.Redirect
	}
	c.JSON(statusFor(gerr), gin.H{"success": false, "error": body})
	return true
}

func statusFor(e *gateway.Error) int {
	switch e.Kind {
	case gateway.KindAuthentication:
		return http.StatusUnauthorized
	case gateway.KindAuthorization:
		return http.StatusForbidden
	case gateway.KindValidation:
		if e.Status == http.StatusUnprocessableEntity {
			return e.Status
		}
		return http.StatusBadRequest
	case gateway.KindNotFound:
		return http.StatusNotFound
	case gateway.KindConflict:
		return http.StatusConflict
	case gateway.KindTransport:
		return http.StatusServiceUnavailable
	case gateway.KindCanceled:
		return 499
	default:
		return http.StatusBadGateway
	}
}
