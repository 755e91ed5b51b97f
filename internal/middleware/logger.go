package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates the caller's request id or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := requestID(c)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// ErrorLogger logs detailed error information and recovers from panics.
func ErrorLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				entry(log, c, start).
					WithField("stack", string(debug.Stack())).
					Errorf("panic: %v", recovered)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INTERNAL_SERVER_ERROR",
						"message": "Something went wrong, please try again later",
					},
				})
				return
			}

			if len(c.Errors) == 0 {
				if c.Writer.Status() >= http.StatusInternalServerError {
					entry(log, c, start).Error("http_error")
				}
				return
			}

			for _, err := range c.Errors {
				e := entry(log, c, start).WithField("type", fmt.Sprintf("%v", err.Type))
				if err.Meta != nil {
					e = e.WithField("meta", err.Meta)
				}
				e.WithError(err.Err).Error("request_error")
			}
		}()

		c.Next()
	}
}

func entry(log *logrus.Logger, c *gin.Context, start time.Time) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"status":     c.Writer.Status(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"query":      c.Request.URL.RawQuery,
		"client_ip":  c.ClientIP(),
		"client_id":  ClientID(c),
		"role":       c.GetString("role"),
		"request_id": c.GetString("request_id"),
		"latency":    time.Since(start).String(),
	})
}

func requestID(c *gin.Context) string {
	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = c.GetHeader("X-Request-Id")
	}
	return requestID
}
