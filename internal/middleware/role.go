package middleware

import (
	"net/http"
	"strings"

	"homestay/internal/domain"
	"homestay/internal/gateway"
	"homestay/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const userKey = "user"

// UserResolver returns the signed-in user of the request, or nil.
type UserResolver func(c *gin.Context) (*domain.User, error)

// RequireSession lets only signed-in clients through and puts the user on
// the context. Anonymous calls get the login redirect.
func RequireSession(resolve UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolve(c)
		if err != nil {
			_ = c.Error(err)
			if !response.GatewayError(c, err) {
				response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", gateway.MsgGeneric)
			}
			c.Abort()
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":     "UNAUTHORIZED",
					"message":  "Please log in to continue",
					"redirect": gateway.LoginPath,
				},
			})
			return
		}

		c.Set(userKey, user)
		c.Set("user_id", string(user.ID))
		c.Set("role", string(user.Role))
		c.Next()
	}
}

// RequireRole ensures that the authenticated user has the specified role
func RequireRole(requiredRole domain.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Please log in to continue")
			c.Abort()
			return
		}

		if !strings.EqualFold(string(user.Role), string(requiredRole)) {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", gateway.MsgForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}

// AdminOnly middleware requires admin role
func AdminOnly() gin.HandlerFunc {
	return RequireRole(domain.RoleAdmin)
}

func CurrentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*domain.User)
	return u
}
