// internal/middleware/helpers.go
package middleware

import (
	"rewardjar-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// MustGetSubject gets the token subject from context or panics
func MustGetSubject(c *gin.Context) string {
	subject, exists := c.Get(ctxSubject)
	if !exists {
		panic("subject not found in context")
	}
	return subject.(string)
}

// GetRoles gets user roles from context
func GetRoles(c *gin.Context) []string {
	roles, exists := c.Get(ctxRoles)
	if !exists {
		return []string{}
	}

	rolesList, ok := roles.([]string)
	if !ok {
		return []string{}
	}

	return rolesList
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(ctxSubject)
	return exists
}

// IsAdmin checks if user is an admin
func IsAdmin(c *gin.Context) bool {
	return HasRole(c, jwt.RoleAdmin)
}

// BusinessScope returns the business id the caller may act on. Admins get ""
// (any business). ok is false when a non-admin token carries no business.
func BusinessScope(c *gin.Context) (businessID string, ok bool) {
	if IsAdmin(c) {
		return "", true
	}
	id := c.GetString(ctxBusinessID)
	return id, id != ""
}
