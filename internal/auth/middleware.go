package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// Session is what handlers learn about the caller: whether an admin session
// is active and the label to show for it.
type Session struct {
	Active bool   `json:"active"`
	Email  string `json:"email,omitempty"`
}

// AdminAuth enforces bearer JWT tokens signed with HS256 and carrying the admin role.
func AdminAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Role != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// SessionFrom returns the admin session established by AdminAuth.
func SessionFrom(c *gin.Context) Session {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Session{}
	}
	claims, ok := v.(Claims)
	if !ok {
		return Session{}
	}
	return Session{Active: true, Email: claims.Email}
}
