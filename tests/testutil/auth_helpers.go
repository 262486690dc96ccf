package testutil

import (
	"net/http"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/hearthbakery/bakery-orders-api/middleware"
)

const (
	// UserHeader names the Auth0 subject a test request acts as
	UserHeader = "X-Test-User"
	// RoleHeader carries the role claim presented at registration
	RoleHeader = "X-Test-Role"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, issuer, role string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{Role: role},
	}
}

// SetMockAuthContext stores the values EnsureValidToken would have put on the context
func SetMockAuthContext(c *gin.Context, userID, role string) {
	claims := MockValidatedClaims(userID, "https://test.auth0.com/", role)
	c.Set("user_id", userID)
	c.Set("access_token", "mock-token")
	c.Set("validated_claims", claims)
	c.Set("custom_claims", claims.CustomClaims)
}

// MockAuthMiddleware authenticates every request as auth0ID
func MockAuthMiddleware(auth0ID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetMockAuthContext(c, auth0ID, role)
		c.Next()
	}
}

// HeaderAuthMiddleware authenticates requests as the subject named in UserHeader,
// so one router can serve several users. Requests without it get 401.
func HeaderAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetHeader(UserHeader)
		if subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Failed to validate JWT.",
				},
			})
			return
		}
		SetMockAuthContext(c, subject, c.GetHeader(RoleHeader))
		c.Next()
	}
}
