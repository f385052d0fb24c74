package testutil

import (
	"net/http"
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/memorialqr/memorial-qr-api/middleware"
)

// ScopesHeader lists the space separated scopes HeaderAuth grants the caller
const ScopesHeader = "X-Test-Scopes"

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, issuer string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
		},
	}
}

// SetMockAuthContext sets up a mock authenticated context for testing
func SetMockAuthContext(c *gin.Context, userID string, issuer string, scopes []string) {
	c.Set(middleware.ContextUserID, userID)
	c.Set(middleware.ContextValidatedClaims, MockValidatedClaims(userID, issuer, scopes))
}

// HeaderAuth stands in for the JWT middleware. The bearer token is taken as the caller's
// user id and doubles as the access token; requests without one get a 401.
func HeaderAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" || token == c.GetHeader("Authorization") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Failed to validate JWT.",
				},
			})
			return
		}

		SetMockAuthContext(c, token, "https://test.auth0.com/", strings.Fields(c.GetHeader(ScopesHeader)))
		c.Set(middleware.ContextAccessToken, token)
		c.Next()
	}
}
