package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoicing-service/internal/services"
)

// AuthCookieName is the session cookie set on login and cleared on
// logout. The Authorization header wins when both are present.
const AuthCookieName = "auth_token"

const (
	ContextMerchantID = "merchant_id"
	ContextEmail      = "merchant_email"
)

// RequireMerchant authenticates the request and stores the merchant
// principal in the gin context. Handlers read the merchant id from the
// context only; ids arriving in request bodies are never trusted.
func RequireMerchant(auth services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if cookie, err := c.Cookie(AuthCookieName); err == nil {
				token = cookie
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "authentication required",
			})
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "invalid or expired token",
			})
			return
		}

		merchantID, err := uuid.Parse(claims.MerchantID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "invalid or expired token",
			})
			return
		}

		c.Set(ContextMerchantID, merchantID)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// MerchantID returns the authenticated merchant id. Only valid behind
// RequireMerchant; returns uuid.Nil otherwise, which every repository
// rejects.
func MerchantID(c *gin.Context) uuid.UUID {
	v, ok := c.Get(ContextMerchantID)
	if !ok {
		return uuid.Nil
	}
	id, _ := v.(uuid.UUID)
	return id
}
