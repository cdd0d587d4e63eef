package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"invoicing-service/internal/middleware"
	"invoicing-service/internal/models"
	"invoicing-service/internal/services"
)

// AuthHandler exposes merchant registration, sessions and the password
// flows.
type AuthHandler struct {
	auth       services.AuthService
	production bool
}

func NewAuthHandler(auth services.AuthService, production bool) *AuthHandler {
	return &AuthHandler{auth: auth, production: production}
}

// Register creates a merchant account and sends the verification email.
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "email, password and businessName are required")
		return
	}

	merchant, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"merchant": merchant.Profile()})
}

// Login issues a session token and mirrors it into the auth cookie.
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "email and password are required")
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	maxAge := int(time.Until(result.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = 7 * 24 * 3600
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookieName, result.Token, maxAge, "/", "", h.production, true)
	respond(c, http.StatusOK, gin.H{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"merchant":  result.Merchant,
	})
}

// Logout clears the auth cookie. Tokens are stateless, so the header
// variant simply expires on its own.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookieName, "", -1, "/", "", h.production, true)
	respond(c, http.StatusOK, gin.H{"message": "logged out"})
}

// Verify echoes the authenticated principal with a fresh profile.
// GET /api/auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	profile, err := h.auth.GetProfile(c.Request.Context(), middleware.MerchantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"merchant": profile})
}

// ForgotPassword starts the reset flow. The response is identical
// whether or not the email exists.
// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "email is required")
		return
	}
	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "if that account exists, a reset email is on its way"})
}

// ResetPassword consumes a reset token.
// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "token and newPassword are required")
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "password updated"})
}

// ChangePassword rotates the password of the logged-in merchant.
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "currentPassword and newPassword are required")
		return
	}
	err := h.auth.ChangePassword(c.Request.Context(), middleware.MerchantID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "password updated"})
}

// VerifyEmail consumes the emailed verification token.
// GET /api/auth/verify-email?token=...
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		respondBadRequest(c, "token is required")
		return
	}
	if err := h.auth.VerifyEmail(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "email verified"})
}

// ResendVerification answers the same way for every email so the route
// cannot confirm which accounts exist.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req models.ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "email is required")
		return
	}
	if err := h.auth.ResendVerification(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "if that account needs verification, an email is on its way"})
}

// GetProfile returns the merchant profile.
// GET /api/auth/profile
func (h *AuthHandler) GetProfile(c *gin.Context) {
	profile, err := h.auth.GetProfile(c.Request.Context(), middleware.MerchantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"merchant": profile})
}

// UpdateProfile patches merchant contact fields.
// PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid profile payload")
		return
	}
	profile, err := h.auth.UpdateProfile(c.Request.Context(), middleware.MerchantID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"merchant": profile})
}
