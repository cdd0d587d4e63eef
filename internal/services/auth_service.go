package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"invoicing-service/internal/encryption"
	"invoicing-service/internal/models"
	"invoicing-service/internal/repository"
)

const (
	sessionExpiry     = 7 * 24 * time.Hour
	rememberedExpiry  = 30 * 24 * time.Hour
	resetTokenExpiry  = time.Hour
	minPasswordLength = 8
	bcryptCost        = 12
)

// Claims is the JWT payload issued at login.
type Claims struct {
	MerchantID string `json:"merchantId"`
	Email      string `json:"email"`
	jwt.RegisteredClaims
}

// Mailer is the slice of the notification collaborator auth needs.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
	SendEmailVerification(ctx context.Context, email, token string) error
}

// AuthService owns merchant registration and session issuance.
//
// Failed logins increment a counter for observability, but lockout
// enforcement is deliberately off: the per-IP rate limit on auth routes
// is the only brake, so an attacker cannot lock a victim out by
// spamming their email.
type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.Merchant, error)
	Login(ctx context.Context, req models.LoginRequest, ip string) (*models.LoginResult, error)
	ValidateToken(tokenString string) (*Claims, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, merchantID uuid.UUID, current, next string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	GetProfile(ctx context.Context, merchantID uuid.UUID) (*models.MerchantProfile, error)
	UpdateProfile(ctx context.Context, merchantID uuid.UUID, req models.UpdateProfileRequest) (*models.MerchantProfile, error)
}

type authService struct {
	merchants repository.MerchantRepository
	audit     repository.AccessLogRepository
	mailer    Mailer
	jwtSecret []byte
	log       *logrus.Entry
}

func NewAuthService(merchants repository.MerchantRepository, audit repository.AccessLogRepository, mailer Mailer, jwtSecret string) AuthService {
	return &authService{
		merchants: merchants,
		audit:     audit,
		mailer:    mailer,
		jwtSecret: []byte(jwtSecret),
		log:       logrus.WithField("component", "auth"),
	}
}

// validatePassword enforces the minimum policy: 8+ chars with at least
// one letter and one digit, and never the email's local part.
func validatePassword(password, email string) error {
	if len(password) < minPasswordLength {
		return models.NewValidationError("password must be at least 8 characters")
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return models.NewValidationError("password must contain at least one letter and one digit")
	}
	if local, _, ok := strings.Cut(email, "@"); ok && strings.EqualFold(password, local) {
		return models.NewValidationError("password must not be the name part of your email")
	}
	return nil
}

func (s *authService) Register(ctx context.Context, req models.RegisterRequest) (*models.Merchant, error) {
	if !req.AgreeTerms {
		return nil, models.NewValidationError("terms must be accepted")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := validatePassword(req.Password, email); err != nil {
		return nil, err
	}

	existing, err := s.merchants.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("an account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	verificationToken, err := encryption.RandomToken(32)
	if err != nil {
		return nil, err
	}

	merchant := &models.Merchant{
		Email:                  email,
		PasswordHash:           string(hash),
		BusinessName:           strings.TrimSpace(req.BusinessName),
		FullName:               strings.TrimSpace(req.FullName),
		Status:                 models.MerchantStatusActive,
		EmailVerificationToken: &verificationToken,
		SubscriptionPlan:       models.PlanFree,
	}
	if err := s.merchants.Create(ctx, merchant); err != nil {
		return nil, err
	}

	if s.mailer != nil {
		if err := s.mailer.SendEmailVerification(ctx, merchant.Email, verificationToken); err != nil {
			s.log.WithError(err).Warn("verification email not sent")
		}
	}
	s.log.WithField("merchant_id", merchant.ID).Info("merchant registered")
	return merchant, nil
}

func (s *authService) Login(ctx context.Context, req models.LoginRequest, ip string) (*models.LoginResult, error) {
	merchant, err := s.merchants.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if merchant == nil || !merchant.IsActive() {
		s.logAccess(ctx, ip, req.Email, false)
		return nil, models.NewUnauthorizedError("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(merchant.PasswordHash), []byte(req.Password)); err != nil {
		_ = s.merchants.UpdateFields(ctx, merchant.ID, map[string]interface{}{
			"login_attempts": merchant.LoginAttempts + 1,
		})
		s.logAccess(ctx, ip, req.Email, false)
		return nil, models.NewUnauthorizedError("invalid email or password")
	}

	now := time.Now()
	expiry := sessionExpiry
	if req.RememberMe {
		expiry = rememberedExpiry
	}
	expiresAt := now.Add(expiry)

	claims := Claims{
		MerchantID: merchant.ID.String(),
		Email:      merchant.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	_ = s.merchants.UpdateFields(ctx, merchant.ID, map[string]interface{}{
		"last_login":     now,
		"login_attempts": 0,
	})
	s.logAccess(ctx, ip, req.Email, true)

	return &models.LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Merchant:  merchant.Profile(),
	}, nil
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, models.NewUnauthorizedError("invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, models.NewUnauthorizedError("invalid or expired token")
	}
	return claims, nil
}

// ForgotPassword always succeeds from the caller's perspective so the
// endpoint cannot be used to enumerate accounts.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	merchant, err := s.merchants.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if merchant == nil {
		return nil
	}

	token, err := encryption.RandomToken(32)
	if err != nil {
		return err
	}
	expires := time.Now().Add(resetTokenExpiry)
	if err := s.merchants.UpdateFields(ctx, merchant.ID, map[string]interface{}{
		"reset_token":         token,
		"reset_token_expires": expires,
	}); err != nil {
		return err
	}

	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(ctx, merchant.Email, token); err != nil {
			s.log.WithError(err).Warn("reset email not sent")
		}
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	merchant, err := s.merchants.GetByResetToken(ctx, token)
	if err != nil {
		return err
	}
	if merchant == nil {
		return models.NewUnauthorizedError("invalid or expired reset token")
	}
	if err := validatePassword(newPassword, merchant.Email); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.merchants.UpdateFields(ctx, merchant.ID, map[string]interface{}{
		"password_hash":       string(hash),
		"reset_token":         nil,
		"reset_token_expires": nil,
		"login_attempts":      0,
	})
}

func (s *authService) ChangePassword(ctx context.Context, merchantID uuid.UUID, current, next string) error {
	merchant, err := s.merchants.GetByID(ctx, merchantID)
	if err != nil {
		return err
	}
	if merchant == nil {
		return models.NewNotFoundError("merchant")
	}
	if err := validatePassword(next, merchant.Email); err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(merchant.PasswordHash), []byte(current)); err != nil {
		return models.NewUnauthorizedError("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.merchants.UpdateFields(ctx, merchantID, map[string]interface{}{
		"password_hash": string(hash),
	})
}

func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	merchant, err := s.merchants.GetByVerificationToken(ctx, token)
	if err != nil {
		return err
	}
	if merchant == nil {
		return models.NewUnauthorizedError("invalid verification token")
	}
	return s.merchants.UpdateFields(ctx, merchant.ID, map[string]interface{}{
		"email_verified":           true,
		"email_verification_token": nil,
	})
}

// ResendVerification reissues the verification token. Unknown and
// already-verified emails return nil so the endpoint cannot be used to
// enumerate accounts.
func (s *authService) ResendVerification(ctx context.Context, email string) error {
	merchant, err := s.merchants.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if merchant == nil || merchant.EmailVerified {
		return nil
	}

	token, err := encryption.RandomToken(32)
	if err != nil {
		return err
	}
	if err := s.merchants.UpdateFields(ctx, merchant.ID, map[string]interface{}{
		"email_verification_token": token,
	}); err != nil {
		return err
	}

	if s.mailer != nil {
		if err := s.mailer.SendEmailVerification(ctx, merchant.Email, token); err != nil {
			s.log.WithError(err).Warn("verification email not sent")
		}
	}
	return nil
}

func (s *authService) GetProfile(ctx context.Context, merchantID uuid.UUID) (*models.MerchantProfile, error) {
	merchant, err := s.merchants.GetByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, models.NewNotFoundError("merchant")
	}
	profile := merchant.Profile()
	return &profile, nil
}

func (s *authService) UpdateProfile(ctx context.Context, merchantID uuid.UUID, req models.UpdateProfileRequest) (*models.MerchantProfile, error) {
	merchant, err := s.merchants.GetByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, models.NewNotFoundError("merchant")
	}

	if req.BusinessName != nil {
		merchant.BusinessName = strings.TrimSpace(*req.BusinessName)
	}
	if req.FullName != nil {
		merchant.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Phone != nil {
		merchant.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		merchant.Address = strings.TrimSpace(*req.Address)
	}
	if err := s.merchants.Update(ctx, merchant); err != nil {
		return nil, err
	}
	profile := merchant.Profile()
	return &profile, nil
}

func (s *authService) logAccess(ctx context.Context, ip, email string, success bool) {
	if s.audit == nil {
		return
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	entry := &models.AccessLog{
		IP:            ip,
		AccessType:    models.AccessTypeEmail,
		CustomerEmail: &normalized,
		Success:       success,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.log.WithError(err).Warn("access log write failed")
	}
}
