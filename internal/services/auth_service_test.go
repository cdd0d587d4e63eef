package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"invoicing-service/internal/models"
)

type mockMerchantRepo struct {
	mock.Mock
}

func (m *mockMerchantRepo) Create(ctx context.Context, merchant *models.Merchant) error {
	return m.Called(ctx, merchant).Error(0)
}

func (m *mockMerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*models.Merchant)
	return r, args.Error(1)
}

func (m *mockMerchantRepo) GetByEmail(ctx context.Context, email string) (*models.Merchant, error) {
	args := m.Called(ctx, email)
	r, _ := args.Get(0).(*models.Merchant)
	return r, args.Error(1)
}

func (m *mockMerchantRepo) GetByResetToken(ctx context.Context, token string) (*models.Merchant, error) {
	args := m.Called(ctx, token)
	r, _ := args.Get(0).(*models.Merchant)
	return r, args.Error(1)
}

func (m *mockMerchantRepo) GetByVerificationToken(ctx context.Context, token string) (*models.Merchant, error) {
	args := m.Called(ctx, token)
	r, _ := args.Get(0).(*models.Merchant)
	return r, args.Error(1)
}

func (m *mockMerchantRepo) Update(ctx context.Context, merchant *models.Merchant) error {
	return m.Called(ctx, merchant).Error(0)
}

func (m *mockMerchantRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return m.Called(ctx, id, fields).Error(0)
}

type mockAccessLogRepo struct {
	mock.Mock
}

func (m *mockAccessLogRepo) Create(ctx context.Context, entry *models.AccessLog) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockAccessLogRepo) ListRecent(ctx context.Context, limit int) ([]models.AccessLog, error) {
	args := m.Called(ctx, limit)
	r, _ := args.Get(0).([]models.AccessLog)
	return r, args.Error(1)
}

func newAuthFixture() (*mockMerchantRepo, *mockAccessLogRepo, AuthService) {
	merchants := new(mockMerchantRepo)
	audit := new(mockAccessLogRepo)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()
	return merchants, audit, NewAuthService(merchants, audit, nil, "test-secret")
}

func hashed(password string) string {
	h, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(h)
}

func TestValidatePassword(t *testing.T) {
	assert.Error(t, validatePassword("short1", "a@example.com"))
	assert.Error(t, validatePassword("onlyletters", "a@example.com"))
	assert.Error(t, validatePassword("12345678", "a@example.com"))
	assert.Error(t, validatePassword("Budiman99", "budiman99@example.com"), "email local part")
	assert.NoError(t, validatePassword("letters99", "a@example.com"))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	merchants, _, svc := newAuthFixture()
	merchants.On("GetByEmail", mock.Anything, "taken@example.com").
		Return(&models.Merchant{ID: uuid.New()}, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "Taken@Example.com", Password: "secret99", BusinessName: "Toko", AgreeTerms: true,
	})
	require.Error(t, err)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.Status)
}

func TestRegisterHashesPassword(t *testing.T) {
	merchants, _, svc := newAuthFixture()
	merchants.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, nil)
	merchants.On("Create", mock.Anything, mock.Anything).Return(nil)

	merchant, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "new@example.com", Password: "secret99", BusinessName: "Toko", AgreeTerms: true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "secret99", merchant.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(merchant.PasswordHash), []byte("secret99")))
	require.NotNil(t, merchant.EmailVerificationToken)
}

func TestLoginIssuesValidToken(t *testing.T) {
	merchants, _, svc := newAuthFixture()
	id := uuid.New()
	merchants.On("GetByEmail", mock.Anything, mock.Anything).Return(&models.Merchant{
		ID: id, Email: "m@example.com", PasswordHash: hashed("secret99"),
		Status: models.MerchantStatusActive,
	}, nil)
	merchants.On("UpdateFields", mock.Anything, id, mock.Anything).Return(nil)

	result, err := svc.Login(context.Background(), models.LoginRequest{
		Email: "m@example.com", Password: "secret99",
	}, "10.0.0.1")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, id.String(), claims.MerchantID)
	assert.Equal(t, "m@example.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(sessionExpiry), result.ExpiresAt, time.Minute)
}

func TestLoginRememberMeExtendsExpiry(t *testing.T) {
	merchants, _, svc := newAuthFixture()
	id := uuid.New()
	merchants.On("GetByEmail", mock.Anything, mock.Anything).Return(&models.Merchant{
		ID: id, Email: "m@example.com", PasswordHash: hashed("secret99"),
		Status: models.MerchantStatusActive,
	}, nil)
	merchants.On("UpdateFields", mock.Anything, id, mock.Anything).Return(nil)

	result, err := svc.Login(context.Background(), models.LoginRequest{
		Email: "m@example.com", Password: "secret99", RememberMe: true,
	}, "10.0.0.1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(rememberedExpiry), result.ExpiresAt, time.Minute)
}

func TestLoginWrongPasswordCountsAttempt(t *testing.T) {
	merchants, _, svc := newAuthFixture()
	id := uuid.New()
	merchants.On("GetByEmail", mock.Anything, mock.Anything).Return(&models.Merchant{
		ID: id, Email: "m@example.com", PasswordHash: hashed("secret99"),
		Status: models.MerchantStatusActive, LoginAttempts: 2,
	}, nil)
	merchants.On("UpdateFields", mock.Anything, id,
		map[string]interface{}{"login_attempts": 3}).Return(nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email: "m@example.com", Password: "wrong",
	}, "10.0.0.1")
	require.Error(t, err)
	merchants.AssertExpectations(t)
}

func TestLoginManyFailuresNeverLocksOut(t *testing.T) {
	merchants, _, svc := newAuthFixture()
	id := uuid.New()
	merchants.On("GetByEmail", mock.Anything, mock.Anything).Return(&models.Merchant{
		ID: id, Email: "m@example.com", PasswordHash: hashed("secret99"),
		Status: models.MerchantStatusActive, LoginAttempts: 500,
	}, nil)
	merchants.On("UpdateFields", mock.Anything, id, mock.Anything).Return(nil)

	// Correct credentials still work regardless of the failure counter.
	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email: "m@example.com", Password: "secret99",
	}, "10.0.0.1")
	assert.NoError(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, _, svc := newAuthFixture()
	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestForgotPasswordHidesUnknownEmail(t *testing.T) {
	merchants, _, svc := newAuthFixture()
	merchants.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, nil)

	assert.NoError(t, svc.ForgotPassword(context.Background(), "nobody@example.com"))
	merchants.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
}

func TestResetPasswordConsumesToken(t *testing.T) {
	merchants, _, svc := newAuthFixture()
	id := uuid.New()
	merchants.On("GetByResetToken", mock.Anything, "tok").Return(&models.Merchant{ID: id}, nil)
	merchants.On("UpdateFields", mock.Anything, id, mock.MatchedBy(func(f map[string]interface{}) bool {
		return f["reset_token"] == nil && f["reset_token_expires"] == nil
	})).Return(nil)

	require.NoError(t, svc.ResetPassword(context.Background(), "tok", "freshpass1"))
	merchants.AssertExpectations(t)
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	merchants, _, svc := newAuthFixture()
	id := uuid.New()
	merchants.On("GetByID", mock.Anything, id).Return(&models.Merchant{
		ID: id, PasswordHash: hashed("secret99"),
	}, nil)

	err := svc.ChangePassword(context.Background(), id, "wrong", "freshpass1")
	require.Error(t, err)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 401, appErr.Status)
}

func TestResendVerificationHidesUnknownEmail(t *testing.T) {
	merchants, _, svc := newAuthFixture()
	merchants.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, nil)

	assert.NoError(t, svc.ResendVerification(context.Background(), "nobody@example.com"))
	merchants.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
}

func TestResendVerificationSkipsVerifiedAccount(t *testing.T) {
	merchants, _, svc := newAuthFixture()
	merchants.On("GetByEmail", mock.Anything, "done@example.com").
		Return(&models.Merchant{ID: uuid.New(), Email: "done@example.com", EmailVerified: true}, nil)

	assert.NoError(t, svc.ResendVerification(context.Background(), "done@example.com"))
	merchants.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
}

func TestResendVerificationReissuesToken(t *testing.T) {
	merchants, _, svc := newAuthFixture()
	id := uuid.New()
	merchants.On("GetByEmail", mock.Anything, "new@example.com").
		Return(&models.Merchant{ID: id, Email: "new@example.com"}, nil)
	merchants.On("UpdateFields", mock.Anything, id, mock.MatchedBy(func(fields map[string]interface{}) bool {
		token, ok := fields["email_verification_token"].(string)
		return ok && token != ""
	})).Return(nil)

	require.NoError(t, svc.ResendVerification(context.Background(), "  New@Example.com "))
	merchants.AssertExpectations(t)
}
