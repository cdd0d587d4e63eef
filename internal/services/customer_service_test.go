package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"invoicing-service/internal/models"
)

type mockCustomerRepo struct {
	mock.Mock
}

func (m *mockCustomerRepo) Create(ctx context.Context, c *models.Customer) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCustomerRepo) GetByID(ctx context.Context, merchantID, id uuid.UUID) (*models.Customer, error) {
	args := m.Called(ctx, merchantID, id)
	c, _ := args.Get(0).(*models.Customer)
	return c, args.Error(1)
}

func (m *mockCustomerRepo) GetByEmail(ctx context.Context, merchantID uuid.UUID, email string) (*models.Customer, error) {
	args := m.Called(ctx, merchantID, email)
	c, _ := args.Get(0).(*models.Customer)
	return c, args.Error(1)
}

func (m *mockCustomerRepo) GetByPhone(ctx context.Context, merchantID uuid.UUID, phone string) (*models.Customer, error) {
	args := m.Called(ctx, merchantID, phone)
	c, _ := args.Get(0).(*models.Customer)
	return c, args.Error(1)
}

func (m *mockCustomerRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Customer, error) {
	args := m.Called(ctx, merchantID)
	c, _ := args.Get(0).([]models.Customer)
	return c, args.Error(1)
}

func (m *mockCustomerRepo) Search(ctx context.Context, merchantID uuid.UUID, query string, page, limit int) ([]models.CustomerWithStats, int64, error) {
	args := m.Called(ctx, merchantID, query, page, limit)
	c, _ := args.Get(0).([]models.CustomerWithStats)
	return c, args.Get(1).(int64), args.Error(2)
}

func (m *mockCustomerRepo) Update(ctx context.Context, c *models.Customer) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCustomerRepo) Delete(ctx context.Context, merchantID, id uuid.UUID) error {
	return m.Called(ctx, merchantID, id).Error(0)
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0812-3456-789":  "628123456789",
		"08123456789":    "628123456789",
		"628123456789":   "628123456789",
		"+62 812 345 67": "6281234567",
		"81234567890":    "6281234567890",
		"812345":         "812345", // too short for the bare-8 rule
		"":               "",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizePhone(input), "input %q", input)
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	once := NormalizePhone("08123456789")
	assert.Equal(t, once, NormalizePhone(once))
}

func TestNameSimilarityStrictThreshold(t *testing.T) {
	// distance 1 over length 5 gives exactly 0.80, which must NOT match.
	assert.InDelta(t, 0.80, nameSimilarity("budia", "budib"), 1e-9)
	assert.False(t, nameSimilarity("budia", "budib") > fuzzyThreshold)

	// distance 1 over length 10 gives 0.90, which matches.
	assert.True(t, nameSimilarity("budi satoso", "budi santoso") > fuzzyThreshold)
}

func TestResolveMatchesByEmailFirst(t *testing.T) {
	repo := new(mockCustomerRepo)
	svc := NewCustomerService(repo)
	merchantID := uuid.New()
	existing := &models.Customer{ID: uuid.New(), MerchantID: merchantID, Name: "Budi Santoso"}

	repo.On("GetByEmail", mock.Anything, merchantID, "budi@example.com").Return(existing, nil)
	repo.On("Update", mock.Anything, existing).Return(nil)

	got, err := svc.ResolveFromInvoice(context.Background(), merchantID,
		"Budi S", "Budi@Example.com", "", "", time.Now(), 150000)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
	assert.Equal(t, "Budi Santoso", got.Name) // stored spelling wins
	repo.AssertNotCalled(t, "GetByPhone", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveMergesNonDestructively(t *testing.T) {
	repo := new(mockCustomerRepo)
	svc := NewCustomerService(repo)
	merchantID := uuid.New()
	storedPhone := "628111111111"
	existing := &models.Customer{
		ID: uuid.New(), MerchantID: merchantID,
		Name: "Siti Rahayu", Phone: &storedPhone, Address: "Jl. Merdeka 1",
	}

	repo.On("GetByEmail", mock.Anything, merchantID, "siti@example.com").Return(nil, nil)
	repo.On("GetByPhone", mock.Anything, merchantID, "628111111111").Return(existing, nil)
	repo.On("Update", mock.Anything, existing).Return(nil)

	got, err := svc.ResolveFromInvoice(context.Background(), merchantID,
		"Siti Rahayu", "siti@example.com", "0811 1111 111", "Jl. Baru 9", time.Now(), 50000)
	require.NoError(t, err)
	require.NotNil(t, got.Email)
	assert.Equal(t, "siti@example.com", *got.Email) // blank filled
	assert.Equal(t, "628111111111", *got.Phone)     // untouched
	assert.Equal(t, "Jl. Merdeka 1", got.Address)   // untouched
}

func TestResolveFuzzyMatchAboveThreshold(t *testing.T) {
	repo := new(mockCustomerRepo)
	svc := NewCustomerService(repo)
	merchantID := uuid.New()
	existing := models.Customer{ID: uuid.New(), MerchantID: merchantID, Name: "Budi Santoso"}

	repo.On("ListByMerchant", mock.Anything, merchantID).Return([]models.Customer{existing}, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.ResolveFromInvoice(context.Background(), merchantID,
		"Budi Satoso", "", "", "", time.Now(), 10000)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
}

func TestResolveShortNameSkipsFuzzy(t *testing.T) {
	repo := new(mockCustomerRepo)
	svc := NewCustomerService(repo)
	merchantID := uuid.New()

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.ResolveFromInvoice(context.Background(), merchantID,
		"Ani", "", "", "", time.Now(), 10000)
	require.NoError(t, err)
	assert.Equal(t, models.ExtractionAuto, got.ExtractionMethod)
	repo.AssertNotCalled(t, "ListByMerchant", mock.Anything, mock.Anything)
}

func TestRecordInvoiceAggregates(t *testing.T) {
	repo := new(mockCustomerRepo)
	svc := NewCustomerService(repo)
	customer := &models.Customer{MerchantID: uuid.New()}
	repo.On("Update", mock.Anything, customer).Return(nil)

	first := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	second := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, svc.RecordInvoice(context.Background(), customer, second, 100))
	require.NoError(t, svc.RecordInvoice(context.Background(), customer, first, 50))

	assert.Equal(t, 2, customer.InvoiceCount)
	assert.Equal(t, 150.0, customer.TotalSpent)
	assert.Equal(t, first, *customer.FirstInvoiceDate)
	assert.Equal(t, second, *customer.LastInvoiceDate)
}
