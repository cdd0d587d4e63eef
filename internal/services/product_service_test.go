package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"invoicing-service/internal/models"
)

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) Create(ctx context.Context, product *models.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductRepo) GetByID(ctx context.Context, merchantID, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, merchantID, id)
	r, _ := args.Get(0).(*models.Product)
	return r, args.Error(1)
}

func (m *mockProductRepo) GetBySKU(ctx context.Context, merchantID uuid.UUID, sku string) (*models.Product, error) {
	args := m.Called(ctx, merchantID, sku)
	r, _ := args.Get(0).(*models.Product)
	return r, args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, merchantID uuid.UUID, category string, activeOnly bool, page, limit int) ([]models.Product, int64, error) {
	args := m.Called(ctx, merchantID, category, activeOnly, page, limit)
	r, _ := args.Get(0).([]models.Product)
	return r, args.Get(1).(int64), args.Error(2)
}

func (m *mockProductRepo) Search(ctx context.Context, merchantID uuid.UUID, query string, limit int) ([]models.Product, error) {
	args := m.Called(ctx, merchantID, query, limit)
	r, _ := args.Get(0).([]models.Product)
	return r, args.Error(1)
}

func (m *mockProductRepo) Update(ctx context.Context, product *models.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductRepo) Delete(ctx context.Context, merchantID, id uuid.UUID) error {
	return m.Called(ctx, merchantID, id).Error(0)
}

func TestCreateProductNormalizesSKU(t *testing.T) {
	repo := new(mockProductRepo)
	svc := NewProductService(repo)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.SKU == "LOLLY-01"
	})).Return(nil)

	product := &models.Product{MerchantID: uuid.New(), SKU: "  lolly-01 ", Name: "Permen", UnitPrice: 5000}
	require.NoError(t, svc.Create(context.Background(), product))
	repo.AssertExpectations(t)
}

func TestCreateProductMapsDuplicateToConflict(t *testing.T) {
	repo := new(mockProductRepo)
	svc := NewProductService(repo)

	repo.On("Create", mock.Anything, mock.Anything).Return(models.ErrDuplicate)

	err := svc.Create(context.Background(), &models.Product{
		MerchantID: uuid.New(), SKU: "LOLLY", Name: "Permen", UnitPrice: 5000,
	})
	require.Error(t, err)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.Status)
}

func TestCreateProductValidates(t *testing.T) {
	svc := NewProductService(new(mockProductRepo))

	cases := []models.Product{
		{Name: "No SKU", UnitPrice: 100},
		{SKU: "X", UnitPrice: 100},
		{SKU: "X", Name: "Negative", UnitPrice: -1},
		{SKU: "X", Name: "Bad Tax", UnitPrice: 100, TaxRate: 120},
	}
	for _, product := range cases {
		p := product
		assert.Error(t, svc.Create(context.Background(), &p), "%+v", product)
	}
}

func TestSearchProductsSkipsEmptyQuery(t *testing.T) {
	repo := new(mockProductRepo)
	svc := NewProductService(repo)

	products, err := svc.Search(context.Background(), uuid.New(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, products)
	repo.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
