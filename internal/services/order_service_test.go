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

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Create(ctx context.Context, order *models.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, merchantID, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, merchantID, id)
	r, _ := args.Get(0).(*models.Order)
	return r, args.Error(1)
}

func (m *mockOrderRepo) GetBySourceInvoiceID(ctx context.Context, merchantID, invoiceID uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, merchantID, invoiceID)
	r, _ := args.Get(0).(*models.Order)
	return r, args.Error(1)
}

func (m *mockOrderRepo) List(ctx context.Context, filters models.OrderFilters) ([]models.Order, int64, error) {
	args := m.Called(ctx, filters)
	r, _ := args.Get(0).([]models.Order)
	return r, args.Get(1).(int64), args.Error(2)
}

func (m *mockOrderRepo) NumberExists(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderRepo) Update(ctx context.Context, order *models.Order) error {
	return m.Called(ctx, order).Error(0)
}

func paidInvoice(merchantID uuid.UUID) *models.Invoice {
	return &models.Invoice{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		InvoiceNumber: "INV-20260825-AB12",
		CustomerName:  "Budi Santoso",
		CustomerEmail: "budi@example.com",
		Status:        models.InvoiceStatusPaid,
		Items: models.InvoiceItems{
			{ProductName: "Kaos Polos", Quantity: 2, UnitPrice: 50000, LineTotal: 100000},
		},
		Subtotal:   100000,
		GrandTotal: 100000,
		Currency:   "IDR",
	}
}

func TestCreateFromInvoiceSnapshotsInvoice(t *testing.T) {
	repo := new(mockOrderRepo)
	merchantID := uuid.New()
	invoice := paidInvoice(merchantID)
	svc := NewOrderService(repo, newFakeInvoiceRepo(), NewNumberService(), nil)

	repo.On("GetBySourceInvoiceID", mock.Anything, merchantID, invoice.ID).Return(nil, nil).Once()
	repo.On("NumberExists", mock.Anything, mock.Anything).Return(false, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	order, err := svc.CreateFromInvoice(context.Background(), invoice)
	require.NoError(t, err)
	assert.Regexp(t, `^ORD-\d{8}-`, order.OrderNumber)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, invoice.GrandTotal, order.TotalAmount)
	require.NotNil(t, order.SourceInvoiceID)
	assert.Equal(t, invoice.ID, *order.SourceInvoiceID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Kaos Polos", order.Items[0].ProductName)
	assert.Equal(t, "Auto-created from invoice "+invoice.InvoiceNumber, order.Notes)
}

func TestCreateFromInvoiceReturnsExisting(t *testing.T) {
	repo := new(mockOrderRepo)
	merchantID := uuid.New()
	invoice := paidInvoice(merchantID)
	existing := &models.Order{ID: uuid.New(), MerchantID: merchantID, OrderNumber: "ORD-20260825-XY99"}
	svc := NewOrderService(repo, newFakeInvoiceRepo(), NewNumberService(), nil)

	repo.On("GetBySourceInvoiceID", mock.Anything, merchantID, invoice.ID).Return(existing, nil)

	order, err := svc.CreateFromInvoice(context.Background(), invoice)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, order.ID)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateFromInvoiceSurvivesRace(t *testing.T) {
	repo := new(mockOrderRepo)
	merchantID := uuid.New()
	invoice := paidInvoice(merchantID)
	winner := &models.Order{ID: uuid.New(), MerchantID: merchantID, OrderNumber: "ORD-20260825-RACE"}
	svc := NewOrderService(repo, newFakeInvoiceRepo(), NewNumberService(), nil)

	// First check sees nothing, insert hits the unique index, re-read
	// returns the winner.
	repo.On("GetBySourceInvoiceID", mock.Anything, merchantID, invoice.ID).Return(nil, nil).Once()
	repo.On("NumberExists", mock.Anything, mock.Anything).Return(false, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(models.ErrDuplicate)
	repo.On("GetBySourceInvoiceID", mock.Anything, merchantID, invoice.ID).Return(winner, nil).Once()

	order, err := svc.CreateFromInvoice(context.Background(), invoice)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, order.ID)
}

func TestCreateFromInvoiceRejectsUnpaid(t *testing.T) {
	svc := NewOrderService(new(mockOrderRepo), newFakeInvoiceRepo(), NewNumberService(), nil)
	invoice := paidInvoice(uuid.New())
	invoice.Status = models.InvoiceStatusSent

	_, err := svc.CreateFromInvoice(context.Background(), invoice)
	assert.Error(t, err)
}

func TestUpdateStatusStampsShipping(t *testing.T) {
	repo := new(mockOrderRepo)
	merchantID := uuid.New()
	id := uuid.New()
	svc := NewOrderService(repo, newFakeInvoiceRepo(), NewNumberService(), nil)

	repo.On("GetByID", mock.Anything, merchantID, id).Return(&models.Order{
		ID: id, MerchantID: merchantID, Status: models.OrderStatusProcessing,
	}, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	order, err := svc.UpdateStatus(context.Background(), merchantID, id, models.OrderStatusShipped, "JNE123456")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, order.Status)
	assert.Equal(t, "JNE123456", order.TrackingNumber)
	require.NotNil(t, order.ShippedDate)
}

func TestUpdateStatusRejectsBackwardTransition(t *testing.T) {
	repo := new(mockOrderRepo)
	merchantID := uuid.New()
	id := uuid.New()
	svc := NewOrderService(repo, newFakeInvoiceRepo(), NewNumberService(), nil)

	repo.On("GetByID", mock.Anything, merchantID, id).Return(&models.Order{
		ID: id, MerchantID: merchantID, Status: models.OrderStatusDelivered,
	}, nil)

	_, err := svc.UpdateStatus(context.Background(), merchantID, id, models.OrderStatusPending, "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}
