package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"invoicing-service/internal/events"
	"invoicing-service/internal/models"
	"invoicing-service/internal/repository"
)

// OrderService derives fulfillment orders from paid invoices and walks
// them through the fulfillment lifecycle.
type OrderService interface {
	CreateFromInvoice(ctx context.Context, invoice *models.Invoice) (*models.Order, error)
	SyncPaidInvoicesToOrders(ctx context.Context, merchantID uuid.UUID) (*models.SyncOrdersResult, error)
	Get(ctx context.Context, merchantID, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filters models.OrderFilters) ([]models.Order, int64, error)
	UpdateStatus(ctx context.Context, merchantID, id uuid.UUID, status models.OrderStatus, trackingNumber string) (*models.Order, error)
}

type orderService struct {
	orders   repository.OrderRepository
	invoices repository.InvoiceRepository
	numbers  *NumberService
	events   *events.Publisher
	log      *logrus.Entry
}

func NewOrderService(orders repository.OrderRepository, invoices repository.InvoiceRepository, numbers *NumberService, publisher *events.Publisher) OrderService {
	return &orderService{
		orders:   orders,
		invoices: invoices,
		numbers:  numbers,
		events:   publisher,
		log:      logrus.WithField("component", "orders"),
	}
}

// CreateFromInvoice converts a paid invoice into an order exactly once.
// A second call for the same invoice returns the existing order, and the
// unique index on source_invoice_id backstops a racing duplicate.
func (s *orderService) CreateFromInvoice(ctx context.Context, invoice *models.Invoice) (*models.Order, error) {
	if invoice.Status != models.InvoiceStatusPaid {
		return nil, models.NewValidationError("only paid invoices can become orders")
	}

	existing, err := s.orders.GetBySourceInvoiceID(ctx, invoice.MerchantID, invoice.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	number, err := s.numbers.MintOrderNumber(ctx, s.orders.NumberExists)
	if err != nil {
		return nil, err
	}

	items := make(models.OrderItems, 0, len(invoice.Items))
	for _, line := range invoice.Items {
		items = append(items, models.OrderItem{
			ProductName: line.ProductName,
			SKU:         line.SKU,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}

	invoiceID := invoice.ID
	invoiceNumber := invoice.InvoiceNumber
	order := &models.Order{
		MerchantID:          invoice.MerchantID,
		OrderNumber:         number,
		CustomerName:        invoice.CustomerName,
		CustomerEmail:       invoice.CustomerEmail,
		CustomerPhone:       invoice.CustomerPhone,
		CustomerAddress:     invoice.CustomerAddress,
		Items:               items,
		Status:              models.OrderStatusPending,
		PaymentStatus:       models.PaymentPaid,
		Subtotal:            invoice.Subtotal,
		TaxAmount:           invoice.TaxAmount,
		ShippingCost:        invoice.ShippingCost,
		Discount:            invoice.Discount,
		TotalAmount:         invoice.GrandTotal,
		Currency:            invoice.Currency,
		SourceInvoiceID:     &invoiceID,
		SourceInvoiceNumber: &invoiceNumber,
		Notes:               fmt.Sprintf("Auto-created from invoice %s", invoice.InvoiceNumber),
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			// Lost the race; the winner's row is the order.
			return s.orders.GetBySourceInvoiceID(ctx, invoice.MerchantID, invoice.ID)
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_number":   order.OrderNumber,
		"invoice_number": invoice.InvoiceNumber,
	}).Info("order created from invoice")
	s.events.OrderCreated(order)
	return order, nil
}

// SyncPaidInvoicesToOrders reconciles paid invoices that missed their
// auto-order, typically after a transient creation failure.
func (s *orderService) SyncPaidInvoicesToOrders(ctx context.Context, merchantID uuid.UUID) (*models.SyncOrdersResult, error) {
	invoices, err := s.invoices.ListPaidWithoutOrder(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	result := &models.SyncOrdersResult{}
	for i := range invoices {
		if _, err := s.CreateFromInvoice(ctx, &invoices[i]); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: %v", invoices[i].InvoiceNumber, err))
			result.Skipped++
			continue
		}
		result.Created++
	}
	return result, nil
}

func (s *orderService) Get(ctx context.Context, merchantID, id uuid.UUID) (*models.Order, error) {
	return s.orders.GetByID(ctx, merchantID, id)
}

func (s *orderService) List(ctx context.Context, filters models.OrderFilters) ([]models.Order, int64, error) {
	return s.orders.List(ctx, filters)
}

func (s *orderService) UpdateStatus(ctx context.Context, merchantID, id uuid.UUID, status models.OrderStatus, trackingNumber string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, models.NewNotFoundError("order")
	}

	if err := models.ValidateOrderStatusTransition(order.Status, status); err != nil {
		return nil, err
	}

	now := time.Now()
	order.Status = status
	switch status {
	case models.OrderStatusShipped:
		order.ShippedDate = &now
		if trackingNumber != "" {
			order.TrackingNumber = trackingNumber
		}
	case models.OrderStatusDelivered:
		order.DeliveredDate = &now
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}
