package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"invoicing-service/internal/models"
)

// Subjects published by this service.
const (
	SubjectInvoicePaid  = "invoice.paid"
	SubjectInvoiceSent  = "invoice.sent"
	SubjectOrderCreated = "order.created"
)

// Publisher fans domain events out over NATS. It degrades gracefully: a
// nil connection (NATS not configured or unreachable at boot) turns
// every publish into a logged no-op, so event delivery is never on the
// request path's critical section.
type Publisher struct {
	conn *nats.Conn
	log  *logrus.Entry
}

// NewPublisher connects to NATS. An empty URL disables publishing; a
// failed connection is logged and also disables publishing.
func NewPublisher(natsURL string) *Publisher {
	log := logrus.WithField("component", "events")
	if natsURL == "" {
		log.Info("NATS not configured, events disabled")
		return &Publisher{log: log}
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("invoicing-service"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.WithError(err).Warn("NATS unavailable, events disabled")
		return &Publisher{log: log}
	}

	log.WithField("url", natsURL).Info("connected to NATS")
	return &Publisher{conn: conn, log: log}
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}

// InvoiceEvent is the wire shape of invoice lifecycle events.
type InvoiceEvent struct {
	InvoiceID     string    `json:"invoiceId"`
	InvoiceNumber string    `json:"invoiceNumber"`
	MerchantID    string    `json:"merchantId"`
	Status        string    `json:"status"`
	GrandTotal    float64   `json:"grandTotal"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// OrderEvent is the wire shape of order lifecycle events.
type OrderEvent struct {
	OrderID             string    `json:"orderId"`
	OrderNumber         string    `json:"orderNumber"`
	MerchantID          string    `json:"merchantId"`
	SourceInvoiceNumber string    `json:"sourceInvoiceNumber,omitempty"`
	TotalAmount         float64   `json:"totalAmount"`
	Currency            string    `json:"currency"`
	OccurredAt          time.Time `json:"occurredAt"`
}

// InvoicePaid announces a fully settled invoice.
func (p *Publisher) InvoicePaid(invoice *models.Invoice) {
	p.publish(SubjectInvoicePaid, invoiceEvent(invoice))
}

// InvoiceSent announces an invoice delivered to its customer.
func (p *Publisher) InvoiceSent(invoice *models.Invoice) {
	p.publish(SubjectInvoiceSent, invoiceEvent(invoice))
}

// OrderCreated announces a new fulfillment order.
func (p *Publisher) OrderCreated(order *models.Order) {
	event := OrderEvent{
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		MerchantID:  order.MerchantID.String(),
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		OccurredAt:  time.Now().UTC(),
	}
	if order.SourceInvoiceNumber != nil {
		event.SourceInvoiceNumber = *order.SourceInvoiceNumber
	}
	p.publish(SubjectOrderCreated, event)
}

func invoiceEvent(invoice *models.Invoice) InvoiceEvent {
	return InvoiceEvent{
		InvoiceID:     invoice.ID.String(),
		InvoiceNumber: invoice.InvoiceNumber,
		MerchantID:    invoice.MerchantID.String(),
		Status:        string(invoice.Status),
		GrandTotal:    invoice.GrandTotal,
		Currency:      invoice.Currency,
		OccurredAt:    time.Now().UTC(),
	}
}

func (p *Publisher) publish(subject string, payload interface{}) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.WithError(err).WithField("subject", subject).Error("event marshal failed")
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.WithError(err).WithField("subject", subject).Warn("event publish failed")
		return
	}
	p.log.WithField("subject", subject).Debug("event published")
}
