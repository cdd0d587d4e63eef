package models

import "fmt"

// ValidInvoiceTransitions defines valid state transitions for InvoiceStatus.
// Flow: draft → sent → (dp_paid) → paid
// cancelled can be reached from any non-terminal state.
var ValidInvoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:     {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:      {InvoiceStatusDPPaid, InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusDPPaid:    {InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPaid:      {}, // Terminal state
	InvoiceStatusCancelled: {}, // Terminal state
}

// ValidOrderTransitions defines valid state transitions for OrderStatus.
var ValidOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
	OrderStatusInvoiced:   {OrderStatusPending, OrderStatusCancelled},
}

// CanTransitionInvoiceStatus checks if a transition between invoice
// statuses is valid.
func CanTransitionInvoiceStatus(from, to InvoiceStatus) bool {
	validTransitions, exists := ValidInvoiceTransitions[from]
	if !exists {
		return false
	}
	for _, validTo := range validTransitions {
		if validTo == to {
			return true
		}
	}
	return false
}

// CanTransitionOrderStatus checks if a transition between order statuses
// is valid.
func CanTransitionOrderStatus(from, to OrderStatus) bool {
	validTransitions, exists := ValidOrderTransitions[from]
	if !exists {
		return false
	}
	for _, validTo := range validTransitions {
		if validTo == to {
			return true
		}
	}
	return false
}

// ValidateInvoiceStatusTransition returns an error if the transition is invalid.
func ValidateInvoiceStatusTransition(from, to InvoiceStatus) error {
	if !CanTransitionInvoiceStatus(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// ValidateOrderStatusTransition returns an error if the transition is invalid.
func ValidateOrderStatusTransition(from, to OrderStatus) error {
	if !CanTransitionOrderStatus(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsTerminalInvoiceStatus checks if the invoice status is a terminal state.
func IsTerminalInvoiceStatus(status InvoiceStatus) bool {
	return len(ValidInvoiceTransitions[status]) == 0
}

// StageForStatus returns the payment stage an invoice lands on when it
// reaches the given status, given whether it carries a down-payment
// schedule.
func StageForStatus(status InvoiceStatus, hasDownPayment bool) PaymentStage {
	switch status {
	case InvoiceStatusDPPaid:
		return StageFinalPayment
	case InvoiceStatusPaid:
		return StageCompleted
	default:
		if hasDownPayment {
			return StageDownPayment
		}
		return StageFullPayment
	}
}

// Valid reports whether the value names a known invoice status. Used to
// reject transition requests before the table lookup.
func (s InvoiceStatus) Valid() bool {
	_, ok := ValidInvoiceTransitions[s]
	return ok
}

// Valid reports whether the value names a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := ValidOrderTransitions[s]
	return ok
}
