package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"invoicing-service/internal/clients"
	"invoicing-service/internal/encryption"
	"invoicing-service/internal/events"
	"invoicing-service/internal/models"
	"invoicing-service/internal/repository"
	"invoicing-service/internal/xendit"
)

const (
	confirmationDir     = "payment-confirmations"
	minUploadSize       = 1 << 10  // 1 KiB
	maxUploadSize       = 10 << 20 // 10 MiB
	defaultDueDays      = 7
	finalTokenByteCount = 24
)

// allowedUploadTypes are the accepted payment-proof content types,
// checked against sniffed content rather than the client's header.
var allowedUploadTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
}

// InvoiceService owns the invoice lifecycle: drafting, sending,
// customer-facing access, payment-confirmation review and settlement.
type InvoiceService interface {
	Preview(ctx context.Context, merchantID uuid.UUID, text string) (*models.InvoiceDraft, error)
	Confirm(ctx context.Context, merchantID uuid.UUID, draft models.InvoiceDraft) (*models.Invoice, error)
	Get(ctx context.Context, merchantID, id uuid.UUID) (*models.Invoice, error)
	GetByNumber(ctx context.Context, merchantID uuid.UUID, number string) (*models.Invoice, error)
	List(ctx context.Context, filters models.InvoiceFilters) ([]models.Invoice, int64, error)
	Delete(ctx context.Context, merchantID, id uuid.UUID) error
	UpdateStatus(ctx context.Context, merchantID, id uuid.UUID, status models.InvoiceStatus) (*models.StatusUpdateResult, error)

	GetByCustomerToken(ctx context.Context, token, ip, userAgent string) (*models.Invoice, error)
	GetByFinalPaymentToken(ctx context.Context, token string) (*models.Invoice, error)
	SubmitPaymentConfirmation(ctx context.Context, token string, upload Upload, notes string) (*models.Invoice, error)
	ReviewConfirmation(ctx context.Context, merchantID, id uuid.UUID, approve bool, notes string) (*models.StatusUpdateResult, error)
	ConfirmDownPayment(ctx context.Context, merchantID, id uuid.UUID) (*models.Invoice, error)

	CreateCheckout(ctx context.Context, token string) (*xendit.HostedInvoice, error)
	VerifyWebhook(ctx context.Context, event *xendit.WebhookEvent, callbackToken string) error
	HandleGatewayWebhook(ctx context.Context, event *xendit.WebhookEvent) (*models.StatusUpdateResult, error)
}

// Upload is a customer-submitted payment proof.
type Upload struct {
	Filename string
	Content  []byte
}

type invoiceService struct {
	invoices  repository.InvoiceRepository
	merchants repository.MerchantRepository
	audit     repository.AccessLogRepository
	settings  SettingsService
	customers CustomerService
	orders    OrderService
	numbers   *NumberService
	extractor clients.ExtractorClient
	notifier  clients.NotificationClient
	events    *events.Publisher
	uploadDir string
	baseURL   string
	log       *logrus.Entry

	// Per-invoice locks serialize confirmation review and webhook
	// settlement, so two concurrent approvals cannot both fire
	// side effects. Entries are refcounted and removed once the last
	// holder releases, keeping the map proportional to in-flight work.
	locksMu sync.Mutex
	locks   map[uuid.UUID]*invoiceLock
}

type invoiceLock struct {
	mu   sync.Mutex
	refs int
}

// InvoiceServiceDeps bundles the collaborators; the list is long enough
// that positional arguments stopped being readable.
type InvoiceServiceDeps struct {
	Invoices  repository.InvoiceRepository
	Merchants repository.MerchantRepository
	Audit     repository.AccessLogRepository
	Settings  SettingsService
	Customers CustomerService
	Orders    OrderService
	Numbers   *NumberService
	Extractor clients.ExtractorClient
	Notifier  clients.NotificationClient
	Events    *events.Publisher
	UploadDir string
	BaseURL   string
}

func NewInvoiceService(deps InvoiceServiceDeps) InvoiceService {
	return &invoiceService{
		invoices:  deps.Invoices,
		merchants: deps.Merchants,
		audit:     deps.Audit,
		settings:  deps.Settings,
		customers: deps.Customers,
		orders:    deps.Orders,
		numbers:   deps.Numbers,
		extractor: deps.Extractor,
		notifier:  deps.Notifier,
		events:    deps.Events,
		uploadDir: deps.UploadDir,
		baseURL:   deps.BaseURL,
		log:       logrus.WithField("component", "invoices"),
		locks:     make(map[uuid.UUID]*invoiceLock),
	}
}

func (s *invoiceService) lockInvoice(id uuid.UUID) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &invoiceLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

// Preview runs the extractor over pasted order text. Nothing is stored.
func (s *invoiceService) Preview(ctx context.Context, merchantID uuid.UUID, text string) (*models.InvoiceDraft, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.NewValidationError("text is required")
	}
	draft, err := s.extractor.ExtractInvoice(ctx, text)
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// Confirm persists a draft as a new invoice, or re-writes an existing
// editable one when the draft carries an id.
func (s *invoiceService) Confirm(ctx context.Context, merchantID uuid.UUID, draft models.InvoiceDraft) (*models.Invoice, error) {
	if len(draft.Items) == 0 {
		return nil, models.NewValidationError("invoice needs at least one item")
	}
	for i, item := range draft.Items {
		if item.ProductName == "" || item.Quantity <= 0 || item.UnitPrice < 0 {
			return nil, models.NewValidationError(fmt.Sprintf("item %d is incomplete", i+1))
		}
	}

	if draft.ID != nil {
		return s.updateDraft(ctx, merchantID, *draft.ID, draft)
	}
	return s.createFromDraft(ctx, merchantID, draft)
}

func (s *invoiceService) createFromDraft(ctx context.Context, merchantID uuid.UUID, draft models.InvoiceDraft) (*models.Invoice, error) {
	number, err := s.numbers.MintInvoiceNumber(ctx, s.invoices.NumberExists)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.GetSettings(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	merchant, err := s.merchants.GetByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, models.NewNotFoundError("merchant")
	}

	now := time.Now()
	invoiceDate := now
	if draft.InvoiceDate != nil {
		invoiceDate = *draft.InvoiceDate
	}
	dueDate := invoiceDate.AddDate(0, 0, defaultDueDays)
	if draft.DueDate != nil {
		dueDate = *draft.DueDate
	}

	currency := draft.Currency
	if currency == "" {
		currency = "IDR"
	}

	invoice := &models.Invoice{
		MerchantID:      merchantID,
		InvoiceNumber:   number,
		CustomerName:    strings.TrimSpace(draft.CustomerName),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(draft.CustomerEmail)),
		CustomerPhone:   NormalizePhone(draft.CustomerPhone),
		CustomerAddress: draft.CustomerAddress,
		MerchantName:    merchant.BusinessName,
		MerchantEmail:   merchant.Email,
		MerchantPhone:   merchant.Phone,
		MerchantAddress: merchant.Address,
		InvoiceDate:     invoiceDate,
		DueDate:         dueDate,
		Status:          models.InvoiceStatusDraft,
		PaymentStatus:   models.PaymentPending,
		ShippingCost:    draft.ShippingCost,
		Discount:        draft.Discount,
		Currency:        currency,
		PaymentTerms:    draft.PaymentTerms,
		Notes:           draft.Notes,
		Items:           draft.Items,
		CustomerToken:   s.numbers.MintCustomerToken(),
	}
	s.applyMerchantTax(invoice, settings)
	invoice.ComputeTotals()
	s.attachSchedule(invoice, draft.PaymentSchedule)
	invoice.PaymentStage = models.StageForStatus(invoice.Status, invoice.HasDownPayment())

	customer, err := s.customers.ResolveFromInvoice(ctx, merchantID,
		invoice.CustomerName, invoice.CustomerEmail, invoice.CustomerPhone,
		invoice.CustomerAddress, invoice.InvoiceDate, invoice.GrandTotal)
	if err != nil {
		return nil, err
	}
	invoice.CustomerID = &customer.ID

	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, err
	}
	s.log.WithField("invoice_number", invoice.InvoiceNumber).Info("invoice created")
	return invoice, nil
}

func (s *invoiceService) updateDraft(ctx context.Context, merchantID, id uuid.UUID, draft models.InvoiceDraft) (*models.Invoice, error) {
	invoice, err := s.invoices.GetByID(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, models.NewNotFoundError("invoice")
	}
	if !invoice.IsEditable() {
		return nil, models.ErrImmutableInvoice
	}

	invoice.CustomerName = strings.TrimSpace(draft.CustomerName)
	invoice.CustomerEmail = strings.ToLower(strings.TrimSpace(draft.CustomerEmail))
	invoice.CustomerPhone = NormalizePhone(draft.CustomerPhone)
	invoice.CustomerAddress = draft.CustomerAddress
	if draft.InvoiceDate != nil {
		invoice.InvoiceDate = *draft.InvoiceDate
	}
	if draft.DueDate != nil {
		invoice.DueDate = *draft.DueDate
	}
	invoice.Items = draft.Items
	invoice.ShippingCost = draft.ShippingCost
	invoice.Discount = draft.Discount
	if draft.Currency != "" {
		invoice.Currency = draft.Currency
	}
	invoice.PaymentTerms = draft.PaymentTerms
	invoice.Notes = draft.Notes

	settings, err := s.settings.GetSettings(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	s.applyMerchantTax(invoice, settings)
	invoice.ComputeTotals()
	s.attachSchedule(invoice, draft.PaymentSchedule)
	invoice.PaymentStage = models.StageForStatus(invoice.Status, invoice.HasDownPayment())

	if err := s.invoices.Update(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// applyMerchantTax stamps the merchant's tax rate onto untaxed lines.
func (s *invoiceService) applyMerchantTax(invoice *models.Invoice, settings *models.BusinessSettings) {
	if settings == nil || !settings.TaxEnabled || settings.TaxRate <= 0 {
		return
	}
	for i := range invoice.Items {
		if invoice.Items[i].TaxRate == 0 {
			invoice.Items[i].TaxRate = settings.TaxRate
		}
	}
}

// attachSchedule stores a complete schedule or drops an incomplete one
// with a warning. The invoice still saves either way.
func (s *invoiceService) attachSchedule(invoice *models.Invoice, schedule *models.PaymentSchedule) {
	if schedule == nil {
		invoice.PaymentSchedule = nil
		return
	}
	if !schedule.IsComplete() {
		s.log.WithField("invoice_number", invoice.InvoiceNumber).
			Warn("incomplete payment schedule dropped")
		invoice.PaymentSchedule = nil
		return
	}
	if schedule.DownPayment.Amount >= invoice.GrandTotal {
		s.log.WithField("invoice_number", invoice.InvoiceNumber).
			Warn("down payment exceeds grand total, schedule dropped")
		invoice.PaymentSchedule = nil
		return
	}
	schedule.DownPayment.Status = models.SchedulePartPending
	schedule.RemainingBalance.Status = models.SchedulePartPending
	invoice.PaymentSchedule = schedule
}

func (s *invoiceService) Get(ctx context.Context, merchantID, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.invoices.GetByID(ctx, merchantID, id)
	if err != nil || invoice != nil {
		return invoice, err
	}

	// A foreign invoice answers 403, a missing one 404.
	other, err := s.invoices.GetByIDGlobal(ctx, id)
	if err != nil {
		return nil, err
	}
	if other != nil {
		return nil, models.NewForbiddenError("invoice belongs to another merchant")
	}
	return nil, nil
}

func (s *invoiceService) GetByNumber(ctx context.Context, merchantID uuid.UUID, number string) (*models.Invoice, error) {
	return s.invoices.GetByNumber(ctx, merchantID, number)
}

func (s *invoiceService) List(ctx context.Context, filters models.InvoiceFilters) ([]models.Invoice, int64, error) {
	return s.invoices.List(ctx, filters)
}

// Delete removes an invoice. Only editable invoices can go; settled
// ones are immutable history.
func (s *invoiceService) Delete(ctx context.Context, merchantID, id uuid.UUID) error {
	invoice, err := s.invoices.GetByID(ctx, merchantID, id)
	if err != nil {
		return err
	}
	if invoice == nil {
		return models.NewNotFoundError("invoice")
	}
	if !invoice.IsEditable() {
		return models.ErrImmutableInvoice
	}
	return s.invoices.Delete(ctx, merchantID, id)
}

// UpdateStatus applies a merchant-requested lifecycle transition.
func (s *invoiceService) UpdateStatus(ctx context.Context, merchantID, id uuid.UUID, status models.InvoiceStatus) (*models.StatusUpdateResult, error) {
	unlock := s.lockInvoice(id)
	defer unlock()

	invoice, err := s.invoices.GetByID(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, models.NewNotFoundError("invoice")
	}

	if err := models.ValidateInvoiceStatusTransition(invoice.Status, status); err != nil {
		return nil, err
	}

	now := time.Now()
	invoice.Status = status
	switch status {
	case models.InvoiceStatusSent:
		invoice.SentAt = &now
		invoice.PaymentStage = models.StageForStatus(status, invoice.HasDownPayment())
	case models.InvoiceStatusPaid:
		s.settle(invoice, now)
	case models.InvoiceStatusCancelled:
		// Nothing else to stamp.
	}

	if err := s.invoices.Update(ctx, invoice); err != nil {
		return nil, err
	}

	result := &models.StatusUpdateResult{Invoice: invoice}
	switch status {
	case models.InvoiceStatusSent:
		s.events.InvoiceSent(invoice)
		s.sendInvoiceEmail(ctx, invoice)
	case models.InvoiceStatusPaid:
		s.events.InvoicePaid(invoice)
		s.attachAutoOrder(ctx, invoice, result)
	}
	return result, nil
}

// settle marks the invoice fully paid.
func (s *invoiceService) settle(invoice *models.Invoice, now time.Time) {
	invoice.Status = models.InvoiceStatusPaid
	invoice.PaymentStatus = models.PaymentPaid
	invoice.PaymentStage = models.StageCompleted
	invoice.PaidAt = &now
	if invoice.PaymentSchedule != nil {
		if invoice.PaymentSchedule.RemainingBalance.Status != models.SchedulePartPaid {
			invoice.PaymentSchedule.RemainingBalance.Status = models.SchedulePartPaid
			invoice.PaymentSchedule.RemainingBalance.PaidDate = &now
		}
		invoice.FinalPaymentConfirmedDate = &now
	}
}

// attachAutoOrder runs the advisory order creation. Failure is reported
// in the result, never as an error: the invoice is already paid and
// that fact must not roll back.
func (s *invoiceService) attachAutoOrder(ctx context.Context, invoice *models.Invoice, result *models.StatusUpdateResult) {
	order, err := s.orders.CreateFromInvoice(ctx, invoice)
	if err != nil {
		s.log.WithError(err).
			WithField("invoice_number", invoice.InvoiceNumber).
			Error("auto order creation failed")
		result.OrderError = err.Error()
		return
	}
	result.OrderCreated = true
	result.Order = order
}

// GetByCustomerToken is the customer-portal read. Every hit is logged,
// including misses, so token guessing leaves a trail.
func (s *invoiceService) GetByCustomerToken(ctx context.Context, token, ip, userAgent string) (*models.Invoice, error) {
	invoice, err := s.invoices.GetByCustomerToken(ctx, token)
	if err != nil {
		return nil, err
	}
	s.logPortalAccess(ctx, invoice, ip, userAgent)
	if invoice == nil {
		return nil, models.NewNotFoundError("invoice")
	}
	return invoice, nil
}

func (s *invoiceService) logPortalAccess(ctx context.Context, invoice *models.Invoice, ip, userAgent string) {
	if s.audit == nil {
		return
	}
	entry := &models.AccessLog{
		IP:         ip,
		UserAgent:  userAgent,
		AccessType: models.AccessTypeToken,
		Success:    invoice != nil,
	}
	if invoice != nil {
		id := invoice.ID
		entry.InvoiceID = &id
		if invoice.CustomerEmail != "" {
			email := invoice.CustomerEmail
			entry.CustomerEmail = &email
		}
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.log.WithError(err).Warn("portal access log write failed")
	}
}

func (s *invoiceService) GetByFinalPaymentToken(ctx context.Context, token string) (*models.Invoice, error) {
	invoice, err := s.invoices.GetByFinalPaymentToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, models.NewNotFoundError("invoice")
	}
	return invoice, nil
}

// validateUpload sniffs and size-checks a payment proof.
func validateUpload(upload Upload) (ext string, err error) {
	if len(upload.Content) < minUploadSize {
		return "", models.NewValidationError("file is too small to be a payment proof")
	}
	if len(upload.Content) > maxUploadSize {
		return "", models.NewValidationError("file exceeds the 10MB limit")
	}
	contentType := http.DetectContentType(upload.Content)
	ext, ok := allowedUploadTypes[contentType]
	if !ok {
		return "", models.NewValidationError("only JPEG, PNG, GIF and PDF files are accepted")
	}
	return ext, nil
}

// SubmitPaymentConfirmation stores a customer's payment proof and flags
// the invoice for merchant review.
func (s *invoiceService) SubmitPaymentConfirmation(ctx context.Context, token string, upload Upload, notes string) (*models.Invoice, error) {
	invoice, err := s.resolveConfirmationTarget(ctx, token)
	if err != nil {
		return nil, err
	}

	unlock := s.lockInvoice(invoice.ID)
	defer unlock()

	if invoice.Status != models.InvoiceStatusSent && invoice.Status != models.InvoiceStatusDPPaid {
		return nil, models.NewValidationError("this invoice is not awaiting payment")
	}

	ext, err := validateUpload(upload)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(s.uploadDir, confirmationDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	stored := fmt.Sprintf("%s-%d%s", invoice.InvoiceNumber, time.Now().UnixMilli(), ext)
	if err := os.WriteFile(filepath.Join(dir, stored), upload.Content, 0o644); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	now := time.Now()
	pending := models.ConfirmationPending
	invoice.PaymentConfirmationFile = filepath.Join(confirmationDir, stored)
	invoice.PaymentConfirmationNotes = notes
	invoice.PaymentConfirmationDate = &now
	invoice.ConfirmationStatus = &pending
	invoice.PaymentStatus = models.PaymentConfirmationPending

	if err := s.invoices.Update(ctx, invoice); err != nil {
		return nil, err
	}
	s.log.WithField("invoice_number", invoice.InvoiceNumber).Info("payment confirmation submitted")
	return invoice, nil
}

// resolveConfirmationTarget accepts either token kind, since both the
// customer portal and the final-payment page submit proofs.
func (s *invoiceService) resolveConfirmationTarget(ctx context.Context, token string) (*models.Invoice, error) {
	invoice, err := s.invoices.GetByCustomerToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		invoice, err = s.invoices.GetByFinalPaymentToken(ctx, token)
		if err != nil {
			return nil, err
		}
	}
	if invoice == nil {
		return nil, models.NewNotFoundError("invoice")
	}
	return invoice, nil
}

// ReviewConfirmation is the merchant verdict on an uploaded proof.
func (s *invoiceService) ReviewConfirmation(ctx context.Context, merchantID, id uuid.UUID, approve bool, notes string) (*models.StatusUpdateResult, error) {
	unlock := s.lockInvoice(id)
	defer unlock()

	invoice, err := s.invoices.GetByID(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, models.NewNotFoundError("invoice")
	}
	if invoice.ConfirmationStatus == nil || *invoice.ConfirmationStatus != models.ConfirmationPending {
		return nil, models.NewValidationError("no pending payment confirmation to review")
	}

	now := time.Now()
	invoice.MerchantNotes = notes
	invoice.ReviewedDate = &now

	if !approve {
		rejected := models.ConfirmationRejected
		invoice.ConfirmationStatus = &rejected
		if invoice.Status == models.InvoiceStatusDPPaid {
			invoice.PaymentStatus = models.PaymentPartial
		} else {
			invoice.PaymentStatus = models.PaymentPending
		}
		if err := s.invoices.Update(ctx, invoice); err != nil {
			return nil, err
		}
		return &models.StatusUpdateResult{Invoice: invoice}, nil
	}

	approved := models.ConfirmationApproved
	invoice.ConfirmationStatus = &approved

	result := &models.StatusUpdateResult{Invoice: invoice}
	if invoice.HasDownPayment() && invoice.Status == models.InvoiceStatusSent {
		if err := s.approveDownPayment(ctx, invoice, now); err != nil {
			return nil, err
		}
	} else {
		if err := models.ValidateInvoiceStatusTransition(invoice.Status, models.InvoiceStatusPaid); err != nil {
			return nil, err
		}
		s.settle(invoice, now)
		if err := s.invoices.Update(ctx, invoice); err != nil {
			return nil, err
		}
		s.events.InvoicePaid(invoice)
		s.attachAutoOrder(ctx, invoice, result)
	}
	return result, nil
}

// ConfirmDownPayment records the first tranche as received without an
// uploaded proof, covering transfers the merchant verified off-platform.
func (s *invoiceService) ConfirmDownPayment(ctx context.Context, merchantID, id uuid.UUID) (*models.Invoice, error) {
	unlock := s.lockInvoice(id)
	defer unlock()

	invoice, err := s.invoices.GetByID(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, models.NewNotFoundError("invoice")
	}
	if !invoice.HasDownPayment() {
		return nil, models.NewValidationError("invoice has no down-payment schedule")
	}
	if invoice.Status != models.InvoiceStatusSent {
		return nil, models.NewValidationError("only sent invoices can take a down payment")
	}
	if err := s.approveDownPayment(ctx, invoice, time.Now()); err != nil {
		return nil, err
	}
	return invoice, nil
}

// approveDownPayment applies the first-tranche approval: the schedule
// flips to the final stage, a final-payment token is minted, and the due
// date moves to the remaining balance's. The original due date survives
// for display.
func (s *invoiceService) approveDownPayment(ctx context.Context, invoice *models.Invoice, now time.Time) error {
	schedule := invoice.PaymentSchedule
	schedule.DownPayment.Status = models.SchedulePartPaid
	schedule.DownPayment.PaidDate = &now
	schedule.RemainingBalance.Amount = invoice.GrandTotal - schedule.DownPayment.Amount

	token, err := encryption.RandomToken(finalTokenByteCount)
	if err != nil {
		return err
	}
	invoice.FinalPaymentToken = &token

	if invoice.OriginalDueDate == nil {
		original := invoice.DueDate
		invoice.OriginalDueDate = &original
	}
	invoice.DueDate = schedule.RemainingBalance.DueDate

	invoice.Status = models.InvoiceStatusDPPaid
	invoice.PaymentStage = models.StageFinalPayment
	invoice.PaymentStatus = models.PaymentPartial
	invoice.DPConfirmedDate = &now

	if err := s.invoices.Update(ctx, invoice); err != nil {
		return err
	}
	s.sendFinalPaymentEmail(ctx, invoice)
	return nil
}

// AmountDue is what the customer owes right now.
func AmountDue(invoice *models.Invoice) float64 {
	if invoice.PaymentSchedule != nil {
		switch invoice.PaymentStage {
		case models.StageDownPayment:
			return invoice.PaymentSchedule.DownPayment.Amount
		case models.StageFinalPayment:
			return invoice.PaymentSchedule.RemainingBalance.Amount
		case models.StageCompleted:
			return 0
		}
	}
	if invoice.PaymentStatus == models.PaymentPaid {
		return 0
	}
	return invoice.GrandTotal
}

// CreateCheckout opens a Xendit hosted checkout for the amount due.
func (s *invoiceService) CreateCheckout(ctx context.Context, token string) (*xendit.HostedInvoice, error) {
	invoice, err := s.resolveConfirmationTarget(ctx, token)
	if err != nil {
		return nil, err
	}
	if invoice.Status != models.InvoiceStatusSent && invoice.Status != models.InvoiceStatusDPPaid {
		return nil, models.NewValidationError("this invoice is not awaiting payment")
	}

	amount := AmountDue(invoice)
	if amount <= 0 {
		return nil, models.NewValidationError("nothing is due on this invoice")
	}

	secret, err := s.settings.GatewaySecret(ctx, invoice.MerchantID, "secretKey")
	if err != nil {
		return nil, err
	}

	viewURL := fmt.Sprintf("%s/invoice/%s", s.baseURL, invoice.CustomerToken)
	return xendit.NewClient(secret).CreateHostedInvoice(ctx, xendit.CreateInvoiceParams{
		InvoiceNumber: invoice.InvoiceNumber,
		Amount:        amount,
		Currency:      invoice.Currency,
		PayerEmail:    invoice.CustomerEmail,
		Description:   fmt.Sprintf("Invoice %s - %s", invoice.InvoiceNumber, invoice.MerchantName),
		SuccessURL:    viewURL,
		FailureURL:    viewURL,
	})
}

// VerifyWebhook checks the callback token against the merchant whose
// invoice the event references. The token is per merchant, so the
// invoice must be resolved before the comparison.
func (s *invoiceService) VerifyWebhook(ctx context.Context, event *xendit.WebhookEvent, callbackToken string) error {
	invoice, err := s.findByNumberGlobal(ctx, event.InvoiceNumber())
	if err != nil {
		return err
	}
	if invoice == nil {
		return models.NewNotFoundError("invoice")
	}
	expected, err := s.settings.GatewaySecret(ctx, invoice.MerchantID, "webhookToken")
	if err != nil {
		return models.NewUnauthorizedError("webhook token is not configured")
	}
	if !xendit.VerifyWebhookToken(callbackToken, expected) {
		return models.NewUnauthorizedError("webhook token mismatch")
	}
	return nil
}

// HandleGatewayWebhook settles the stage the gateway collected. Replays
// of an already-settled invoice are acknowledged without effect.
func (s *invoiceService) HandleGatewayWebhook(ctx context.Context, event *xendit.WebhookEvent) (*models.StatusUpdateResult, error) {
	if !event.IsPaid() {
		return nil, nil
	}

	number := event.InvoiceNumber()
	invoice, err := s.findByNumberGlobal(ctx, number)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, models.NewNotFoundError("invoice")
	}

	unlock := s.lockInvoice(invoice.ID)
	defer unlock()

	// Re-read under the lock; a concurrent replay may have settled it,
	// or the merchant may have deleted the invoice entirely.
	invoice, err = s.invoices.GetByID(ctx, invoice.MerchantID, invoice.ID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		s.log.WithField("invoice_number", number).Warn("webhook for deleted invoice ignored")
		return nil, nil
	}

	now := time.Now()
	result := &models.StatusUpdateResult{Invoice: invoice}
	switch {
	case invoice.Status == models.InvoiceStatusSent && invoice.HasDownPayment():
		if err := s.approveDownPayment(ctx, invoice, now); err != nil {
			return nil, err
		}
	case invoice.Status == models.InvoiceStatusSent || invoice.Status == models.InvoiceStatusDPPaid:
		s.settle(invoice, now)
		if err := s.invoices.Update(ctx, invoice); err != nil {
			return nil, err
		}
		s.events.InvoicePaid(invoice)
		s.attachAutoOrder(ctx, invoice, result)
	default:
		// Already settled or cancelled; acknowledge idempotently.
		s.log.WithFields(logrus.Fields{
			"invoice_number": number,
			"status":         invoice.Status,
		}).Info("webhook replay ignored")
	}
	return result, nil
}

// findByNumberGlobal looks an invoice up by number without a merchant
// scope. Webhooks carry no merchant identity; the number is unique.
func (s *invoiceService) findByNumberGlobal(ctx context.Context, number string) (*models.Invoice, error) {
	return s.invoices.GetByNumberGlobal(ctx, number)
}

func (s *invoiceService) sendInvoiceEmail(ctx context.Context, invoice *models.Invoice) {
	if s.notifier == nil {
		return
	}
	n := &clients.InvoiceNotification{
		MerchantID:    invoice.MerchantID.String(),
		InvoiceNumber: invoice.InvoiceNumber,
		CustomerName:  invoice.CustomerName,
		CustomerEmail: invoice.CustomerEmail,
		BusinessName:  invoice.MerchantName,
		Currency:      invoice.Currency,
		AmountDue:     fmt.Sprintf("%.2f", AmountDue(invoice)),
		DueDate:       invoice.DueDate.Format("2 Jan 2006"),
		ViewURL:       fmt.Sprintf("%s/invoice/%s", s.baseURL, invoice.CustomerToken),
	}
	if err := s.notifier.SendInvoice(ctx, n); err != nil {
		s.log.WithError(err).Warn("invoice email not sent")
	}
}

func (s *invoiceService) sendFinalPaymentEmail(ctx context.Context, invoice *models.Invoice) {
	if s.notifier == nil || invoice.FinalPaymentToken == nil {
		return
	}
	n := &clients.InvoiceNotification{
		MerchantID:    invoice.MerchantID.String(),
		InvoiceNumber: invoice.InvoiceNumber,
		CustomerName:  invoice.CustomerName,
		CustomerEmail: invoice.CustomerEmail,
		BusinessName:  invoice.MerchantName,
		Currency:      invoice.Currency,
		AmountDue:     fmt.Sprintf("%.2f", invoice.PaymentSchedule.RemainingBalance.Amount),
		DueDate:       invoice.DueDate.Format("2 Jan 2006"),
		PaymentURL:    fmt.Sprintf("%s/pay/%s", s.baseURL, *invoice.FinalPaymentToken),
	}
	if err := s.notifier.SendFinalPaymentRequest(ctx, n); err != nil {
		s.log.WithError(err).Warn("final payment email not sent")
	}
}
