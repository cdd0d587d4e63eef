package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"invoicing-service/internal/models"
	"invoicing-service/internal/repository"
)

// fuzzyThreshold is the strict lower bound on name similarity for a
// match. Similarity at exactly the threshold does not match.
const fuzzyThreshold = 0.80

// minFuzzyNameLen guards the fuzzy pass against short names, where edit
// distance is too coarse to mean anything.
const minFuzzyNameLen = 4

// CustomerService resolves invoice contact details against the
// merchant's customer book: exact email first, then exact normalized
// phone, then fuzzy name. Matches are merged non-destructively; misses
// create a new auto-extracted row.
type CustomerService interface {
	ResolveFromInvoice(ctx context.Context, merchantID uuid.UUID, name, email, phone, address string, invoiceDate time.Time, amount float64) (*models.Customer, error)
	RecordInvoice(ctx context.Context, customer *models.Customer, invoiceDate time.Time, amount float64) error
	Create(ctx context.Context, customer *models.Customer) error
	Get(ctx context.Context, merchantID, id uuid.UUID) (*models.Customer, error)
	Search(ctx context.Context, merchantID uuid.UUID, query string, page, limit int) ([]models.CustomerWithStats, int64, error)
	Update(ctx context.Context, customer *models.Customer) error
	Delete(ctx context.Context, merchantID, id uuid.UUID) error
}

type customerService struct {
	repo repository.CustomerRepository
	log  *logrus.Entry
}

func NewCustomerService(repo repository.CustomerRepository) CustomerService {
	return &customerService{
		repo: repo,
		log:  logrus.WithField("component", "customers"),
	}
}

// NormalizePhone canonicalizes Indonesian phone numbers to 62-prefixed
// digits. Already-normalized input passes through unchanged.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case d == "":
		return ""
	case strings.HasPrefix(d, "62"):
		return d
	case strings.HasPrefix(d, "0"):
		return "62" + d[1:]
	case strings.HasPrefix(d, "8") && len(d) >= 10:
		return "62" + d
	default:
		return d
	}
}

// levenshtein is the classic two-row edit distance.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// nameSimilarity is 1 - distance/maxLen over lowercased trimmed names.
func nameSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" && b == "" {
		return 1
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(maxLen)
}

func (s *customerService) ResolveFromInvoice(ctx context.Context, merchantID uuid.UUID, name, email, phone, address string, invoiceDate time.Time, amount float64) (*models.Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	normPhone := NormalizePhone(phone)

	match, err := s.findMatch(ctx, merchantID, name, email, normPhone)
	if err != nil {
		return nil, err
	}

	if match != nil {
		s.mergeContact(match, name, email, normPhone, address)
		if err := s.RecordInvoice(ctx, match, invoiceDate, amount); err != nil {
			return nil, err
		}
		return match, nil
	}

	customer := &models.Customer{
		MerchantID:       merchantID,
		Name:             strings.TrimSpace(name),
		Address:          address,
		ExtractionMethod: models.ExtractionAuto,
	}
	if email != "" {
		customer.Email = &email
	}
	if normPhone != "" {
		customer.Phone = &normPhone
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, err
	}
	return customer, s.RecordInvoice(ctx, customer, invoiceDate, amount)
}

func (s *customerService) findMatch(ctx context.Context, merchantID uuid.UUID, name, email, normPhone string) (*models.Customer, error) {
	if email != "" {
		customer, err := s.repo.GetByEmail(ctx, merchantID, email)
		if err != nil || customer != nil {
			return customer, err
		}
	}
	if normPhone != "" {
		customer, err := s.repo.GetByPhone(ctx, merchantID, normPhone)
		if err != nil || customer != nil {
			return customer, err
		}
	}

	trimmed := strings.TrimSpace(name)
	if len([]rune(trimmed)) < minFuzzyNameLen {
		return nil, nil
	}

	candidates, err := s.repo.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	var best *models.Customer
	bestScore := fuzzyThreshold
	for i := range candidates {
		score := nameSimilarity(trimmed, candidates[i].Name)
		if score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	if best != nil {
		s.log.WithFields(logrus.Fields{
			"name":       trimmed,
			"matched":    best.Name,
			"similarity": bestScore,
		}).Info("fuzzy customer match")
	}
	return best, nil
}

// mergeContact fills blanks on an existing row from the incoming invoice
// without overwriting anything already stored.
func (s *customerService) mergeContact(customer *models.Customer, name, email, normPhone, address string) {
	if customer.Email == nil && email != "" {
		customer.Email = &email
	}
	if customer.Phone == nil && normPhone != "" {
		customer.Phone = &normPhone
	}
	if customer.Address == "" && address != "" {
		customer.Address = address
	}
	_ = name // the stored name wins over the invoice spelling
}

// RecordInvoice bumps the customer aggregates for one new invoice.
func (s *customerService) RecordInvoice(ctx context.Context, customer *models.Customer, invoiceDate time.Time, amount float64) error {
	if customer.FirstInvoiceDate == nil || invoiceDate.Before(*customer.FirstInvoiceDate) {
		d := invoiceDate
		customer.FirstInvoiceDate = &d
	}
	if customer.LastInvoiceDate == nil || invoiceDate.After(*customer.LastInvoiceDate) {
		d := invoiceDate
		customer.LastInvoiceDate = &d
	}
	customer.InvoiceCount++
	customer.TotalSpent += amount
	return s.repo.Update(ctx, customer)
}

func (s *customerService) Create(ctx context.Context, customer *models.Customer) error {
	if customer.Phone != nil {
		normalized := NormalizePhone(*customer.Phone)
		customer.Phone = &normalized
	}
	customer.ExtractionMethod = models.ExtractionManual
	return s.repo.Create(ctx, customer)
}

func (s *customerService) Get(ctx context.Context, merchantID, id uuid.UUID) (*models.Customer, error) {
	return s.repo.GetByID(ctx, merchantID, id)
}

func (s *customerService) Search(ctx context.Context, merchantID uuid.UUID, query string, page, limit int) ([]models.CustomerWithStats, int64, error) {
	return s.repo.Search(ctx, merchantID, query, page, limit)
}

func (s *customerService) Update(ctx context.Context, customer *models.Customer) error {
	if customer.Phone != nil {
		normalized := NormalizePhone(*customer.Phone)
		customer.Phone = &normalized
	}
	return s.repo.Update(ctx, customer)
}

func (s *customerService) Delete(ctx context.Context, merchantID, id uuid.UUID) error {
	return s.repo.Delete(ctx, merchantID, id)
}
