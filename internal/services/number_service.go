package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	invoicePrefix = "INV"
	orderPrefix   = "ORD"

	// suffixAlphabet feeds the random document-number suffix.
	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLength   = 4

	// maxMintAttempts bounds the collision probe loop before falling back
	// to a timestamp-suffixed number that cannot collide in practice.
	maxMintAttempts = 100
)

// ExistsFunc probes whether a candidate number is already taken.
type ExistsFunc func(ctx context.Context, number string) (bool, error)

// NumberService mints document numbers and customer-facing access
// tokens. Numbers are human-readable and globally unique; tokens are
// opaque capabilities.
type NumberService struct {
	log *logrus.Entry
	now func() time.Time
}

func NewNumberService() *NumberService {
	return &NumberService{
		log: logrus.WithField("component", "numbers"),
		now: time.Now,
	}
}

// MintInvoiceNumber returns a free INV-YYYYMMDD-XXXX number.
func (s *NumberService) MintInvoiceNumber(ctx context.Context, exists ExistsFunc) (string, error) {
	return s.mint(ctx, invoicePrefix, exists)
}

// MintOrderNumber returns a free ORD-YYYYMMDD-XXXX number.
func (s *NumberService) MintOrderNumber(ctx context.Context, exists ExistsFunc) (string, error) {
	return s.mint(ctx, orderPrefix, exists)
}

func (s *NumberService) mint(ctx context.Context, prefix string, exists ExistsFunc) (string, error) {
	datePart := s.now().Format("20060102")

	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		candidate := fmt.Sprintf("%s-%s-%s", prefix, datePart, randomSuffix())
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("number collision probe: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}

	// The 4-char space for one day is exhausted or pathologically hot.
	// A millisecond timestamp suffix keeps the mint from failing.
	fallback := fmt.Sprintf("%s-%s-%d", prefix, datePart, s.now().UnixMilli())
	s.log.WithField("number", fallback).Warn("number space exhausted, using timestamp fallback")
	return fallback, nil
}

func randomSuffix() string {
	var b strings.Builder
	for i := 0; i < suffixLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(suffixAlphabet))))
		if err != nil {
			// crypto/rand only fails when the platform source is broken.
			panic(err)
		}
		b.WriteByte(suffixAlphabet[n.Int64()])
	}
	return b.String()
}

// MintCustomerToken builds the shareable invoice-view token:
// inv_<9 base36 chars>_<base36 millisecond timestamp>.
func (s *NumberService) MintCustomerToken() string {
	const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"
	var b strings.Builder
	for i := 0; i < 9; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(36))
		if err != nil {
			panic(err)
		}
		b.WriteByte(base36[n.Int64()])
	}
	ts := strconv.FormatInt(s.now().UnixMilli(), 36)
	return fmt.Sprintf("inv_%s_%s", b.String(), ts)
}
