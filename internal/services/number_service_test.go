package services

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var invoiceNumberPattern = regexp.MustCompile(`^INV-\d{8}-[A-Z0-9]{4}$`)
var orderNumberPattern = regexp.MustCompile(`^ORD-\d{8}-[A-Z0-9]{4}$`)

func neverExists(context.Context, string) (bool, error) { return false, nil }

func TestMintInvoiceNumberFormat(t *testing.T) {
	s := NewNumberService()
	number, err := s.MintInvoiceNumber(context.Background(), neverExists)
	require.NoError(t, err)
	assert.Regexp(t, invoiceNumberPattern, number)
}

func TestMintOrderNumberFormat(t *testing.T) {
	s := NewNumberService()
	number, err := s.MintOrderNumber(context.Background(), neverExists)
	require.NoError(t, err)
	assert.Regexp(t, orderNumberPattern, number)
}

func TestMintRetriesOnCollision(t *testing.T) {
	s := NewNumberService()
	calls := 0
	exists := func(context.Context, string) (bool, error) {
		calls++
		return calls <= 3, nil
	}

	number, err := s.MintInvoiceNumber(context.Background(), exists)
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Regexp(t, invoiceNumberPattern, number)
}

func TestMintFallsBackAfterExhaustion(t *testing.T) {
	s := NewNumberService()
	alwaysTaken := func(context.Context, string) (bool, error) { return true, nil }

	number, err := s.MintInvoiceNumber(context.Background(), alwaysTaken)
	require.NoError(t, err)
	// The fallback carries a millisecond timestamp, longer than 4 chars.
	assert.True(t, strings.HasPrefix(number, "INV-"))
	assert.False(t, invoiceNumberPattern.MatchString(number))
}

func TestMintCustomerTokenShape(t *testing.T) {
	s := NewNumberService()
	token := s.MintCustomerToken()

	parts := strings.Split(token, "_")
	require.Len(t, parts, 3)
	assert.Equal(t, "inv", parts[0])
	assert.Len(t, parts[1], 9)
	assert.NotEmpty(t, parts[2])
	assert.NotEqual(t, token, s.MintCustomerToken())
}
