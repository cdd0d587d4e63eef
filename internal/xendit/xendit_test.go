package xendit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExternalIDShape(t *testing.T) {
	id := ExternalID("INV-20260825-AB12")
	assert.Regexp(t, regexp.MustCompile(`^INV-20260825-AB12-\d+$`), id)
}

func TestInvoiceNumberFromExternalID(t *testing.T) {
	assert.Equal(t, "INV-20260825-AB12",
		InvoiceNumberFromExternalID("INV-20260825-AB12-1756080000000"))
	// Fallback numbers carry a timestamp as third segment already.
	assert.Equal(t, "INV-20260825-1756080000000",
		InvoiceNumberFromExternalID("INV-20260825-1756080000000-1756080011111"))
	// Degenerate ids pass through untouched.
	assert.Equal(t, "weird", InvoiceNumberFromExternalID("weird"))
}

func TestVerifyWebhookToken(t *testing.T) {
	assert.True(t, VerifyWebhookToken("tok-abc", "tok-abc"))
	assert.False(t, VerifyWebhookToken("tok-abc", "tok-xyz"))
	assert.False(t, VerifyWebhookToken("", "tok-abc"))
	assert.False(t, VerifyWebhookToken("tok-abc", ""))
}

func TestParseWebhookEvent(t *testing.T) {
	event, err := ParseWebhookEvent([]byte(`{
		"id": "xnd-1",
		"external_id": "INV-20260825-AB12-1756080000000",
		"status": "PAID",
		"amount": 150000,
		"paid_amount": 150000
	}`))
	require.NoError(t, err)
	assert.Equal(t, "INV-20260825-AB12", event.InvoiceNumber())
	assert.True(t, event.IsPaid())

	_, err = ParseWebhookEvent([]byte(`{"status": "PAID"}`))
	assert.Error(t, err)

	_, err = ParseWebhookEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestTestConnectionRejectsBadKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClientWithBaseURL("bad-key", server.URL)
	err := client.TestConnection(context.Background())
	require.Error(t, err)
}

func TestCreateHostedInvoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/invoices", r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Regexp(t, `^INV-20260825-AB12-\d+$`, payload["external_id"])
		assert.Equal(t, 250000.0, payload["amount"])

		json.NewEncoder(w).Encode(HostedInvoice{
			ID:         "xnd-inv-1",
			ExternalID: payload["external_id"].(string),
			InvoiceURL: "https://checkout.example/xnd-inv-1",
			Status:     "PENDING",
			Amount:     250000,
		})
	}))
	defer server.Close()

	client := NewClientWithBaseURL("secret", server.URL)
	invoice, err := client.CreateHostedInvoice(context.Background(), CreateInvoiceParams{
		InvoiceNumber: "INV-20260825-AB12",
		Amount:        250000,
		Currency:      "IDR",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/xnd-inv-1", invoice.InvoiceURL)
}
