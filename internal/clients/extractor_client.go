package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"invoicing-service/internal/models"
)

// ExtractorClient turns free-form order text into a structured invoice
// draft via the LLM extraction service.
type ExtractorClient interface {
	ExtractInvoice(ctx context.Context, text string) (*models.InvoiceDraft, error)
}

type extractorClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewExtractorClient reads EXTRACTOR_SERVICE_URL and EXTRACTOR_API_KEY.
func NewExtractorClient() ExtractorClient {
	baseURL := os.Getenv("EXTRACTOR_SERVICE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8091"
	}

	return &extractorClient{
		baseURL: baseURL,
		apiKey:  os.Getenv("EXTRACTOR_API_KEY"),
		// Extraction calls an LLM; latency runs far past normal API calls.
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Success bool                 `json:"success"`
	Draft   *models.InvoiceDraft `json:"draft"`
	Error   string               `json:"error,omitempty"`
}

func (c *extractorClient) ExtractInvoice(ctx context.Context, text string) (*models.InvoiceDraft, error) {
	body, err := json.Marshal(extractRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal extract request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/extract/invoice", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewUpstreamError("extractor")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read extract response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, models.NewUpstreamError("extractor")
	}

	var parsed extractResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode extract response: %w", err)
	}
	if !parsed.Success || parsed.Draft == nil {
		if parsed.Error != "" {
			return nil, models.NewValidationError(parsed.Error)
		}
		return nil, models.NewUpstreamError("extractor")
	}
	return parsed.Draft, nil
}
