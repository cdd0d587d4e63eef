package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"invoicing-service/internal/models"
)

// BlobClient stores merchant assets (logos) in the media service.
// Uploads return a public URL plus an opaque id used for later deletion.
type BlobClient interface {
	Upload(ctx context.Context, filename string, content []byte, folder string) (*BlobRef, error)
	Delete(ctx context.Context, publicID string) error
}

// BlobRef identifies a stored asset.
type BlobRef struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Filename string `json:"filename"`
}

type blobClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewBlobClient reads BLOB_SERVICE_URL and BLOB_API_KEY.
func NewBlobClient() BlobClient {
	baseURL := os.Getenv("BLOB_SERVICE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8092"
	}

	return &blobClient{
		baseURL:    baseURL,
		apiKey:     os.Getenv("BLOB_API_KEY"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *blobClient) Upload(ctx context.Context, filename string, content []byte, folder string) (*BlobRef, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.WriteField("folder", folder); err != nil {
		return nil, fmt.Errorf("write folder field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/blobs", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewUpstreamError("blob storage")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, models.NewUpstreamError("blob storage")
	}

	var ref BlobRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	ref.Filename = filename
	return &ref, nil
}

func (c *blobClient) Delete(ctx context.Context, publicID string) error {
	url := fmt.Sprintf("%s/api/v1/blobs/%s", c.baseURL, publicID)
	req, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.NewUpstreamError("blob storage")
	}
	defer resp.Body.Close()

	// Deleting something already gone is a success.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("blob service returned status %d", resp.StatusCode)
	}
	return nil
}
