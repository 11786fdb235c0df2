package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const gotenbergConvertPath = "/forms/libreoffice/convert"

// GotenbergConverter turns office documents into PDF through a Gotenberg
// LibreOffice endpoint.
type GotenbergConverter struct {
	endpoint string
	client   *http.Client
}

// NewGotenbergConverter constructs a converter for the Gotenberg service at
// baseURL. An empty baseURL returns nil, which callers treat as "conversion
// unavailable".
func NewGotenbergConverter(baseURL string, timeout time.Duration) *GotenbergConverter {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GotenbergConverter{
		endpoint: baseURL + gotenbergConvertPath,
		client:   &http.Client{Timeout: timeout},
	}
}

// Convert posts the document as a multipart form and returns the PDF body.
func (c *GotenbergConverter) Convert(ctx context.Context, filename string, document []byte) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: converter not configured", ErrConvert)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", filename)
	if err != nil {
		return nil, fmt.Errorf("%w: create form file: %v", ErrConvert, err)
	}
	if _, err := part.Write(document); err != nil {
		return nil, fmt.Errorf("%w: write form file: %v", ErrConvert, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: close form: %v", ErrConvert, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrConvert, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConvert, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrConvert, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrConvert, err)
	}
	return pdf, nil
}
