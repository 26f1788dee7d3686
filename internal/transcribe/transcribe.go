// Package transcribe calls an external OCR service to extract text from a
// submitted answer image.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"

	apperrors "github.com/louisbranch/classwork/internal/errors"
)

// Transcriber extracts plain text from an image URL. An empty string means
// the service found no text, which is not a failure.
type Transcriber interface {
	ExtractText(ctx context.Context, imageURL string) (string, error)
}

// Config configures the OCR HTTP client.
type Config struct {
	// Endpoint receives a JSON body with the image URL and language hint.
	Endpoint string
	APIKey   string
	// Language is the OCR language hint sent with each request.
	Language string
	// TextPath is the gjson path of the extracted text inside the provider
	// response. Providers wrap the result under different JSON paths; the
	// default covers OCR.space-style payloads.
	TextPath string
	// MaxTries bounds retries of transient transport failures.
	MaxTries   uint
	HTTPClient *http.Client
}

const defaultTextPath = "ParsedResults.0.ParsedText"

// Client is an HTTP OCR client.
type Client struct {
	cfg Config
}

// NewClient builds an OCR client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("transcription endpoint is required")
	}
	if strings.TrimSpace(cfg.TextPath) == "" {
		cfg.TextPath = defaultTextPath
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Client{cfg: cfg}, nil
}

// ExtractText submits the image URL for OCR and returns the extracted text.
// Transient transport failures are retried with exponential backoff; client
// errors from the provider are not.
func (c *Client) ExtractText(ctx context.Context, imageURL string) (string, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return "", apperrors.New(apperrors.CodeTranscriptionFailed, "image url is required")
	}

	operation := func() (string, error) {
		return c.extractOnce(ctx, imageURL)
	}
	text, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.cfg.MaxTries),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) extractOnce(ctx context.Context, imageURL string) (string, error) {
	requestBody, err := json.Marshal(map[string]string{
		"url":      imageURL,
		"language": c.cfg.Language,
	})
	if err != nil {
		return "", backoff.Permanent(apperrors.Wrap(apperrors.CodeTranscriptionFailed, "marshal ocr request", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return "", backoff.Permanent(apperrors.Wrap(apperrors.CodeTranscriptionFailed, "build ocr request", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("apikey", c.cfg.APIKey)
	}

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeTranscriptionFailed, "ocr request failed", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeTranscriptionFailed, "read ocr response", err)
	}
	if res.StatusCode >= 500 {
		return "", apperrors.New(apperrors.CodeTranscriptionFailed,
			fmt.Sprintf("ocr status %d: %s", res.StatusCode, strings.TrimSpace(string(body))))
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", backoff.Permanent(apperrors.New(apperrors.CodeTranscriptionFailed,
			fmt.Sprintf("ocr status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))))
	}
	if !gjson.ValidBytes(body) {
		return "", backoff.Permanent(apperrors.New(apperrors.CodeTranscriptionFailed, "ocr response is not valid json"))
	}

	// A missing path means the provider found no text, which is success.
	return gjson.GetBytes(body, c.cfg.TextPath).String(), nil
}
