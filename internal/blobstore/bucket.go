package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/louisbranch/classwork/internal/errors"
)

// BucketConfig configures the HTTP object-store client.
type BucketConfig struct {
	// BaseURL is the storage API root, e.g. https://host/storage/v1.
	BaseURL string
	// Bucket is the bucket objects are written to.
	Bucket string
	// APIKey authorizes writes; public reads need no key.
	APIKey string
	// PublicBaseURL overrides BaseURL for derived public URLs when the
	// provider serves public objects from a different host.
	PublicBaseURL string
	HTTPClient    *http.Client
}

// BucketClient talks to a bucket-style object store over HTTP.
type BucketClient struct {
	cfg BucketConfig
}

// NewBucketClient builds a bucket client.
func NewBucketClient(cfg BucketConfig) (*BucketClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("storage base url is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if strings.TrimSpace(cfg.PublicBaseURL) == "" {
		cfg.PublicBaseURL = cfg.BaseURL
	} else {
		cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	return &BucketClient{cfg: cfg}, nil
}

// Upload stores body under path. The store rejects duplicate paths, which
// keeps one object per submission.
func (c *BucketClient) Upload(ctx context.Context, path, contentType string, body io.Reader) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return apperrors.New(apperrors.CodeUploadFailed, "object path is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.objectURL(c.cfg.BaseURL+"/object", path), body)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeUploadFailed, "build upload request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeUploadFailed, "upload request failed", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err != nil {
			return apperrors.Wrap(apperrors.CodeUploadFailed, "read upload error body", err)
		}
		return apperrors.New(apperrors.CodeUploadFailed,
			fmt.Sprintf("upload status %d: %s", res.StatusCode, strings.TrimSpace(string(detail))))
	}
	return nil
}

// PublicURL derives the public URL for an uploaded object.
func (c *BucketClient) PublicURL(path string) string {
	return c.objectURL(c.cfg.PublicBaseURL+"/object/public", strings.TrimSpace(path))
}

// Remove deletes one object. The pipeline uses it to clean up orphaned
// uploads when a later stage fails.
func (c *BucketClient) Remove(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("object path is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.objectURL(c.cfg.BaseURL+"/object", path), nil)
	if err != nil {
		return fmt.Errorf("build remove request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("remove request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err != nil {
			return fmt.Errorf("read remove error body: %w", err)
		}
		return fmt.Errorf("remove status %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func (c *BucketClient) objectURL(prefix, path string) string {
	segments := []string{c.cfg.Bucket}
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, url.PathEscape(segment))
		}
	}
	return prefix + "/" + strings.Join(segments, "/")
}
