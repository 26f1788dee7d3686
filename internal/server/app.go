package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/louisbranch/classwork/internal/blobstore"
	"github.com/louisbranch/classwork/internal/classroom/service"
	"github.com/louisbranch/classwork/internal/classroom/storage/sqlite"
	"github.com/louisbranch/classwork/internal/grading"
	"github.com/louisbranch/classwork/internal/platform/timeouts"
	"github.com/louisbranch/classwork/internal/realtime"
	"github.com/louisbranch/classwork/internal/transcribe"
)

// RunConfig carries everything needed to compose and run the API server.
type RunConfig struct {
	Addr      string
	DBPath    string
	JWTSecret string

	StorageBaseURL       string
	StoragePublicBaseURL string
	StorageBucket        string
	StorageAPIKey        string

	OCREndpoint string
	OCRAPIKey   string
	OCRLanguage string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	KeepOrphanedUploads bool
}

// Run composes the storage, pipeline adapters, hub, and transport, then
// serves until the context ends.
func Run(ctx context.Context, cfg RunConfig) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close database: %v", err)
		}
	}()

	httpClient := &http.Client{Timeout: timeouts.UpstreamRequest}

	uploader, err := blobstore.NewBucketClient(blobstore.BucketConfig{
		BaseURL:       cfg.StorageBaseURL,
		PublicBaseURL: cfg.StoragePublicBaseURL,
		Bucket:        cfg.StorageBucket,
		APIKey:        cfg.StorageAPIKey,
		HTTPClient:    httpClient,
	})
	if err != nil {
		return fmt.Errorf("configure blob storage: %w", err)
	}

	transcriber, err := transcribe.NewClient(transcribe.Config{
		Endpoint:   cfg.OCREndpoint,
		APIKey:     cfg.OCRAPIKey,
		Language:   cfg.OCRLanguage,
		HTTPClient: httpClient,
	})
	if err != nil {
		return fmt.Errorf("configure transcription: %w", err)
	}

	grader, err := grading.NewClient(grading.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	if err != nil {
		return fmt.Errorf("configure grading: %w", err)
	}

	hub := realtime.NewHub()
	svc, err := service.New(service.Config{
		Store:               store,
		Uploader:            uploader,
		Transcriber:         transcriber,
		Grader:              grader,
		Broadcaster:         hub,
		KeepOrphanedUploads: cfg.KeepOrphanedUploads,
	})
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	authorizer, err := NewAuthorizer([]byte(cfg.JWTSecret))
	if err != nil {
		return fmt.Errorf("configure authorizer: %w", err)
	}

	srv, err := New(Config{
		Addr:    cfg.Addr,
		Handler: NewHandler(svc, hub, authorizer),
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}
