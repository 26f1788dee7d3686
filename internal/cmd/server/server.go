// Package server parses classwork server flags and composes the entrypoint.
package server

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/classwork/internal/platform/cmd"
	"github.com/louisbranch/classwork/internal/server"
)

// Config holds server command configuration.
type Config struct {
	Addr      string `env:"CLASSWORK_HTTP_ADDR"  envDefault:":8080"`
	DBPath    string `env:"CLASSWORK_DB_PATH"    envDefault:"classwork.db"`
	JWTSecret string `env:"CLASSWORK_JWT_SECRET"`

	StorageBaseURL       string `env:"CLASSWORK_STORAGE_BASE_URL"`
	StoragePublicBaseURL string `env:"CLASSWORK_STORAGE_PUBLIC_BASE_URL"`
	StorageBucket        string `env:"CLASSWORK_STORAGE_BUCKET" envDefault:"submissions"`
	StorageAPIKey        string `env:"CLASSWORK_STORAGE_API_KEY"`

	OCREndpoint string `env:"CLASSWORK_OCR_ENDPOINT"`
	OCRAPIKey   string `env:"CLASSWORK_OCR_API_KEY"`
	OCRLanguage string `env:"CLASSWORK_OCR_LANGUAGE" envDefault:"eng"`

	OpenAIAPIKey  string `env:"CLASSWORK_OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"CLASSWORK_OPENAI_BASE_URL"`
	OpenAIModel   string `env:"CLASSWORK_OPENAI_MODEL"`

	KeepOrphanedUploads bool `env:"CLASSWORK_KEEP_ORPHANED_UPLOADS"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "sqlite database path")
	fs.StringVar(&cfg.StorageBaseURL, "storage-base-url", cfg.StorageBaseURL, "blob storage API root")
	fs.StringVar(&cfg.StorageBucket, "storage-bucket", cfg.StorageBucket, "blob storage bucket")
	fs.StringVar(&cfg.OCREndpoint, "ocr-endpoint", cfg.OCREndpoint, "OCR provider endpoint")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", cfg.OpenAIModel, "grading model override")
	fs.BoolVar(&cfg.KeepOrphanedUploads, "keep-orphaned-uploads", cfg.KeepOrphanedUploads, "keep uploaded images when a later pipeline stage fails")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the classwork API server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		if err := server.Run(ctx, server.RunConfig{
			Addr:                 cfg.Addr,
			DBPath:               cfg.DBPath,
			JWTSecret:            cfg.JWTSecret,
			StorageBaseURL:       cfg.StorageBaseURL,
			StoragePublicBaseURL: cfg.StoragePublicBaseURL,
			StorageBucket:        cfg.StorageBucket,
			StorageAPIKey:        cfg.StorageAPIKey,
			OCREndpoint:          cfg.OCREndpoint,
			OCRAPIKey:            cfg.OCRAPIKey,
			OCRLanguage:          cfg.OCRLanguage,
			OpenAIAPIKey:         cfg.OpenAIAPIKey,
			OpenAIBaseURL:        cfg.OpenAIBaseURL,
			OpenAIModel:          cfg.OpenAIModel,
			KeepOrphanedUploads:  cfg.KeepOrphanedUploads,
		}); err != nil {
			return fmt.Errorf("serve api: %w", err)
		}
		return nil
	})
}
