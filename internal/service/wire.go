package service

import (
	"fmt"

	"github.com/andresuchdata/pharmalytics/internal/analytics"
	"github.com/andresuchdata/pharmalytics/internal/cache"
	"github.com/andresuchdata/pharmalytics/internal/config"
	"github.com/andresuchdata/pharmalytics/internal/loader"
	"github.com/andresuchdata/pharmalytics/internal/storage"
)

// SettingsFromConfig maps application config onto service settings
func SettingsFromConfig(cfg *config.Config) Settings {
	schema := analytics.DefaultSchema()
	schema.DateFormat = cfg.App.DateFormat
	schema.DecimalComma = cfg.App.DecimalComma

	loaderOpts := loader.DefaultOptions()
	loaderOpts.Delimiter = cfg.App.DelimiterRune()
	loaderOpts.Sheet = cfg.App.Sheet
	if cfg.Server.MaxUploadMB > 0 {
		loaderOpts.MaxFileSizeMB = cfg.Server.MaxUploadMB
	}

	return Settings{
		Options: cfg.Analysis.Options,
		Schema:  schema,
		Mode:    analytics.ParseMode(cfg.App.Mode),
		Loader:  loaderOpts,
		Locale:  cfg.App.Locale,
	}
}

// NewReportStore builds the configured report store: "local" (default), "s3" or "none".
func NewReportStore(cfg *config.Config) (storage.ReportStore, error) {
	switch cfg.Storage.Backend {
	case "", "local":
		return storage.NewLocalStore(cfg.App.OutputDir)
	case "s3":
		return storage.NewS3Store(storage.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			Prefix:    cfg.Storage.Prefix,
			UseSSL:    cfg.Storage.UseSSL,
		})
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported storage backend %q (local, s3, none)", cfg.Storage.Backend)
}

// NewFromConfig wires cache, storage and settings from cfg.
func NewFromConfig(cfg *config.Config) (*AnalysisService, error) {
	resultCache, err := cache.NewResultCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize result cache: %w", err)
	}

	store, err := NewReportStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize report store: %w", err)
	}

	return NewAnalysisService(SettingsFromConfig(cfg), resultCache, store)
}
