package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/pharmalytics/internal/analytics"
	"github.com/andresuchdata/pharmalytics/internal/cache"
	"github.com/andresuchdata/pharmalytics/internal/config"
	"github.com/andresuchdata/pharmalytics/internal/loader"
	"github.com/andresuchdata/pharmalytics/internal/pipeline"
	"github.com/andresuchdata/pharmalytics/internal/report"
	"github.com/andresuchdata/pharmalytics/internal/service"
	"github.com/andresuchdata/pharmalytics/pkg/logger"
)

func setupLogging(c *cli.Context) error {
	logger.Setup(c.String("log-level"), c.String("log-format"))
	return nil
}

// loadConfig reads the process config and applies command line overrides.
func loadConfig(c *cli.Context) (*config.Config, map[string]interface{}, error) {
	if path := c.String("config"); path != "" {
		os.Setenv("CONFIG_FILE", path)
	}
	cfg := config.Load()

	if v := c.String("mode"); v != "" {
		cfg.App.Mode = v
	}
	if v := c.String("delimiter"); v != "" {
		cfg.App.Delimiter = v
	}
	if v := c.String("date-format"); v != "" {
		cfg.App.DateFormat = v
	}
	if c.IsSet("decimal-comma") {
		cfg.App.DecimalComma = c.Bool("decimal-comma")
	}
	if v := c.String("sheet"); v != "" {
		cfg.App.Sheet = v
	}
	if v := c.String("output"); v != "" {
		cfg.App.OutputDir = v
		cfg.Storage.Backend = "local"
	}
	if v := c.String("locale"); v != "" {
		cfg.App.Locale = v
	}
	if v := c.String("format"); v != "" {
		cfg.App.ReportFormat = v
	}
	if c.Int("workers") > 0 {
		cfg.App.Workers = c.Int("workers")
	}

	overrides, err := parseOptionPairs(c.StringSlice("option"))
	if err != nil {
		return nil, nil, err
	}
	return cfg, overrides, nil
}

// parseOptionPairs turns ["trend_bucket=month", "abc_thresholds=70,90"] into an option map.
func parseOptionPairs(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q, expected key=value", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	if unknown := analytics.UnknownOptionKeys(out); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown option(s): %s (known: %s)",
			strings.Join(unknown, ", "), strings.Join(analytics.OptionKeys(), ", "))
	}
	return out, nil
}

func parseWindowDate(c *cli.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.String(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("--%s must be YYYY-MM-DD, got %q", name, raw)
	}
	return &t, nil
}

func runFile(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: analyze run <file>", 2)
	}
	path := c.Args().First()

	cfg, overrides, err := loadConfig(c)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.App.ReportFormat)
	if err != nil {
		return err
	}
	start, err := parseWindowDate(c, "window-start")
	if err != nil {
		return err
	}
	end, err := parseWindowDate(c, "window-end")
	if err != nil {
		return err
	}

	svc, err := service.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	settings := service.SettingsFromConfig(cfg)
	table, err := loader.LoadFile(path, settings.Loader)
	if err != nil {
		return err
	}
	out, err := svc.AnalyzeTable(c.Context, table, service.Request{
		Name:        filepath.Base(path),
		Options:     overrides,
		WindowStart: start,
		WindowEnd:   end,
	})
	if err != nil {
		return describe(err)
	}

	rendered, err := svc.Render(out, path, format)
	if err != nil {
		return err
	}

	location := "-"
	if svc.HasStore() {
		obj, err := svc.Store(c.Context, rendered)
		if err != nil {
			return err
		}
		location = obj.Location
	} else if _, err := c.App.Writer.Write(rendered.Data); err != nil {
		return err
	}

	s := out.Result.Summary
	fmt.Fprintf(c.App.ErrWriter, "%s: %d rows (%d dropped), %d products, %d recommendations, %d warnings -> %s\n",
		filepath.Base(path), s.TotalRows, s.DroppedRows, s.Products, len(out.Result.Recommendations), len(out.Result.Warnings), location)
	return nil
}

func runBatch(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("usage: analyze batch <dir> | <file>...", 2)
	}

	cfg, overrides, err := loadConfig(c)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.App.ReportFormat)
	if err != nil {
		return err
	}
	svc, err := service.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	if !svc.HasStore() {
		return cli.Exit("batch runs need a report store (STORAGE_BACKEND local or s3)", 2)
	}

	orchestrator := pipeline.NewOrchestrator(svc, pipeline.BatchConfig{
		WorkerCount: cfg.App.Workers,
		Format:      format,
		Options:     overrides,
		FileTimeout: c.Duration("file-timeout"),
	})
	var run *pipeline.BatchRun
	if info, statErr := os.Stat(c.Args().First()); c.NArg() == 1 && statErr == nil && info.IsDir() {
		run, err = orchestrator.RunDir(c.Context, c.Args().First())
	} else {
		run, err = orchestrator.RunFiles(c.Context, c.Args().Slice())
	}
	if run != nil {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(run); encErr != nil {
			return encErr
		}
	}
	if err != nil {
		return err
	}
	if run.Status != pipeline.StatusCompleted {
		return cli.Exit(fmt.Sprintf("batch %s finished with status %s (%d of %d files failed)",
			run.ID, run.Status, run.FailedFiles, run.TotalFiles), 1)
	}
	return nil
}

func purgeCache(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !cfg.Cache.Enabled {
		fmt.Fprintln(c.App.ErrWriter, "result cache is disabled (CACHE_ENABLED=false), nothing to purge")
		return nil
	}
	resultCache, err := cache.NewResultCache(cfg.Cache)
	if err != nil {
		return err
	}
	svc, err := service.NewAnalysisService(service.SettingsFromConfig(cfg), resultCache, nil)
	if err != nil {
		return describe(err)
	}
	if err := svc.InvalidateCache(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.ErrWriter, "result cache purged")
	return nil
}

func printOptions(c *cli.Context) error {
	cfg, overrides, err := loadConfig(c)
	if err != nil {
		return err
	}
	svc, err := service.NewAnalysisService(service.SettingsFromConfig(cfg), nil, nil)
	if err != nil {
		return describe(err)
	}
	opts, err := svc.ResolveOptions(overrides)
	if err != nil {
		return describe(err)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(opts.AsMap())
}

// describe expands validation failures into one line per problem
func describe(err error) error {
	var (
		verr *analytics.ValidationError
		cerr *analytics.ConfigurationError
		b    strings.Builder
	)
	switch {
	case errors.As(err, &verr):
		b.WriteString("input validation failed:")
		for _, v := range verr.Violations {
			b.WriteString("\n  " + v.String())
		}
	case errors.As(err, &cerr):
		b.WriteString("invalid options:")
		for _, f := range cerr.Fields {
			b.WriteString("\n  " + f.Field + ": " + f.Reason)
		}
	default:
		return err
	}
	return cli.Exit(b.String(), 2)
}
