package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/pharmalytics/internal/analytics"
	"github.com/andresuchdata/pharmalytics/internal/cache"
	"github.com/andresuchdata/pharmalytics/internal/domain"
	"github.com/andresuchdata/pharmalytics/internal/loader"
	"github.com/andresuchdata/pharmalytics/internal/report"
	"github.com/andresuchdata/pharmalytics/internal/storage"
)

// Settings are the process-wide defaults of an AnalysisService.
type Settings struct {
	// Options are raw analysis option overrides applied on top of the defaults
	Options map[string]interface{}
	Schema  analytics.Schema
	Mode    analytics.Mode
	Loader  loader.Options
	Locale  string
}

// Request describes one analysis of an uploaded or local file.
type Request struct {
	Name        string
	Reader      io.Reader
	Options     map[string]interface{}
	// Mode overrides the service mode when non-empty
	Mode        analytics.Mode
	WindowStart *time.Time
	WindowEnd   *time.Time
}

// Outcome is the result of one analysis together with the options that produced it.
type Outcome struct {
	Result  *domain.AnalysisResult
	Options analytics.Options
	Cached  bool
}

type AnalysisService struct {
	settings Settings
	cache    cache.ResultCache
	store    storage.ReportStore
	reports  *report.Generator
}

// NewAnalysisService validates the configured options so misconfiguration fails at startup.
// store may be nil when reports are only streamed back to the caller.
func NewAnalysisService(settings Settings, cacheImpl cache.ResultCache, store storage.ReportStore) (*AnalysisService, error) {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopResultCache()
	}
	if settings.Mode == "" {
		settings.Mode = analytics.ModeStrict
	}
	if len(settings.Schema.Columns) == 0 {
		settings.Schema = analytics.DefaultSchema()
	}
	if settings.Loader.Aliases == nil {
		settings.Loader.Aliases = loader.DefaultAliases()
	}

	s := &AnalysisService{
		settings: settings,
		cache:    cacheImpl,
		store:    store,
		reports:  report.NewGenerator(settings.Locale),
	}
	if _, err := s.ResolveOptions(nil); err != nil {
		return nil, err
	}
	return s, nil
}

// ResolveOptions layers request overrides on the service options and validates the result.
func (s *AnalysisService) ResolveOptions(overrides map[string]interface{}) (analytics.Options, error) {
	raw := make(map[string]interface{}, len(s.settings.Options)+len(overrides))
	for k, v := range s.settings.Options {
		raw[k] = v
	}
	for k, v := range overrides {
		raw[k] = v
	}

	opts, err := analytics.ParseOptions(raw)
	if err != nil {
		return analytics.Options{}, err
	}
	if unknown := analytics.UnknownOptionKeys(raw); len(unknown) > 0 {
		log.Debug().Strs("keys", unknown).Msg("analysis: ignoring unknown option keys")
	}
	return opts, nil
}

// Analyze loads req.Reader according to the extension of req.Name and analyzes it.
func (s *AnalysisService) Analyze(ctx context.Context, req Request) (*Outcome, error) {
	table, err := loader.Load(req.Name, req.Reader, s.settings.Loader)
	if err != nil {
		return nil, err
	}
	return s.AnalyzeTable(ctx, table, req)
}

// AnalyzeFile analyzes a CSV or XLSX file on disk.
func (s *AnalysisService) AnalyzeFile(ctx context.Context, path string, overrides map[string]interface{}) (*Outcome, error) {
	table, err := loader.LoadFile(path, s.settings.Loader)
	if err != nil {
		return nil, err
	}
	return s.AnalyzeTable(ctx, table, Request{Name: filepath.Base(path), Options: overrides})
}

// AnalyzeTable normalizes table and runs the engine, serving repeated inputs from the cache.
// Normalizer warnings always lead the result warnings.
func (s *AnalysisService) AnalyzeTable(ctx context.Context, table analytics.RawTable, req Request) (*Outcome, error) {
	opts, err := s.ResolveOptions(req.Options)
	if err != nil {
		return nil, err
	}
	engine, err := analytics.NewEngine(opts)
	if err != nil {
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = s.settings.Mode
	}
	ds, warnings, err := analytics.Normalize(table, s.settings.Schema, analytics.NormalizeOptions{
		Mode:        mode,
		WindowStart: req.WindowStart,
		WindowEnd:   req.WindowEnd,
	})
	if err != nil {
		return nil, err
	}

	fingerprint, err := cache.Fingerprint(ds, opts)
	if err != nil {
		log.Warn().Err(err).Msg("analysis: fingerprint failed, skipping cache")
	}

	if fingerprint != "" {
		if result, ok, err := s.cache.Get(ctx, fingerprint); err == nil && ok {
			log.Info().Str("source", req.Name).Str("fingerprint", fingerprint).Msg("analysis: served from cache")
			result.Warnings = withLeading(warnings, result.Warnings)
			return &Outcome{Result: result, Options: opts, Cached: true}, nil
		} else if err != nil {
			log.Warn().Err(err).Msg("analysis: cache get failed")
		}
	}

	start := time.Now()
	result, err := engine.Run(ctx, ds)
	if err != nil {
		return nil, err
	}

	if fingerprint != "" {
		if err := s.cache.Set(ctx, fingerprint, result); err != nil {
			log.Warn().Err(err).Msg("analysis: cache set failed")
		}
	}

	result.Warnings = withLeading(warnings, result.Warnings)

	log.Info().
		Str("source", req.Name).
		Int("records", ds.Len()).
		Int("dropped_rows", ds.Meta().DroppedRows).
		Int("warnings", len(result.Warnings)).
		Dur("elapsed", time.Since(start)).
		Msg("analysis: completed")

	return &Outcome{Result: result, Options: opts}, nil
}

func withLeading(lead, rest []domain.Warning) []domain.Warning {
	return append(append([]domain.Warning{}, lead...), rest...)
}

// Rendered is a generated report held in memory.
type Rendered struct {
	Format   report.Format
	Meta     report.Meta
	FileName string
	Data     []byte
}

// Render produces a report of out in the given format.
func (s *AnalysisService) Render(out *Outcome, source string, format report.Format) (*Rendered, error) {
	meta := report.NewMeta(source, out.Options.AsMap())

	var buf bytes.Buffer
	if err := s.reports.Write(&buf, format, meta, out.Result); err != nil {
		return nil, err
	}
	return &Rendered{
		Format:   format,
		Meta:     meta,
		FileName: reportName(source, format, meta.GeneratedAt),
		Data:     buf.Bytes(),
	}, nil
}

// Store persists a rendered report. Without a configured store it is an error.
func (s *AnalysisService) Store(ctx context.Context, r *Rendered) (storage.Object, error) {
	if s.store == nil {
		return storage.Object{}, fmt.Errorf("no report store configured")
	}
	obj, err := s.store.Save(ctx, r.FileName, r.Format.ContentType(), bytes.NewReader(r.Data), int64(len(r.Data)))
	if err != nil {
		return storage.Object{}, err
	}
	log.Info().Str("location", obj.Location).Str("run_id", r.Meta.RunID).Msg("analysis: report stored")
	return obj, nil
}

// InvalidateCache drops every cached analysis result.
func (s *AnalysisService) InvalidateCache(ctx context.Context) error {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("failed to invalidate result cache: %w", err)
	}
	return nil
}

// HasStore reports whether rendered reports can be persisted
func (s *AnalysisService) HasStore() bool {
	return s.store != nil
}

// reportName prefixes the standard report file name with the source stem so
// reports from one batch do not collide.
func reportName(source string, format report.Format, at time.Time) string {
	name := report.FileName(format, at)
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	stem = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, stem)
	if stem == "" || stem == "." || stem == "_" {
		return name
	}
	return stem + "_" + name
}
