package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/pharmalytics/internal/analytics"
	"github.com/andresuchdata/pharmalytics/internal/domain"
	"github.com/andresuchdata/pharmalytics/internal/report"
	"github.com/andresuchdata/pharmalytics/internal/storage"
)

const salesCSV = `producto,laboratorio,categoria,fecha,cantidad,precio,stock
AMOX500,Bago,Antibioticos,2024-03-01,10,100,20
AMOX500,Bago,Antibioticos,2024-03-08,0,100,15
IBU400,Roemmers,Analgesicos,2024-03-01,10,10,40
VITC,Bayer,Vitaminas,2024-03-01,0,25.50,30
VITC,Bayer,Vitaminas,2024-03-10,0,25.50,30
`

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*domain.AnalysisResult
	hits    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*domain.AnalysisResult)}
}

func (c *memoryCache) Get(ctx context.Context, key string) (*domain.AnalysisResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	copied := *r
	return &copied, true, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, result *domain.AnalysisResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *result
	c.entries[key] = &copied
	return nil
}

func (c *memoryCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*domain.AnalysisResult)
	return nil
}

func newService(t *testing.T, settings Settings) (*AnalysisService, *memoryCache, *storage.LocalStore) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	c := newMemoryCache()
	svc, err := NewAnalysisService(settings, c, store)
	if err != nil {
		t.Fatalf("NewAnalysisService: %v", err)
	}
	return svc, c, store
}

func TestAnalyzeUsesCache(t *testing.T) {
	svc, c, _ := newService(t, Settings{})
	ctx := context.Background()

	first, err := svc.Analyze(ctx, Request{Name: "ventas.csv", Reader: strings.NewReader(salesCSV)})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if first.Cached {
		t.Fatalf("first run must not be cached")
	}
	if first.Result.Summary.Products != 3 {
		t.Fatalf("products = %d", first.Result.Summary.Products)
	}

	second, err := svc.Analyze(ctx, Request{Name: "ventas.csv", Reader: strings.NewReader(salesCSV)})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !second.Cached || c.hits != 1 {
		t.Fatalf("expected cache hit, cached=%v hits=%d", second.Cached, c.hits)
	}
	if !second.Result.Summary.TotalRevenue.Equal(first.Result.Summary.TotalRevenue) {
		t.Fatalf("cached revenue differs")
	}

	third, err := svc.Analyze(ctx, Request{
		Name:    "ventas.csv",
		Reader:  strings.NewReader(salesCSV),
		Options: map[string]interface{}{analytics.KeyLeadTimeDays: 14},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if third.Cached || third.Options.LeadTimeDays != 14 {
		t.Fatalf("option override must bypass the cached entry: %+v", third)
	}
}

func TestInvalidateCacheForcesFreshRun(t *testing.T) {
	svc, c, _ := newService(t, Settings{})
	ctx := context.Background()

	if _, err := svc.Analyze(ctx, Request{Name: "ventas.csv", Reader: strings.NewReader(salesCSV)}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if err := svc.InvalidateCache(ctx); err != nil {
		t.Fatalf("InvalidateCache: %v", err)
	}
	out, err := svc.Analyze(ctx, Request{Name: "ventas.csv", Reader: strings.NewReader(salesCSV)})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.Cached || c.hits != 0 {
		t.Fatalf("expected a fresh run after invalidation, cached=%v hits=%d", out.Cached, c.hits)
	}
}

func TestAnalyzeLenientKeepsWarningsFirst(t *testing.T) {
	svc, _, _ := newService(t, Settings{Mode: analytics.ModeLenient})
	csv := salesCSV + "BAD,Bago,Antibioticos,not-a-date,1,1,1\n"

	for i := 0; i < 2; i++ {
		out, err := svc.Analyze(context.Background(), Request{Name: "ventas.csv", Reader: strings.NewReader(csv)})
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if len(out.Result.Warnings) == 0 || out.Result.Warnings[0].Code != domain.WarnRowDropped {
			t.Fatalf("run %d: expected leading row_dropped warning, got %+v", i, out.Result.Warnings)
		}
		if out.Result.Summary.DroppedRows != 1 {
			t.Fatalf("dropped rows = %d", out.Result.Summary.DroppedRows)
		}
	}
}

func TestAnalyzeErrors(t *testing.T) {
	svc, _, _ := newService(t, Settings{})
	ctx := context.Background()

	_, err := svc.Analyze(ctx, Request{Name: "ventas.csv", Reader: strings.NewReader("producto,fecha\nA,2024-03-01\n")})
	var verr *analytics.ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, analytics.ErrMissingColumn) {
		t.Fatalf("expected missing column validation error, got %v", err)
	}

	_, err = svc.Analyze(ctx, Request{
		Name:    "ventas.csv",
		Reader:  strings.NewReader(salesCSV),
		Options: map[string]interface{}{analytics.KeySafetyFactor: 0.5},
	})
	var cerr *analytics.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	if _, err := NewAnalysisService(Settings{Options: map[string]interface{}{analytics.KeyLowStockDaysThreshold: 0}}, nil, nil); err == nil {
		t.Fatalf("invalid service options must fail at construction")
	}
}

func TestRenderAndStore(t *testing.T) {
	svc, _, store := newService(t, Settings{Locale: "es"})
	out, err := svc.Analyze(context.Background(), Request{Name: "ventas.csv", Reader: strings.NewReader(salesCSV)})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	for _, f := range []report.Format{report.FormatExcel, report.FormatHTML, report.FormatJSON} {
		rendered, err := svc.Render(out, "ventas.csv", f)
		if err != nil {
			t.Fatalf("Render %s: %v", f, err)
		}
		if len(rendered.Data) == 0 || !strings.HasPrefix(rendered.FileName, "ventas_analytics_report_") {
			t.Fatalf("rendered %s = %q (%d bytes)", f, rendered.FileName, len(rendered.Data))
		}
		obj, err := svc.Store(context.Background(), rendered)
		if err != nil {
			t.Fatalf("Store %s: %v", f, err)
		}
		if filepath.Dir(obj.Location) != store.Dir() {
			t.Fatalf("stored outside output dir: %s", obj.Location)
		}
		if _, err := os.Stat(obj.Location); err != nil {
			t.Fatalf("stat stored report: %v", err)
		}
	}
}

func TestStoreWithoutBackend(t *testing.T) {
	svc, err := NewAnalysisService(Settings{}, nil, nil)
	if err != nil {
		t.Fatalf("NewAnalysisService: %v", err)
	}
	if svc.HasStore() {
		t.Fatalf("HasStore = true")
	}
	if _, err := svc.Store(context.Background(), &Rendered{FileName: "x.json", Format: report.FormatJSON}); err == nil {
		t.Fatalf("expected error without store")
	}
}

func TestReportName(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	cases := map[string]string{
		"ventas marzo.xlsx":    "ventas_marzo_analytics_report_20240309_140507.json",
		"/data/sucursal-2.csv": "sucursal-2_analytics_report_20240309_140507.json",
		"../.csv":              "analytics_report_20240309_140507.json",
	}
	for in, want := range cases {
		if got := reportName(in, report.FormatJSON, at); got != want {
			t.Fatalf("reportName(%q) = %q, want %q", in, got, want)
		}
	}
}
