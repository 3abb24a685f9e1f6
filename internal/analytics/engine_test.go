package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

func newTestEngine(t *testing.T, mutate func(*Options)) *Engine {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	engine, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	return engine
}

func TestEngineRunIsIdempotent(t *testing.T) {
	engine := newTestEngine(t, nil)
	ds := pharmacyDataset()

	var outputs [][]byte
	for i := 0; i < 3; i++ {
		result, err := engine.Run(context.Background(), ds)
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
		b, err := json.Marshal(result)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		outputs = append(outputs, b)
	}
	for i := 1; i < len(outputs); i++ {
		if !bytes.Equal(outputs[0], outputs[i]) {
			t.Fatalf("run %d output differs from first run", i)
		}
	}
}

func TestEngineRunSections(t *testing.T) {
	engine := newTestEngine(t, func(o *Options) {
		o.StatisticsDimensions = [][]Dimension{{DimLab, DimCategory}, {DimLab}}
	})
	ds := pharmacyDataset()

	result, err := engine.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	// product, lab, category plus lab+category; the duplicate lab set is dropped
	dimensionSets := make(map[string]decimal.Decimal)
	for _, row := range result.Statistics {
		key := ""
		for _, d := range row.Dimensions {
			key += d + "+"
		}
		sum, ok := dimensionSets[key]
		if !ok {
			sum = decimal.Zero
		}
		dimensionSets[key] = sum.Add(row.RevenueSum)
	}
	if len(dimensionSets) != 4 {
		t.Fatalf("dimension sets = %v", dimensionSets)
	}
	for key, sum := range dimensionSets {
		if !sum.Equal(result.Summary.TotalRevenue) {
			t.Fatalf("%s revenue %s != total %s", key, sum, result.Summary.TotalRevenue)
		}
	}

	if len(result.ABCTiers) != len(ds.Meta().Products) {
		t.Fatalf("abc tiers cover %d of %d products", len(result.ABCTiers), len(ds.Meta().Products))
	}
	if result.ABCTiers["AMOX500"] != domain.TierA {
		t.Fatalf("AMOX500 tier = %s", result.ABCTiers["AMOX500"])
	}
	if result.Summary.Products != 5 || result.Summary.TotalQuantity != 30 || !result.Summary.TotalRevenue.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("summary = %+v", result.Summary)
	}
	if result.Summary.ZeroSalesProducts != 2 {
		t.Fatalf("zero sales products = %d", result.Summary.ZeroSalesProducts)
	}
	if len(result.Trend) != 3 || len(result.Demand) != 5 || len(result.Inventory) != 5 {
		t.Fatalf("trend %d demand %d inventory %d", len(result.Trend), len(result.Demand), len(result.Inventory))
	}
	if len(result.TopProducts) != 5 || result.TopProducts[0].Key != "AMOX500" {
		t.Fatalf("top products = %+v", result.TopProducts)
	}

	flagged := make(map[string]bool)
	for _, a := range result.InventoryAlerts {
		flagged[a.ProductID] = true
	}
	for _, r := range result.Recommendations {
		if !flagged[r.ProductID] {
			t.Fatalf("recommendation without alert: %+v", r)
		}
	}
	if flagged["GAUZE"] {
		t.Fatalf("never-stocked product must not raise alerts")
	}
}

func TestEngineRejectsInvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.SafetyFactor = 0.8
	_, err := NewEngine(opts)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestEngineEmptyDataset(t *testing.T) {
	result, err := newTestEngine(t, nil).Run(context.Background(), domain.NewDataset(nil, 0))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(result.Statistics) != 0 || len(result.Trend) != 0 || result.ABCTiers == nil {
		t.Fatalf("empty result = %+v", result)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Code != domain.WarnEmptyDataset {
		t.Fatalf("warnings = %+v", result.Warnings)
	}
}

func TestEngineHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestEngine(t, nil).Run(ctx, pharmacyDataset()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEngineAnalyzeCarriesNormalizerWarnings(t *testing.T) {
	table := RawTable{
		Columns: canonicalHeader,
		Rows: [][]interface{}{
			{"AMOX500", "Bago", "Antibioticos", "2024-03-01", "12", "150", "30"},
			{"IBU400", "Roemmers", "Analgesicos", "not a date", "3", "10", "5"},
		},
	}
	result, err := newTestEngine(t, nil).Analyze(context.Background(), table, DefaultSchema(), NormalizeOptions{Mode: ModeLenient})
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if len(result.Warnings) == 0 || result.Warnings[0].Code != domain.WarnRowDropped {
		t.Fatalf("warnings = %+v", result.Warnings)
	}
	if result.Summary.DroppedRows != 1 || result.Summary.TotalRows != 1 {
		t.Fatalf("summary = %+v", result.Summary)
	}
}
