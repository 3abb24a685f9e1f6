package report

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/pharmalytics/internal/analytics"
	"github.com/andresuchdata/pharmalytics/internal/domain"
)

func sampleResult(t *testing.T) *domain.AnalysisResult {
	t.Helper()
	date := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatalf("parse date: %v", err)
		}
		return d
	}
	ds := domain.NewDataset([]domain.Record{
		{ProductID: "AMOX500", Lab: "Bago", Category: "Antibioticos", Date: date("2024-03-01"), QuantitySold: 10, UnitPrice: decimal.RequireFromString("1234.5"), StockOnHand: 20},
		{ProductID: "AMOX500", Lab: "Bago", Category: "Antibioticos", Date: date("2024-03-08"), QuantitySold: 2, UnitPrice: decimal.RequireFromString("1234.5"), StockOnHand: 3},
		{ProductID: "VITC", Lab: "Bayer", Category: "Vitaminas", Date: date("2024-03-01"), QuantitySold: 0, UnitPrice: decimal.RequireFromString("25.50"), StockOnHand: 30},
		{ProductID: "VITC", Lab: "Bayer", Category: "Vitaminas", Date: date("2024-03-10"), QuantitySold: 0, UnitPrice: decimal.RequireFromString("25.50"), StockOnHand: 30},
	}, 0)

	engine, err := analytics.NewEngine(analytics.DefaultOptions())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	result, err := engine.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return result
}

func TestFormatLocaleFloat(t *testing.T) {
	cases := []struct {
		v        float64
		decimals int
		loc      Locale
		want     string
	}{
		{1234.5, 2, LocaleES, "1.234,50"},
		{1000, 2, LocaleES, "1.000"},
		{1234.5, 2, LocaleEN, "1,234.50"},
		{-1234567.891, 2, LocaleEN, "-1,234,567.89"},
		{0.05, 1, LocaleES, "0,1"},
		{999, 0, LocaleES, "999"},
		{-0.001, 2, LocaleES, "0"},
	}
	for _, tc := range cases {
		if got := formatLocaleFloat(tc.v, tc.decimals, tc.loc); got != tc.want {
			t.Fatalf("formatLocaleFloat(%v, %d) = %q, want %q", tc.v, tc.decimals, got, tc.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"":      FormatExcel,
		"Excel": FormatExcel,
		"xlsx":  FormatExcel,
		"HTML":  FormatHTML,
		"json":  FormatJSON,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseFormat(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Fatalf("expected error for pdf")
	}
}

func TestFileName(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	if got := FileName(FormatHTML, at); got != "analytics_report_20240309_140507.html" {
		t.Fatalf("FileName = %q", got)
	}
}

func TestWriteExcel(t *testing.T) {
	result := sampleResult(t)
	var buf bytes.Buffer
	if err := NewGenerator("es").Write(&buf, FormatExcel, NewMeta("ventas.csv", nil), result); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	want := []string{"Summary", "Statistics", "Trend", "Inventory", "Inventory Alerts", "Anomalies", "ABC", "Recommendations", "Warnings"}
	got := f.GetSheetList()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("sheets = %v, want %v", got, want)
	}

	rows, err := f.GetRows("ABC")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 || rows[1][1] != "AMOX500" {
		t.Fatalf("ABC rows = %v", rows)
	}

	source, err := f.GetCellValue("Summary", "B4")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if source != "ventas.csv" {
		t.Fatalf("source cell = %q", source)
	}
}

func TestWriteHTML(t *testing.T) {
	result := sampleResult(t)
	var buf bytes.Buffer
	if err := NewGenerator("es").Write(&buf, FormatHTML, NewMeta("ventas.csv", nil), result); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"<html", "AMOX500", "VITC", "14.814", "Recommendations"} {
		if !strings.Contains(out, want) {
			t.Fatalf("html report missing %q", want)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	result := sampleResult(t)
	meta := NewMeta("ventas.csv", map[string]interface{}{"trend_bucket": "week"})
	var buf bytes.Buffer
	if err := NewGenerator("en").Write(&buf, FormatJSON, meta, result); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var env struct {
		RunID  string                `json:"run_id"`
		Source string                `json:"source"`
		Result domain.AnalysisResult `json:"result"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.RunID != meta.RunID || env.Source != "ventas.csv" {
		t.Fatalf("envelope = %+v", env)
	}
	if !env.Result.Summary.TotalRevenue.Equal(result.Summary.TotalRevenue) {
		t.Fatalf("revenue = %s, want %s", env.Result.Summary.TotalRevenue, result.Summary.TotalRevenue)
	}
}

func TestWriteNilResult(t *testing.T) {
	if err := NewGenerator("es").Write(&bytes.Buffer{}, FormatJSON, Meta{}, nil); err == nil {
		t.Fatalf("expected error for nil result")
	}
}
