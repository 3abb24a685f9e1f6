package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseOptionPairs(t *testing.T) {
	out, err := parseOptionPairs([]string{"trend_bucket=month", " abc_thresholds = 70,90 "})
	if err != nil {
		t.Fatalf("parseOptionPairs: %v", err)
	}
	if out["trend_bucket"] != "month" || out["abc_thresholds"] != "70,90" {
		t.Fatalf("options = %v", out)
	}

	out, err = parseOptionPairs([]string{"abc_thresholds=70,90"})
	if err != nil || out["abc_thresholds"] != "70,90" {
		t.Fatalf("comma values must survive: %v %v", out, err)
	}

	for _, bad := range [][]string{{"trend_bucket"}, {"=month"}, {"not_an_option=1"}} {
		if _, err := parseOptionPairs(bad); err == nil {
			t.Fatalf("expected error for %v", bad)
		}
	}
}

func TestRunFileWritesReport(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "ventas.csv")
	csv := "producto,laboratorio,categoria,fecha,cantidad,precio,stock\n" +
		"AMOX500,Bago,Antibioticos,2024-03-01,10,100,20\n" +
		"VITC,Bayer,Vitaminas,2024-03-05,0,25.50,30\n"
	if err := os.WriteFile(input, []byte(csv), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	out := filepath.Join(dir, "reports")
	t.Setenv("APP_OUTPUT_DIR", out)

	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	if err := app.Run([]string{"analyze", "run", "--format", "json", "--output", out, "-o", "lead_time_days=10", input}); err != nil {
		t.Fatalf("run: %v", err)
	}

	entries, err := os.ReadDir(out)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one report in %s, got %v (%v)", out, entries, err)
	}
	data, err := os.ReadFile(filepath.Join(out, entries[0].Name()))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var env map[string]interface{}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if env["run_id"] == "" || env["result"] == nil {
		t.Fatalf("envelope = %v", env)
	}
	if !strings.Contains(stderr.String(), "ventas.csv: 2 rows") {
		t.Fatalf("summary line = %q", stderr.String())
	}
}

func TestRunBatchAcceptsExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	csv := "producto,laboratorio,categoria,fecha,cantidad,precio,stock\n" +
		"AMOX500,Bago,Antibioticos,2024-03-01,10,100,20\n"
	var inputs []string
	for _, name := range []string{"norte.csv", "sur.csv", "ignored.csv"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
			t.Fatalf("write input: %v", err)
		}
		inputs = append(inputs, path)
	}
	out := filepath.Join(dir, "reports")

	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	args := append([]string{"analyze", "batch", "--format", "json", "--output", out}, inputs[:2]...)
	if err := app.Run(args); err != nil {
		t.Fatalf("batch: %v (%s)", err, stderr.String())
	}

	var run struct {
		Status     string `json:"status"`
		TotalFiles int    `json:"total_files"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.Status != "completed" || run.TotalFiles != 2 {
		t.Fatalf("run = %+v", run)
	}
	entries, err := os.ReadDir(out)
	if err != nil || len(entries) != 2 {
		t.Fatalf("expected two reports, got %v (%v)", entries, err)
	}
}

func TestCachePurgeWithCacheDisabled(t *testing.T) {
	var stderr bytes.Buffer
	app := newApp()
	app.ErrWriter = &stderr
	if err := app.Run([]string{"analyze", "cache", "purge"}); err != nil {
		t.Fatalf("cache purge: %v", err)
	}
	if !strings.Contains(stderr.String(), "disabled") {
		t.Fatalf("output = %q", stderr.String())
	}
}
