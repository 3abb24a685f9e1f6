package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.App.Workers != 4 || cfg.App.Locale != "es" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Storage.Backend != "local" || cfg.Cache.Enabled {
		t.Fatalf("unexpected storage/cache defaults: %+v %+v", cfg.Storage, cfg.Cache)
	}
	if len(cfg.Analysis.Options) != 0 {
		t.Fatalf("expected no analysis overrides, got %v", cfg.Analysis.Options)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("APP_CSV_DELIMITER", ";")
	t.Setenv("ANALYSIS_LOW_STOCK_DAYS_THRESHOLD", "10")
	t.Setenv("ANALYSIS_TREND_BUCKET", "month")

	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
	if cfg.App.DelimiterRune() != ';' {
		t.Fatalf("delimiter = %q", cfg.App.DelimiterRune())
	}
	if cfg.Analysis.Options["low_stock_days_threshold"] != "10" || cfg.Analysis.Options["trend_bucket"] != "month" {
		t.Fatalf("analysis options = %v", cfg.Analysis.Options)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pharmalytics.yaml")
	content := "APP_WORKERS: 8\nSTORAGE_BACKEND: S3\nSTORAGE_BUCKET: reports\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Workers != 8 || cfg.Storage.Backend != "s3" || cfg.Storage.Bucket != "reports" {
		t.Fatalf("config file not applied: %+v %+v", cfg.App, cfg.Storage)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := load(viper.New()); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestDelimiterRune(t *testing.T) {
	cases := map[string]rune{"": ',', ",": ',', ";": ';', "tab": '\t', `\t`: '\t', "|": '|'}
	for in, want := range cases {
		if got := (AppConfig{Delimiter: in}).DelimiterRune(); got != want {
			t.Fatalf("DelimiterRune(%q) = %q, want %q", in, got, want)
		}
	}
}
