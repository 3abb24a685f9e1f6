// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/andresuchdata/pharmalytics/internal/analytics"
)

type Config struct {
	Server   ServerConfig
	App      AppConfig
	Analysis AnalysisConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	MaxUploadMB    int
}

type AppConfig struct {
	OutputDir    string
	DateFormat   string
	Delimiter    string
	DecimalComma bool
	Mode         string
	Sheet        string
	Workers      int
	Locale       string
	ReportFormat string
}

// AnalysisConfig holds the raw analysis options found in the environment,
// keyed by option name. Only keys that were set are present.
type AnalysisConfig struct {
	Options map[string]interface{}
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	ResultTTLSeconds int
}

type StorageConfig struct {
	Backend   string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

type LogConfig struct {
	Level  string
	Format string
}

// DelimiterRune returns the first rune of the configured CSV delimiter; "\t" and "tab" mean tab.
func (a AppConfig) DelimiterRune() rune {
	switch a.Delimiter {
	case "", ",":
		return ','
	case `\t`, "tab":
		return '\t'
	}
	return []rune(a.Delimiter)[0]
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		cfg, err := load(viper.GetViper())
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		ensureDir(cfg.App.OutputDir)
		instance = cfg
	})

	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 120)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER_MAX_UPLOAD_MB", 100)
	v.SetDefault("APP_OUTPUT_DIR", "./data/reports")
	v.SetDefault("APP_DATE_FORMAT", analytics.DefaultDateFormat)
	v.SetDefault("APP_CSV_DELIMITER", ",")
	v.SetDefault("APP_DECIMAL_COMMA", false)
	v.SetDefault("APP_MODE", string(analytics.ModeStrict))
	v.SetDefault("APP_SHEET", "")
	v.SetDefault("APP_WORKERS", 4)
	v.SetDefault("APP_LOCALE", "es")
	v.SetDefault("APP_REPORT_FORMAT", "xlsx")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_RESULT_TTL_SECONDS", 600)
	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// load builds a Config from v. CONFIG_FILE, when set, names a yaml/json/toml
// file whose keys are read before environment variables.
func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	analysis := make(map[string]interface{})
	for _, key := range analytics.OptionKeys() {
		envKey := "ANALYSIS_" + strings.ToUpper(key)
		if v.IsSet(envKey) {
			analysis[key] = v.Get(envKey)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			MaxUploadMB:    v.GetInt("SERVER_MAX_UPLOAD_MB"),
		},
		App: AppConfig{
			OutputDir:    v.GetString("APP_OUTPUT_DIR"),
			DateFormat:   v.GetString("APP_DATE_FORMAT"),
			Delimiter:    v.GetString("APP_CSV_DELIMITER"),
			DecimalComma: v.GetBool("APP_DECIMAL_COMMA"),
			Mode:         v.GetString("APP_MODE"),
			Sheet:        v.GetString("APP_SHEET"),
			Workers:      v.GetInt("APP_WORKERS"),
			Locale:       v.GetString("APP_LOCALE"),
			ReportFormat: v.GetString("APP_REPORT_FORMAT"),
		},
		Analysis: AnalysisConfig{Options: analysis},
		Cache: CacheConfig{
			Enabled:          v.GetBool("CACHE_ENABLED"),
			RedisURL:         v.GetString("REDIS_URL"),
			RedisHost:        v.GetString("REDIS_HOST"),
			RedisPort:        v.GetString("REDIS_PORT"),
			RedisPassword:    v.GetString("REDIS_PASSWORD"),
			RedisDB:          v.GetInt("REDIS_DB"),
			ResultTTLSeconds: v.GetInt("CACHE_RESULT_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(v.GetString("STORAGE_BACKEND")),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			Prefix:    v.GetString("STORAGE_PREFIX"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}, nil
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
