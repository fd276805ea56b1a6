// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Gmail     GmailConfig     `yaml:"gmail" mapstructure:"gmail"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Sync      SyncConfig      `yaml:"sync" mapstructure:"sync"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the relational order sink.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GmailConfig configures the mailbox source reader.
type GmailConfig struct {
	CredentialsFile  string `yaml:"credentials_file" mapstructure:"credentials_file"`
	DelegatedUser    string `yaml:"delegated_user" mapstructure:"delegated_user"`
	MaxInitialScan   int64  `yaml:"max_initial_scan" mapstructure:"max_initial_scan"`
	FetchConcurrency int    `yaml:"fetch_concurrency" mapstructure:"fetch_concurrency"`
}

// AnthropicConfig holds Anthropic API settings for classification and extraction.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GeocodeConfig configures the Google Geocoding client.
type GeocodeConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	RatePerSecond  float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CleanAddresses bool    `yaml:"clean_addresses" mapstructure:"clean_addresses"`
}

// ExportConfig configures the XLSX workbook sink.
type ExportConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	SheetName string `yaml:"sheet_name" mapstructure:"sheet_name"`
}

// SyncConfig configures the synchronization engine.
type SyncConfig struct {
	DataDir       string `yaml:"data_dir" mapstructure:"data_dir"`
	Query         string `yaml:"query" mapstructure:"query"`
	BufferSeconds int64  `yaml:"buffer_seconds" mapstructure:"buffer_seconds"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secret-bearing keys get empty defaults so environment
	// values reach Unmarshal.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("gmail.credentials_file", "")
	v.SetDefault("gmail.delegated_user", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("geocode.key", "")
	v.SetDefault("export.path", "")
	v.SetDefault("sync.query", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("gmail.max_initial_scan", 100)
	v.SetDefault("gmail.fetch_concurrency", 5)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("geocode.rate_per_second", 10)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.clean_addresses", true)
	v.SetDefault("export.sheet_name", "Orders")
	v.SetDefault("sync.data_dir", "./data")
	v.SetDefault("sync.buffer_seconds", 5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
