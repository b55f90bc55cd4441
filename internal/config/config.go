// Package config provides unified configuration for lakeingest.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	ingesterr "github.com/arkilian/lakeingest/internal/errors"
)

// Defaults shared by the CLI, the generator and the engine.
const (
	DefaultCatalogURL  = "http://localhost:8181/catalog"
	DefaultWarehouse   = "demo"
	DefaultCatalogName = "my_catalog"
	DefaultToken       = "dummy"
	DefaultNamespace   = "default"
	DefaultTable       = "sample_table"
	DefaultWorkers     = 2
	DefaultChunkSize   = 1000
)

// Config holds the unified configuration for an ingestion run.
type Config struct {
	// Catalog connection parameters
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Target namespace and table
	Target TargetConfig `json:"target" yaml:"target"`

	// Ingest engine tuning
	Ingest IngestConfig `json:"ingest" yaml:"ingest"`

	// Source file access
	Source SourceConfig `json:"source" yaml:"source"`

	// Ledger configuration
	Ledger LedgerConfig `json:"ledger" yaml:"ledger"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`
}

// CatalogConfig holds Iceberg REST catalog connection parameters.
type CatalogConfig struct {
	// URL is the REST catalog endpoint
	URL string `json:"url" yaml:"url"`

	// Warehouse is the warehouse identifier sent to the catalog
	Warehouse string `json:"warehouse" yaml:"warehouse"`

	// Name is the local name of the catalog
	Name string `json:"name" yaml:"name"`

	// Token is the bearer token used for catalog requests
	Token string `json:"token" yaml:"token"`

	// Prefix is an optional path prefix for catalog routes
	Prefix string `json:"prefix" yaml:"prefix"`
}

// TargetConfig identifies the table to ingest into.
type TargetConfig struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Table     string `json:"table" yaml:"table"`
}

// IngestConfig holds engine configuration.
type IngestConfig struct {
	// Workers is the number of concurrent append workers
	Workers int `json:"workers" yaml:"workers"`

	// ChunkSize is the number of rows per append transaction
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// CommitRetries is how many times a conflicting commit is rebased on fresh
	// table metadata (0 keeps one commit attempt per chunk)
	CommitRetries int `json:"commit_retries" yaml:"commit_retries"`
}

// SourceConfig holds input file access configuration.
type SourceConfig struct {
	// Delimiter overrides the field delimiter (default: comma, tab for .tsv)
	Delimiter string `json:"delimiter" yaml:"delimiter"`

	// S3 configuration (for s3:// inputs)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 configuration for reading s3:// inputs.
type S3Config struct {
	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// PathStyle enables path-style addressing (MinIO and friends)
	PathStyle bool `json:"path_style" yaml:"path_style"`
}

// LedgerConfig holds run ledger configuration.
type LedgerConfig struct {
	// Path is the SQLite ledger file; empty disables the ledger
	Path string `json:"path" yaml:"path"`
}

// MetricsConfig holds metrics export configuration.
type MetricsConfig struct {
	// Textfile is a node-exporter textfile path written after each run; empty disables it
	Textfile string `json:"textfile" yaml:"textfile"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			URL:       DefaultCatalogURL,
			Warehouse: DefaultWarehouse,
			Name:      DefaultCatalogName,
			Token:     DefaultToken,
		},
		Target: TargetConfig{
			Namespace: DefaultNamespace,
			Table:     DefaultTable,
		},
		Ingest: IngestConfig{
			Workers:       DefaultWorkers,
			ChunkSize:     DefaultChunkSize,
			CommitRetries: 0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate validates the configuration. It performs no I/O.
func (c *Config) Validate() error {
	if c.Ingest.ChunkSize <= 0 {
		return ingesterr.NewConfigError(ingesterr.CodeInvalidChunkSize,
			fmt.Sprintf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize))
	}
	if c.Ingest.Workers <= 0 {
		return ingesterr.NewConfigError(ingesterr.CodeInvalidWorkerCount,
			fmt.Sprintf("ingest.workers must be positive, got %d", c.Ingest.Workers))
	}
	if c.Ingest.CommitRetries < 0 {
		return ingesterr.NewConfigError(ingesterr.CodeInvalidConfig,
			fmt.Sprintf("ingest.commit_retries must not be negative, got %d", c.Ingest.CommitRetries))
	}
	if c.Target.Namespace == "" || c.Target.Table == "" {
		return ingesterr.NewConfigError(ingesterr.CodeInvalidTarget, "target.namespace and target.table are required")
	}
	if c.Catalog.URL == "" {
		return ingesterr.NewConfigError(ingesterr.CodeInvalidConfig, "catalog.url is required")
	}
	if utf8.RuneCountInString(c.Source.Delimiter) > 1 && c.Source.Delimiter != `\t` {
		return ingesterr.NewConfigError(ingesterr.CodeInvalidConfig,
			fmt.Sprintf("source.delimiter must be a single character, got %q", c.Source.Delimiter))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return ingesterr.NewConfigError(ingesterr.CodeInvalidConfig,
			fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return ingesterr.NewConfigError(ingesterr.CodeInvalidConfig,
			fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overlays environment variables onto cfg.
// The unprefixed names (CATALOG_URL, WAREHOUSE, ...) are honoured for
// compatibility; LAKEINGEST_-prefixed names take precedence over them.
func LoadFromEnv(cfg *Config) error {
	setString := func(dst *string, names ...string) {
		for _, name := range names {
			if v := os.Getenv(name); v != "" {
				*dst = v
			}
		}
	}
	setInt := func(dst *int, names ...string) error {
		for _, name := range names {
			v := os.Getenv(name)
			if v == "" {
				continue
			}
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return ingesterr.NewConfigError(ingesterr.CodeInvalidConfig,
					fmt.Sprintf("%s must be an integer, got %q", name, v))
			}
			*dst = n
		}
		return nil
	}

	// Catalog configuration
	setString(&cfg.Catalog.URL, "CATALOG_URL", "LAKEINGEST_CATALOG_URL")
	setString(&cfg.Catalog.Warehouse, "WAREHOUSE", "LAKEINGEST_WAREHOUSE")
	setString(&cfg.Catalog.Name, "CATALOG_NAME", "LAKEINGEST_CATALOG_NAME")
	setString(&cfg.Catalog.Token, "CATALOG_TOKEN", "LAKEINGEST_CATALOG_TOKEN")
	setString(&cfg.Catalog.Prefix, "LAKEINGEST_CATALOG_PREFIX")

	// Target configuration
	setString(&cfg.Target.Namespace, "NAMESPACE", "LAKEINGEST_NAMESPACE")
	setString(&cfg.Target.Table, "TABLE_NAME", "LAKEINGEST_TABLE")

	// Ingest configuration
	if err := setInt(&cfg.Ingest.Workers, "LAKEINGEST_WORKERS"); err != nil {
		return err
	}
	if err := setInt(&cfg.Ingest.ChunkSize, "LAKEINGEST_CHUNK_SIZE"); err != nil {
		return err
	}
	if err := setInt(&cfg.Ingest.CommitRetries, "LAKEINGEST_COMMIT_RETRIES"); err != nil {
		return err
	}

	// Source configuration
	setString(&cfg.Source.Delimiter, "LAKEINGEST_DELIMITER")
	setString(&cfg.Source.S3.Region, "LAKEINGEST_S3_REGION")
	setString(&cfg.Source.S3.Endpoint, "LAKEINGEST_S3_ENDPOINT")
	if v := os.Getenv("LAKEINGEST_S3_PATH_STYLE"); v != "" {
		cfg.Source.S3.PathStyle = v == "true" || v == "1"
	}

	// Outputs
	setString(&cfg.Ledger.Path, "LAKEINGEST_LEDGER_PATH")
	setString(&cfg.Metrics.Textfile, "LAKEINGEST_METRICS_TEXTFILE")
	setString(&cfg.Log.Level, "LAKEINGEST_LOG_LEVEL")
	setString(&cfg.Log.Format, "LAKEINGEST_LOG_FORMAT")

	return nil
}

// Load builds a configuration from defaults, an optional file and the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		cfg, err = LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Identifier returns the dotted namespace.table name of the target.
func (c *Config) Identifier() string {
	return c.Target.Namespace + "." + c.Target.Table
}

// DelimiterRune returns the configured delimiter, or 0 when unset.
func (c *Config) DelimiterRune() rune {
	switch c.Source.Delimiter {
	case "":
		return 0
	case `\t`:
		return '\t'
	default:
		r, _ := utf8.DecodeRuneInString(c.Source.Delimiter)
		return r
	}
}
