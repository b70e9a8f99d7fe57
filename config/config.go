// Package config loads benchmark backend configuration from YAML.
package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agentplexus/omnibench/observe"
	"github.com/agentplexus/omnibench/providers/pgvector"
	"github.com/agentplexus/omnibench/providers/pgvector/citus"
	"github.com/agentplexus/omnibench/vector"
)

// Backend selects the table provisioning strategy.
type Backend string

const (
	// BackendPgVector is pgvector on a single Postgres node.
	BackendPgVector Backend = "pgvector"
	// BackendCitus is pgvector on Citus.
	BackendCitus Backend = "pgvector_citus"
)

// Driver selects the Postgres driver a session is opened with.
type Driver string

const (
	DriverPQ  Driver = "pq"
	DriverPgx Driver = "pgx"
)

// Config is the complete configuration of one benchmark backend.
type Config struct {
	// Backend is "pgvector" (default) or "pgvector_citus".
	Backend Backend `yaml:"backend"`
	// Driver is "pq" (default) or "pgx".
	Driver Driver `yaml:"driver"`
	// TableName is the collection table (default "pg_vector_collection").
	TableName string `yaml:"table_name"`
	// Dimension is the vector dimension.
	Dimension int `yaml:"dimension"`
	// DropOld drops an existing index and table before provisioning.
	DropOld bool `yaml:"drop_old"`
	// CreateIndex builds the vector index after the table is created.
	CreateIndex bool `yaml:"create_index"`

	// DB is the connection configuration.
	DB pgvector.Config `yaml:"db"`
	// Case is the index configuration. Its "index" key picks the variant.
	Case yaml.Node `yaml:"case"`
	// Logging configures the logger.
	Logging LoggingConfig `yaml:"logging"`
	// Observe configures statement observation.
	Observe ObserveConfig `yaml:"observe"`

	index pgvector.IndexConfig
}

// ObserveConfig contains observation configuration.
type ObserveConfig struct {
	// ExportSpans writes one log record per statement span when the run ends.
	ExportSpans bool `yaml:"export_spans"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is debug, info (default), warn or error.
	Level string `yaml:"level"`
	// Format is text (default) or json.
	Format string `yaml:"format"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendPgVector
	}
	if c.Driver == "" {
		c.Driver = DriverPQ
	}
	if c.TableName == "" {
		c.TableName = "pg_vector_collection"
	}
	c.DB = c.DB.WithDefaults()
}

// Validate checks the configuration and decodes the case section.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendPgVector, BackendCitus:
	default:
		return fmt.Errorf("%w: unknown backend %q", pgvector.ErrConfig, c.Backend)
	}
	switch c.Driver {
	case DriverPQ, DriverPgx:
	default:
		return fmt.Errorf("%w: unknown driver %q", pgvector.ErrConfig, c.Driver)
	}
	if err := pgvector.ValidateIdentifier("table_name", c.TableName); err != nil {
		return err
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", pgvector.ErrConfig)
	}
	if err := c.DB.Validate(); err != nil {
		return err
	}
	idx, err := decodeCase(c.Backend, &c.Case)
	if err != nil {
		return err
	}
	if err := idx.Validate(); err != nil {
		return err
	}
	if c.Backend == BackendCitus {
		dist, ok := idx.(citus.IndexConfig)
		if !ok {
			return fmt.Errorf("%w: %s case has no distribution column", pgvector.ErrConfig, c.Backend)
		}
		if err := pgvector.ValidateIdentifier("distribution_col", dist.DistributionColumn()); err != nil {
			return err
		}
	}
	c.index = idx
	return nil
}

func decodeCase(backend Backend, node *yaml.Node) (pgvector.IndexConfig, error) {
	if node.Kind == 0 {
		return nil, fmt.Errorf("%w: case section is required", pgvector.ErrConfig)
	}
	var head struct {
		Index string `yaml:"index"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, fmt.Errorf("failed to parse case: %w", err)
	}
	kind, err := vector.ParseIndexType(head.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pgvector.ErrConfig, err)
	}

	var idx pgvector.IndexConfig
	if backend == BackendCitus {
		idx, err = citus.NewIndexConfig(kind)
	} else {
		idx, err = pgvector.NewIndexConfig(kind)
	}
	if err != nil {
		return nil, err
	}
	if err := node.Decode(idx); err != nil {
		return nil, fmt.Errorf("failed to parse %s case: %w", kind, err)
	}
	return idx, nil
}

// IndexConfig returns the decoded case configuration.
func (c *Config) IndexConfig() pgvector.IndexConfig {
	return c.index
}

// Client is what the benchmark driver needs from a provisioned backend.
type Client interface {
	pgvector.Provisioner
	pgvector.Validator
	DropTable(ctx context.Context) error
	DropIndex(ctx context.Context) error
	CreateIndex(ctx context.Context, cfg pgvector.IndexConfig) error
	ApplySearchParams(ctx context.Context, cfg pgvector.IndexConfig) error
}

// OpenSession connects with the configured driver.
func (c *Config) OpenSession(ctx context.Context) (pgvector.Session, error) {
	if c.Driver == DriverPgx {
		return pgvector.ConnectPgx(ctx, c.DB)
	}
	return pgvector.OpenSQL(ctx, c.DB)
}

// NewClient builds the configured backend client on session.
func (c *Config) NewClient(session pgvector.Session, opts pgvector.Options) (Client, error) {
	if c.Backend == BackendCitus {
		dist, _ := c.index.(citus.IndexConfig)
		client, err := citus.New(session, c.TableName, dist, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	client, err := pgvector.New(session, c.TableName, opts)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewObserver builds the statement observer. Spans are buffered only when
// ExportSpans is set.
func (c ObserveConfig) NewObserver(logger *slog.Logger) *observe.Observer {
	var exporters []observe.SpanExporter
	if c.ExportSpans {
		exporters = append(exporters, observe.NewLogExporter(logger))
	}
	return observe.NewObserver(observe.ObserverConfig{
		Exporters: exporters,
		Logger:    logger,
	})
}

// NewLogger builds a logger writing to w.
func (c LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if c.Level != "" {
		if err := level.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q", c.Format)
}
