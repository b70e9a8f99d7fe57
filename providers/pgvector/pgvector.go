package pgvector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/agentplexus/omnibench/vector"
)

// ErrConfig is wrapped by every configuration error. Configuration errors are
// detected before any SQL is issued.
var ErrConfig = errors.New("pgvector: invalid configuration")

// Provisioner prepares a database for a benchmark run.
type Provisioner interface {
	// ActivateExtension makes the vector type available. Calling it again
	// on a database where the extension is active succeeds.
	ActivateExtension(ctx context.Context) error
	// CreateTable creates the collection table for vectors of dim dimensions.
	CreateTable(ctx context.Context, dim int) error
}

// Validator is implemented by provisioners that can check their
// configuration without touching the database.
type Validator interface {
	Validate() error
}

// Provision activates the extension and creates the table, in that order.
// A Provisioner that is also a Validator is checked first, so a bad
// configuration fails before any SQL is issued.
func Provision(ctx context.Context, p Provisioner, dim int) error {
	if v, ok := p.(Validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrConfig, dim)
	}
	if err := p.ActivateExtension(ctx); err != nil {
		return err
	}
	return p.CreateTable(ctx, dim)
}

// Options configures a Client.
type Options struct {
	// Backend labels logs and metrics (default "pgvector").
	Backend string
	// Logger receives one record per statement (default slog.Default()).
	Logger *slog.Logger
	// Observer is notified after every statement. Optional.
	Observer vector.Observer
}

// Client provisions a pgvector collection on a single Postgres node.
type Client struct {
	session   Session
	tableName string
	backend   string
	logger    *slog.Logger
	observer  vector.Observer
}

var identifierRE = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidateIdentifier checks that name is a plain lower-case SQL identifier
// that can be interpolated into statements unquoted.
//
// Tables are created as public.<name>, while Citus resolves the bare name
// passed to create_distributed_table through search_path. Both refer to the
// same relation only when public comes first in the session's search_path,
// as it does by default.
func ValidateIdentifier(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%w: %s is required", ErrConfig, kind)
	}
	if !identifierRE.MatchString(name) {
		return fmt.Errorf("%w: %s %q is not a plain lower-case identifier", ErrConfig, kind, name)
	}
	return nil
}

// New creates a Client for tableName on session.
func New(session Session, tableName string, opts Options) (*Client, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: session is required", ErrConfig)
	}
	if err := ValidateIdentifier("table name", tableName); err != nil {
		return nil, err
	}
	if opts.Backend == "" {
		opts.Backend = "pgvector"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		session:   session,
		tableName: tableName,
		backend:   opts.Backend,
		logger:    opts.Logger.With("backend", opts.Backend, "table", tableName),
		observer:  opts.Observer,
	}, nil
}

// TableName returns the collection table name.
func (c *Client) TableName() string {
	return c.tableName
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Validate reports configuration errors. A single-node client built by New
// is always valid.
func (c *Client) Validate() error {
	return nil
}

func (c *Client) indexName() string {
	return c.tableName + "_embedding_idx"
}

// Exec issues one statement, logging it and reporting it to the observer.
// The driver's error is returned unchanged.
func (c *Client) Exec(ctx context.Context, kind, query string, args ...any) error {
	c.logger.InfoContext(ctx, "running statement", "kind", kind, "query", query)
	start := time.Now()
	err := c.session.Exec(ctx, query, args...)
	c.observe(ctx, kind, query, time.Since(start), err)
	return err
}

// QueryBool runs a query returning a single boolean.
func (c *Client) QueryBool(ctx context.Context, kind, query string, args ...any) (bool, error) {
	c.logger.DebugContext(ctx, "running query", "kind", kind, "query", query)
	start := time.Now()
	var v bool
	err := c.session.QueryRow(ctx, query, args...).Scan(&v)
	c.observe(ctx, kind, query, time.Since(start), err)
	return v, err
}

// Commit commits the session's implicit transaction.
func (c *Client) Commit(ctx context.Context) error {
	start := time.Now()
	err := c.session.Commit(ctx)
	c.observe(ctx, "commit", "COMMIT", time.Since(start), err)
	return err
}

func (c *Client) observe(ctx context.Context, kind, query string, elapsed time.Duration, err error) {
	if c.observer != nil {
		c.observer.OnStatement(ctx, c.backend, kind, query, elapsed, err)
	}
}

// ActivateExtension implements Provisioner.
func (c *Client) ActivateExtension(ctx context.Context) error {
	if err := c.Exec(ctx, "create_extension", "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return err
	}
	return c.Commit(ctx)
}

// CreateTable implements Provisioner. The table is committed before return.
func (c *Client) CreateTable(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrConfig, dim)
	}
	query := fmt.Sprintf("CREATE TABLE public.%s (id BIGINT PRIMARY KEY, embedding vector(%d))",
		pq.QuoteIdentifier(c.tableName), dim)
	if err := c.Exec(ctx, "create_table", query); err != nil {
		return err
	}
	return c.Commit(ctx)
}

// DropTable removes the collection table if it exists.
func (c *Client) DropTable(ctx context.Context) error {
	query := fmt.Sprintf("DROP TABLE IF EXISTS public.%s", pq.QuoteIdentifier(c.tableName))
	if err := c.Exec(ctx, "drop_table", query); err != nil {
		return err
	}
	return c.Commit(ctx)
}

// TableExists reports whether the collection table exists.
func (c *Client) TableExists(ctx context.Context) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	)`
	return c.QueryBool(ctx, "table_exists", query, c.tableName)
}

// CreateIndex applies the build settings of cfg to the session and builds
// the vector index.
func (c *Client) CreateIndex(ctx context.Context, cfg IndexConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p := cfg.IndexParams()

	for _, k := range sortedKeys(p.Config) {
		if err := c.Exec(ctx, "set", fmt.Sprintf("SET %s = %s", k, p.Config[k])); err != nil {
			return err
		}
	}

	query := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON public.%s USING %s (embedding %s)",
		pq.QuoteIdentifier(c.indexName()), pq.QuoteIdentifier(c.tableName), p.IndexType, p.MetricType)
	var with []string
	for _, k := range sortedKeys(p.Params) {
		if v := p.Params[k]; v != nil {
			with = append(with, fmt.Sprintf("%s = %v", k, v))
		}
	}
	if len(with) > 0 {
		query += " WITH (" + strings.Join(with, ", ") + ")"
	}

	if err := c.Exec(ctx, "create_index", query); err != nil {
		return err
	}
	return c.Commit(ctx)
}

// DropIndex removes the vector index if it exists.
func (c *Client) DropIndex(ctx context.Context) error {
	query := fmt.Sprintf("DROP INDEX IF EXISTS public.%s", pq.QuoteIdentifier(c.indexName()))
	if err := c.Exec(ctx, "drop_index", query); err != nil {
		return err
	}
	return c.Commit(ctx)
}

// ApplySearchParams sets the query-time knobs of cfg on the session. Unset
// knobs are left at the server default.
func (c *Client) ApplySearchParams(ctx context.Context, cfg IndexConfig) error {
	p := cfg.SearchParams()
	issued := false
	for _, k := range sortedKeys(p.Params) {
		v := p.Params[k]
		if v == nil {
			continue
		}
		if err := c.Exec(ctx, "set", fmt.Sprintf("SET %s.%s = %v", cfg.Index(), k, v)); err != nil {
			return err
		}
		issued = true
	}
	if !issued {
		return nil
	}
	return c.Commit(ctx)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Verify interface compliance
var _ Provisioner = (*Client)(nil)
