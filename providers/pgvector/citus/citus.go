// Package citus runs the pgvector backend on Citus, the distributed Postgres
// extension. It differs from single-node pgvector in two ways: the extension
// is activated through Citus's create_extension function, and the collection
// table is sharded with create_distributed_table right after it is created.
package citus

import (
	"context"
	"fmt"

	"github.com/agentplexus/omnibench/providers/pgvector"
	"github.com/agentplexus/omnibench/vector"
)

// IndexConfig is a pgvector index configuration that also names the column
// the collection table is distributed by.
type IndexConfig interface {
	pgvector.IndexConfig
	DistributionColumn() string
}

// HNSWConfig is pgvector's HNSWConfig plus a distribution column.
type HNSWConfig struct {
	pgvector.HNSWConfig `yaml:",inline"`
	DistributionCol     string `yaml:"distribution_col"`
}

// DistributionColumn implements IndexConfig.
func (c HNSWConfig) DistributionColumn() string { return c.DistributionCol }

// IVFFlatConfig is pgvector's IVFFlatConfig plus a distribution column.
type IVFFlatConfig struct {
	pgvector.IVFFlatConfig `yaml:",inline"`
	DistributionCol        string `yaml:"distribution_col"`
}

// DistributionColumn implements IndexConfig.
func (c IVFFlatConfig) DistributionColumn() string { return c.DistributionCol }

// NewIndexConfig returns the zero configuration for an index kind.
func NewIndexConfig(t vector.IndexType) (IndexConfig, error) {
	switch t {
	case vector.IndexHNSW:
		return &HNSWConfig{}, nil
	case vector.IndexIVFFlat:
		return &IVFFlatConfig{}, nil
	}
	return nil, fmt.Errorf("%w: citus does not support index type %q", pgvector.ErrConfig, t)
}

// Client provisions a pgvector collection on Citus. Everything but
// extension activation and table creation is delegated to the embedded
// single-node client.
type Client struct {
	*pgvector.Client
	distributionColumn string
}

// New creates a Client. The distribution column is checked by Validate and
// again when the table is created, so a Client without one can still manage
// indexes and search settings.
func New(session pgvector.Session, tableName string, cfg IndexConfig, opts pgvector.Options) (*Client, error) {
	if opts.Backend == "" {
		opts.Backend = "pgvector_citus"
	}
	base, err := pgvector.New(session, tableName, opts)
	if err != nil {
		return nil, err
	}
	var col string
	if cfg != nil {
		col = cfg.DistributionColumn()
	}
	return &Client{Client: base, distributionColumn: col}, nil
}

// Validate implements pgvector.Validator. It reports a missing or malformed
// distribution column without issuing any SQL.
func (c *Client) Validate() error {
	return pgvector.ValidateIdentifier("distribution column", c.distributionColumn)
}

// ActivateExtension implements pgvector.Provisioner. Citus's create_extension
// propagates the extension to the workers; it is skipped when the extension
// is already installed so repeated activation succeeds.
func (c *Client) ActivateExtension(ctx context.Context) error {
	const check = "SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')"
	active, err := c.QueryBool(ctx, "check_extension", check)
	if err != nil {
		return err
	}
	if active {
		c.Logger().DebugContext(ctx, "vector extension already active")
		return c.Commit(ctx)
	}
	if err := c.Exec(ctx, "create_extension", "SELECT create_extension('vector');"); err != nil {
		return err
	}
	return c.Commit(ctx)
}

// CreateTable implements pgvector.Provisioner. The single-node table is
// created and committed first; create_distributed_table needs to see it in
// the catalog. The table lands in public and is distributed by its bare
// name, which assumes the default search_path.
func (c *Client) CreateTable(ctx context.Context, dim int) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := c.Client.CreateTable(ctx, dim); err != nil {
		return err
	}
	query := fmt.Sprintf("SELECT create_distributed_table('%s', '%s')", c.TableName(), c.distributionColumn)
	if err := c.Exec(ctx, "distribute_table", query); err != nil {
		return err
	}
	return c.Commit(ctx)
}

// Verify interface compliance
var (
	_ pgvector.Provisioner = (*Client)(nil)
	_ pgvector.Validator   = (*Client)(nil)
	_ IndexConfig          = HNSWConfig{}
	_ IndexConfig          = IVFFlatConfig{}
)
