package pgvector

import (
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/agentplexus/omnibench/vector"
)

// IndexParams is the bundle used to build an index.
type IndexParams struct {
	// MetricType is the operator class.
	MetricType string
	// IndexType is the access method ("hnsw" or "ivfflat").
	IndexType string
	// Params are the index storage parameters, keyed by their pgvector names.
	Params map[string]any
	// Config are session settings applied before the build. Values are
	// rendered SQL literals.
	Config map[string]string
}

// Map returns the bundle keyed the way the SQL generation layer expects.
func (p IndexParams) Map() map[string]any {
	m := map[string]any{
		"metric_type": p.MetricType,
		"index_type":  p.IndexType,
		"params":      p.Params,
	}
	if p.Config != nil {
		m["config"] = p.Config
	}
	return m
}

// SearchParams is the bundle used at query time.
type SearchParams struct {
	// MetricFunOp is the distance operator.
	MetricFunOp string
	// MetricType is the operator class.
	MetricType string
	// Params are the runtime knobs. A nil value means the server default.
	Params map[string]any
}

// Map returns the bundle keyed the way the SQL generation layer expects.
func (p SearchParams) Map() map[string]any {
	return map[string]any{
		"metric_fun_op": p.MetricFunOp,
		"metric_type":   p.MetricType,
		"params":        p.Params,
	}
}

// IndexConfig is implemented by the pgvector index configurations.
type IndexConfig interface {
	vector.IndexConfig
	IndexParams() IndexParams
	SearchParams() SearchParams
	// Validate reports tuning values pgvector would reject.
	Validate() error
}

// MaintenanceConfig holds the settings applied to the session before an
// index build. Unset fields use the defaults.
type MaintenanceConfig struct {
	// WorkMem is maintenance_work_mem (default "4GB").
	WorkMem string `yaml:"work_mem"`
	// ParallelWorkers is max_parallel_maintenance_workers (default 4).
	// Zero disables parallel builds.
	ParallelWorkers *int `yaml:"parallel_workers"`
}

const (
	defaultMaintenanceWorkMem = "4GB"
	defaultParallelWorkers    = 4
)

func (c MaintenanceConfig) settings() map[string]string {
	mem := c.WorkMem
	if mem == "" {
		mem = defaultMaintenanceWorkMem
	}
	workers := defaultParallelWorkers
	if c.ParallelWorkers != nil {
		workers = *c.ParallelWorkers
	}
	return map[string]string{
		"maintenance_work_mem":             pq.QuoteLiteral(mem),
		"max_parallel_maintenance_workers": strconv.Itoa(workers),
	}
}

func (c MaintenanceConfig) validate() error {
	if c.ParallelWorkers != nil && *c.ParallelWorkers < 0 {
		return fmt.Errorf("%w: maintenance parallel_workers must not be negative, got %d", ErrConfig, *c.ParallelWorkers)
	}
	return nil
}

func positive(name string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", ErrConfig, name, v)
	}
	return nil
}

func positiveIfSet(name string, v *int) error {
	if v == nil {
		return nil
	}
	return positive(name, *v)
}

// HNSWConfig contains HNSW index parameters.
type HNSWConfig struct {
	// MetricType is the similarity metric; unset means cosine.
	MetricType vector.MetricType `yaml:"metric_type"`
	// M is the maximum number of connections per layer.
	M int `yaml:"m"`
	// EfConstruction is the candidate list size while building.
	EfConstruction int `yaml:"ef_construction"`
	// Ef is the candidate list size while searching. Nil keeps the server default.
	Ef *int `yaml:"ef"`
	// Maintenance tunes the session during the build.
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// Index implements vector.IndexConfig.
func (c HNSWConfig) Index() vector.IndexType { return vector.IndexHNSW }

// Metric implements vector.IndexConfig.
func (c HNSWConfig) Metric() vector.MetricType { return c.MetricType }

// Validate implements IndexConfig.
func (c HNSWConfig) Validate() error {
	if err := positive("m", c.M); err != nil {
		return err
	}
	if err := positive("ef_construction", c.EfConstruction); err != nil {
		return err
	}
	if err := positiveIfSet("ef", c.Ef); err != nil {
		return err
	}
	return c.Maintenance.validate()
}

// IndexParams returns the build bundle.
func (c HNSWConfig) IndexParams() IndexParams {
	return IndexParams{
		MetricType: ResolveMetric(c.MetricType).OpClass,
		IndexType:  string(vector.IndexHNSW),
		Params:     map[string]any{"m": c.M, "ef_construction": c.EfConstruction},
		Config:     c.Maintenance.settings(),
	}
}

// SearchParams returns the query-time bundle.
func (c HNSWConfig) SearchParams() SearchParams {
	ops := ResolveMetric(c.MetricType)
	return SearchParams{
		MetricFunOp: ops.Operator,
		MetricType:  ops.OpClass,
		Params:      map[string]any{"ef_search": optional(c.Ef)},
	}
}

// IndexParamMap implements vector.IndexConfig.
func (c HNSWConfig) IndexParamMap() map[string]any { return c.IndexParams().Map() }

// SearchParamMap implements vector.IndexConfig.
func (c HNSWConfig) SearchParamMap() map[string]any { return c.SearchParams().Map() }

// IVFFlatConfig contains IVFFlat index parameters.
type IVFFlatConfig struct {
	// MetricType is the similarity metric; unset means cosine.
	MetricType vector.MetricType `yaml:"metric_type"`
	// Lists is the number of inverted lists.
	Lists int `yaml:"lists"`
	// Probes is the number of lists scanned per query. Nil keeps the server default.
	Probes *int `yaml:"probes"`
}

// Index implements vector.IndexConfig.
func (c IVFFlatConfig) Index() vector.IndexType { return vector.IndexIVFFlat }

// Metric implements vector.IndexConfig.
func (c IVFFlatConfig) Metric() vector.MetricType { return c.MetricType }

// Validate implements IndexConfig.
func (c IVFFlatConfig) Validate() error {
	if err := positive("lists", c.Lists); err != nil {
		return err
	}
	return positiveIfSet("probes", c.Probes)
}

// IndexParams returns the build bundle.
func (c IVFFlatConfig) IndexParams() IndexParams {
	return IndexParams{
		MetricType: ResolveMetric(c.MetricType).OpClass,
		IndexType:  string(vector.IndexIVFFlat),
		Params:     map[string]any{"lists": c.Lists},
	}
}

// SearchParams returns the query-time bundle.
func (c IVFFlatConfig) SearchParams() SearchParams {
	ops := ResolveMetric(c.MetricType)
	return SearchParams{
		MetricFunOp: ops.Operator,
		MetricType:  ops.OpClass,
		Params:      map[string]any{"probes": optional(c.Probes)},
	}
}

// IndexParamMap implements vector.IndexConfig.
func (c IVFFlatConfig) IndexParamMap() map[string]any { return c.IndexParams().Map() }

// SearchParamMap implements vector.IndexConfig.
func (c IVFFlatConfig) SearchParamMap() map[string]any { return c.SearchParams().Map() }

// NewIndexConfig returns the zero configuration for an index kind, ready to
// be decoded into.
func NewIndexConfig(t vector.IndexType) (IndexConfig, error) {
	switch t {
	case vector.IndexHNSW:
		return &HNSWConfig{}, nil
	case vector.IndexIVFFlat:
		return &IVFFlatConfig{}, nil
	}
	return nil, fmt.Errorf("%w: pgvector does not support index type %q", ErrConfig, t)
}

// optional turns a nil pointer into an untyped nil so absent knobs compare
// equal to nil in the bundle.
func optional(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// Verify interface compliance
var (
	_ IndexConfig = HNSWConfig{}
	_ IndexConfig = IVFFlatConfig{}
)
