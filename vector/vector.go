// Package vector defines the backend-neutral types shared by the vector
// database clients of the benchmark: similarity metrics, index kinds, index
// configurations and the statement observer hook.
package vector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MetricType defines the similarity metric a collection is searched with.
// The zero value means "unset"; backends pick their own default for it.
type MetricType string

const (
	// MetricL2 uses Euclidean distance.
	MetricL2 MetricType = "L2"
	// MetricIP uses inner product.
	MetricIP MetricType = "IP"
	// MetricCosine uses cosine distance.
	MetricCosine MetricType = "COSINE"
)

// ParseMetricType parses a metric name. Matching is case-insensitive and
// accepts the long names (euclidean, inner_product, dot, cosine) as well.
// An empty string yields the unset metric.
func ParseMetricType(s string) (MetricType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "l2", "euclidean":
		return MetricL2, nil
	case "ip", "inner_product", "dot":
		return MetricIP, nil
	case "cosine":
		return MetricCosine, nil
	}
	return "", fmt.Errorf("unknown metric type %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *MetricType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseMetricType(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// IndexType defines the index algorithm.
type IndexType string

const (
	// IndexHNSW uses HNSW (Hierarchical Navigable Small World) graphs.
	IndexHNSW IndexType = "hnsw"
	// IndexIVFFlat uses IVFFlat (Inverted File with flat vector storage).
	IndexIVFFlat IndexType = "ivfflat"
)

// ParseIndexType parses an index kind name, case-insensitively.
func ParseIndexType(s string) (IndexType, error) {
	switch IndexType(strings.ToLower(strings.TrimSpace(s))) {
	case IndexHNSW:
		return IndexHNSW, nil
	case IndexIVFFlat:
		return IndexIVFFlat, nil
	}
	return "", fmt.Errorf("unknown index type %q", s)
}

// IndexConfig is the capability every backend index configuration provides
// to the benchmark driver.
type IndexConfig interface {
	// Index reports the index kind. It is fixed by the concrete type.
	Index() IndexType
	// Metric reports the configured metric, possibly unset.
	Metric() MetricType
	// IndexParamMap returns the parameters used to build the index.
	IndexParamMap() map[string]any
	// SearchParamMap returns the parameters used at query time.
	SearchParamMap() map[string]any
}

// Observer receives an event for every statement a client issues.
type Observer interface {
	// OnStatement is called after a statement finishes, successfully or not.
	OnStatement(ctx context.Context, backend, kind, query string, elapsed time.Duration, err error)
}

// ObserverFunc is a function adapter for Observer.
type ObserverFunc func(ctx context.Context, backend, kind, query string, elapsed time.Duration, err error)

// OnStatement implements Observer for ObserverFunc.
func (f ObserverFunc) OnStatement(ctx context.Context, backend, kind, query string, elapsed time.Duration, err error) {
	f(ctx, backend, kind, query, elapsed, err)
}
