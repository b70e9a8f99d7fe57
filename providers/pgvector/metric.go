package pgvector

import "github.com/agentplexus/omnibench/vector"

// MetricOps are the pgvector names for one similarity metric.
type MetricOps struct {
	// OpClass is the operator class an index is built with.
	OpClass string
	// Operator is the distance operator used in ORDER BY.
	Operator string
	// Function is the SQL distance function.
	Function string
}

var (
	l2Ops     = MetricOps{OpClass: "vector_l2_ops", Operator: "<->", Function: "l2_distance"}
	ipOps     = MetricOps{OpClass: "vector_ip_ops", Operator: "<#>", Function: "max_inner_product"}
	cosineOps = MetricOps{OpClass: "vector_cosine_ops", Operator: "<=>", Function: "cosine_distance"}
)

// ResolveMetric maps a metric to its pgvector names. Unset and unknown
// metrics resolve to cosine.
func ResolveMetric(m vector.MetricType) MetricOps {
	switch m {
	case vector.MetricL2:
		return l2Ops
	case vector.MetricIP:
		return ipOps
	default: // Cosine
		return cosineOps
	}
}
