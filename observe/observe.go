// Package observe records the SQL statements issued by benchmark clients.
// Every statement is logged through slog, counted and timed in Prometheus,
// and buffered as a span for the configured exporters.
package observe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentplexus/omnibench/vector"
)

var (
	statementCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnibench",
			Subsystem: "pgvector",
			Name:      "statements_total",
			Help:      "Total number of statements issued by benchmark clients.",
		},
		[]string{"backend", "kind", "outcome"},
	)
	statementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "omnibench",
			Subsystem: "pgvector",
			Name:      "statement_duration_seconds",
			Help:      "The duration of statements issued by benchmark clients.",
		},
		[]string{"backend", "kind"},
	)
)

// SpanStatus indicates the outcome of a statement.
type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)

// Span is one observed statement.
type Span struct {
	// ID is the unique span identifier.
	ID string
	// Backend is the client that issued the statement.
	Backend string
	// Kind classifies the statement (create_table, commit, ...).
	Kind string
	// QueryHash identifies the statement text without carrying it.
	QueryHash string
	// StartTime is when the statement was issued.
	StartTime time.Time
	// EndTime is when the statement finished.
	EndTime time.Time
	// Status indicates success or failure.
	Status SpanStatus
	// Error contains error details if Status is Error.
	Error string
}

// SpanExporter exports spans to an observability backend.
type SpanExporter interface {
	// Export sends spans to the backend.
	Export(ctx context.Context, spans []Span) error
	// Name returns the exporter name.
	Name() string
}

// Observer implements vector.Observer.
type Observer struct {
	mu        sync.Mutex
	exporters []SpanExporter
	logger    *slog.Logger
	pending   []Span
}

// ObserverConfig configures the Observer.
type ObserverConfig struct {
	// Exporters to send spans to on Flush.
	Exporters []SpanExporter
	// Logger for statement records and exporter errors (default slog.Default()).
	Logger *slog.Logger
}

// NewObserver creates a new Observer.
func NewObserver(cfg ObserverConfig) *Observer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Observer{
		exporters: cfg.Exporters,
		logger:    cfg.Logger,
	}
}

// OnStatement implements vector.Observer.
func (o *Observer) OnStatement(ctx context.Context, backend, kind, query string, elapsed time.Duration, err error) {
	end := time.Now()
	span := Span{
		ID:        generateID(),
		Backend:   backend,
		Kind:      kind,
		QueryHash: hashQuery(query),
		StartTime: end.Add(-elapsed),
		EndTime:   end,
		Status:    SpanStatusOK,
	}
	outcome := "ok"
	if err != nil {
		span.Status = SpanStatusError
		span.Error = err.Error()
		outcome = "error"
	}

	statementCounter.WithLabelValues(backend, kind, outcome).Inc()
	statementDuration.WithLabelValues(backend, kind).Observe(elapsed.Seconds())

	if err != nil {
		o.logger.ErrorContext(ctx, "statement failed",
			"backend", backend,
			"kind", kind,
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		o.logger.DebugContext(ctx, "statement done",
			"backend", backend,
			"kind", kind,
			"elapsed", elapsed,
		)
	}

	if len(o.exporters) == 0 {
		return
	}
	o.mu.Lock()
	o.pending = append(o.pending, span)
	o.mu.Unlock()
}

// Flush exports and clears the buffered spans. Exporter failures are logged
// and do not stop the remaining exporters.
func (o *Observer) Flush(ctx context.Context) {
	o.mu.Lock()
	spans := o.pending
	o.pending = nil
	o.mu.Unlock()

	if len(spans) == 0 {
		return
	}
	for _, exporter := range o.exporters {
		if err := exporter.Export(ctx, spans); err != nil {
			o.logger.ErrorContext(ctx, "failed to export spans",
				"exporter", exporter.Name(),
				"error", err,
			)
		}
	}
}

var idCounter atomic.Uint64

// generateID generates a unique span ID.
func generateID() string {
	h := sha256.New()
	h.Write([]byte(time.Now().String()))
	h.Write([]byte(strconv.FormatUint(idCounter.Add(1), 10)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// hashQuery creates a hash of the statement text.
func hashQuery(text string) string {
	h := sha256.New()
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))[:8]
}

// NoOpObserver is a no-op implementation of vector.Observer.
type NoOpObserver struct{}

// OnStatement implements vector.Observer.
func (NoOpObserver) OnStatement(context.Context, string, string, string, time.Duration, error) {}

// Verify interface compliance
var (
	_ vector.Observer = (*Observer)(nil)
	_ vector.Observer = NoOpObserver{}
)
