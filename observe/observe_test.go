package observe_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/agentplexus/omnibench/observe"
)

// mockExporter captures exported spans for testing.
type mockExporter struct {
	mu    sync.Mutex
	spans []observe.Span
	err   error
}

func (m *mockExporter) Export(ctx context.Context, spans []observe.Span) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = append(m.spans, spans...)
	return m.err
}

func (m *mockExporter) Name() string {
	return "mock"
}

func (m *mockExporter) Spans() []observe.Span {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spans
}

func TestObserver(t *testing.T) {
	exporter := &mockExporter{}
	observer := observe.NewObserver(observe.ObserverConfig{
		Exporters: []observe.SpanExporter{exporter},
	})

	ctx := context.Background()
	observer.OnStatement(ctx, "observe_test", "create_table", "CREATE TABLE t1 ()", 5*time.Millisecond, nil)
	observer.OnStatement(ctx, "observe_test", "distribute_table", "SELECT create_distributed_table('t1', 'id')", time.Millisecond, errors.New("boom"))

	if got := len(exporter.Spans()); got != 0 {
		t.Fatalf("spans exported before Flush: %d", got)
	}
	observer.Flush(ctx)

	spans := exporter.Spans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Kind != "create_table" || spans[0].Status != observe.SpanStatusOK {
		t.Errorf("first span = %+v", spans[0])
	}
	if spans[1].Status != observe.SpanStatusError || spans[1].Error != "boom" {
		t.Errorf("second span = %+v", spans[1])
	}
	if spans[0].ID == spans[1].ID {
		t.Error("span IDs should be unique")
	}
	if !spans[0].EndTime.After(spans[0].StartTime) {
		t.Error("span should have a positive duration")
	}
	if strings.Contains(spans[0].QueryHash, "CREATE") {
		t.Error("span should carry a hash, not the statement")
	}

	// Flushing again exports nothing new.
	observer.Flush(ctx)
	if got := len(exporter.Spans()); got != 2 {
		t.Errorf("expected 2 spans after second flush, got %d", got)
	}
}

func TestObserverMetrics(t *testing.T) {
	observer := observe.NewObserver(observe.ObserverConfig{})
	ctx := context.Background()

	observer.OnStatement(ctx, "metrics_test", "set", "SET hnsw.ef_search = 40", time.Millisecond, nil)
	observer.OnStatement(ctx, "metrics_test", "set", "SET hnsw.ef_search = 40", time.Millisecond, nil)
	observer.OnStatement(ctx, "metrics_test", "set", "SET hnsw.ef_search = x", time.Millisecond, errors.New("bad value"))

	// The collectors are package globals; read the labelled children only.
	ok := testutil.ToFloat64(observe.StatementCounter().WithLabelValues("metrics_test", "set", "ok"))
	failed := testutil.ToFloat64(observe.StatementCounter().WithLabelValues("metrics_test", "set", "error"))
	if ok != 2 {
		t.Errorf("ok counter = %v, want 2", ok)
	}
	if failed != 1 {
		t.Errorf("error counter = %v, want 1", failed)
	}
}

func TestObserverLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	exporter := &mockExporter{err: errors.New("export down")}
	observer := observe.NewObserver(observe.ObserverConfig{
		Exporters: []observe.SpanExporter{exporter},
		Logger:    slog.New(slog.NewTextHandler(&buf, nil)),
	})
	ctx := context.Background()

	observer.OnStatement(ctx, "log_test", "create_extension", "CREATE EXTENSION IF NOT EXISTS vector", time.Millisecond, errors.New("permission denied"))
	observer.Flush(ctx)

	out := buf.String()
	if !strings.Contains(out, "statement failed") || !strings.Contains(out, "permission denied") {
		t.Errorf("missing statement failure record: %s", out)
	}
	if !strings.Contains(out, "failed to export spans") {
		t.Errorf("missing exporter failure record: %s", out)
	}
}

func TestNoOpObserver(t *testing.T) {
	var o observe.NoOpObserver
	o.OnStatement(context.Background(), "b", "k", "q", 0, nil)
}

func TestLogExporter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	observer := observe.NewObserver(observe.ObserverConfig{
		Exporters: []observe.SpanExporter{observe.NewLogExporter(logger)},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ctx := context.Background()

	observer.OnStatement(ctx, "log_export_test", "drop_table", `DROP TABLE IF EXISTS public."t1"`, time.Millisecond, nil)
	observer.OnStatement(ctx, "log_export_test", "distribute_table", "SELECT create_distributed_table('t1', 'id')", time.Millisecond, errors.New("no workers"))
	if buf.Len() != 0 {
		t.Fatalf("spans written before Flush: %s", buf.String())
	}
	observer.Flush(ctx)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 span records, got %d: %s", len(lines), buf.String())
	}
	for _, want := range []string{`"msg":"span"`, `"kind":"drop_table"`, `"status":"ok"`} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("first record missing %s: %s", want, lines[0])
		}
	}
	for _, want := range []string{`"kind":"distribute_table"`, `"status":"error"`, `"error":"no workers"`} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("second record missing %s: %s", want, lines[1])
		}
	}
	if strings.Contains(buf.String(), "DROP TABLE") {
		t.Error("span records should carry the query hash, not the statement")
	}
	if got := observe.NewLogExporter(nil).Name(); got != "log" {
		t.Errorf("Name() = %q, want log", got)
	}
}
