package config_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/agentplexus/omnibench/config"
	"github.com/agentplexus/omnibench/providers/pgvector"
	"github.com/agentplexus/omnibench/providers/pgvector/citus"
	"github.com/agentplexus/omnibench/providers/pgvector/pgvectortest"
	"github.com/agentplexus/omnibench/vector"
)

func TestLoadPgVector(t *testing.T) {
	cfg, err := config.Load("testdata/pgvector.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Backend != config.BackendPgVector || cfg.Driver != config.DriverPQ {
		t.Errorf("Backend/Driver = %q/%q", cfg.Backend, cfg.Driver)
	}
	if cfg.TableName != "bench_vectors" || cfg.Dimension != 768 || !cfg.DropOld || !cfg.CreateIndex {
		t.Errorf("unexpected settings: %+v", cfg)
	}

	wantDB := map[string]any{
		"host":     "localhost",
		"port":     5432,
		"dbname":   "bench",
		"user":     "postgres",
		"password": "postgres",
	}
	if diff := cmp.Diff(wantDB, cfg.DB.ToMap()); diff != "" {
		t.Errorf("DB mismatch (-want +got):\n%s", diff)
	}

	idx, ok := cfg.IndexConfig().(*pgvector.HNSWConfig)
	if !ok {
		t.Fatalf("IndexConfig() = %T, want *pgvector.HNSWConfig", cfg.IndexConfig())
	}
	if idx.Index() != vector.IndexHNSW || idx.Metric() != vector.MetricL2 {
		t.Errorf("index/metric = %q/%q", idx.Index(), idx.Metric())
	}
	want := map[string]any{
		"metric_type": "vector_l2_ops",
		"index_type":  "hnsw",
		"params":      map[string]any{"m": 16, "ef_construction": 64},
		"config":      map[string]string{"maintenance_work_mem": "'8GB'", "max_parallel_maintenance_workers": "4"},
	}
	if diff := cmp.Diff(want, idx.IndexParamMap()); diff != "" {
		t.Errorf("IndexParamMap() mismatch (-want +got):\n%s", diff)
	}
	if idx.Ef == nil || *idx.Ef != 40 {
		t.Errorf("Ef = %v, want 40", idx.Ef)
	}
}

func TestLoadCitus(t *testing.T) {
	cfg, err := config.Load("testdata/citus.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TableName != "pg_vector_collection" {
		t.Errorf("TableName = %q, want default", cfg.TableName)
	}
	if cfg.DB.Port != 5433 || cfg.DB.Host != "coordinator" {
		t.Errorf("DB = %v", cfg.DB)
	}

	idx, ok := cfg.IndexConfig().(citus.IndexConfig)
	if !ok {
		t.Fatalf("IndexConfig() = %T, want a citus.IndexConfig", cfg.IndexConfig())
	}
	if idx.Index() != vector.IndexIVFFlat || idx.DistributionColumn() != "id" {
		t.Errorf("index = %q, distribution column = %q", idx.Index(), idx.DistributionColumn())
	}

	s := pgvectortest.New()
	client, err := cfg.NewClient(s, pgvector.Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*citus.Client); !ok {
		t.Fatalf("NewClient() = %T, want *citus.Client", client)
	}
	if err := pgvector.Provision(context.Background(), client, cfg.Dimension); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	got := s.Statements()
	if got[len(got)-2] != "SELECT create_distributed_table('pg_vector_collection', 'id')" {
		t.Errorf("unexpected statements: %v", got)
	}
}

func TestParseErrors(t *testing.T) {
	const db = "db:\n  password: pw\n  db_name: bench\n"
	tests := []struct {
		name   string
		doc    string
		config bool
	}{
		{"missing case", "dimension: 3\n" + db, true},
		{"unknown index", "dimension: 3\n" + db + "case:\n  index: diskann\n", true},
		{"unknown backend", "backend: milvus\ndimension: 3\n" + db + "case:\n  index: hnsw\n", true},
		{"unknown driver", "driver: odbc\ndimension: 3\n" + db + "case:\n  index: hnsw\n", true},
		{"bad table", "table_name: Bad-Name\ndimension: 3\n" + db + "case:\n  index: hnsw\n", true},
		{"no dimension", db + "case:\n  index: hnsw\n", true},
		{"no password", "dimension: 3\ndb:\n  db_name: bench\ncase:\n  index: hnsw\n", true},
		{"hnsw without m", "dimension: 3\n" + db + "case:\n  index: hnsw\n  ef_construction: 64\n", true},
		{"hnsw without ef_construction", "dimension: 3\n" + db + "case:\n  index: hnsw\n  m: 16\n", true},
		{"hnsw negative parallel workers", "dimension: 3\n" + db + "case:\n  index: hnsw\n  m: 16\n  ef_construction: 64\n  maintenance:\n    parallel_workers: -1\n", true},
		{"ivfflat without lists", "dimension: 3\n" + db + "case:\n  index: ivfflat\n", true},
		{"ivfflat zero search setting", "dimension: 3\n" + db + "case:\n  index: ivfflat\n  lists: 10\n  probes: 0\n", true},
		{"bad metric", "dimension: 3\n" + db + "case:\n  index: hnsw\n  metric_type: hamming\n", false},
		{"bad yaml", "dimension: [\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("Parse should fail")
			}
			if tt.config && !errors.Is(err, pgvector.ErrConfig) {
				t.Errorf("Parse error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestParseRejectsMissingDistributionColumn(t *testing.T) {
	const doc = "backend: pgvector_citus\ndimension: 3\ndrop_old: true\n" +
		"db:\n  password: pw\n  db_name: bench\n"
	tests := []struct {
		name string
		cas  string
	}{
		{"hnsw unset", "case:\n  index: hnsw\n  m: 16\n  ef_construction: 64\n"},
		{"ivfflat unset", "case:\n  index: ivfflat\n  lists: 10\n"},
		{"ivfflat malformed", "case:\n  index: ivfflat\n  lists: 10\n  distribution_col: \"Tenant ID\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Parse([]byte(doc + tt.cas))
			if !errors.Is(err, pgvector.ErrConfig) {
				t.Fatalf("Parse error = %v, want ErrConfig", err)
			}
			if cfg != nil {
				t.Errorf("Parse returned a config alongside the error: %+v", cfg)
			}
		})
	}
}

func TestObserveConfig(t *testing.T) {
	ctx := context.Background()
	for _, export := range []bool{false, true} {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		observer := config.ObserveConfig{ExportSpans: export}.NewObserver(logger)

		s := pgvectortest.New()
		client, err := pgvector.New(s, "t1", pgvector.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Observer: observer})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := client.ActivateExtension(ctx); err != nil {
			t.Fatalf("ActivateExtension: %v", err)
		}
		observer.Flush(ctx)

		if got := strings.Contains(buf.String(), "msg=span"); got != export {
			t.Errorf("ExportSpans=%v: span records written = %v\n%s", export, got, buf.String())
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load("testdata/does-not-exist.yaml"); err == nil {
		t.Fatal("Load should fail for a missing file")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := config.LoggingConfig{Level: "debug", Format: "json"}.NewLogger(&buf)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("unexpected output: %s", buf.String())
	}

	if _, err := (config.LoggingConfig{Level: "loud"}).NewLogger(&buf); err == nil {
		t.Error("invalid level should fail")
	}
	if _, err := (config.LoggingConfig{Format: "xml"}).NewLogger(&buf); err == nil {
		t.Error("invalid format should fail")
	}
}
