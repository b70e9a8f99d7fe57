// Package pgvector is the Postgres/pgvector backend of the omnibench vector
// database benchmark.
//
// # Index configurations
//
// HNSWConfig and IVFFlatConfig translate the benchmark's abstract index and
// metric settings into what pgvector understands:
//
//	cfg := pgvector.HNSWConfig{MetricType: vector.MetricL2, M: 16, EfConstruction: 64}
//	cfg.IndexParams()  // vector_l2_ops, hnsw, {m: 16, ef_construction: 64}
//	cfg.SearchParams() // <->, vector_l2_ops, {ef_search: nil}
//
// An unset metric resolves to cosine.
//
// # Provisioning
//
// A Client owns one Session and prepares the collection table:
//
//	s, err := pgvector.OpenSQL(ctx, pgvector.DefaultConfig("bench", password))
//	if err != nil {
//		return err
//	}
//	defer s.Close(ctx)
//
//	c, err := pgvector.New(s, "pg_vector_collection", pgvector.Options{Logger: logger})
//	if err != nil {
//		return err
//	}
//	if err := pgvector.Provision(ctx, c, 768); err != nil {
//		return err
//	}
//
// Sessions are available over database/sql with lib/pq (OpenSQL) and over
// native pgx connections (ConnectPgx). Statements run in an implicit
// transaction that the Client commits after each step, the way a DB-API
// cursor behaves.
//
// The citus subpackage provides the distributed variant.
//
// # Requirements
//
//   - PostgreSQL 12+ with the pgvector extension available
//   - CREATE EXTENSION permissions (or pre-installed extension)
package pgvector
