package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
)

// Row is a single query result row.
type Row interface {
	Scan(dest ...any) error
}

// Session is one logical database connection used sequentially.
//
// Statements run inside an implicit transaction that is opened by the first
// statement and ended by Commit. A failing statement rolls the transaction
// back and returns the driver's error as is.
type Session interface {
	Exec(ctx context.Context, query string, args ...any) error
	QueryRow(ctx context.Context, query string, args ...any) Row
	Commit(ctx context.Context) error
	Close(ctx context.Context) error
}

// SQLSession is a Session over a database/sql connection.
type SQLSession struct {
	db   *sql.DB
	conn *sql.Conn
	tx   *sql.Tx
}

// OpenSQL opens a lib/pq backed session for cfg.
func OpenSQL(ctx context.Context, cfg Config) (*SQLSession, error) {
	db, err := sql.Open("postgres", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg, err)
	}
	s := NewSQLSession(conn)
	s.db = db
	return s, nil
}

// NewSQLSession wraps an existing connection. Close does not close the pool
// the connection came from.
func NewSQLSession(conn *sql.Conn) *SQLSession {
	return &SQLSession{conn: conn}
}

func (s *SQLSession) begin(ctx context.Context) error {
	if s.tx != nil {
		return nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

func (s *SQLSession) abort() {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
}

// Exec implements Session.
func (s *SQLSession) Exec(ctx context.Context, query string, args ...any) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
		s.abort()
		return err
	}
	return nil
}

// QueryRow implements Session.
func (s *SQLSession) QueryRow(ctx context.Context, query string, args ...any) Row {
	if err := s.begin(ctx); err != nil {
		return errRow{err}
	}
	return &sessionRow{row: s.tx.QueryRowContext(ctx, query, args...), abort: s.abort}
}

// Commit implements Session. Committing with no open transaction is a no-op.
func (s *SQLSession) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Commit()
}

// Close implements Session. An open transaction is rolled back.
func (s *SQLSession) Close(ctx context.Context) error {
	s.abort()
	err := s.conn.Close()
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	return err
}

// PgxSession is a Session over a native pgx connection.
type PgxSession struct {
	conn *pgx.Conn
	tx   pgx.Tx
}

// ConnectPgx opens a pgx backed session for cfg.
func ConnectPgx(ctx context.Context, cfg Config) (*PgxSession, error) {
	conn, err := pgx.Connect(ctx, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg, err)
	}
	return NewPgxSession(conn), nil
}

// NewPgxSession wraps an existing connection.
func NewPgxSession(conn *pgx.Conn) *PgxSession {
	return &PgxSession{conn: conn}
}

func (s *PgxSession) begin(ctx context.Context) error {
	if s.tx != nil {
		return nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

func (s *PgxSession) abort() {
	if s.tx != nil {
		// The statement context may already be done; the rollback must still go out.
		_ = s.tx.Rollback(context.Background())
		s.tx = nil
	}
}

// Exec implements Session.
func (s *PgxSession) Exec(ctx context.Context, query string, args ...any) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	if _, err := s.tx.Exec(ctx, query, args...); err != nil {
		s.abort()
		return err
	}
	return nil
}

// QueryRow implements Session.
func (s *PgxSession) QueryRow(ctx context.Context, query string, args ...any) Row {
	if err := s.begin(ctx); err != nil {
		return errRow{err}
	}
	return &sessionRow{row: s.tx.QueryRow(ctx, query, args...), abort: s.abort}
}

// Commit implements Session. Committing with no open transaction is a no-op.
func (s *PgxSession) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Commit(ctx)
}

// Close implements Session. An open transaction is rolled back.
func (s *PgxSession) Close(ctx context.Context) error {
	s.abort()
	return s.conn.Close(ctx)
}

// sessionRow rolls the session back when scanning fails, so the next
// statement does not run inside an aborted transaction.
type sessionRow struct {
	row   Row
	abort func()
}

func (r *sessionRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) && !errors.Is(err, pgx.ErrNoRows) {
		r.abort()
	}
	return err
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// Verify interface compliance
var (
	_ Session = (*SQLSession)(nil)
	_ Session = (*PgxSession)(nil)
)
