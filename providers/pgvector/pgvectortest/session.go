// Package pgvectortest provides an in-memory pgvector.Session for tests.
//
// The fake understands just enough of the provisioning statements to model
// catalog visibility: effects of a statement become visible to later
// statements only after Commit, and create_distributed_table fails on a
// table that is not visible yet.
package pgvectortest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/agentplexus/omnibench/providers/pgvector"
)

// Session records every statement it is given.
type Session struct {
	mu sync.Mutex

	// Log holds the issued statements in order, with "COMMIT" and
	// "ROLLBACK" entries for transaction boundaries.
	Log []string
	// Failures maps a statement substring to the error returned for it.
	Failures map[string]error

	extensions map[string]bool
	tables     map[string]bool
	pending    []func()
	open       bool
	closed     bool
}

// New returns an empty Session.
func New() *Session {
	return &Session{
		Failures:   make(map[string]error),
		extensions: make(map[string]bool),
		tables:     make(map[string]bool),
	}
}

// FailOn makes statements containing substr fail with err.
func (s *Session) FailOn(substr string, err error) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failures[substr] = err
	return s
}

// WithExtension marks an extension as already installed.
func (s *Session) WithExtension(name string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extensions[name] = true
	return s
}

// Statements returns a copy of the log.
func (s *Session) Statements() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Log...)
}

// Extension reports whether the extension is installed and committed.
func (s *Session) Extension(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extensions[name]
}

// Table reports whether the table exists and is committed.
func (s *Session) Table(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[name]
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var (
	createTableRE = regexp.MustCompile(`^CREATE TABLE public\."?([a-z0-9_]+)"?`)
	dropTableRE   = regexp.MustCompile(`^DROP TABLE IF EXISTS public\."?([a-z0-9_]+)"?`)
	distributeRE  = regexp.MustCompile(`create_distributed_table\('([^']*)', '([^']*)'\)`)
)

// Exec implements pgvector.Session.
func (s *Session) Exec(ctx context.Context, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.open = true
	s.Log = append(s.Log, query)

	for substr, err := range s.Failures {
		if strings.Contains(query, substr) {
			s.rollback()
			return err
		}
	}

	switch {
	case strings.HasPrefix(query, "CREATE EXTENSION IF NOT EXISTS vector"):
		s.pending = append(s.pending, func() { s.extensions["vector"] = true })
	case strings.Contains(query, "create_extension('vector')"):
		if s.extensions["vector"] {
			s.rollback()
			return errors.New(`extension "vector" already exists`)
		}
		s.pending = append(s.pending, func() { s.extensions["vector"] = true })
	case createTableRE.MatchString(query):
		name := createTableRE.FindStringSubmatch(query)[1]
		if s.tables[name] {
			s.rollback()
			return fmt.Errorf("relation %q already exists", name)
		}
		s.pending = append(s.pending, func() { s.tables[name] = true })
	case dropTableRE.MatchString(query):
		name := dropTableRE.FindStringSubmatch(query)[1]
		s.pending = append(s.pending, func() { delete(s.tables, name) })
	case distributeRE.MatchString(query):
		name := distributeRE.FindStringSubmatch(query)[1]
		if !s.tables[name] {
			s.rollback()
			return fmt.Errorf("relation %q does not exist", name)
		}
	}
	return nil
}

// QueryRow implements pgvector.Session. It answers the extension and table
// existence checks.
func (s *Session) QueryRow(ctx context.Context, query string, args ...any) pgvector.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.Log = append(s.Log, query)

	for substr, err := range s.Failures {
		if strings.Contains(query, substr) {
			s.rollback()
			return row{err: err}
		}
	}

	switch {
	case strings.Contains(query, "pg_extension"):
		return row{v: s.extensions["vector"]}
	case strings.Contains(query, "information_schema.tables") && len(args) == 1:
		name, _ := args[0].(string)
		return row{v: s.tables[name]}
	}
	return row{err: fmt.Errorf("pgvectortest: unsupported query %q", query)}
}

// Commit implements pgvector.Session.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.Log = append(s.Log, "COMMIT")
	for _, apply := range s.pending {
		apply()
	}
	s.pending = nil
	s.open = false
	return nil
}

// Close implements pgvector.Session.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		s.rollback()
	}
	s.closed = true
	return nil
}

func (s *Session) rollback() {
	s.Log = append(s.Log, "ROLLBACK")
	s.pending = nil
	s.open = false
}

type row struct {
	v   bool
	err error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != 1 {
		return fmt.Errorf("pgvectortest: expected 1 destination, got %d", len(dest))
	}
	p, ok := dest[0].(*bool)
	if !ok {
		return fmt.Errorf("pgvectortest: unsupported destination %T", dest[0])
	}
	*p = r.v
	return nil
}

// Verify interface compliance
var _ pgvector.Session = (*Session)(nil)
