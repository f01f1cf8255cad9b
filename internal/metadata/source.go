// Package metadata defines the capability through which the pipeline
// reads database structure. All layers above this package talk only to
// the Source interface — they never import the postgres or mysql
// packages directly.
package metadata

import (
	"context"
	"sync"
)

// Source is the central contract for schema introspection.
// Implementations own an open database session; the pipeline never
// mutates it, only issues reads through it.
type Source interface {
	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the underlying session.
	Close()

	// ListTables returns all user-defined tables, with comments,
	// ordered by name.
	ListTables(ctx context.Context) ([]TableMeta, error)

	// DescribeTable returns the full structure of one table:
	// columns, primary key, foreign keys, indexes, comments.
	DescribeTable(ctx context.Context, ref TableRef) (*TableStructure, error)

	// GenerateDDL returns the CREATE TABLE statement for one table.
	GenerateDDL(ctx context.Context, ref TableRef) (string, error)
}

// ConcurrencySafe is an optional marker for Source implementations whose
// underlying session tolerates concurrent queries (e.g. a connection
// pool). Sources that do not implement it are serialized by the pipeline:
// one in-flight query per session at a time.
type ConcurrencySafe interface {
	ConcurrencySafe()
}

// Serial wraps src so that at most one call is in flight at a time.
// If src already advertises ConcurrencySafe it is returned unchanged.
func Serial(src Source) Source {
	if _, ok := src.(ConcurrencySafe); ok {
		return src
	}
	return &serialSource{src: src}
}

type serialSource struct {
	mu  sync.Mutex
	src Source
}

func (s *serialSource) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Ping(ctx)
}

func (s *serialSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Close()
}

func (s *serialSource) ListTables(ctx context.Context) ([]TableMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.ListTables(ctx)
}

func (s *serialSource) DescribeTable(ctx context.Context, ref TableRef) (*TableStructure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.DescribeTable(ctx, ref)
}

func (s *serialSource) GenerateDDL(ctx context.Context, ref TableRef) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.GenerateDDL(ctx, ref)
}
