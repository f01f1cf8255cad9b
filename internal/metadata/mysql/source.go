// Package mysql implements metadata.Source for MySQL and compatible
// engines, reading information_schema over database/sql.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // register "mysql" driver

	"github.com/jwkim/schemadoc/internal/errs"
	"github.com/jwkim/schemadoc/internal/metadata"
)

// Source is a MySQL implementation of metadata.Source backed by
// database/sql. The underlying pool tolerates concurrent queries, so it
// advertises ConcurrencySafe.
type Source struct {
	db           *sql.DB
	schema       string // database name; "" means DATABASE()
	queryTimeout time.Duration
}

var _ metadata.Source = (*Source)(nil)

// ConcurrencySafe marks the source as safe for concurrent use.
func (s *Source) ConcurrencySafe() {}

// New opens a MySQL connection pool using the provided Config.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *metadata.Config) (*Source, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	s := &Source{db: db, schema: cfg.Schema, queryTimeout: cfg.QueryTimeout}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := s.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// --- metadata.Source implementation ---

func (s *Source) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (s *Source) Close() {
	_ = s.db.Close()
}

func (s *Source) ListTables(ctx context.Context) ([]metadata.TableMeta, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const q = `
		SELECT table_schema,
		       table_name,
		       COALESCE(table_comment, '')
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := s.db.QueryContext(ctx, q, s.schema)
	if err != nil {
		return nil, mapError(err, "failed to list tables")
	}
	defer rows.Close()

	var tables []metadata.TableMeta
	for rows.Next() {
		var tm metadata.TableMeta
		if err := rows.Scan(&tm.Ref.Schema, &tm.Ref.Name, &tm.Comment); err != nil {
			return nil, mapError(err, "failed to scan table row")
		}
		tables = append(tables, tm)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating tables")
	}
	return tables, nil
}

func (s *Source) DescribeTable(ctx context.Context, ref metadata.TableRef) (*metadata.TableStructure, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	comment, err := s.fetchTableComment(ctx, ref)
	if err != nil {
		return nil, err
	}

	columns, pks, err := s.fetchColumns(ctx, ref)
	if err != nil {
		return nil, err
	}

	fks, err := s.fetchForeignKeys(ctx, ref)
	if err != nil {
		return nil, err
	}

	indexes, err := s.fetchIndexes(ctx, ref)
	if err != nil {
		return nil, err
	}

	return &metadata.TableStructure{
		Ref:         ref,
		Comment:     comment,
		Columns:     columns,
		PrimaryKey:  pks,
		ForeignKeys: fks,
		Indexes:     indexes,
	}, nil
}

func (s *Source) GenerateDDL(ctx context.Context, ref metadata.TableRef) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := fmt.Sprintf("SHOW CREATE TABLE %s", quoteRef(ref))

	var name, ddl string
	if err := s.db.QueryRowContext(ctx, q).Scan(&name, &ddl); err != nil {
		return "", mapError(err, fmt.Sprintf("failed to generate DDL for %s", ref))
	}
	return ddl, nil
}

// --- information_schema queries ---

func (s *Source) fetchTableComment(ctx context.Context, ref metadata.TableRef) (string, error) {
	const q = `
		SELECT COALESCE(table_comment, '')
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_type   = 'BASE TABLE'
		  AND table_name   = ?`

	var comment string
	err := s.db.QueryRowContext(ctx, q, ref.Schema, ref.Name).Scan(&comment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errs.New(errs.ErrKindNotFound, fmt.Sprintf("table %s not found", ref))
		}
		return "", mapError(err, "failed to fetch table comment")
	}
	return comment, nil
}

func (s *Source) fetchColumns(ctx context.Context, ref metadata.TableRef) ([]metadata.ColumnInfo, []string, error) {
	const q = `
		SELECT column_name,
		       column_type,
		       is_nullable = 'YES',
		       column_default,
		       column_key,
		       extra,
		       COALESCE(column_comment, '')
		FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_name   = ?
		ORDER BY ordinal_position`

	rows, err := s.db.QueryContext(ctx, q, ref.Schema, ref.Name)
	if err != nil {
		return nil, nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	var cols []metadata.ColumnInfo
	var pks []string

	for rows.Next() {
		var c metadata.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable, &c.Default, &c.Key, &c.Extra, &c.Comment); err != nil {
			return nil, nil, mapError(err, "failed to scan column info")
		}
		if c.Key == "PRI" {
			pks = append(pks, c.Name)
		}
		cols = append(cols, c)
	}
	return cols, pks, rows.Err()
}

func (s *Source) fetchForeignKeys(ctx context.Context, ref metadata.TableRef) ([]metadata.ForeignKey, error) {
	const q = `
		SELECT column_name,
		       referenced_table_name,
		       referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema            = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_name              = ?
		  AND referenced_table_name  IS NOT NULL
		ORDER BY constraint_name, ordinal_position`

	rows, err := s.db.QueryContext(ctx, q, ref.Schema, ref.Name)
	if err != nil {
		return nil, mapError(err, "failed to fetch foreign keys")
	}
	defer rows.Close()

	var fks []metadata.ForeignKey
	for rows.Next() {
		var fk metadata.ForeignKey
		if err := rows.Scan(&fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, mapError(err, "failed to scan foreign key")
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func (s *Source) fetchIndexes(ctx context.Context, ref metadata.TableRef) ([]metadata.IndexInfo, error) {
	const q = `
		SELECT index_name,
		       column_name,
		       non_unique = 0
		FROM information_schema.statistics
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_name   = ?
		ORDER BY index_name, seq_in_index`

	rows, err := s.db.QueryContext(ctx, q, ref.Schema, ref.Name)
	if err != nil {
		return nil, mapError(err, "failed to fetch indexes")
	}
	defer rows.Close()

	// Rows arrive one per (index, column); fold them into IndexInfo
	// preserving index order and column ordinal order.
	var indexes []metadata.IndexInfo
	byName := map[string]int{}

	for rows.Next() {
		var name, column string
		var unique bool
		if err := rows.Scan(&name, &column, &unique); err != nil {
			return nil, mapError(err, "failed to scan index row")
		}
		if i, ok := byName[name]; ok {
			indexes[i].Columns = append(indexes[i].Columns, column)
			continue
		}
		byName[name] = len(indexes)
		indexes = append(indexes, metadata.IndexInfo{Name: name, Columns: []string{column}, Unique: unique})
	}
	return indexes, rows.Err()
}

// --- helpers ---

func (s *Source) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// quoteRef backtick-quotes a table reference for statements that cannot
// take placeholders (SHOW CREATE TABLE).
func quoteRef(ref metadata.TableRef) string {
	if ref.Schema == "" {
		return quoteIdent(ref.Name)
	}
	return quoteIdent(ref.Schema) + "." + quoteIdent(ref.Name)
}

func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}
