// Package postgres implements metadata.Source for PostgreSQL, reading
// pg_catalog and information_schema over a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jwkim/schemadoc/internal/errs"
	"github.com/jwkim/schemadoc/internal/metadata"
)

// Source is a PostgreSQL implementation of metadata.Source backed by
// pgxpool. The pool tolerates concurrent queries, so it advertises
// ConcurrencySafe.
type Source struct {
	pool         *pgxpool.Pool
	schema       string
	queryTimeout time.Duration
}

var _ metadata.Source = (*Source)(nil)

// ConcurrencySafe marks the source as safe for concurrent use.
func (s *Source) ConcurrencySafe() {}

// New connects to PostgreSQL using the provided Config and returns a
// Source. It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *metadata.Config) (*Source, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create connection pool", err)
	}

	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}

	s := &Source{pool: pool, schema: schema, queryTimeout: cfg.QueryTimeout}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// --- metadata.Source implementation ---

func (s *Source) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (s *Source) Close() {
	s.pool.Close()
}

func (s *Source) ListTables(ctx context.Context) ([]metadata.TableMeta, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const q = `
		SELECT n.nspname,
		       c.relname,
		       COALESCE(obj_description(c.oid, 'pg_class'), '')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind = 'r'
		  AND n.nspname = $1
		ORDER BY c.relname`

	rows, err := s.pool.Query(ctx, q, s.schema)
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

	ref = s.qualify(ref)

	comment, err := s.fetchTableComment(ctx, ref)
	if err != nil {
		return nil, err
	}

	columns, err := s.fetchColumns(ctx, ref)
	if err != nil {
		return nil, err
	}

	pks, err := s.fetchPrimaryKey(ctx, ref)
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

	markKeys(columns, pks, fks)

	return &metadata.TableStructure{
		Ref:         ref,
		Comment:     comment,
		Columns:     columns,
		PrimaryKey:  pks,
		ForeignKeys: fks,
		Indexes:     indexes,
	}, nil
}

// GenerateDDL synthesizes a CREATE TABLE statement from the catalog.
// Postgres has no SHOW CREATE TABLE, so the statement is rebuilt from
// the introspected structure; see ddl.go.
func (s *Source) GenerateDDL(ctx context.Context, ref metadata.TableRef) (string, error) {
	st, err := s.DescribeTable(ctx, ref)
	if err != nil {
		return "", err
	}
	return renderDDL(st), nil
}

// --- catalog queries ---

func (s *Source) fetchTableComment(ctx context.Context, ref metadata.TableRef) (string, error) {
	const q = `
		SELECT COALESCE(obj_description(c.oid, 'pg_class'), '')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind = 'r'
		  AND n.nspname = $1
		  AND c.relname = $2`

	var comment string
	err := s.pool.QueryRow(ctx, q, ref.Schema, ref.Name).Scan(&comment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.New(errs.ErrKindNotFound, fmt.Sprintf("table %s not found", ref))
		}
		return "", mapError(err, "failed to fetch table comment")
	}
	return comment, nil
}

func (s *Source) fetchColumns(ctx context.Context, ref metadata.TableRef) ([]metadata.ColumnInfo, error) {
	const q = `
		SELECT a.attname,
		       format_type(a.atttypid, a.atttypmod),
		       NOT a.attnotnull,
		       pg_get_expr(ad.adbin, ad.adrelid),
		       COALESCE(col_description(a.attrelid, a.attnum), '')
		FROM pg_attribute a
		JOIN pg_class c     ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_attrdef ad ON ad.adrelid = a.attrelid AND ad.adnum = a.attnum
		WHERE n.nspname = $1
		  AND c.relname = $2
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum`

	rows, err := s.pool.Query(ctx, q, ref.Schema, ref.Name)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	var cols []metadata.ColumnInfo
	for rows.Next() {
		var c metadata.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable, &c.Default, &c.Comment); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (s *Source) fetchPrimaryKey(ctx context.Context, ref metadata.TableRef) ([]string, error) {
	const q = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema    = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema    = $1
		  AND tc.table_name      = $2
		ORDER BY kcu.ordinal_position`

	rows, err := s.pool.Query(ctx, q, ref.Schema, ref.Name)
	if err != nil {
		return nil, mapError(err, "failed to fetch primary key")
	}
	defer rows.Close()

	var pks []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapError(err, "failed to scan primary key column")
		}
		pks = append(pks, name)
	}
	return pks, rows.Err()
}

func (s *Source) fetchForeignKeys(ctx context.Context, ref metadata.TableRef) ([]metadata.ForeignKey, error) {
	const q = `
		SELECT kcu.column_name,
		       ccu.table_name  AS ref_table,
		       ccu.column_name AS ref_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema    = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name
		 AND tc.table_schema    = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema    = $1
		  AND tc.table_name      = $2
		ORDER BY tc.constraint_name`

	rows, err := s.pool.Query(ctx, q, ref.Schema, ref.Name)
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
		SELECT i.relname,
		       a.attname,
		       ix.indisunique
		FROM pg_index ix
		JOIN pg_class i     ON i.oid = ix.indexrelid
		JOIN pg_class t     ON t.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1
		  AND t.relname = $2
		ORDER BY i.relname, k.ord`

	rows, err := s.pool.Query(ctx, q, ref.Schema, ref.Name)
	if err != nil {
		return nil, mapError(err, "failed to fetch indexes")
	}
	defer rows.Close()

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

func (s *Source) qualify(ref metadata.TableRef) metadata.TableRef {
	if ref.Schema == "" {
		ref.Schema = s.schema
	}
	return ref
}

// markKeys fills ColumnInfo.Key with the MySQL-style PRI/MUL markers the
// rest of the system renders, so both engines present uniformly.
func markKeys(cols []metadata.ColumnInfo, pks []string, fks []metadata.ForeignKey) {
	pkSet := toSet(pks)
	fkSet := make(map[string]bool, len(fks))
	for _, fk := range fks {
		fkSet[fk.Column] = true
	}
	for i := range cols {
		switch {
		case pkSet[cols[i].Name]:
			cols[i].Key = "PRI"
		case fkSet[cols[i].Name]:
			cols[i].Key = "MUL"
		}
	}
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}
