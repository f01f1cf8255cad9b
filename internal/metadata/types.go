package metadata

import "fmt"

// TableRef identifies a table within a schema (or database, for engines
// that use the terms interchangeably). It is the coalescing and
// cancellation key for the whole pipeline, so it must stay comparable.
type TableRef struct {
	Schema string
	Name   string
}

func (r TableRef) String() string {
	if r.Schema == "" {
		return r.Name
	}
	return fmt.Sprintf("%s.%s", r.Schema, r.Name)
}

// TableMeta is a table reference plus its comment, as returned by
// ListTables. The comment rides along so list views can show
// "name / comment" without a per-table round trip.
type TableMeta struct {
	Ref     TableRef
	Comment string
}

// ColumnInfo describes a single column in a table.
type ColumnInfo struct {
	Name     string
	DataType string  // engine-native type: varchar(64), int4, timestamptz, …
	Nullable bool
	Default  *string // nil if no default
	Key      string  // PRI, UNI, MUL or "" (MySQL convention, mapped for other engines)
	Extra    string  // auto_increment etc.; "" when the engine has no equivalent
	Comment  string
}

// IndexInfo describes one index on a table.
type IndexInfo struct {
	Name    string
	Columns []string // in index ordinal order
	Unique  bool
}

// ForeignKey describes a single-column FK relationship.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// TableStructure is the full introspected structure of one table.
// It is produced once per job target and never mutated afterwards;
// ownership passes to whichever consumer receives it last.
type TableStructure struct {
	Ref         TableRef
	Comment     string
	Columns     []ColumnInfo
	PrimaryKey  []string // column names, in key ordinal order
	ForeignKeys []ForeignKey
	Indexes     []IndexInfo
}
