package postgres

import (
	"fmt"
	"strings"

	"github.com/jwkim/schemadoc/internal/metadata"
)

// renderDDL rebuilds a CREATE TABLE statement (plus index and comment
// statements) from an introspected structure. The output is meant for
// documentation, not byte-exact round-tripping of pg_dump.
func renderDDL(st *metadata.TableStructure) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CREATE TABLE %s (\n", quoteRef(st.Ref))

	lines := make([]string, 0, len(st.Columns)+1)
	for _, col := range st.Columns {
		line := fmt.Sprintf("    %s %s", quoteIdent(col.Name), col.DataType)
		if !col.Nullable {
			line += " NOT NULL"
		}
		if col.Default != nil {
			line += " DEFAULT " + *col.Default
		}
		lines = append(lines, line)
	}
	if len(st.PrimaryKey) > 0 {
		lines = append(lines, fmt.Sprintf("    PRIMARY KEY (%s)", quoteList(st.PrimaryKey)))
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n);\n")

	for _, fk := range st.ForeignKeys {
		fmt.Fprintf(&b, "ALTER TABLE %s ADD FOREIGN KEY (%s) REFERENCES %s (%s);\n",
			quoteRef(st.Ref), quoteIdent(fk.Column), quoteIdent(fk.RefTable), quoteIdent(fk.RefColumn))
	}

	for _, idx := range st.Indexes {
		// The primary key index is implied by the constraint above.
		if isPrimaryKeyIndex(idx, st.PrimaryKey) {
			continue
		}
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		fmt.Fprintf(&b, "CREATE %sINDEX %s ON %s (%s);\n",
			unique, quoteIdent(idx.Name), quoteRef(st.Ref), quoteList(idx.Columns))
	}

	if st.Comment != "" {
		fmt.Fprintf(&b, "COMMENT ON TABLE %s IS %s;\n", quoteRef(st.Ref), quoteLiteral(st.Comment))
	}
	for _, col := range st.Columns {
		if col.Comment != "" {
			fmt.Fprintf(&b, "COMMENT ON COLUMN %s.%s IS %s;\n",
				quoteRef(st.Ref), quoteIdent(col.Name), quoteLiteral(col.Comment))
		}
	}

	return b.String()
}

func isPrimaryKeyIndex(idx metadata.IndexInfo, pk []string) bool {
	if !idx.Unique || len(idx.Columns) != len(pk) {
		return false
	}
	for i := range pk {
		if idx.Columns[i] != pk[i] {
			return false
		}
	}
	return strings.HasSuffix(idx.Name, "_pkey")
}

func quoteRef(ref metadata.TableRef) string {
	if ref.Schema == "" {
		return quoteIdent(ref.Name)
	}
	return quoteIdent(ref.Schema) + "." + quoteIdent(ref.Name)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteList(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = quoteIdent(s)
	}
	return strings.Join(quoted, ", ")
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
