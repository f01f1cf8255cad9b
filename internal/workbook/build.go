package workbook

import (
	"fmt"
	"strings"

	"github.com/jwkim/schemadoc/internal/metadata"
)

const (
	// ListingSheetName holds one row per exported table.
	ListingSheetName = "Table List"

	// DefinitionSheetName holds one block per exported table.
	DefinitionSheetName = "Table Definitions"

	blockFirstCol = 2
	blockLastCol  = 8
)

// Builder assembles the export document one table at a time: each Add
// appends a row to the listing sheet and a definition block to the
// definitions sheet, then the structure can be released. Tables appear
// in the order they are added.
type Builder struct {
	wb      *Workbook
	listing *Sheet
	defs    *Sheet
	count   int
	cursor  int // next free row on the definitions sheet
}

// NewBuilder creates a builder with the listing header already in place.
func NewBuilder() *Builder {
	wb := New()

	listing := wb.AddSheet(ListingSheetName)
	listing.SetStyled(1, 1, "NN", StyleHeader)
	listing.SetStyled(1, 2, "Table Name", StyleHeader)
	listing.SetStyled(1, 3, "Description", StyleHeader)
	listing.Borders = []Range{{Row1: 1, Col1: 1, Row2: 1, Col2: 3}}

	return &Builder{
		wb:      wb,
		listing: listing,
		defs:    wb.AddSheet(DefinitionSheetName),
		cursor:  1,
	}
}

// Tables returns how many tables have been added.
func (b *Builder) Tables() int { return b.count }

// Workbook returns the document built so far.
func (b *Builder) Workbook() *Workbook { return b.wb }

// Add appends st to both sheets.
func (b *Builder) Add(st *metadata.TableStructure) {
	b.count++

	row := b.count + 1
	b.listing.Set(row, 1, b.count)
	b.listing.Set(row, 2, st.Ref.Name)
	b.listing.Set(row, 3, st.Comment)
	b.listing.Borders[0].Row2 = row

	b.addDefinitionBlock(st)
}

// addDefinitionBlock lays one table's block onto the definitions sheet:
// a merged banner, the name/comment/key rows, the index table, then the
// column table. The block gets its own border region; two blank rows
// separate it from the next.
func (b *Builder) addDefinitionBlock(st *metadata.TableStructure) {
	start := b.cursor
	r := start

	b.defs.SetStyled(r, blockFirstCol, "Table Definition", StyleHeader)
	b.defs.Merges = append(b.defs.Merges, Range{Row1: r, Col1: blockFirstCol, Row2: r, Col2: blockLastCol})
	r++

	pairs := []struct{ label, value string }{
		{"Table Name", st.Ref.Name},
		{"Table ID", st.Ref.Name},
		{"Description", st.Comment},
		{"Primary Key", strings.Join(st.PrimaryKey, ",")},
		{"Foreign Key", foreignKeyList(st.ForeignKeys)},
	}
	for _, p := range pairs {
		b.defs.Set(r, blockFirstCol, p.label)
		b.defs.Set(r, blockFirstCol+1, p.value)
		r++
	}

	b.defs.Set(r, blockFirstCol, "Index info #1")
	r++
	if len(st.Indexes) > 0 {
		for i, h := range []string{"Index Name", "Columns", "Unique"} {
			b.defs.SetStyled(r, blockFirstCol+i, h, StyleHeader)
		}
		r++
		for _, ix := range st.Indexes {
			b.defs.Set(r, blockFirstCol, ix.Name)
			b.defs.Set(r, blockFirstCol+1, strings.Join(ix.Columns, ","))
			b.defs.Set(r, blockFirstCol+2, ix.Unique)
			r++
		}
	} else {
		r++
	}

	for i, h := range []string{"NN", "Physical Name", "Logical Name", "Data Type", "Null", "Key", "Default"} {
		b.defs.SetStyled(r, blockFirstCol+i, h, StyleHeader)
	}
	r++
	for i, col := range st.Columns {
		null := ""
		if !col.Nullable {
			null = "NN"
		}
		key := col.Key
		if key == "PRI" {
			key = "PK"
		}
		def := ""
		if col.Default != nil {
			def = *col.Default
		}
		b.defs.Set(r, blockFirstCol, i+1)
		b.defs.Set(r, blockFirstCol+1, col.Name)
		b.defs.Set(r, blockFirstCol+2, col.Comment)
		b.defs.Set(r, blockFirstCol+3, col.DataType)
		b.defs.Set(r, blockFirstCol+4, null)
		b.defs.Set(r, blockFirstCol+5, key)
		b.defs.Set(r, blockFirstCol+6, def)
		r++
	}

	b.defs.Borders = append(b.defs.Borders, Range{Row1: start, Col1: blockFirstCol, Row2: r - 1, Col2: blockLastCol})
	b.cursor = r + 2
}

func foreignKeyList(fks []metadata.ForeignKey) string {
	if len(fks) == 0 {
		return ""
	}
	parts := make([]string, len(fks))
	for i, fk := range fks {
		parts[i] = fmt.Sprintf("%s->%s(%s)", fk.Column, fk.RefTable, fk.RefColumn)
	}
	return strings.Join(parts, ", ")
}
