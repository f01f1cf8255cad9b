package workbook

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jwkim/schemadoc/internal/metadata"
)

func sampleStructure() *metadata.TableStructure {
	def := "0"
	return &metadata.TableStructure{
		Ref:     metadata.TableRef{Schema: "shop", Name: "orders"},
		Comment: "customer orders",
		Columns: []metadata.ColumnInfo{
			{Name: "id", DataType: "bigint", Nullable: false, Key: "PRI", Comment: "order id"},
			{Name: "customer_id", DataType: "bigint", Nullable: false, Key: "MUL"},
			{Name: "qty", DataType: "int", Nullable: true, Default: &def},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []metadata.ForeignKey{
			{Column: "customer_id", RefTable: "customers", RefColumn: "id"},
		},
		Indexes: []metadata.IndexInfo{
			{Name: "idx_customer", Columns: []string{"customer_id"}, Unique: false},
		},
	}
}

func cellValue(t *testing.T, s *Sheet, row, col int) any {
	t.Helper()
	c, ok := s.Cell(row, col)
	require.True(t, ok, "expected a cell at (%d,%d)", row, col)
	return c.Value
}

func TestBuilder_ListingSheet(t *testing.T) {
	b := NewBuilder()
	b.Add(sampleStructure())

	sheets := b.Workbook().Sheets()
	require.Len(t, sheets, 2)
	listing := sheets[0]
	assert.Equal(t, ListingSheetName, listing.Name)

	assert.Equal(t, "NN", cellValue(t, listing, 1, 1))
	assert.Equal(t, "Table Name", cellValue(t, listing, 1, 2))
	assert.Equal(t, "Description", cellValue(t, listing, 1, 3))

	assert.Equal(t, 1, cellValue(t, listing, 2, 1))
	assert.Equal(t, "orders", cellValue(t, listing, 2, 2))
	assert.Equal(t, "customer orders", cellValue(t, listing, 2, 3))

	header, _ := listing.Cell(1, 2)
	assert.Equal(t, StyleHeader, header.Style)
	body, _ := listing.Cell(2, 2)
	assert.Equal(t, StyleNone, body.Style)

	require.Len(t, listing.Borders, 1)
	assert.Equal(t, Range{Row1: 1, Col1: 1, Row2: 2, Col2: 3}, listing.Borders[0])
}

func TestBuilder_DefinitionBlock(t *testing.T) {
	b := NewBuilder()
	b.Add(sampleStructure())

	defs := b.Workbook().Sheets()[1]
	assert.Equal(t, DefinitionSheetName, defs.Name)

	// Banner row merged across the block.
	assert.Equal(t, "Table Definition", cellValue(t, defs, 1, 2))
	require.Len(t, defs.Merges, 1)
	assert.Equal(t, Range{Row1: 1, Col1: 2, Row2: 1, Col2: 8}, defs.Merges[0])

	assert.Equal(t, "Table Name", cellValue(t, defs, 2, 2))
	assert.Equal(t, "orders", cellValue(t, defs, 2, 3))
	assert.Equal(t, "Description", cellValue(t, defs, 4, 2))
	assert.Equal(t, "customer orders", cellValue(t, defs, 4, 3))
	assert.Equal(t, "Primary Key", cellValue(t, defs, 5, 2))
	assert.Equal(t, "id", cellValue(t, defs, 5, 3))
	assert.Equal(t, "Foreign Key", cellValue(t, defs, 6, 2))
	assert.Equal(t, "customer_id->customers(id)", cellValue(t, defs, 6, 3))

	// Index table under the "Index info #1" label.
	assert.Equal(t, "Index info #1", cellValue(t, defs, 7, 2))
	assert.Equal(t, "Index Name", cellValue(t, defs, 8, 2))
	assert.Equal(t, "idx_customer", cellValue(t, defs, 9, 2))
	assert.Equal(t, "customer_id", cellValue(t, defs, 9, 3))
	assert.Equal(t, false, cellValue(t, defs, 9, 4))

	// Column table: ordinal, physical name, logical name, type, NN, key.
	assert.Equal(t, "NN", cellValue(t, defs, 10, 2))
	assert.Equal(t, 1, cellValue(t, defs, 11, 2))
	assert.Equal(t, "id", cellValue(t, defs, 11, 3))
	assert.Equal(t, "order id", cellValue(t, defs, 11, 4))
	assert.Equal(t, "bigint", cellValue(t, defs, 11, 5))
	assert.Equal(t, "NN", cellValue(t, defs, 11, 6))
	assert.Equal(t, "PK", cellValue(t, defs, 11, 7))
	assert.Equal(t, "0", cellValue(t, defs, 13, 8))

	// The block is one border region covering rows 1..13.
	require.Len(t, defs.Borders, 1)
	assert.Equal(t, Range{Row1: 1, Col1: 2, Row2: 13, Col2: 8}, defs.Borders[0])
}

func TestBuilder_BlocksAreSeparated(t *testing.T) {
	b := NewBuilder()
	b.Add(sampleStructure())
	first := b.Workbook().Sheets()[1].Borders[0]

	b.Add(sampleStructure())
	defs := b.Workbook().Sheets()[1]
	require.Len(t, defs.Borders, 2)

	// Two blank rows between blocks.
	assert.Equal(t, first.Row2+3, defs.Borders[1].Row1)
	assert.Equal(t, 2, b.Tables())
}

func TestWrite_RoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Add(sampleStructure())

	var buf bytes.Buffer
	require.NoError(t, Write(b.Workbook(), &buf))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ListingSheetName, DefinitionSheetName}, f.GetSheetList())

	got, err := f.GetCellValue(ListingSheetName, "B2")
	require.NoError(t, err)
	assert.Equal(t, "orders", got)

	got, err = f.GetCellValue(DefinitionSheetName, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Table Definition", got)

	got, err = f.GetCellValue(DefinitionSheetName, "C11")
	require.NoError(t, err)
	assert.Equal(t, "id", got)
}
