// Package workbook builds the export document: a small in-memory sheet
// model assembled incrementally as structures arrive, rendered to xlsx
// only at write time. Styling is carried as data on the cells; what a
// style looks like is the writer's business.
package workbook

// Style names the fixed looks a cell can take.
type Style int

const (
	StyleNone   Style = iota
	StyleHeader // banded, bold, centered
)

// Cell is one grid cell: a value plus its style.
type Cell struct {
	Value any
	Style Style
}

// Range is a 1-based inclusive rectangle of cells.
type Range struct {
	Row1, Col1 int
	Row2, Col2 int
}

// Sheet is a sparse grid of cells. Rows and columns are 1-based.
type Sheet struct {
	Name string

	// Merges are cell ranges merged into one.
	Merges []Range

	// Borders are regions where every cell gets a thin box.
	Borders []Range

	cells  map[[2]int]Cell
	maxRow int
	maxCol int
}

// Set places an unstyled value at (row, col).
func (s *Sheet) Set(row, col int, v any) {
	s.SetStyled(row, col, v, StyleNone)
}

// SetStyled places a styled value at (row, col).
func (s *Sheet) SetStyled(row, col int, v any, st Style) {
	if s.cells == nil {
		s.cells = make(map[[2]int]Cell)
	}
	s.cells[[2]int{row, col}] = Cell{Value: v, Style: st}
	if row > s.maxRow {
		s.maxRow = row
	}
	if col > s.maxCol {
		s.maxCol = col
	}
}

// Cell returns the cell at (row, col) and whether one was set.
func (s *Sheet) Cell(row, col int) (Cell, bool) {
	c, ok := s.cells[[2]int{row, col}]
	return c, ok
}

// Dims returns the highest populated row and column.
func (s *Sheet) Dims() (rows, cols int) {
	return s.maxRow, s.maxCol
}

// Workbook is an ordered collection of sheets.
type Workbook struct {
	sheets []*Sheet
}

// New creates an empty workbook.
func New() *Workbook {
	return &Workbook{}
}

// AddSheet appends a new named sheet and returns it.
func (w *Workbook) AddSheet(name string) *Sheet {
	s := &Sheet{Name: name}
	w.sheets = append(w.sheets, s)
	return s
}

// Sheets returns the sheets in insertion order.
func (w *Workbook) Sheets() []*Sheet {
	return w.sheets
}
