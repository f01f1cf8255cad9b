package workbook

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/jwkim/schemadoc/internal/errs"
)

const (
	headerFill = "B7B7B7"

	minColWidth = 12
	maxColWidth = 40
)

// Write renders wb as an xlsx document onto out. Column widths are
// sized to content within [minColWidth, maxColWidth].
func Write(wb *Workbook, out io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	thin := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	boxStyle, err := f.NewStyle(&excelize.Style{Border: thin})
	if err != nil {
		return errs.Wrap(errs.ErrKindWriteFailed, "failed to register border style", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Border: thin,
		Fill:   excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Font:   &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return errs.Wrap(errs.ErrKindWriteFailed, "failed to register header style", err)
	}

	for i, sheet := range wb.Sheets() {
		if i == 0 {
			// excelize always starts with one default sheet.
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				return errs.Wrap(errs.ErrKindWriteFailed, "failed to name sheet", err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return errs.Wrap(errs.ErrKindWriteFailed, "failed to add sheet", err)
		}
		if err := writeSheet(f, sheet, boxStyle, headerStyle); err != nil {
			return err
		}
	}

	if err := f.Write(out); err != nil {
		return errs.Wrap(errs.ErrKindWriteFailed, "failed to serialize workbook", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s *Sheet, boxStyle, headerStyle int) error {
	// Border regions first so header cells can override with the full
	// header style afterwards.
	for _, rg := range s.Borders {
		from, _ := excelize.CoordinatesToCellName(rg.Col1, rg.Row1)
		to, _ := excelize.CoordinatesToCellName(rg.Col2, rg.Row2)
		if err := f.SetCellStyle(s.Name, from, to, boxStyle); err != nil {
			return errs.Wrap(errs.ErrKindWriteFailed, "failed to apply borders", err)
		}
	}

	maxRow, maxCol := s.Dims()
	widths := make([]int, maxCol+1)

	for row := 1; row <= maxRow; row++ {
		for col := 1; col <= maxCol; col++ {
			cell, ok := s.Cell(row, col)
			if !ok {
				continue
			}
			name, _ := excelize.CoordinatesToCellName(col, row)
			if err := f.SetCellValue(s.Name, name, cell.Value); err != nil {
				return errs.Wrap(errs.ErrKindWriteFailed, "failed to set cell", err)
			}
			if cell.Style == StyleHeader {
				if err := f.SetCellStyle(s.Name, name, name, headerStyle); err != nil {
					return errs.Wrap(errs.ErrKindWriteFailed, "failed to style cell", err)
				}
			}
			if n := len(fmt.Sprint(cell.Value)); n > widths[col] {
				widths[col] = n
			}
		}
	}

	for _, rg := range s.Merges {
		from, _ := excelize.CoordinatesToCellName(rg.Col1, rg.Row1)
		to, _ := excelize.CoordinatesToCellName(rg.Col2, rg.Row2)
		if err := f.MergeCell(s.Name, from, to); err != nil {
			return errs.Wrap(errs.ErrKindWriteFailed, "failed to merge cells", err)
		}
	}

	for col := 1; col <= maxCol; col++ {
		w := widths[col] + 2
		if w < minColWidth {
			w = minColWidth
		} else if w > maxColWidth {
			w = maxColWidth
		}
		name, _ := excelize.ColumnNumberToName(col)
		if err := f.SetColWidth(s.Name, name, name, float64(w)); err != nil {
			return errs.Wrap(errs.ErrKindWriteFailed, "failed to size column", err)
		}
	}
	return nil
}
