// Package export renders clinic data as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// Writer appends rows to the sheets of a workbook.
type Writer interface {
	// AddSheet starts a new sheet and makes it current.
	AddSheet(name string) error

	// WriteHeader writes a bold header row and freezes it.
	WriteHeader(columns []string) error

	WriteRow(row []any) error

	// Save writes the workbook to w.
	Save(w io.Writer) error

	Close() error
}

// ExcelWriter implements Writer with excelize.
type ExcelWriter struct {
	file  *excelize.File
	sheet string
	row   int
	bold  int
}

func NewExcelWriter() *ExcelWriter {
	return &ExcelWriter{file: excelize.NewFile()}
}

func (w *ExcelWriter) AddSheet(name string) error {
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}

	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet to %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.sheet = name
	w.row = 1
	return nil
}

func (w *ExcelWriter) WriteHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	start := w.row
	if err := w.WriteRow(row); err != nil {
		return err
	}

	if w.bold == 0 {
		style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		w.bold = style
	}
	first, _ := excelize.CoordinatesToCellName(1, start)
	last, _ := excelize.CoordinatesToCellName(max(len(columns), 1), start)
	if err := w.file.SetCellStyle(w.sheet, first, last, w.bold); err != nil {
		return err
	}

	return w.file.SetPanes(w.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      start,
		TopLeftCell: fmt.Sprintf("A%d", start+1),
		ActivePane:  "bottomLeft",
	})
}

func (w *ExcelWriter) WriteRow(row []any) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}

	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", w.row, err)
	}
	w.row++
	return nil
}

func (w *ExcelWriter) Save(out io.Writer) error {
	return w.file.Write(out)
}

func (w *ExcelWriter) Close() error {
	return w.file.Close()
}
