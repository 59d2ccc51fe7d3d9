package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// excelWriter streams rows into a single worksheet. excelize spills rows to
// a temporary file past its in-memory threshold; the workbook is written to
// the destination on Close.
type excelWriter struct {
	dst  io.Writer
	file *excelize.File
	sw   *excelize.StreamWriter
	next int
}

func newExcelWriter(w io.Writer) (*excelWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open stream writer: %w", err)
	}

	x := &excelWriter{dst: w, file: f, sw: sw, next: 1}
	if err := x.setRow(toCells(Header)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}
	return x, nil
}

func (x *excelWriter) Write(row domain.ExportRow) error {
	cells := toCells(record(row))
	// Counts are stored as numbers so that spreadsheet formulas work on them.
	cells[5] = row.PatientCount
	cells[6] = row.NewPatients
	cells[7] = row.FollowupPatients
	cells[8] = row.DNACount
	cells[10] = row.IsDraft

	if err := x.setRow(cells); err != nil {
		return fmt.Errorf("write xlsx row %d: %w", x.next-1, err)
	}
	return nil
}

func (x *excelWriter) Close() error {
	defer func() { _ = x.file.Close() }()

	if err := x.sw.Flush(); err != nil {
		return fmt.Errorf("flush xlsx stream: %w", err)
	}
	if err := x.file.Write(x.dst); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func (x *excelWriter) setRow(cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, x.next)
	if err != nil {
		return err
	}
	if err := x.sw.SetRow(cell, cells); err != nil {
		return err
	}
	x.next++
	return nil
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

// Abort releases the workbook without writing it.
func (x *excelWriter) Abort() {
	_ = x.file.Close()
}
