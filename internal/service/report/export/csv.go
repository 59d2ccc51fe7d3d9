package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// csvWriter buffers through csv.Writer; output reaches the destination once
// the buffer fills or on Close.
type csvWriter struct {
	w      *csv.Writer
	header bool
}

func newCSVWriter(w io.Writer) (*csvWriter, error) {
	return &csvWriter{w: csv.NewWriter(w)}, nil
}

func (c *csvWriter) writeHeader() error {
	if c.header {
		return nil
	}
	c.header = true
	if err := c.w.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	return nil
}

func (c *csvWriter) Write(row domain.ExportRow) error {
	if err := c.writeHeader(); err != nil {
		return err
	}
	if err := c.w.Write(record(row)); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

func (c *csvWriter) Close() error {
	if err := c.writeHeader(); err != nil {
		return err
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Abort drops whatever is still buffered.
func (c *csvWriter) Abort() {}
