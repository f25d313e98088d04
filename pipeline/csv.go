// Package pipeline drives bulk classification of tabular name data: CSV
// in, classified CSV out, with name-column detection, batched parallel
// classification and checkpoint saves after every completed batch.
package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// Table is a minimal in-memory CSV frame. The first record of the file
// is the header; rows shorter than the header are padded with empty
// cells on read so cell access never goes out of range.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable loads a CSV file into a Table
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no data found in %s", path)
	}

	header := records[0]
	rows := records[1:]
	for i, row := range rows {
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			rows[i] = padded
		}
	}

	return &Table{Header: header, Rows: rows}, nil
}

// ColumnIndex returns the position of the named column
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, h := range t.Header {
		if h == name {
			return i, true
		}
	}
	return -1, false
}

// EnsureColumn returns the position of the named column, appending it
// (and padding every row) if it does not exist yet
func (t *Table) EnsureColumn(name string) int {
	if idx, ok := t.ColumnIndex(name); ok {
		return idx
	}

	t.Header = append(t.Header, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
	return len(t.Header) - 1
}

// WriteFile saves the table as CSV. The write is atomic: data goes to a
// temp file in the target directory, is fsynced, then renamed over the
// destination, so an interrupted save never leaves a partial file.
func (t *Table) WriteFile(path string) error {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}

	return atomicWriteFile(path, buf.Bytes(), 0644)
}

// atomicWriteFile writes data via a temp file in the same directory and
// an atomic rename. Same-directory matters: rename is only atomic
// within one filesystem.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()

	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tempPath, perm); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, absPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	success = true
	return nil
}
