package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TimeFormat is the timestamp layout used in every table column that holds a
// date+time value.
const TimeFormat = "2006-01-02 15:04:05"

// schemaVersion is written as a comment line ahead of the header row so that
// future format changes can be detected. Readers skip any line starting
// with '#', so files created before versioning still scan cleanly.
const schemaVersion = "#v1"

// Table is a single flat-file table: one header row followed by data rows,
// CSV-encoded. Appends go straight to the end of the file; point updates
// rewrite the file through a temp file. A single mutex serializes readers
// and writers, so concurrent callers never observe a half-written file.
//
// Open does not verify that an existing file's header matches the expected
// one; a table opened over a file with a different schema will happily scan
// misaligned rows.
type Table struct {
	path    string
	headers []string
	mu      sync.Mutex
}

// Open prepares a table at path, creating the file with the schema version
// line and header row if it does not exist yet.
func Open(path string, headers []string) (*Table, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure table dir: %w", err)
		}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeRows(path, headers, nil, nil); err != nil {
			return nil, fmt.Errorf("init table file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat table file: %w", err)
	}
	return &Table{path: path, headers: headers}, nil
}

// Headers returns the column names the table was opened with.
func (t *Table) Headers() []string { return t.headers }

// Path returns the backing file path.
func (t *Table) Path() string { return t.path }

// Append writes one data row to the end of the file. The row should have as
// many fields as the header; this is not enforced, readers tolerate ragged
// rows.
func (t *Table) Append(row []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open append: %w", err)
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
		}
	}(f)
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush row: %w", err)
	}
	return nil
}

// Scan returns all data rows in file order, oldest first. The version
// comment and header row are skipped. A missing file yields no rows rather
// than an error.
func (t *Table) Scan() ([][]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, rows, err := t.readAll()
	return rows, err
}

// FindAndUpdate looks for the first row whose keyCol equals key and applies
// the column mutations to it, then rewrites the file. It reports whether a
// matching row was found.
func (t *Table) FindAndUpdate(keyCol int, key string, mutations map[int]string) (bool, error) {
	return t.UpdateRow(keyCol, key, func(row []string) []string {
		for col, val := range mutations {
			for len(row) <= col {
				row = append(row, "")
			}
			row[col] = val
		}
		return row
	})
}

// UpdateRow is the general form of FindAndUpdate: fn receives the first row
// whose keyCol equals key and returns its replacement. The read and the
// rewrite happen under one lock, so read-modify sequences (appending to a
// notes column, say) cannot interleave with another writer.
func (t *Table) UpdateRow(keyCol int, key string, fn func(row []string) []string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	header, rows, err := t.readAll()
	if err != nil {
		return false, err
	}
	found := false
	for i, row := range rows {
		if keyCol < len(row) && row[keyCol] == key {
			rows[i] = fn(row)
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	if len(header) == 0 {
		header = t.headers
	}
	tmp := t.path + ".tmp"
	if err := writeRows(tmp, header, rows, nil); err != nil {
		return false, fmt.Errorf("rewrite table: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return false, fmt.Errorf("replace table file: %w", err)
	}
	return true, nil
}

// readAll reads the whole file, returning the header row (first non-comment
// record) and the data rows. Caller must hold t.mu.
func (t *Table) readAll() ([]string, [][]string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("open read: %w", err)
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
		}
	}(f)

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var header []string
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return header, rows, fmt.Errorf("read record: %w", err)
		}
		if len(rec) > 0 && strings.HasPrefix(rec[0], "#") {
			continue
		}
		if header == nil {
			header = rec
			continue
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

// WriteSnapshot materializes a new table-shaped file: version line, header,
// data rows and an optional trailer block separated from the data by a blank
// line. Exports use it to produce independent files of the same shape as the
// live stores.
func WriteSnapshot(path string, headers []string, rows [][]string, trailer [][]string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure export dir: %w", err)
		}
	}
	return writeRows(path, headers, rows, trailer)
}

func writeRows(path string, headers []string, rows [][]string, trailer [][]string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open write: %w", err)
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
		}
	}(f)

	if _, err := io.WriteString(f, schemaVersion+"\n"); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if len(trailer) > 0 {
		if _, err := io.WriteString(f, "\n"); err != nil {
			return fmt.Errorf("write separator: %w", err)
		}
		tw := csv.NewWriter(f)
		for _, row := range trailer {
			if err := tw.Write(row); err != nil {
				return fmt.Errorf("write trailer: %w", err)
			}
		}
		tw.Flush()
		if err := tw.Error(); err != nil {
			return fmt.Errorf("flush trailer: %w", err)
		}
	}
	return nil
}
