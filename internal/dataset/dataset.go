// Package dataset loads historical pricing records from CSV, JSON and XLSX
// files. Every reader returns untyped records keyed by column name; typing
// happens in the trainer through the request validator.
package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupported is returned for file extensions with no reader.
var ErrUnsupported = errors.New("unsupported dataset format (use .csv, .json or .xlsx)")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads a dataset file, picking the reader by extension.
func Load(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var records []map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		records, err = ReadCSV(f)
	case ".json":
		records, err = ReadJSON(f)
	case ".xlsx":
		records, err = ReadXLSX(f)
	default:
		return nil, fmt.Errorf("%s: %w", ext, ErrUnsupported)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

// ReadCSV reads a header-first CSV document. A leading UTF-8 BOM is ignored
// and cells are kept as strings.
func ReadCSV(r io.Reader) ([]map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return fromTable(rows), nil
}

// ReadJSON accepts either a list of objects or {"rows": [...]}. Entries that
// are not objects are skipped.
func ReadJSON(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case map[string]any:
		rows, ok := v["rows"].([]any)
		if !ok {
			return nil, errors.New("json dataset must be a list of objects or {\"rows\": [...]}")
		}
		list = rows
	default:
		return nil, errors.New("json dataset must be a list of objects or {\"rows\": [...]}")
	}

	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ReadXLSX reads the first sheet of a workbook. Its first row is the header.
func ReadXLSX(r io.Reader) ([]map[string]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return fromTable(rows), nil
}

// fromTable turns a header row plus data rows into records. Blank header
// cells and fully empty rows are skipped; short rows leave keys absent.
func fromTable(rows [][]string) []map[string]any {
	if len(rows) == 0 {
		return nil
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, string(utf8BOM)))
	}

	out := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]any, len(header))
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if cell = strings.TrimSpace(cell); cell != "" {
				rec[header[i]] = cell
			}
		}
		if len(rec) > 0 {
			out = append(out, rec)
		}
	}
	return out
}
