package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ============================================================================
// LOADERS — File → Table
// ============================================================================
// Dispatches on file extension. CSV and JSON (array of flat objects) are
// supported; anything else is an unsupported-format error so the API layer
// can answer with a 400 instead of a read failure.
// ============================================================================

// ErrUnsupportedFormat is returned for file extensions the loader cannot read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// LoadFile reads a dataset file into a typed table.
func LoadFile(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return ReadJSON(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadCSV parses CSV content into a typed table. The first row is the
// header; malformed rows are skipped rather than failing the whole load.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, row)
	}

	return FromRows(headers, rows)
}

// ReadJSON parses a JSON array of flat objects into a typed table.
// Columns are ordered by sorted key name.
func ReadJSON(data []byte) (*Table, error) {
	var objects []map[string]any
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("parse JSON dataset: %w", err)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("JSON dataset has no records")
	}

	// Map iteration order is random — sort keys so column order is stable
	// across loads of the same file.
	seen := make(map[string]struct{})
	var headers []string
	for _, obj := range objects {
		for key := range obj {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				headers = append(headers, key)
			}
		}
	}
	sort.Strings(headers)

	rows := make([][]string, 0, len(objects))
	for _, obj := range objects {
		row := make([]string, len(headers))
		for j, key := range headers {
			row[j] = jsonCellString(obj[key])
		}
		rows = append(rows, row)
	}

	return FromRows(headers, rows)
}

func jsonCellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return formatFloat(val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}
