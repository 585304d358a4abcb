// Package sheet reads absence exports into raw rows. It understands tab, comma
// and semicolon delimited text as well as XLSX workbooks, and locates the
// header row by the presence of the required column names.
package sheet

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
)

// zipMagic starts every XLSX file.
var zipMagic = []byte("PK\x03\x04")

// Parse reads an uploaded export. The format is taken from the file extension,
// falling back to content sniffing for renamed workbooks.
func Parse(r io.Reader, fileName string) ([]absence.RawRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	if IsWorkbook(fileName, data) {
		return ParseWorkbook(bytes.NewReader(data))
	}
	return ParseDelimited(data)
}

// IsWorkbook reports whether the upload is an XLSX workbook.
func IsWorkbook(fileName string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(fileName), ".xlsx") {
		return true
	}
	return bytes.HasPrefix(data, zipMagic)
}

// rowsFromTable turns a cell grid into rows keyed by the detected header row.
// Lines above the header (report titles, export timestamps) are ignored, as are
// blank lines below it.
func rowsFromTable(table [][]string) ([]absence.RawRow, error) {
	headerIdx := -1
	for i, line := range table {
		if hasRequiredHeaders(line) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, absence.ErrMissingHeaders
	}

	header := make([]string, len(table[headerIdx]))
	for i, h := range table[headerIdx] {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]absence.RawRow, 0, len(table)-headerIdx-1)
	for _, line := range table[headerIdx+1:] {
		if isBlank(line) {
			continue
		}
		row := make(absence.RawRow, len(header))
		for i, name := range header {
			if name == "" || i >= len(line) {
				continue
			}
			row[name] = line[i]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func hasRequiredHeaders(line []string) bool {
	seen := make(map[string]bool, len(line))
	for _, cell := range line {
		seen[strings.TrimSpace(cell)] = true
	}
	for _, h := range absence.RequiredHeaders {
		if !seen[h] {
			return false
		}
	}
	return true
}

func isBlank(line []string) bool {
	for _, cell := range line {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
