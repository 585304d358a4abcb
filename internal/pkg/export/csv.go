package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
)

// utf8BOM makes spreadsheet applications detect UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSV renders the summary table with ';' as separator.
func CSV(report absence.Report) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	w.Comma = ';'
	w.UseCRLF = true

	if err := w.Write(SummaryHeader(report)); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, row := range SummaryRows(report) {
		record := make([]string, len(row))
		for i, c := range row {
			record[i] = c.String()
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	return buf.Bytes(), nil
}
