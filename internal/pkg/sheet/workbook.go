package sheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
)

// ParseWorkbook reads the first sheet of an XLSX workbook that carries the
// required headers. Date and time cells are rendered back into the text form
// the delimited exports use.
func ParseWorkbook(r io.Reader) ([]absence.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", absence.ErrUnsupportedFormat, err)
	}
	defer f.Close()

	for _, name := range f.GetSheetList() {
		table, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
		}

		rows, err := rowsFromTable(table)
		if errors.Is(err, absence.ErrMissingHeaders) {
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			fixSerial(row, absence.HeaderStartDate, "02.01.2006")
			fixSerial(row, absence.HeaderStartTime, "15:04")
			fixSerial(row, absence.HeaderEndTime, "15:04")
		}
		return rows, nil
	}

	return nil, absence.ErrMissingHeaders
}

// fixSerial replaces an Excel serial number with its formatted value.
// Cells that already hold text are left alone.
func fixSerial(row absence.RawRow, header, layout string) {
	value := strings.TrimSpace(row[header])
	if value == "" {
		return
	}

	serial, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return
	}

	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return
	}
	row[header] = t.Round(time.Second).Format(layout)
}
