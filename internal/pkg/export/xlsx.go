package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
)

const (
	SummarySheet = "Übersicht"
	DetailSheet  = "Details"
)

// XLSX renders a workbook with the summary table and the range details.
func XLSX(report absence.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if _, err := f.NewSheet(DetailSheet); err != nil {
		return nil, fmt.Errorf("failed to create detail sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	// Built-in number format 2 is "0.00"
	averageStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, err
	}

	header := SummaryHeader(report)
	if err := writeHeader(f, SummarySheet, header, headerStyle); err != nil {
		return nil, err
	}

	for i, row := range SummaryRows(report) {
		values := make([]interface{}, len(row))
		for j, c := range row {
			switch c.kind {
			case intCell:
				values[j] = c.Int
			case floatCell:
				values[j] = c.Float
			default:
				values[j] = c.Text
			}
		}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SummarySheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write summary row: %w", err)
		}

		for j, c := range row {
			if c.kind != floatCell {
				continue
			}
			avgCell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := f.SetCellStyle(SummarySheet, avgCell, avgCell, averageStyle); err != nil {
				return nil, err
			}
		}
	}

	if err := writeHeader(f, DetailSheet, DetailHeader, headerStyle); err != nil {
		return nil, err
	}
	for i, row := range DetailRows(report) {
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(DetailSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write detail row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, header []string, style int) error {
	values := make([]interface{}, len(header))
	for i, h := range header {
		values[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &values); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
