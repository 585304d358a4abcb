// Package export renders absence reports as CSV or XLSX tables for the
// German spreadsheet locale.
package export

import (
	"strconv"
	"strings"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
)

// Cell is one value of the summary table. Average cells are rendered with
// two decimals.
type Cell struct {
	Text  string
	Int   int
	Float float64
	kind  cellKind
}

type cellKind int

const (
	textCell cellKind = iota
	intCell
	floatCell
)

func text(s string) Cell { return Cell{Text: s, kind: textCell} }

func number(n int) Cell { return Cell{Int: n, kind: intCell} }

func average(f float64) Cell { return Cell{Float: f, kind: floatCell} }

// String renders the cell the way a German spreadsheet expects it.
func (c Cell) String() string {
	switch c.kind {
	case intCell:
		return strconv.Itoa(c.Int)
	case floatCell:
		return FormatDecimal(c.Float)
	default:
		return c.Text
	}
}

// FormatDecimal formats f with two decimals and a decimal comma.
func FormatDecimal(f float64) string {
	return strings.Replace(strconv.FormatFloat(f, 'f', 2, 64), ".", ",", 1)
}

// SummaryHeader lists the summary columns for the report's rolling weeks.
func SummaryHeader(report absence.Report) []string {
	header := []string{
		"Klasse",
		"Schüler",
		"Verspätungen entsch.",
		"Verspätungen unentsch.",
		"Verspätungen offen",
		"Fehlzeiten entsch.",
		"Fehlzeiten unentsch.",
		"Fehlzeiten offen",
		"Schuljahr " + report.SchoolYear.Label() + " Verspätungen unentsch.",
		"Schuljahr " + report.SchoolYear.Label() + " Fehlzeiten unentsch.",
	}

	weeks := strconv.Itoa(len(report.Weeks))
	for _, kind := range []string{"Verspätungen", "Fehlzeiten"} {
		header = append(header, kind+" letzte "+weeks+" Wochen")
		for _, w := range report.Weeks {
			header = append(header, kind+" "+w.Label())
		}
		header = append(header, "Ø "+kind+" pro Woche")
	}
	return header
}

// SummaryRows builds one row per student in report.Students order.
func SummaryRows(report absence.Report) [][]Cell {
	rows := make([][]Cell, 0, len(report.Students))
	for _, key := range report.Students {
		stats := report.RangeStats[key]
		if stats == nil {
			continue
		}

		row := []Cell{
			text(stats.ClassName),
			text(key),
			number(stats.Tardiness.Excused),
			number(stats.Tardiness.Unexcused),
			number(stats.Tardiness.Open),
			number(stats.Absence.Excused),
			number(stats.Absence.Unexcused),
			number(stats.Absence.Open),
		}

		var sy absence.SchoolYearStats
		if s, ok := report.SchoolYearStats[key]; ok {
			sy = *s
		}
		row = append(row, number(sy.UnexcusedTardiness), number(sy.UnexcusedAbsence))

		rolling := absence.NewRollingStats(stats.ClassName, len(report.Weeks))
		if r, ok := report.RollingStats[key]; ok {
			rolling = r
		}
		row = appendWeekly(row, rolling.Tardiness, len(report.Weeks))
		row = appendWeekly(row, rolling.Absence, len(report.Weeks))

		rows = append(rows, row)
	}
	return rows
}

func appendWeekly(row []Cell, wc absence.WeeklyCount, weeks int) []Cell {
	row = append(row, number(wc.Total))
	for i := 0; i < weeks; i++ {
		n := 0
		if i < len(wc.Weekly) {
			n = wc.Weekly[i]
		}
		row = append(row, number(n))
	}
	return append(row, average(wc.Average))
}

// DetailHeader lists the columns of the per-record detail table.
var DetailHeader = []string{
	"Klasse",
	"Schüler",
	"Datum",
	"Art",
	"Status",
	"Grund",
	"Beginnzeit",
	"Endzeit",
	"Text/Grund",
}

var kindLabels = map[absence.Kind]string{
	absence.KindTardiness: "Verspätung",
	absence.KindAbsence:   "Fehlzeit",
}

var stateLabels = map[absence.ExcuseState]string{
	absence.StateExcused:   "entschuldigt",
	absence.StateUnexcused: "unentschuldigt",
	absence.StateOpen:      "offen",
}

// DetailRows lists every range-scoped record of the listed students, grouped
// by bucket in source order.
func DetailRows(report absence.Report) [][]string {
	var rows [][]string
	for _, key := range report.Students {
		details := report.RangeDetails[key]
		if details == nil {
			continue
		}
		for _, kind := range []absence.Kind{absence.KindTardiness, absence.KindAbsence} {
			for _, state := range []absence.ExcuseState{absence.StateExcused, absence.StateUnexcused, absence.StateOpen} {
				for _, rec := range details.Bucket(kind, state) {
					rows = append(rows, []string{
						rec.ClassName,
						key,
						rec.Date.Format("02.01.2006"),
						kindLabels[kind],
						stateLabels[state],
						rec.ReasonLabel,
						rec.StartTime,
						rec.EndTime,
						rec.ReasonText,
					})
				}
			}
		}
	}
	return rows
}
