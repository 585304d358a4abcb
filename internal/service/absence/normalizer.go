package absence

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/validator"
)

const (
	DefaultErroneousMarker = "fehleintrag"
	DefaultTardinessLabel  = "Verspätung"
)

// RowOutcome is what normalization decided for one raw row.
type RowOutcome string

const (
	OutcomeAccepted        RowOutcome = "accepted"
	OutcomeMissingDate     RowOutcome = "missing_date"
	OutcomeMissingLastName RowOutcome = "missing_last_name"
	OutcomeErroneous       RowOutcome = "erroneous"
	OutcomeInvalidDate     RowOutcome = "invalid_date"
)

// Normalizer turns raw source rows into canonical records.
type Normalizer struct {
	erroneousMarker string
	tardinessLabel  string
	loc             *time.Location
}

func NewNormalizer(erroneousMarker, tardinessLabel string, loc *time.Location) *Normalizer {
	if erroneousMarker == "" {
		erroneousMarker = DefaultErroneousMarker
	}
	if tardinessLabel == "" {
		tardinessLabel = DefaultTardinessLabel
	}
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{
		erroneousMarker: strings.ToLower(erroneousMarker),
		tardinessLabel:  tardinessLabel,
		loc:             loc,
	}
}

// Normalize maps one row. Any outcome other than OutcomeAccepted means the row is dropped.
// First name and class may be empty; the school API does not always supply them.
func (n *Normalizer) Normalize(row absence.RawRow) (absence.Record, RowOutcome) {
	startDate := row.Get(absence.HeaderStartDate)
	if startDate == "" {
		return absence.Record{}, OutcomeMissingDate
	}

	lastName := row.Get(absence.HeaderLastName)
	if lastName == "" {
		return absence.Record{}, OutcomeMissingLastName
	}

	reasonText := row.Get(absence.HeaderReasonText)
	if strings.Contains(strings.ToLower(reasonText), n.erroneousMarker) {
		return absence.Record{}, OutcomeErroneous
	}

	date, ok := validator.ParseGermanDate(startDate, n.loc)
	if !ok {
		return absence.Record{}, OutcomeInvalidDate
	}

	firstName := row.Get(absence.HeaderFirstName)
	status, _ := absence.ParseRawStatus(row.Get(absence.HeaderStatus))

	rec := absence.Record{
		StudentKey: absence.StudentKey(lastName, firstName),
		LastName:   lastName,
		FirstName:  firstName,
		ClassName:  row.Get(absence.HeaderClass),
		Date:       date,
		Kind:       absence.KindAbsence,
		ReasonText: reasonText,
		RawStatus:  status,
	}

	reason := row.Get(absence.HeaderReason)
	rec.ReasonLabel = reason
	switch {
	case strings.EqualFold(reason, n.tardinessLabel):
		rec.Kind = absence.KindTardiness
		rec.StartTime = row.Get(absence.HeaderStartTime)
		rec.EndTime = row.Get(absence.HeaderEndTime)
	case reason == "":
		rec.ReasonLabel = absence.DefaultFullDayLabel
	}

	return rec, OutcomeAccepted
}

// NormalizeAll normalizes rows in source order and reports what was dropped.
func (n *Normalizer) NormalizeAll(rows []absence.RawRow) ([]absence.Record, absence.NormalizeStats) {
	stats := absence.NormalizeStats{TotalRows: len(rows)}
	records := make([]absence.Record, 0, len(rows))

	for _, row := range rows {
		rec, outcome := n.Normalize(row)
		switch outcome {
		case OutcomeAccepted:
			if _, known := absence.ParseRawStatus(row.Get(absence.HeaderStatus)); !known {
				stats.UnknownStatus++
			}
			records = append(records, rec)
			stats.Accepted++
		case OutcomeMissingDate:
			stats.MissingDate++
		case OutcomeMissingLastName:
			stats.MissingLastName++
		case OutcomeInvalidDate:
			stats.InvalidDate++
		case OutcomeErroneous:
			stats.Discarded++
		}
	}

	return records, stats
}
