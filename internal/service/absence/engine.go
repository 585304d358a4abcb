package absence

import (
	"time"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/calendar"
)

// Engine folds canonical records into the range, school-year and rolling-week views.
// It holds no state between calls; every method is a pure function of its arguments.
type Engine struct {
	classifier Classifier
}

func NewEngine(classifier Classifier) *Engine {
	return &Engine{classifier: classifier}
}

// Compute validates the input and builds all views of one report.
func (e *Engine) Compute(in absence.ReportInput) (absence.Report, error) {
	if in.RangeStart.IsZero() || in.RangeEnd.IsZero() || in.RangeStart.After(in.RangeEnd) {
		return absence.Report{}, absence.ErrInvalidRange
	}
	if in.RollingWeeks <= 0 {
		return absence.Report{}, absence.ErrInvalidWeekCount
	}

	rangeStats, rangeDetails := e.RangeStats(in.Records, in.RangeStart, in.RangeEnd, in.Now)
	schoolYear, syStats, syDetails := e.SchoolYearStats(in.Records, in.Now)
	weeks, rollingStats, rollingDetails := e.RollingWeekStats(in.Records, in.Now, in.RollingWeeks)

	report := absence.Report{
		RangeStart:        in.RangeStart,
		RangeEnd:          in.RangeEnd,
		Now:               in.Now,
		RollingWeeks:      in.RollingWeeks,
		SchoolYear:        schoolYear,
		Weeks:             weeks,
		RangeStats:        rangeStats,
		RangeDetails:      rangeDetails,
		SchoolYearStats:   syStats,
		SchoolYearDetails: syDetails,
		RollingStats:      rollingStats,
		RollingDetails:    rollingDetails,
	}
	report.Students = SortStudents(&report, absence.SortByName, false)

	return report, nil
}

// RangeStats counts and lists every record dated within [start, end].
// The class of a student is the class of the last record seen for them.
func (e *Engine) RangeStats(records []absence.Record, start, end, now time.Time) (map[string]*absence.StudentStats, map[string]*absence.DetailedStats) {
	stats := make(map[string]*absence.StudentStats)
	details := make(map[string]*absence.DetailedStats)

	for _, rec := range records {
		if !inRange(rec.Date, start, end) {
			continue
		}

		state := e.classifier.Classify(rec, now)

		s, ok := stats[rec.StudentKey]
		if !ok {
			s = &absence.StudentStats{}
			stats[rec.StudentKey] = s
			details[rec.StudentKey] = absence.NewDetailedStats()
		}
		s.ClassName = rec.ClassName
		s.Add(rec.Kind, state)
		details[rec.StudentKey].Append(rec.Kind, state, rec)
	}

	return stats, details
}

// SchoolYearStats counts and lists the unexcused records of the school year containing now.
// Excused and open records never appear in this view.
func (e *Engine) SchoolYearStats(records []absence.Record, now time.Time) (calendar.SchoolYear, map[string]*absence.SchoolYearStats, map[string]*absence.DetailedStats) {
	schoolYear := calendar.CurrentSchoolYear(now)
	stats := make(map[string]*absence.SchoolYearStats)
	details := make(map[string]*absence.DetailedStats)

	for _, rec := range records {
		if !schoolYear.Contains(rec.Date) {
			continue
		}
		if e.classifier.Classify(rec, now) != absence.StateUnexcused {
			continue
		}

		s, ok := stats[rec.StudentKey]
		if !ok {
			s = &absence.SchoolYearStats{}
			stats[rec.StudentKey] = s
			details[rec.StudentKey] = absence.NewDetailedStats()
		}
		s.ClassName = rec.ClassName
		if rec.Kind == absence.KindTardiness {
			s.UnexcusedTardiness++
		} else {
			s.UnexcusedAbsence++
		}
		details[rec.StudentKey].Append(rec.Kind, absence.StateUnexcused, rec)
	}

	return schoolYear, stats, details
}

// RollingWeekStats counts unexcused records per week over the last n complete weeks.
// Records outside every week are left out of this view entirely.
func (e *Engine) RollingWeekStats(records []absence.Record, now time.Time, n int) ([]calendar.Week, map[string]*absence.RollingStats, map[string]*absence.DetailedStats) {
	weeks := calendar.LastNCompleteWeeks(n, now)
	stats := make(map[string]*absence.RollingStats)
	details := make(map[string]*absence.DetailedStats)

	for _, rec := range records {
		week := weekIndex(weeks, rec.Date)
		if week < 0 {
			continue
		}
		if e.classifier.Classify(rec, now) != absence.StateUnexcused {
			continue
		}

		s, ok := stats[rec.StudentKey]
		if !ok {
			s = absence.NewRollingStats(rec.ClassName, len(weeks))
			stats[rec.StudentKey] = s
			details[rec.StudentKey] = absence.NewDetailedStats()
		}
		s.ClassName = rec.ClassName
		if rec.Kind == absence.KindTardiness {
			s.Tardiness.Inc(week)
		} else {
			s.Absence.Inc(week)
		}
		details[rec.StudentKey].Append(rec.Kind, absence.StateUnexcused, rec)
	}

	return weeks, stats, details
}

func inRange(date, start, end time.Time) bool {
	if date.IsZero() {
		return false
	}
	return !date.Before(start) && !date.After(end)
}

// weekIndex returns the position of the week containing date, or -1.
func weekIndex(weeks []calendar.Week, date time.Time) int {
	for i, w := range weeks {
		if w.Contains(date) {
			return i
		}
	}
	return -1
}
