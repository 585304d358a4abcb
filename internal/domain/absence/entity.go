package absence

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/calendar"
)

// Source header names shared by the spreadsheet export and the API adapter.
const (
	HeaderLastName   = "Langname"
	HeaderFirstName  = "Vorname"
	HeaderStartDate  = "Beginndatum"
	HeaderClass      = "Klasse"
	HeaderReason     = "Abwesenheitsgrund"
	HeaderStatus     = "Status"
	HeaderReasonText = "Text/Grund"
	HeaderStartTime  = "Beginnzeit"
	HeaderEndTime    = "Endzeit"
)

// RequiredHeaders must all be present for a header row to be recognised.
var RequiredHeaders = []string{
	HeaderLastName,
	HeaderFirstName,
	HeaderStartDate,
	HeaderClass,
	HeaderReason,
	HeaderStatus,
}

// DefaultFullDayLabel is used when a full-day absence has no reason label.
const DefaultFullDayLabel = "ganztägig"

// RawRow is one loosely-typed source row keyed by header name.
type RawRow map[string]string

// Get returns the trimmed value of a field, or "" when absent.
func (r RawRow) Get(header string) string {
	return strings.TrimSpace(r[header])
}

type Kind string

const (
	KindTardiness Kind = "tardiness"
	KindAbsence   Kind = "absence"
)

type RawStatus string

const (
	StatusEmpty                             RawStatus = ""
	StatusExcused                           RawStatus = "entsch."
	StatusExcusedMedicalCertificate         RawStatus = "Attest"
	StatusExcusedMedicalCertificateOfficial RawStatus = "Attest Amtsarzt"
	StatusUnexcused                         RawStatus = "nicht entsch."
	StatusUnexcusedRejected                 RawStatus = "nicht entsch. (abgelehnt)"
)

var knownStatuses = []RawStatus{
	StatusExcused,
	StatusExcusedMedicalCertificate,
	StatusExcusedMedicalCertificateOfficial,
	StatusUnexcused,
	StatusUnexcusedRejected,
}

// ParseRawStatus maps a status literal (case-insensitive, trimmed) to a RawStatus.
// Unknown non-empty literals yield StatusEmpty and ok=false.
func ParseRawStatus(s string) (RawStatus, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusEmpty, true
	}
	for _, status := range knownStatuses {
		if strings.EqualFold(s, string(status)) {
			return status, true
		}
	}
	return StatusEmpty, false
}

func (s RawStatus) IsExcused() bool {
	switch s {
	case StatusExcused, StatusExcusedMedicalCertificate, StatusExcusedMedicalCertificateOfficial:
		return true
	}
	return false
}

func (s RawStatus) IsUnexcused() bool {
	return s == StatusUnexcused || s == StatusUnexcusedRejected
}

type ExcuseState string

const (
	StateExcused   ExcuseState = "excused"
	StateUnexcused ExcuseState = "unexcused"
	StateOpen      ExcuseState = "open"
)

// Record is the canonical absence record produced by normalization.
type Record struct {
	StudentKey  string    `json:"student_key"`
	LastName    string    `json:"last_name"`
	FirstName   string    `json:"first_name"`
	ClassName   string    `json:"class_name"`
	Date        time.Time `json:"date"`
	Kind        Kind      `json:"kind"`
	ReasonLabel string    `json:"reason_label"`
	StartTime   string    `json:"start_time,omitempty"`
	EndTime     string    `json:"end_time,omitempty"`
	ReasonText  string    `json:"reason_text,omitempty"`
	RawStatus   RawStatus `json:"raw_status"`
}

// StudentKey builds the per-import student identifier "<lastName>, <firstName>".
func StudentKey(lastName, firstName string) string {
	if firstName == "" {
		return lastName
	}
	return lastName + ", " + firstName
}

// Counts holds the three excuse-state counters of one record kind.
type Counts struct {
	Excused   int `json:"excused"`
	Unexcused int `json:"unexcused"`
	Open      int `json:"open"`
}

func (c *Counts) Add(state ExcuseState) {
	switch state {
	case StateExcused:
		c.Excused++
	case StateUnexcused:
		c.Unexcused++
	case StateOpen:
		c.Open++
	}
}

func (c Counts) Total() int {
	return c.Excused + c.Unexcused + c.Open
}

// StudentStats are the range-scoped counters of one student.
type StudentStats struct {
	ClassName string `json:"class_name"`
	Tardiness Counts `json:"tardiness"`
	Absence   Counts `json:"absence"`
}

func (s *StudentStats) Add(kind Kind, state ExcuseState) {
	if kind == KindTardiness {
		s.Tardiness.Add(state)
		return
	}
	s.Absence.Add(state)
}

// DetailedStats keeps the records of one student bucketed by kind and excuse state,
// each bucket in source order.
type DetailedStats struct {
	TardinessExcused   []Record `json:"verspaetungen_entsch"`
	TardinessUnexcused []Record `json:"verspaetungen_unentsch"`
	TardinessOpen      []Record `json:"verspaetungen_offen"`
	AbsenceExcused     []Record `json:"fehlzeiten_entsch"`
	AbsenceUnexcused   []Record `json:"fehlzeiten_unentsch"`
	AbsenceOpen        []Record `json:"fehlzeiten_offen"`
}

// NewDetailedStats returns empty, non-nil buckets so they encode as [] rather than null.
func NewDetailedStats() *DetailedStats {
	return &DetailedStats{
		TardinessExcused:   []Record{},
		TardinessUnexcused: []Record{},
		TardinessOpen:      []Record{},
		AbsenceExcused:     []Record{},
		AbsenceUnexcused:   []Record{},
		AbsenceOpen:        []Record{},
	}
}

func (d *DetailedStats) bucket(kind Kind, state ExcuseState) *[]Record {
	if kind == KindTardiness {
		switch state {
		case StateExcused:
			return &d.TardinessExcused
		case StateUnexcused:
			return &d.TardinessUnexcused
		default:
			return &d.TardinessOpen
		}
	}
	switch state {
	case StateExcused:
		return &d.AbsenceExcused
	case StateUnexcused:
		return &d.AbsenceUnexcused
	default:
		return &d.AbsenceOpen
	}
}

func (d *DetailedStats) Append(kind Kind, state ExcuseState, rec Record) {
	b := d.bucket(kind, state)
	*b = append(*b, rec)
}

func (d *DetailedStats) Bucket(kind Kind, state ExcuseState) []Record {
	return *d.bucket(kind, state)
}

func (d *DetailedStats) Len() int {
	return len(d.TardinessExcused) + len(d.TardinessUnexcused) + len(d.TardinessOpen) +
		len(d.AbsenceExcused) + len(d.AbsenceUnexcused) + len(d.AbsenceOpen)
}

// SchoolYearStats are the school-year-to-date unexcused totals of one student.
type SchoolYearStats struct {
	ClassName          string `json:"class_name"`
	UnexcusedTardiness int    `json:"unexcused_tardiness"`
	UnexcusedAbsence   int    `json:"unexcused_absence"`
}

// WeeklyCount is a rolling-window total with its per-week breakdown, oldest week first.
type WeeklyCount struct {
	Total   int     `json:"total"`
	Weekly  []int   `json:"weekly"`
	Average float64 `json:"average"`
}

func newWeeklyCount(n int) WeeklyCount {
	return WeeklyCount{Weekly: make([]int, n)}
}

func (w *WeeklyCount) Inc(week int) {
	w.Weekly[week]++
	w.Total++
	w.Average = float64(w.Total) / float64(len(w.Weekly))
}

// RollingStats are the unexcused totals of one student over the last N complete weeks.
type RollingStats struct {
	ClassName string      `json:"class_name"`
	Tardiness WeeklyCount `json:"tardiness"`
	Absence   WeeklyCount `json:"absence"`
}

func NewRollingStats(className string, weeks int) *RollingStats {
	return &RollingStats{
		ClassName: className,
		Tardiness: newWeeklyCount(weeks),
		Absence:   newWeeklyCount(weeks),
	}
}

// ReportInput is everything one engine run depends on.
type ReportInput struct {
	Records      []Record
	RangeStart   time.Time
	RangeEnd     time.Time
	Now          time.Time
	RollingWeeks int
}

// Report is the complete output of one engine run.
type Report struct {
	RangeStart   time.Time           `json:"range_start"`
	RangeEnd     time.Time           `json:"range_end"`
	Now          time.Time           `json:"now"`
	RollingWeeks int                 `json:"rolling_weeks"`
	SchoolYear   calendar.SchoolYear `json:"school_year"`
	Weeks        []calendar.Week     `json:"weeks"`
	Students     []string            `json:"students"`

	RangeStats        map[string]*StudentStats    `json:"range_stats"`
	RangeDetails      map[string]*DetailedStats   `json:"range_details"`
	SchoolYearStats   map[string]*SchoolYearStats `json:"school_year_stats"`
	SchoolYearDetails map[string]*DetailedStats   `json:"school_year_details"`
	RollingStats      map[string]*RollingStats    `json:"rolling_stats"`
	RollingDetails    map[string]*DetailedStats   `json:"rolling_details"`
}

// NormalizeStats counts what happened to the rows of one import.
type NormalizeStats struct {
	TotalRows       int `json:"total_rows"`
	Accepted        int `json:"accepted"`
	MissingDate     int `json:"missing_date"`
	MissingLastName int `json:"missing_last_name"`
	InvalidDate     int `json:"invalid_date"`
	UnknownStatus   int `json:"unknown_status"`
	// Erroneous entries are discarded before they reach any aggregate and are
	// kept out of Skipped.
	Discarded int `json:"discarded"`
}

// Skipped is the number of malformed rows that were dropped.
func (s NormalizeStats) Skipped() int {
	return s.MissingDate + s.MissingLastName + s.InvalidDate
}

const (
	SourceFile   = "file"
	SourceRemote = "remote"
)

// Import is one stored record set. Only canonical input is kept, never derived results.
type Import struct {
	ID          string
	Source      string
	FileName    string
	ClassName   string
	ArchivePath string
	Records     []Record
	Stats       NormalizeStats
	CreatedAt   time.Time
}
