package absence

import (
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/validator"
)

// ========================================
// IMPORT DTOs
// ========================================

// AllowedImportExtensions lists the upload types the sheet parser understands.
var AllowedImportExtensions = []string{".csv", ".txt", ".tsv", ".xlsx"}

type ImportFileRequest struct {
	FileName string
	Size     int64
	Content  io.Reader
}

func (r *ImportFileRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.FileName) {
		errs = append(errs, validator.ValidationError{
			Field:   "file",
			Message: "file name is required",
		})
	} else if ext := strings.ToLower(filepath.Ext(r.FileName)); !validator.IsInSlice(ext, AllowedImportExtensions) {
		errs = append(errs, validator.ValidationError{
			Field:   "file",
			Message: "invalid file type: only csv, txt, tsv, xlsx allowed",
		})
	}

	if r.Content == nil || r.Size <= 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "file",
			Message: "file must not be empty",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ImportRemoteRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	ClassName string `json:"class_name"`
}

func (r *ImportRemoteRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ClassName) {
		errs = append(errs, validator.ValidationError{
			Field:   "class_name",
			Message: "class_name is required",
		})
	}

	errs = append(errs, validateDateRange(r.StartDate, r.EndDate)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ImportSummary struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	FileName    string         `json:"file_name,omitempty"`
	ClassName   string         `json:"class_name,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
	RecordCount int            `json:"record_count"`
	Skipped     int            `json:"skipped"`
	Students    int            `json:"students"`
	Classes     []string       `json:"classes"`
	FirstDate   *time.Time     `json:"first_date,omitempty"`
	LastDate    *time.Time     `json:"last_date,omitempty"`
	HasSource   bool           `json:"has_source"`
	Diagnostics NormalizeStats `json:"diagnostics"`
}

// ========================================
// REPORT DTOs
// ========================================

type SortField string

const (
	SortByName                SortField = "name"
	SortByTardinessExcused    SortField = "tardiness_excused"
	SortByTardinessUnexcused  SortField = "tardiness_unexcused"
	SortByTardinessOpen       SortField = "tardiness_open"
	SortByAbsenceExcused      SortField = "absence_excused"
	SortByAbsenceUnexcused    SortField = "absence_unexcused"
	SortByAbsenceOpen         SortField = "absence_open"
	SortBySchoolYearTardiness SortField = "school_year_tardiness"
	SortBySchoolYearAbsence   SortField = "school_year_absence"
	SortByRollingTardiness    SortField = "rolling_tardiness"
	SortByRollingAbsence      SortField = "rolling_absence"
)

var sortFields = []string{
	string(SortByName),
	string(SortByTardinessExcused),
	string(SortByTardinessUnexcused),
	string(SortByTardinessOpen),
	string(SortByAbsenceExcused),
	string(SortByAbsenceUnexcused),
	string(SortByAbsenceOpen),
	string(SortBySchoolYearTardiness),
	string(SortBySchoolYearAbsence),
	string(SortByRollingTardiness),
	string(SortByRollingAbsence),
}

const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

type ReportRequest struct {
	ImportID  string `json:"import_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Weeks     int    `json:"weeks"`
	Sort      string `json:"sort"`
	Order     string `json:"order"`
	Query     string `json:"q"`
	ClassName string `json:"class"`
}

func (r *ReportRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ImportID) {
		errs = append(errs, validator.ValidationError{
			Field:   "import_id",
			Message: "import_id is required",
		})
	}

	// Both bounds or neither; neither means the current school year.
	if r.StartDate != "" || r.EndDate != "" {
		errs = append(errs, validateDateRange(r.StartDate, r.EndDate)...)
	}

	if r.Weeks < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "weeks",
			Message: "weeks must be a positive number",
		})
	}

	if r.Sort != "" && !validator.IsInSlice(r.Sort, sortFields) {
		errs = append(errs, validator.ValidationError{
			Field:   "sort",
			Message: "sort must be one of " + strings.Join(sortFields, ", "),
		})
	}

	if r.Order != "" && r.Order != OrderAsc && r.Order != OrderDesc {
		errs = append(errs, validator.ValidationError{
			Field:   "order",
			Message: "order must be asc or desc",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"
)

type ExportRequest struct {
	ReportRequest
	Format string `json:"format"`
}

func (r *ExportRequest) Validate() error {
	var errs validator.ValidationErrors

	if err := r.ReportRequest.Validate(); err != nil {
		errs = append(errs, err.(validator.ValidationErrors)...)
	}

	if r.Format != ExportFormatCSV && r.Format != ExportFormatXLSX {
		errs = append(errs, validator.ValidationError{
			Field:   "format",
			Message: "format must be csv or xlsx",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ExportFile describes a rendered export.
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

func validateDateRange(start, end string) validator.ValidationErrors {
	var errs validator.ValidationErrors

	if start == "" {
		errs = append(errs, validator.ValidationError{
			Field:   "start_date",
			Message: "start_date is required",
		})
	}

	if end == "" {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date is required",
		})
	}

	if start == "" || end == "" {
		return errs
	}

	startDate, okStart := validator.IsValidDate(start)
	if !okStart {
		errs = append(errs, validator.ValidationError{
			Field:   "start_date",
			Message: "start_date must be in YYYY-MM-DD format",
		})
	}

	endDate, okEnd := validator.IsValidDate(end)
	if !okEnd {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must be in YYYY-MM-DD format",
		})
	}

	if okStart && okEnd && startDate.After(endDate) {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must not be before start_date",
		})
	}

	return errs
}
