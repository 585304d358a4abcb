package absence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/calendar"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/export"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/sheet"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/sse"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/storage"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/validator"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/service/file"
)

// Options configures an AbsenceServiceImpl.
type Options struct {
	ImportTTL           time.Duration
	DefaultRollingWeeks int
	Location            *time.Location
	// Clock supplies the reference instant of every report; time.Now when nil.
	Clock func() time.Time
	// Events carries import lifecycle events to stream subscribers.
	Events *sse.Hub
}

type AbsenceServiceImpl struct {
	absence.ImportRepository
	remote      absence.RemoteSource
	fileService file.FileService
	normalizer  *Normalizer
	engine      *Engine
	metrics     *metrics.Collector
	opts        Options
}

var _ absence.AbsenceService = (*AbsenceServiceImpl)(nil)

// NewAbsenceService wires the import pipeline. remote and fileService may be
// nil: remote imports then fail with ErrRemoteSourceDisabled and uploads are
// not archived.
func NewAbsenceService(
	repo absence.ImportRepository,
	remote absence.RemoteSource,
	fileService file.FileService,
	normalizer *Normalizer,
	engine *Engine,
	collector *metrics.Collector,
	opts Options,
) *AbsenceServiceImpl {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.DefaultRollingWeeks <= 0 {
		opts.DefaultRollingWeeks = 4
	}
	if opts.Events == nil {
		opts.Events = sse.NewHub()
	}

	return &AbsenceServiceImpl{
		ImportRepository: repo,
		remote:           remote,
		fileService:      fileService,
		normalizer:       normalizer,
		engine:           engine,
		metrics:          collector,
		opts:             opts,
	}
}

func (s *AbsenceServiceImpl) now() time.Time {
	return s.opts.Clock().In(s.opts.Location)
}

// ImportFile implements absence.AbsenceService.
func (s *AbsenceServiceImpl) ImportFile(ctx context.Context, req absence.ImportFileRequest) (absence.ImportSummary, error) {
	if err := req.Validate(); err != nil {
		return absence.ImportSummary{}, err
	}

	data, err := io.ReadAll(req.Content)
	if err != nil {
		return absence.ImportSummary{}, fmt.Errorf("failed to read upload: %w", err)
	}

	rows, err := sheet.Parse(bytes.NewReader(data), req.FileName)
	if err != nil {
		s.metrics.RecordImport(absence.SourceFile, "failed")
		return absence.ImportSummary{}, err
	}

	imp := s.newImport(absence.SourceFile, rows)
	imp.FileName = filepath.Base(req.FileName)

	if s.fileService != nil {
		archivePath, err := s.fileService.ArchiveImportSource(ctx, imp.ID, bytes.NewReader(data), imp.FileName)
		if err != nil {
			// The import stays usable without its original file
			slog.Warn("Failed to archive import source", "import_id", imp.ID, "error", err)
		} else {
			imp.ArchivePath = archivePath
		}
	}

	return s.store(ctx, imp)
}

// ImportRemote implements absence.AbsenceService.
func (s *AbsenceServiceImpl) ImportRemote(ctx context.Context, req absence.ImportRemoteRequest) (absence.ImportSummary, error) {
	if err := req.Validate(); err != nil {
		return absence.ImportSummary{}, err
	}
	if s.remote == nil {
		return absence.ImportSummary{}, absence.ErrRemoteSourceDisabled
	}

	start, _ := validator.ParseDateIn(req.StartDate, s.opts.Location)
	end, _ := validator.ParseDateIn(req.EndDate, s.opts.Location)

	timer := s.metrics.NewTimer(s.metrics.RemoteFetchDuration)
	rows, err := s.remote.FetchAbsences(ctx, start, end, req.ClassName)
	timer.ObserveDuration()
	if err != nil {
		s.metrics.RecordImport(absence.SourceRemote, "failed")
		slog.Error("School API fetch failed", "class_name", req.ClassName, "error", err)
		if !errors.Is(err, absence.ErrRemoteSourceUnavailable) {
			err = fmt.Errorf("%w: %v", absence.ErrRemoteSourceUnavailable, err)
		}
		return absence.ImportSummary{}, err
	}

	// The API is queried per class and does not always repeat it per row
	for _, row := range rows {
		if row.Get(absence.HeaderClass) == "" {
			row[absence.HeaderClass] = req.ClassName
		}
	}

	imp := s.newImport(absence.SourceRemote, rows)
	imp.ClassName = req.ClassName

	return s.store(ctx, imp)
}

func (s *AbsenceServiceImpl) newImport(source string, rows []absence.RawRow) absence.Import {
	records, stats := s.normalizer.NormalizeAll(rows)
	return absence.Import{
		ID:        uuid.NewString(),
		Source:    source,
		Records:   records,
		Stats:     stats,
		CreatedAt: s.now(),
	}
}

func (s *AbsenceServiceImpl) store(ctx context.Context, imp absence.Import) (absence.ImportSummary, error) {
	if err := s.ImportRepository.Create(ctx, imp); err != nil {
		s.metrics.RecordImport(imp.Source, "failed")
		s.deleteArchive(ctx, imp)
		return absence.ImportSummary{}, fmt.Errorf("failed to store import: %w", err)
	}

	s.metrics.RecordImport(imp.Source, "accepted")
	s.metrics.RecordRows(string(OutcomeAccepted), imp.Stats.Accepted)
	s.metrics.RecordRows(string(OutcomeMissingDate), imp.Stats.MissingDate)
	s.metrics.RecordRows(string(OutcomeMissingLastName), imp.Stats.MissingLastName)
	s.metrics.RecordRows(string(OutcomeInvalidDate), imp.Stats.InvalidDate)
	s.metrics.RecordRows(string(OutcomeErroneous), imp.Stats.Discarded)

	slog.Info("Absence import stored",
		"import_id", imp.ID,
		"source", imp.Source,
		"rows", imp.Stats.TotalRows,
		"accepted", imp.Stats.Accepted,
		"discarded", imp.Stats.Discarded,
	)
	if skipped := imp.Stats.Skipped(); skipped > 0 {
		slog.Warn("Absence rows skipped",
			"import_id", imp.ID,
			"skipped", skipped,
			"missing_date", imp.Stats.MissingDate,
			"missing_last_name", imp.Stats.MissingLastName,
			"invalid_date", imp.Stats.InvalidDate,
		)
	}

	return s.summarize(imp), nil
}

func (s *AbsenceServiceImpl) summarize(imp absence.Import) absence.ImportSummary {
	summary := absence.ImportSummary{
		ID:          imp.ID,
		Source:      imp.Source,
		FileName:    imp.FileName,
		ClassName:   imp.ClassName,
		CreatedAt:   imp.CreatedAt,
		ExpiresAt:   imp.CreatedAt.Add(s.opts.ImportTTL),
		RecordCount: len(imp.Records),
		Skipped:     imp.Stats.Skipped(),
		Classes:     []string{},
		HasSource:   imp.ArchivePath != "",
		Diagnostics: imp.Stats,
	}

	students := make(map[string]struct{})
	for _, rec := range imp.Records {
		students[rec.StudentKey] = struct{}{}
		if rec.ClassName != "" && !slices.Contains(summary.Classes, rec.ClassName) {
			summary.Classes = append(summary.Classes, rec.ClassName)
		}

		date := rec.Date
		if summary.FirstDate == nil || date.Before(*summary.FirstDate) {
			summary.FirstDate = &date
		}
		if summary.LastDate == nil || date.After(*summary.LastDate) {
			summary.LastDate = &date
		}
	}
	summary.Students = len(students)
	slices.Sort(summary.Classes)

	return summary
}

// GetImport implements absence.AbsenceService.
func (s *AbsenceServiceImpl) GetImport(ctx context.Context, id string) (absence.ImportSummary, error) {
	imp, err := s.ImportRepository.GetByID(ctx, id)
	if err != nil {
		return absence.ImportSummary{}, err
	}
	return s.summarize(imp), nil
}

// DeleteImport implements absence.AbsenceService.
func (s *AbsenceServiceImpl) DeleteImport(ctx context.Context, id string) error {
	imp, err := s.ImportRepository.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.ImportRepository.Delete(ctx, id); err != nil {
		return err
	}
	s.deleteArchive(ctx, imp)
	s.opts.Events.Close(id, sse.Event{
		Event: sse.EventImportDeleted,
		Data:  map[string]string{"import_id": id},
	})

	slog.Info("Absence import deleted", "import_id", id)
	return nil
}

// Subscribe implements absence.AbsenceService.
func (s *AbsenceServiceImpl) Subscribe(ctx context.Context, id string) (<-chan sse.Event, func(), error) {
	if _, err := s.ImportRepository.GetByID(ctx, id); err != nil {
		return nil, nil, err
	}

	events, cleanup := s.opts.Events.Subscribe(id)
	return events, cleanup, nil
}

func (s *AbsenceServiceImpl) deleteArchive(ctx context.Context, imp absence.Import) {
	if s.fileService == nil || imp.ArchivePath == "" {
		return
	}
	if err := s.fileService.DeleteFile(ctx, imp.ArchivePath); err != nil {
		slog.Warn("Failed to delete import source", "import_id", imp.ID, "path", imp.ArchivePath, "error", err)
	}
}

// DownloadSource implements absence.AbsenceService.
func (s *AbsenceServiceImpl) DownloadSource(ctx context.Context, id string) (io.ReadCloser, string, error) {
	imp, err := s.ImportRepository.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if s.fileService == nil || imp.ArchivePath == "" {
		return nil, "", absence.ErrSourceNotArchived
	}

	rc, err := s.fileService.OpenFile(ctx, imp.ArchivePath)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, "", absence.ErrSourceNotArchived
		}
		return nil, "", fmt.Errorf("failed to open import source: %w", err)
	}

	return rc, imp.FileName, nil
}

// GenerateReport implements absence.AbsenceService. Every call recomputes
// all views from the stored records.
func (s *AbsenceServiceImpl) GenerateReport(ctx context.Context, req absence.ReportRequest) (absence.Report, error) {
	if err := req.Validate(); err != nil {
		return absence.Report{}, err
	}

	imp, err := s.ImportRepository.GetByID(ctx, req.ImportID)
	if err != nil {
		return absence.Report{}, err
	}

	in := s.reportInput(req, imp.Records)

	timer := s.metrics.NewTimer(s.metrics.ReportDuration)
	report, err := s.engine.Compute(in)
	timer.ObserveDuration()
	if err != nil {
		s.metrics.RecordReport("rejected")
		return absence.Report{}, err
	}
	s.metrics.RecordReport("ok")

	field := absence.SortField(req.Sort)
	if field == "" {
		field = absence.SortByName
	}
	sorted := SortStudents(&report, field, req.Order == absence.OrderDesc)
	report.Students = FilterStudents(&report, sorted, req.Query, req.ClassName)

	return report, nil
}

// reportInput resolves request defaults: no dates means the current school
// year, no week count means the configured default.
func (s *AbsenceServiceImpl) reportInput(req absence.ReportRequest, records []absence.Record) absence.ReportInput {
	now := s.now()
	in := absence.ReportInput{
		Records:      records,
		Now:          now,
		RollingWeeks: req.Weeks,
	}
	if in.RollingWeeks == 0 {
		in.RollingWeeks = s.opts.DefaultRollingWeeks
	}

	if req.StartDate == "" && req.EndDate == "" {
		schoolYear := calendar.CurrentSchoolYear(now)
		in.RangeStart = schoolYear.From
		in.RangeEnd = schoolYear.To
		return in
	}

	start, _ := validator.ParseDateIn(req.StartDate, s.opts.Location)
	end, _ := validator.ParseDateIn(req.EndDate, s.opts.Location)
	in.RangeStart = start
	in.RangeEnd = calendar.EndOfDay(end)
	return in
}

// Export implements absence.AbsenceService.
func (s *AbsenceServiceImpl) Export(ctx context.Context, req absence.ExportRequest) (absence.ExportFile, error) {
	if err := req.Validate(); err != nil {
		return absence.ExportFile{}, err
	}

	report, err := s.GenerateReport(ctx, req.ReportRequest)
	if err != nil {
		return absence.ExportFile{}, err
	}

	name := fmt.Sprintf("fehlzeiten_%s_%s", report.RangeStart.Format("2006-01-02"), report.RangeEnd.Format("2006-01-02"))

	var out absence.ExportFile
	switch req.Format {
	case absence.ExportFormatXLSX:
		content, err := export.XLSX(report)
		if err != nil {
			return absence.ExportFile{}, fmt.Errorf("failed to render xlsx export: %w", err)
		}
		out = absence.ExportFile{
			FileName:    name + ".xlsx",
			ContentType: file.ContentTypeFor(".xlsx"),
			Content:     content,
		}
	default:
		content, err := export.CSV(report)
		if err != nil {
			return absence.ExportFile{}, fmt.Errorf("failed to render csv export: %w", err)
		}
		out = absence.ExportFile{
			FileName:    name + ".csv",
			ContentType: "text/csv; charset=utf-8",
			Content:     content,
		}
	}

	s.metrics.RecordExport(req.Format)
	return out, nil
}

// PurgeExpired implements absence.AbsenceService.
func (s *AbsenceServiceImpl) PurgeExpired(ctx context.Context) (int, error) {
	if s.opts.ImportTTL <= 0 {
		return 0, nil
	}

	cutoff := s.now().Add(-s.opts.ImportTTL)
	deleted, err := s.ImportRepository.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired imports: %w", err)
	}

	for _, imp := range deleted {
		s.deleteArchive(ctx, imp)
		s.opts.Events.Close(imp.ID, sse.Event{
			Event: sse.EventImportExpired,
			Data:  map[string]string{"import_id": imp.ID},
		})
	}
	s.metrics.RecordPurged(len(deleted))

	return len(deleted), nil
}
