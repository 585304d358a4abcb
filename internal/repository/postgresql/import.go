package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/database"
)

// Schema holds the canonical input of each import. Derived statistics are
// never stored; every report is recomputed from these rows.
const Schema = `
	CREATE TABLE IF NOT EXISTS absence_imports (
		id           UUID PRIMARY KEY,
		source       TEXT NOT NULL,
		file_name    TEXT NOT NULL DEFAULT '',
		class_name   TEXT NOT NULL DEFAULT '',
		archive_path TEXT NOT NULL DEFAULT '',
		stats        JSONB NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_absence_imports_created_at ON absence_imports (created_at);

	CREATE TABLE IF NOT EXISTS absence_import_records (
		import_id    UUID NOT NULL REFERENCES absence_imports (id) ON DELETE CASCADE,
		position     INTEGER NOT NULL,
		student_key  TEXT NOT NULL,
		last_name    TEXT NOT NULL,
		first_name   TEXT NOT NULL,
		class_name   TEXT NOT NULL,
		absence_date DATE NOT NULL,
		kind         TEXT NOT NULL,
		reason_label TEXT NOT NULL,
		start_time   TEXT NOT NULL,
		end_time     TEXT NOT NULL,
		reason_text  TEXT NOT NULL,
		raw_status   TEXT NOT NULL,
		PRIMARY KEY (import_id, position)
	);
`

var recordColumns = []string{
	"import_id", "position", "student_key", "last_name", "first_name", "class_name",
	"absence_date", "kind", "reason_label", "start_time", "end_time", "reason_text", "raw_status",
}

type importRepositoryImpl struct {
	db  *database.DB
	loc *time.Location
}

// NewImportRepository stores imports in PostgreSQL. Dates are read back as
// midnight in loc.
func NewImportRepository(db *database.DB, loc *time.Location) absence.ImportRepository {
	if loc == nil {
		loc = time.Local
	}
	return &importRepositoryImpl{db: db, loc: loc}
}

// EnsureSchema creates the import tables when missing.
func EnsureSchema(ctx context.Context, db *database.DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create import schema: %w", err)
	}
	return nil
}

// Create implements absence.ImportRepository.
func (r *importRepositoryImpl) Create(ctx context.Context, imp absence.Import) error {
	importID, err := uuid.Parse(imp.ID)
	if err != nil {
		return fmt.Errorf("invalid import id %q: %w", imp.ID, err)
	}

	stats, err := json.Marshal(imp.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode import stats: %w", err)
	}

	return WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)
		query := `
			INSERT INTO absence_imports (id, source, file_name, class_name, archive_path, stats, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		if _, err := q.Exec(ctx, query,
			importID, imp.Source, imp.FileName, imp.ClassName, imp.ArchivePath, stats, imp.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert import: %w", err)
		}

		if len(imp.Records) == 0 {
			return nil
		}

		_, err := q.CopyFrom(ctx, pgx.Identifier{"absence_import_records"}, recordColumns,
			pgx.CopyFromSlice(len(imp.Records), func(i int) ([]any, error) {
				rec := imp.Records[i]
				return []any{
					importID, i, rec.StudentKey, rec.LastName, rec.FirstName, rec.ClassName,
					rec.Date, string(rec.Kind), rec.ReasonLabel, rec.StartTime, rec.EndTime,
					rec.ReasonText, string(rec.RawStatus),
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to copy import records: %w", err)
		}
		return nil
	})
}

// GetByID implements absence.ImportRepository.
func (r *importRepositoryImpl) GetByID(ctx context.Context, id string) (absence.Import, error) {
	if _, err := uuid.Parse(id); err != nil {
		return absence.Import{}, absence.ErrImportNotFound
	}

	q := GetQuerier(ctx, r.db)
	query := `
		SELECT id, source, file_name, class_name, archive_path, stats, created_at
		FROM absence_imports
		WHERE id = $1
	`
	var imp absence.Import
	var stats []byte
	err := q.QueryRow(ctx, query, id).Scan(
		&imp.ID, &imp.Source, &imp.FileName, &imp.ClassName, &imp.ArchivePath, &stats, &imp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return absence.Import{}, absence.ErrImportNotFound
		}
		return absence.Import{}, fmt.Errorf("failed to get import: %w", err)
	}

	if err := json.Unmarshal(stats, &imp.Stats); err != nil {
		return absence.Import{}, fmt.Errorf("failed to decode import stats: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT student_key, last_name, first_name, class_name, absence_date, kind,
			   reason_label, start_time, end_time, reason_text, raw_status
		FROM absence_import_records
		WHERE import_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return absence.Import{}, fmt.Errorf("failed to query import records: %w", err)
	}
	defer rows.Close()

	imp.Records = []absence.Record{}
	for rows.Next() {
		var rec absence.Record
		var date time.Time
		var kind, status string
		if err := rows.Scan(
			&rec.StudentKey, &rec.LastName, &rec.FirstName, &rec.ClassName, &date, &kind,
			&rec.ReasonLabel, &rec.StartTime, &rec.EndTime, &rec.ReasonText, &status,
		); err != nil {
			return absence.Import{}, fmt.Errorf("failed to scan import record: %w", err)
		}

		// DATE scans as UTC midnight
		rec.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, r.loc)
		rec.Kind = absence.Kind(kind)
		rec.RawStatus = absence.RawStatus(status)
		imp.Records = append(imp.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return absence.Import{}, fmt.Errorf("failed to read import records: %w", err)
	}

	return imp, nil
}

// Delete implements absence.ImportRepository.
func (r *importRepositoryImpl) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return absence.ErrImportNotFound
	}

	q := GetQuerier(ctx, r.db)
	commandTag, err := q.Exec(ctx, `DELETE FROM absence_imports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete import: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return absence.ErrImportNotFound
	}
	return nil
}

// DeleteCreatedBefore implements absence.ImportRepository.
func (r *importRepositoryImpl) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) ([]absence.Import, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		DELETE FROM absence_imports
		WHERE created_at < $1
		RETURNING id, source, file_name, class_name, archive_path, created_at
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired imports: %w", err)
	}
	defer rows.Close()

	var deleted []absence.Import
	for rows.Next() {
		var imp absence.Import
		if err := rows.Scan(&imp.ID, &imp.Source, &imp.FileName, &imp.ClassName, &imp.ArchivePath, &imp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expired import: %w", err)
		}
		deleted = append(deleted, imp)
	}
	return deleted, rows.Err()
}
