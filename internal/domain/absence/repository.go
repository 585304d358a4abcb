package absence

import (
	"context"
	"time"
)

// ImportRepository stores import sessions between report requests.
type ImportRepository interface {
	// Create stores a new import including its records
	Create(ctx context.Context, imp Import) error

	// GetByID retrieves an import with all records
	GetByID(ctx context.Context, id string) (Import, error)

	// Delete removes an import; ErrImportNotFound when it does not exist
	Delete(ctx context.Context, id string) error

	// DeleteCreatedBefore removes every import created before the cutoff and
	// returns them without records so callers can clean up archives
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) ([]Import, error)
}

// RemoteSource fetches absence rows from the school-management system,
// already reshaped into the spreadsheet row shape.
type RemoteSource interface {
	FetchAbsences(ctx context.Context, start, end time.Time, className string) ([]RawRow, error)
}
