package absence

import "errors"

// Absence domain errors
var (
	// Import errors
	ErrImportNotFound    = errors.New("import not found")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrMissingHeaders    = errors.New("no header row with the required columns found")
	ErrSourceNotArchived = errors.New("original file of this import is not available")

	// Remote source errors
	ErrRemoteSourceDisabled    = errors.New("school API is not configured")
	ErrRemoteSourceUnavailable = errors.New("school API request failed")

	// Engine input errors
	ErrInvalidRange     = errors.New("range start must not be after range end")
	ErrInvalidWeekCount = errors.New("rolling week count must be positive")
)
