package response

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Import errors
	case errors.Is(err, absence.ErrImportNotFound):
		NotFound(w, "Import not found")
	case errors.Is(err, absence.ErrSourceNotArchived):
		NotFound(w, "Original file of this import is not available")
	case errors.Is(err, absence.ErrUnsupportedFormat):
		BadRequest(w, "Unsupported file format", nil)
	case errors.Is(err, absence.ErrMissingHeaders):
		BadRequest(w, "No header row with the required columns found", map[string]string{
			"required": strings.Join(absence.RequiredHeaders, ", "),
		})

	// Report errors
	case errors.Is(err, absence.ErrInvalidRange):
		BadRequest(w, "Range start must not be after range end", nil)
	case errors.Is(err, absence.ErrInvalidWeekCount):
		BadRequest(w, "Week count must be positive", nil)

	// School API errors
	case errors.Is(err, absence.ErrRemoteSourceUnavailable):
		BadGateway(w, "School API request failed")
	case errors.Is(err, absence.ErrRemoteSourceDisabled):
		ServiceUnavailable(w, "School API is not configured")

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
