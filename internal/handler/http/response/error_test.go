package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/validator"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"import not found", absence.ErrImportNotFound, http.StatusNotFound, CodeNotFound},
		{"wrapped not found", fmt.Errorf("load import: %w", absence.ErrImportNotFound), http.StatusNotFound, CodeNotFound},
		{"source not archived", absence.ErrSourceNotArchived, http.StatusNotFound, CodeNotFound},
		{"unsupported format", absence.ErrUnsupportedFormat, http.StatusBadRequest, CodeBadRequest},
		{"missing headers", absence.ErrMissingHeaders, http.StatusBadRequest, CodeBadRequest},
		{"invalid range", absence.ErrInvalidRange, http.StatusBadRequest, CodeBadRequest},
		{"invalid week count", absence.ErrInvalidWeekCount, http.StatusBadRequest, CodeBadRequest},
		{"remote unavailable", absence.ErrRemoteSourceUnavailable, http.StatusBadGateway, CodeBadGateway},
		{"remote disabled", absence.ErrRemoteSourceDisabled, http.StatusServiceUnavailable, CodeServiceUnavailable},
		{"validation", validator.ValidationErrors{{Field: "from", Message: "must be a date"}}, http.StatusUnprocessableEntity, CodeValidation},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestHandleError_Details(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, validator.ValidationErrors{{Field: "weeks", Message: "must be positive"}})

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"weeks": "must be positive"}, body.Error.Details)

	rec = httptest.NewRecorder()
	HandleError(rec, absence.ErrMissingHeaders)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error.Details, "required")
}

func TestFile(t *testing.T) {
	rec := httptest.NewRecorder()
	File(rec, "text/csv", "bericht 2024.csv", 3, strings.NewReader("a;b"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="bericht 2024.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "3", rec.Header().Get("Content-Length"))
	assert.Equal(t, "a;b", rec.Body.String())
}
