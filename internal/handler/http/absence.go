package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/handler/http/response"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/service/file"
)

type AbsenceHandler interface {
	// Imports
	ImportFile(w http.ResponseWriter, r *http.Request)
	ImportRemote(w http.ResponseWriter, r *http.Request)
	GetImport(w http.ResponseWriter, r *http.Request)
	DeleteImport(w http.ResponseWriter, r *http.Request)
	DownloadSource(w http.ResponseWriter, r *http.Request)
	Events(w http.ResponseWriter, r *http.Request)

	// Reports
	GetReport(w http.ResponseWriter, r *http.Request)
	Export(w http.ResponseWriter, r *http.Request)
}

type absenceHandlerImpl struct {
	absenceService absence.AbsenceService
	maxUploadBytes int64
}

func NewAbsenceHandler(absenceService absence.AbsenceService, maxUploadBytes int64) AbsenceHandler {
	return &absenceHandlerImpl{
		absenceService: absenceService,
		maxUploadBytes: maxUploadBytes,
	}
}

// ImportFile handles POST /imports
func (h *absenceHandlerImpl) ImportFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RequestEntityTooLarge(w, "File exceeds the upload limit")
			return
		}
		slog.Error("Failed to parse multipart form", "error", err)
		response.BadRequest(w, "Failed to parse form data", nil)
		return
	}

	uploaded, fileHeader, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			response.BadRequest(w, "Field 'file' is required", nil)
			return
		}
		slog.Error("Failed to get file from form", "error", err)
		response.BadRequest(w, "Invalid file upload", nil)
		return
	}
	defer uploaded.Close()

	summary, err := h.absenceService.ImportFile(r.Context(), absence.ImportFileRequest{
		FileName: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  uploaded,
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Import created successfully", summary)
}

// ImportRemote handles POST /imports/remote
func (h *absenceHandlerImpl) ImportRemote(w http.ResponseWriter, r *http.Request) {
	var req absence.ImportRemoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	summary, err := h.absenceService.ImportRemote(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Import created successfully", summary)
}

// GetImport handles GET /imports/{id}
func (h *absenceHandlerImpl) GetImport(w http.ResponseWriter, r *http.Request) {
	summary, err := h.absenceService.GetImport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, summary)
}

// DeleteImport handles DELETE /imports/{id}
func (h *absenceHandlerImpl) DeleteImport(w http.ResponseWriter, r *http.Request) {
	if err := h.absenceService.DeleteImport(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Import deleted successfully", nil)
}

// DownloadSource handles GET /imports/{id}/source
func (h *absenceHandlerImpl) DownloadSource(w http.ResponseWriter, r *http.Request) {
	content, fileName, err := h.absenceService.DownloadSource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	defer content.Close()

	response.File(w, file.ContentTypeFor(fileName), fileName, -1, content)
}

// Events handles the SSE stream of GET /imports/{id}/events. The stream ends
// once the import is deleted or expires.
func (h *absenceHandlerImpl) Events(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming not supported")
		return
	}

	events, cleanup, err := h.absenceService.Subscribe(r.Context(), importID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	defer cleanup()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, "event: connected\ndata: {\"import_id\":%q}\n\n", importID)
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// GetReport handles GET /imports/{id}/report
func (h *absenceHandlerImpl) GetReport(w http.ResponseWriter, r *http.Request) {
	req, ok := parseReportRequest(w, r)
	if !ok {
		return
	}

	report, err := h.absenceService.GenerateReport(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, report)
}

// Export handles GET /imports/{id}/export
func (h *absenceHandlerImpl) Export(w http.ResponseWriter, r *http.Request) {
	req, ok := parseReportRequest(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = absence.ExportFormatCSV
	}

	out, err := h.absenceService.Export(r.Context(), absence.ExportRequest{
		ReportRequest: req,
		Format:        format,
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.File(w, out.ContentType, out.FileName, int64(len(out.Content)), bytes.NewReader(out.Content))
}

// parseReportRequest reads the report query parameters. It writes the error
// response itself and returns false when the request is unusable.
func parseReportRequest(w http.ResponseWriter, r *http.Request) (absence.ReportRequest, bool) {
	query := r.URL.Query()

	req := absence.ReportRequest{
		ImportID:  chi.URLParam(r, "id"),
		StartDate: query.Get("start_date"),
		EndDate:   query.Get("end_date"),
		Sort:      query.Get("sort"),
		Order:     query.Get("order"),
		Query:     query.Get("q"),
		ClassName: query.Get("class"),
	}

	if weeksStr := query.Get("weeks"); weeksStr != "" {
		weeks, err := strconv.Atoi(weeksStr)
		if err != nil {
			response.BadRequest(w, "invalid weeks parameter", nil)
			return absence.ReportRequest{}, false
		}
		req.Weeks = weeks
	}

	return req, true
}
