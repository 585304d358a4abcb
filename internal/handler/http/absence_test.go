package http

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/storage"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/repository/memory"
	absenceService "github.com/cmlabs-hris/absence-dashboard-go/internal/service/absence"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/service/file"
)

const handlerTestCSV = "Langname;Vorname;Beginndatum;Beginnzeit;Endzeit;Klasse;Abwesenheitsgrund;Text/Grund;Status\n" +
	"Müller;Anna;10.09.2024;08:00;08:20;5a;Verspätung;;\n" +
	"Schmidt;Ben;23.09.2024;;;5b;Krankheit;;entsch.\n"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	now := time.Date(2024, 9, 25, 10, 0, 0, 0, time.UTC)
	svc := absenceService.NewAbsenceService(
		memory.NewImportRepository(),
		nil,
		file.NewFileService(local),
		absenceService.NewNormalizer("", "", time.UTC),
		absenceService.NewEngine(absenceService.NewClassifier(absenceService.DefaultDeadlineDays)),
		metrics.NewCollector("test", registry),
		absenceService.Options{
			ImportTTL:           time.Hour,
			DefaultRollingWeeks: 2,
			Location:            time.UTC,
			Clock:               func() time.Time { return now },
		},
	)

	return NewRouter(RouterConfig{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		LogLevel:       slog.LevelInfo,
		AllowedOrigins: []string{"http://localhost:3000"},
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, NewAbsenceHandler(svc, 1<<20))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(newTestRouter(t))
	t.Cleanup(server.Close)
	return server
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func multipartBody(t *testing.T, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func upload(t *testing.T, server *httptest.Server, fileName, content string) *http.Response {
	t.Helper()

	body, contentType := multipartBody(t, fileName, content)
	resp, err := http.Post(server.URL+"/api/v1/imports", contentType, body)
	require.NoError(t, err)
	return resp
}

func createImport(t *testing.T, server *httptest.Server) string {
	t.Helper()

	resp := upload(t, server, "export.csv", handlerTestCSV)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	var summary struct {
		ID          string `json:"id"`
		RecordCount int    `json:"record_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	require.Equal(t, 2, summary.RecordCount)
	return summary.ID
}

func TestAbsenceHandler_ImportAndReport(t *testing.T) {
	server := newTestServer(t)
	id := createImport(t, server)

	resp, err := http.Get(server.URL + "/api/v1/imports/" + id + "/report?start_date=2024-09-01&end_date=2024-09-30&weeks=2")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	assert.True(t, env.Success)

	var report struct {
		Students   []string `json:"students"`
		RangeStats map[string]struct {
			ClassName string `json:"class_name"`
			Tardiness struct {
				Unexcused int `json:"unexcused"`
			} `json:"tardiness"`
		} `json:"range_stats"`
		RangeDetails map[string]map[string][]json.RawMessage `json:"range_details"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, []string{"Müller, Anna", "Schmidt, Ben"}, report.Students)
	assert.Equal(t, 1, report.RangeStats["Müller, Anna"].Tardiness.Unexcused)
	assert.Len(t, report.RangeDetails["Müller, Anna"]["verspaetungen_unentsch"], 1)
	assert.NotNil(t, report.RangeDetails["Müller, Anna"]["fehlzeiten_offen"])
}

func TestAbsenceHandler_GetAndDeleteImport(t *testing.T) {
	server := newTestServer(t)
	id := createImport(t, server)

	resp, err := http.Get(server.URL + "/api/v1/imports/" + id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/api/v1/imports/" + id + "/source")
	require.NoError(t, err)
	source, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, handlerTestCSV, string(source))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "export.csv")

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/imports/"+id, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/api/v1/imports/" + id)
	require.NoError(t, err)
	env := decodeEnvelope(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestAbsenceHandler_Export(t *testing.T) {
	server := newTestServer(t)
	id := createImport(t, server)

	resp, err := http.Get(server.URL + "/api/v1/imports/" + id + "/export?format=csv&start_date=2024-09-01&end_date=2024-09-30")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "fehlzeiten_2024-09-01_2024-09-30.csv")
	assert.Contains(t, string(body), "Müller, Anna")

	resp, err = http.Get(server.URL + "/api/v1/imports/" + id + "/export?format=xlsx")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
}

func TestAbsenceHandler_Errors(t *testing.T) {
	server := newTestServer(t)
	id := createImport(t, server)

	t.Run("missing headers", func(t *testing.T) {
		resp := upload(t, server, "export.csv", "Name;Datum\nMüller;10.09.2024\n")
		env := decodeEnvelope(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, env.Error.Details["required"], "Beginndatum")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		resp := upload(t, server, "export.pdf", "%PDF")
		env := decodeEnvelope(t, resp)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, env.Error.Details, "file")
	})

	t.Run("upload too large", func(t *testing.T) {
		body, contentType := multipartBody(t, "export.csv", strings.Repeat("x", 2<<20))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		newTestRouter(t).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("invalid weeks", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/v1/imports/" + id + "/report?weeks=abc")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("inverted range", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/v1/imports/" + id + "/report?start_date=2024-09-30&end_date=2024-09-01")
		require.NoError(t, err)
		env := decodeEnvelope(t, resp)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, env.Error.Details, "end_date")
	})

	t.Run("remote source disabled", func(t *testing.T) {
		body := strings.NewReader(`{"start_date":"2024-09-01","end_date":"2024-09-30","class_name":"5a"}`)
		resp, err := http.Post(server.URL+"/api/v1/imports/remote", "application/json", body)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestRouter_HeartbeatAndMetrics(t *testing.T) {
	server := newTestServer(t)
	createImport(t, server)

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_imports_total{outcome="accepted",source="file"} 1`)
}

func TestAbsenceHandler_EventsStreamEndsOnDelete(t *testing.T) {
	server := newTestServer(t)
	id := createImport(t, server)

	resp, err := http.Get(server.URL + "/api/v1/imports/" + id + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	assert.Equal(t, "event: connected", scanner.Text())

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/imports/"+id, nil)
	require.NoError(t, err)
	deleteResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	deleteResp.Body.Close()

	var lines []string
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	assert.Contains(t, lines, "event: import.deleted")
	assert.Contains(t, lines, `data: {"import_id":"`+id+`"}`)

	resp, err = http.Get(server.URL + "/api/v1/imports/" + id + "/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
