package absence

import (
	"context"
	"io"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/sse"
)

// AbsenceService defines import handling and report generation
type AbsenceService interface {
	// Import an uploaded spreadsheet or delimited text export
	ImportFile(ctx context.Context, req ImportFileRequest) (ImportSummary, error)

	// Import rows fetched from the school API
	ImportRemote(ctx context.Context, req ImportRemoteRequest) (ImportSummary, error)

	GetImport(ctx context.Context, id string) (ImportSummary, error)
	DeleteImport(ctx context.Context, id string) error

	// Stream lifecycle events of an import until it is deleted or expires
	Subscribe(ctx context.Context, id string) (<-chan sse.Event, func(), error)

	// Download the archived original upload
	DownloadSource(ctx context.Context, id string) (io.ReadCloser, string, error)

	// Run the aggregation engine over an import
	GenerateReport(ctx context.Context, req ReportRequest) (Report, error)

	// Render a report as CSV or XLSX
	Export(ctx context.Context, req ExportRequest) (ExportFile, error)

	// Drop imports older than the configured TTL
	PurgeExpired(ctx context.Context) (int, error)
}
