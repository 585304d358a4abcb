package file

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/storage"
)

type FileService interface {
	// Archive the original upload of an import
	ArchiveImportSource(ctx context.Context, importID string, file io.Reader, filename string) (string, error)

	// Generic operations
	OpenFile(ctx context.Context, path string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, path string) error
}

type fileServiceImpl struct {
	storage storage.FileStorage
}

func NewFileService(storage storage.FileStorage) FileService {
	return &fileServiceImpl{
		storage: storage,
	}
}

// ContentTypeFor maps an import file name to the content type it is served with.
func ContentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	case ".tsv":
		return "text/tab-separated-values"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// ArchiveImportSource stores the upload as imports/{importID}/{filename}
func (s *fileServiceImpl) ArchiveImportSource(ctx context.Context, importID string, file io.Reader, filename string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		name = "source"
	}
	target := path.Join("imports", importID, name)

	uploadedPath, err := s.storage.Upload(ctx, file, target, ContentTypeFor(name))
	if err != nil {
		return "", fmt.Errorf("failed to archive import source: %w", err)
	}

	return uploadedPath, nil
}

// OpenFile opens a stored file for reading
func (s *fileServiceImpl) OpenFile(ctx context.Context, path string) (io.ReadCloser, error) {
	return s.storage.Download(ctx, path)
}

// DeleteFile deletes a file
func (s *fileServiceImpl) DeleteFile(ctx context.Context, path string) error {
	return s.storage.Delete(ctx, path)
}
