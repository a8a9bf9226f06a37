package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"gitlab.com/omj-2025.net/internal/config"
	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
	"gitlab.com/omj-2025.net/internal/domain"
	"gitlab.com/omj-2025.net/internal/static/errs"
)

var _ secondary.UploadStore = (*UploadStore)(nil)

// UploadStore writes submitted solution images under
// uploads/<year>/<etap>/<number>/ with generated names.
type UploadStore struct {
	uploadsDir string
	logger     primary.Logger
}

func NewUploadStore(cfg *config.StorageConfig, logger primary.Logger) *UploadStore {
	return &UploadStore{
		uploadsDir: cfg.UploadsDir,
		logger:     logger,
	}
}

// SaveImage streams one uploaded image to disk. It returns
// errs.FileTooLarge when r yields more than maxBytes bytes; the partial
// file is removed.
func (s *UploadStore) SaveImage(_ context.Context, key domain.ProblemKey, ext string, r io.Reader, maxBytes int64) (string, error) {
	dir := filepath.Join(s.uploadsDir, key.Year, key.Etap, strconv.Itoa(key.Number))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Error("Failed to create upload directory", "dir", dir, "error", err)
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(dir, uuid.New().String()+ext)
	f, err := os.Create(path)
	if err != nil {
		s.logger.Error("Failed to create upload file", "path", path, "error", err)
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	// Read one byte past the cap to detect oversized uploads.
	written, err := io.Copy(f, io.LimitReader(r, maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		s.logger.Error("Failed to write upload file", "path", path, "error", err)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if written > maxBytes {
		os.Remove(path)
		return "", errs.FileTooLarge
	}

	return path, nil
}
