package secondary

import (
	"context"
	"io"

	"gitlab.com/omj-2025.net/internal/domain"
)

// TaskStore is the task-content collaborator: it resolves problem keys
// to reference materials for the grading provider.
type TaskStore interface {
	// GetTask returns index info for a problem, nil when unknown
	GetTask(ctx context.Context, key domain.ProblemKey) (*domain.TaskInfo, error)

	// GetMaterials resolves the task and solution PDFs for a problem
	GetMaterials(ctx context.Context, key domain.ProblemKey) (*domain.ProblemMaterials, error)
}

// UploadStore persists submitted solution images
type UploadStore interface {
	// SaveImage streams one uploaded image to storage and returns its
	// stored path. ext must include the leading dot.
	SaveImage(ctx context.Context, key domain.ProblemKey, ext string, r io.Reader, maxBytes int64) (string, error)
}
