// package storage contains the filesystem-backed task and upload stores
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gitlab.com/omj-2025.net/internal/config"
	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
	"gitlab.com/omj-2025.net/internal/domain"
)

var _ secondary.TaskStore = (*TaskStore)(nil)

// indexEntry is one year/etap node of the task index. Tasks and
// Solutions are PDF paths relative to the tasks directory; Problems
// maps problem numbers to titles.
type indexEntry struct {
	Tasks     string            `json:"tasks"`
	Solutions string            `json:"solutions"`
	Problems  map[string]string `json:"problems"`
}

// TaskStore serves problem metadata and reference PDFs from a static
// tasks directory indexed by a JSON file. The index is loaded once at
// construction and never reloaded.
type TaskStore struct {
	tasksDir string
	index    map[string]map[string]indexEntry
	logger   primary.Logger
}

func NewTaskStore(cfg *config.StorageConfig, logger primary.Logger) (*TaskStore, error) {
	data, err := os.ReadFile(cfg.TasksIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks index: %w", err)
	}

	var index map[string]map[string]indexEntry
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse tasks index: %w", err)
	}

	logger.Info("Loaded tasks index", "path", cfg.TasksIndexPath, "years", len(index))

	return &TaskStore{
		tasksDir: cfg.TasksDir,
		index:    index,
		logger:   logger,
	}, nil
}

func (s *TaskStore) lookup(key domain.ProblemKey) (indexEntry, bool) {
	etaps, ok := s.index[key.Year]
	if !ok {
		return indexEntry{}, false
	}
	entry, ok := etaps[key.Etap]
	if !ok {
		return indexEntry{}, false
	}
	if _, ok := entry.Problems[strconv.Itoa(key.Number)]; !ok {
		return indexEntry{}, false
	}
	return entry, true
}

// GetTask returns index info for a problem, nil when unknown
func (s *TaskStore) GetTask(_ context.Context, key domain.ProblemKey) (*domain.TaskInfo, error) {
	entry, ok := s.lookup(key)
	if !ok {
		return nil, nil
	}

	return &domain.TaskInfo{
		Year:        key.Year,
		Etap:        key.Etap,
		Number:      key.Number,
		Title:       entry.Problems[strconv.Itoa(key.Number)],
		HasSolution: entry.Solutions != "",
	}, nil
}

// GetMaterials resolves the task and solution PDFs for a problem
func (s *TaskStore) GetMaterials(_ context.Context, key domain.ProblemKey) (*domain.ProblemMaterials, error) {
	entry, ok := s.lookup(key)
	if !ok {
		return nil, fmt.Errorf("no materials for problem %s", key)
	}
	if entry.Tasks == "" {
		return nil, fmt.Errorf("no task PDF for problem %s", key)
	}

	materials := &domain.ProblemMaterials{
		Key:         key,
		TaskPDFPath: filepath.Join(s.tasksDir, entry.Tasks),
	}
	if entry.Solutions != "" {
		materials.SolutionPDFPath = filepath.Join(s.tasksDir, entry.Solutions)
	}

	return materials, nil
}
