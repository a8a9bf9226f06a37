package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/omj-2025.net/internal/config"
	"gitlab.com/omj-2025.net/internal/domain"
	"gitlab.com/omj-2025.net/internal/static/errs"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}

const indexJSON = `{
	"2024": {
		"etap2": {
			"tasks": "2024/etap2/zadania.pdf",
			"solutions": "2024/etap2/rozwiazania.pdf",
			"problems": {"1": "Nierówność", "2": "Geometria"}
		},
		"etap1": {
			"tasks": "2024/etap1/zadania.pdf",
			"solutions": "",
			"problems": {"1": "Podzielność"}
		}
	}
}`

func newTestStore(t *testing.T) *TaskStore {
	t.Helper()
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "tasks_index.json")
	require.NoError(t, os.WriteFile(indexPath, []byte(indexJSON), 0o644))

	store, err := NewTaskStore(&config.StorageConfig{
		TasksDir:       filepath.Join(dir, "tasks"),
		TasksIndexPath: indexPath,
	}, nopLogger{})
	require.NoError(t, err)
	return store
}

func TestGetTaskKnownProblem(t *testing.T) {
	store := newTestStore(t)

	info, err := store.GetTask(context.Background(), domain.ProblemKey{Year: "2024", Etap: domain.Etap2, Number: 2})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Geometria", info.Title)
	assert.True(t, info.HasSolution)
}

func TestGetTaskUnknownProblem(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []domain.ProblemKey{
		{Year: "1999", Etap: domain.Etap2, Number: 1},
		{Year: "2024", Etap: domain.Etap3, Number: 1},
		{Year: "2024", Etap: domain.Etap2, Number: 9},
	} {
		info, err := store.GetTask(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, info, "key %s", key)
	}
}

func TestGetMaterialsResolvesPaths(t *testing.T) {
	store := newTestStore(t)

	materials, err := store.GetMaterials(context.Background(), domain.ProblemKey{Year: "2024", Etap: domain.Etap2, Number: 1})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(materials.TaskPDFPath, filepath.Join("2024", "etap2", "zadania.pdf")))
	assert.True(t, strings.HasSuffix(materials.SolutionPDFPath, filepath.Join("2024", "etap2", "rozwiazania.pdf")))
}

func TestGetMaterialsWithoutSolutions(t *testing.T) {
	store := newTestStore(t)

	materials, err := store.GetMaterials(context.Background(), domain.ProblemKey{Year: "2024", Etap: domain.Etap1, Number: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, materials.TaskPDFPath)
	assert.Empty(t, materials.SolutionPDFPath)
}

func TestGetMaterialsUnknownProblem(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetMaterials(context.Background(), domain.ProblemKey{Year: "2024", Etap: domain.Etap2, Number: 9})
	assert.Error(t, err)
}

func TestSaveImageWritesUnderProblemDir(t *testing.T) {
	dir := t.TempDir()
	store := NewUploadStore(&config.StorageConfig{UploadsDir: dir}, nopLogger{})
	key := domain.ProblemKey{Year: "2024", Etap: domain.Etap2, Number: 1}

	path, err := store.SaveImage(context.Background(), key, ".jpg", strings.NewReader("image bytes"), 1<<20)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, filepath.Join(dir, "2024", "etap2", "1")))
	assert.True(t, strings.HasSuffix(path, ".jpg"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))
}

func TestSaveImageRejectsOversizedUpload(t *testing.T) {
	dir := t.TempDir()
	store := NewUploadStore(&config.StorageConfig{UploadsDir: dir}, nopLogger{})
	key := domain.ProblemKey{Year: "2024", Etap: domain.Etap2, Number: 1}

	_, err := store.SaveImage(context.Background(), key, ".jpg", strings.NewReader("0123456789"), 5)
	assert.ErrorIs(t, err, errs.FileTooLarge)

	// partial file must not survive
	entries, err := os.ReadDir(filepath.Join(dir, "2024", "etap2", "1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
