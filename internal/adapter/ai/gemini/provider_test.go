package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/omj-2025.net/internal/config"
	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
	"gitlab.com/omj-2025.net/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}

// fakeAPI mimics the slice of the Gemini REST surface the provider
// touches
type fakeAPI struct {
	generateStatus int
	generateBody   string
	uploadStatus   int
	uploadBody     string
	uploads        atomic.Int32
	deletes        atomic.Int32
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		generateStatus: http.StatusOK,
		uploadStatus:   http.StatusOK,
	}
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		f.uploads.Add(1)
		w.WriteHeader(f.uploadStatus)
		if f.uploadBody != "" {
			fmt.Fprint(w, f.uploadBody)
			return
		}
		name := fmt.Sprintf("files/upload-%d", f.uploads.Load())
		json.NewEncoder(w).Encode(map[string]interface{}{
			"file": map[string]string{
				"name":     name,
				"uri":      "https://files.example/" + name,
				"mimeType": r.Header.Get("Content-Type"),
			},
		})
	})
	mux.HandleFunc("/v1beta/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			f.deletes.Add(1)
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(f.generateStatus)
		fmt.Fprint(w, f.generateBody)
	})
	return mux
}

func replyWithText(text string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"finishReason": "STOP",
				"content": map[string]interface{}{
					"parts": []map[string]string{{"text": text}},
				},
			},
		},
	})
	return string(body)
}

func newTestProvider(t *testing.T, api *fakeAPI) (*Provider, *secondary.GradingRequest) {
	t.Helper()
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	dir := t.TempDir()
	taskPDF := filepath.Join(dir, "zadania.pdf")
	require.NoError(t, os.WriteFile(taskPDF, []byte("%PDF-1.4 tasks"), 0o644))
	image := filepath.Join(dir, "strona1.jpg")
	require.NoError(t, os.WriteFile(image, []byte("jpeg bytes"), 0o644))

	cfg := &config.AIConfig{
		GeminiAPIKey:   "test-key",
		GeminiModel:    "gemini-2.0-flash",
		GeminiBaseURL:  server.URL,
		GradingTimeout: 5 * time.Second,
	}
	provider, err := NewProvider(cfg, &config.StorageConfig{PromptsDir: dir}, nopLogger{})
	require.NoError(t, err)

	req := &secondary.GradingRequest{
		SubmissionID: "sub-1",
		Materials: domain.ProblemMaterials{
			Key:         domain.ProblemKey{Year: "2024", Etap: domain.Etap2, Number: 1},
			TaskPDFPath: taskPDF,
		},
		ImagePaths: []string{image},
	}
	return provider, req
}

func TestNewProviderRequiresAPIKey(t *testing.T) {
	_, err := NewProvider(&config.AIConfig{}, &config.StorageConfig{}, nopLogger{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestGradeSuccess(t *testing.T) {
	api := newFakeAPI()
	api.generateBody = replyWithText(`{"score": 5, "feedback": "Dobre rozwiązanie, drobna luka."}`)
	provider, req := newTestProvider(t, api)

	var statuses []string
	req.OnStatus = func(message string) { statuses = append(statuses, message) }

	verdict, err := provider.Grade(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 5, verdict.Score)
	assert.Equal(t, "gemini", verdict.Meta["provider"])
	assert.NotEmpty(t, statuses)

	// task PDF and one image uploaded, both cleaned up afterwards
	assert.Equal(t, int32(2), api.uploads.Load())
	assert.Equal(t, int32(2), api.deletes.Load())
}

func TestGradeQuotaExhausted(t *testing.T) {
	api := newFakeAPI()
	api.generateStatus = http.StatusTooManyRequests
	api.generateBody = `{"error": {"status": "RESOURCE_EXHAUSTED"}}`
	provider, req := newTestProvider(t, api)

	_, err := provider.Grade(context.Background(), req)
	ge, ok := domain.AsGradingError(err)
	require.True(t, ok)
	assert.Equal(t, domain.GradingErrQuotaExceeded, ge.Kind)
}

func TestGradeInvalidAPIKey(t *testing.T) {
	api := newFakeAPI()
	api.uploadStatus = http.StatusForbidden
	api.uploadBody = `{"error": {"message": "API key not valid"}}`
	provider, req := newTestProvider(t, api)

	_, err := provider.Grade(context.Background(), req)
	ge, ok := domain.AsGradingError(err)
	require.True(t, ok)
	assert.Equal(t, domain.GradingErrInvalidCredentials, ge.Kind)
}

func TestGradePromptBlocked(t *testing.T) {
	api := newFakeAPI()
	body, _ := json.Marshal(map[string]interface{}{
		"promptFeedback": map[string]string{"blockReason": "SAFETY"},
	})
	api.generateBody = string(body)
	provider, req := newTestProvider(t, api)

	_, err := provider.Grade(context.Background(), req)
	ge, ok := domain.AsGradingError(err)
	require.True(t, ok)
	assert.Equal(t, domain.GradingErrSafetyRejected, ge.Kind)
}

func TestGradeCandidateStoppedForSafety(t *testing.T) {
	api := newFakeAPI()
	body, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{{"finishReason": "SAFETY"}},
	})
	api.generateBody = string(body)
	provider, req := newTestProvider(t, api)

	_, err := provider.Grade(context.Background(), req)
	ge, ok := domain.AsGradingError(err)
	require.True(t, ok)
	assert.Equal(t, domain.GradingErrSafetyRejected, ge.Kind)
}

func TestGradeUnparsableReply(t *testing.T) {
	api := newFakeAPI()
	api.generateBody = replyWithText("Niestety nie mogę ocenić tej pracy.")
	provider, req := newTestProvider(t, api)

	_, err := provider.Grade(context.Background(), req)
	ge, ok := domain.AsGradingError(err)
	require.True(t, ok)
	assert.Equal(t, domain.GradingErrMalformedResponse, ge.Kind)
}

func TestTransportErrorClassifiesWrappedDeadline(t *testing.T) {
	api := newFakeAPI()
	provider, _ := newTestProvider(t, api)

	// http.Client surfaces deadline hits wrapped in a *url.Error
	wrapped := fmt.Errorf("Post %q: %w", "https://example.invalid/v1beta", context.DeadlineExceeded)
	ge, ok := domain.AsGradingError(provider.transportError(wrapped))
	require.True(t, ok)
	assert.Equal(t, domain.GradingErrTimeout, ge.Kind)

	ge, ok = domain.AsGradingError(provider.transportError(fmt.Errorf("connection refused")))
	require.True(t, ok)
	assert.Equal(t, domain.GradingErrMalformedResponse, ge.Kind)
}

func TestGradeUsesDeployedPromptFile(t *testing.T) {
	api := newFakeAPI()
	api.generateBody = replyWithText(`{"score": 6, "feedback": "ok"}`)
	provider, req := newTestProvider(t, api)

	prompt := filepath.Join(provider.promptsDir, "gemini_etap2.txt")
	require.NoError(t, os.WriteFile(prompt, []byte("Własna instrukcja oceny."), 0o644))

	text := provider.prompt(req)
	assert.True(t, strings.HasPrefix(text, "Własna instrukcja oceny."))
	assert.Contains(t, text, "Zadanie numer: 1")
}
