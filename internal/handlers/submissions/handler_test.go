package submissions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/omj-2025.net/internal/config"
	"gitlab.com/omj-2025.net/internal/domain"
	"gitlab.com/omj-2025.net/internal/handlers"
	"gitlab.com/omj-2025.net/internal/static/errs"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}

// stubService scripts the submission service: it admits perUser times
// per identity and denies afterwards
type stubService struct {
	perUser    int
	counts     map[uuid.UUID]int
	resetAt    time.Time
	submission *domain.Submission
	listResult []*domain.Submission
	submitErr  error
}

func newStubService(perUser int) *stubService {
	return &stubService{
		perUser: perUser,
		counts:  make(map[uuid.UUID]int),
		resetAt: time.Now().Add(24 * time.Hour),
	}
}

func (s *stubService) Submit(_ context.Context, identity domain.Identity, key domain.ProblemKey, images []string) (*domain.Submission, domain.Admission, error) {
	if s.submitErr != nil {
		return nil, domain.Admission{}, s.submitErr
	}
	used := s.counts[identity.UserID]
	admission := domain.Admission{
		Limit:     s.perUser,
		Remaining: s.perUser - used - 1,
		ResetAt:   s.resetAt,
	}
	if used >= s.perUser {
		admission.Allowed = false
		admission.Remaining = 0
		admission.RetryAfter = time.Hour
		admission.DeniedBy = domain.ScopeUser
		admission.Reason = "Przekroczono dzienny limit zgłoszeń. Spróbuj ponownie później."
		return nil, admission, errs.RateLimited
	}
	s.counts[identity.UserID] = used + 1
	admission.Allowed = true
	sub := domain.NewSubmission(identity.UserID, key, images)
	return sub, admission, nil
}

func (s *stubService) GetSubmission(_ context.Context, id uuid.UUID) (*domain.Submission, error) {
	if s.submission != nil && s.submission.ID == id {
		return s.submission, nil
	}
	return nil, nil
}

func (s *stubService) ListSubmissions(_ context.Context, _ domain.Identity, _ domain.ProblemKey, _ int) ([]*domain.Submission, error) {
	return s.listResult, nil
}

// stubUploads records saved images without touching disk
type stubUploads struct {
	saved int
}

func (s *stubUploads) SaveImage(_ context.Context, key domain.ProblemKey, ext string, r io.Reader, _ int64) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	s.saved++
	return fmt.Sprintf("uploads/%s/%d%s", key.String(), s.saved, ext), nil
}

func newTestRouter(svc *stubService, identity domain.Identity) *mux.Router {
	uploadCfg := &config.UploadConfig{MaxImages: 3, MaxSizeMB: 10}
	handler := NewHandler(svc, &stubUploads{}, uploadCfg, nopLogger{})

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(handlers.WithIdentity(req.Context(), identity)))
		})
	})
	handler.RegisterRoutes(api)
	return r
}

func multipartBody(t *testing.T, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range filenames {
		part, err := writer.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func postSubmission(t *testing.T, router *mux.Router, filenames ...string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, filenames...)
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/2024/etap2/1/submissions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func testIdentity() domain.Identity {
	return domain.Identity{UserID: uuid.New(), Username: "uczestnik", Email: "uczestnik@example.com"}
}

func TestSubmitAccepted(t *testing.T) {
	router := newTestRouter(newStubService(3), testIdentity())

	rec := postSubmission(t, router, "strona1.jpg", "strona2.png")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SubmissionID)
	assert.Equal(t, fmt.Sprintf("/api/submissions/%s/ws", resp.SubmissionID), resp.ChannelLocator)

	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestSubmitRateLimitSequence(t *testing.T) {
	router := newTestRouter(newStubService(3), testIdentity())

	for want := 2; want >= 0; want-- {
		rec := postSubmission(t, router, "strona1.jpg")
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, strconv.Itoa(want), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := postSubmission(t, router, "strona1.jpg")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retryAfter, 0)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.Contains(resp["error"], "limit"))
}

func TestSubmitRejectsEmptyUpload(t *testing.T) {
	router := newTestRouter(newStubService(3), testIdentity())

	rec := postSubmission(t, router)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRejectsTooManyImages(t *testing.T) {
	router := newTestRouter(newStubService(3), testIdentity())

	rec := postSubmission(t, router, "1.jpg", "2.jpg", "3.jpg", "4.jpg")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRejectsUnsupportedFileType(t *testing.T) {
	router := newTestRouter(newStubService(3), testIdentity())

	rec := postSubmission(t, router, "rozwiazanie.pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRejectsUnknownEtap(t *testing.T) {
	router := newTestRouter(newStubService(3), testIdentity())

	body, contentType := multipartBody(t, "strona1.jpg")
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/2024/etap9/1/submissions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSubmissionFound(t *testing.T) {
	svc := newStubService(3)
	owner := testIdentity()
	score := 6
	feedback := "Pełne rozwiązanie."
	sub := domain.NewSubmission(owner.UserID, domain.ProblemKey{Year: "2024", Etap: domain.Etap2, Number: 1}, []string{"a.jpg"})
	sub.Status = domain.SubmissionStatusCompleted
	sub.Score = &score
	sub.Feedback = &feedback
	svc.submission = sub

	router := newTestRouter(svc, owner)
	req := httptest.NewRequest(http.MethodGet, "/api/submissions/"+sub.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var view SubmissionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, sub.ID.String(), view.ID)
	assert.Equal(t, "COMPLETED", view.Status)
	require.NotNil(t, view.Score)
	assert.Equal(t, 6, *view.Score)
}

func TestGetSubmissionNotFound(t *testing.T) {
	router := newTestRouter(newStubService(3), testIdentity())

	req := httptest.NewRequest(http.MethodGet, "/api/submissions/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSubmissionHiddenFromOtherUsers(t *testing.T) {
	svc := newStubService(3)
	sub := domain.NewSubmission(uuid.New(), domain.ProblemKey{Year: "2024", Etap: domain.Etap2, Number: 1}, []string{"a.jpg"})
	svc.submission = sub

	// authenticated, but not the submission's owner
	router := newTestRouter(svc, testIdentity())
	req := httptest.NewRequest(http.MethodGet, "/api/submissions/"+sub.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitUnknownTaskOmitsRateLimitHeaders(t *testing.T) {
	svc := newStubService(3)
	svc.submitErr = errs.TaskNotFound

	router := newTestRouter(svc, testIdentity())
	rec := postSubmission(t, router, "strona1.jpg")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	assert.Empty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestListSubmissions(t *testing.T) {
	svc := newStubService(3)
	svc.listResult = []*domain.Submission{
		domain.NewSubmission(uuid.New(), domain.ProblemKey{Year: "2024", Etap: domain.Etap2, Number: 1}, []string{"a.jpg"}),
	}

	router := newTestRouter(svc, testIdentity())
	req := httptest.NewRequest(http.MethodGet, "/api/tasks/2024/etap2/1/submissions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]SubmissionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp["submissions"], 1)
}
