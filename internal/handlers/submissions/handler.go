package submissions

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"gitlab.com/omj-2025.net/internal/config"
	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
	"gitlab.com/omj-2025.net/internal/core/services/submission"
	"gitlab.com/omj-2025.net/internal/domain"
	"gitlab.com/omj-2025.net/internal/handlers"
	"gitlab.com/omj-2025.net/internal/static/errs"
)

const defaultListLimit = 20

// allowedExtensions are the accepted solution photo formats
var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".heic": {},
}

// Handler handles submission API requests
type Handler struct {
	submissionService submission.ISubmissionService
	uploadStore       secondary.UploadStore
	uploadCfg         *config.UploadConfig
	logger            primary.Logger
}

// NewHandler creates a new submission handler
func NewHandler(
	submissionService submission.ISubmissionService,
	uploadStore secondary.UploadStore,
	uploadCfg *config.UploadConfig,
	logger primary.Logger,
) *Handler {
	return &Handler{
		submissionService: submissionService,
		uploadStore:       uploadStore,
		uploadCfg:         uploadCfg,
		logger:            logger,
	}
}

// RegisterRoutes registers the routes for Handler on the /api
// subrouter
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tasks/{year}/{etap}/{taskNumber}/submissions", h.Submit).Methods("POST")
	router.HandleFunc("/tasks/{year}/{etap}/{taskNumber}/submissions", h.ListSubmissions).Methods("GET")
	router.HandleFunc("/submissions/{submissionId}", h.GetSubmission).Methods("GET")
}

func problemKeyFromVars(vars map[string]string) (domain.ProblemKey, error) {
	etap := vars["etap"]
	if etap != domain.Etap1 && etap != domain.Etap2 && etap != domain.Etap3 {
		return domain.ProblemKey{}, fmt.Errorf("unknown etap: %s", etap)
	}
	number, err := strconv.Atoi(vars["taskNumber"])
	if err != nil || number <= 0 {
		return domain.ProblemKey{}, fmt.Errorf("invalid task number: %s", vars["taskNumber"])
	}
	return domain.ProblemKey{Year: vars["year"], Etap: etap, Number: number}, nil
}

// setRateLimitHeaders writes the user-scope counter state; the headers
// accompany admissions and denials alike
func setRateLimitHeaders(w http.ResponseWriter, admission domain.Admission) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(admission.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(admission.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(admission.ResetAt.Unix(), 10))
}

// Submit handles new submission requests
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	identity, ok := handlers.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	key, err := problemKeyFromVars(mux.Vars(r))
	if err != nil {
		handlers.ResponseError(w, err.Error(), http.StatusBadRequest)
		return
	}

	maxBytes := int64(h.uploadCfg.MaxSizeMB) << 20
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		handlers.ResponseError(w, "Invalid multipart request", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	paths, err := h.saveImages(r, key, r.MultipartForm.File["images"], maxBytes)
	if err != nil {
		switch {
		case errors.Is(err, errs.NoImages):
			handlers.ResponseError(w, "Prześlij co najmniej jedno zdjęcie rozwiązania.", http.StatusBadRequest)
		case errors.Is(err, errs.TooManyImages):
			handlers.ResponseError(w, fmt.Sprintf("Zbyt wiele zdjęć, maksymalnie %d.", h.uploadCfg.MaxImages), http.StatusBadRequest)
		case errors.Is(err, errs.UnsupportedFileType):
			handlers.ResponseError(w, "Nieobsługiwany format pliku. Dozwolone: JPEG, PNG, WebP, HEIC.", http.StatusBadRequest)
		case errors.Is(err, errs.FileTooLarge):
			handlers.ResponseError(w, fmt.Sprintf("Plik jest zbyt duży, maksymalnie %d MB.", h.uploadCfg.MaxSizeMB), http.StatusBadRequest)
		default:
			h.logger.Error("Failed to store uploaded images", "error", err)
			handlers.ResponseError(w, "Failed to store uploaded images", http.StatusInternalServerError)
		}
		return
	}

	sub, admission, err := h.submissionService.Submit(r.Context(), identity, key, paths)
	if admission.Limit > 0 {
		// zero-value admission means the limiter never ran
		setRateLimitHeaders(w, admission)
	}
	if err != nil {
		switch {
		case errors.Is(err, errs.TaskNotFound):
			handlers.ResponseError(w, "Task not found", http.StatusNotFound)
		case errors.Is(err, errs.RateLimited):
			retryAfter := int(admission.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			handlers.ResponseError(w, admission.Reason, http.StatusTooManyRequests)
		default:
			h.logger.Error("Failed to submit", "task", key.String(), "error", err)
			handlers.ResponseError(w, "Failed to submit", http.StatusInternalServerError)
		}
		return
	}

	handlers.ResponseWithJson(w, http.StatusAccepted, SubmitResponse{
		SubmissionID:   sub.ID.String(),
		ChannelLocator: fmt.Sprintf("/api/submissions/%s/ws", sub.ID),
	})
}

func (h *Handler) saveImages(r *http.Request, key domain.ProblemKey, files []*multipart.FileHeader, maxBytes int64) ([]string, error) {
	if len(files) == 0 {
		return nil, errs.NoImages
	}
	if len(files) > h.uploadCfg.MaxImages {
		return nil, errs.TooManyImages
	}

	paths := make([]string, 0, len(files))
	for _, header := range files {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if _, ok := allowedExtensions[ext]; !ok {
			return nil, errs.UnsupportedFileType
		}

		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open uploaded file: %w", err)
		}
		path, err := h.uploadStore.SaveImage(r.Context(), key, ext, f, maxBytes)
		f.Close()
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// GetSubmission handles submission retrieval requests. A submission is
// only visible to the user who made it; anyone else gets the same not
// found answer as a missing id.
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	identity, ok := handlers.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["submissionId"])
	if err != nil {
		handlers.ResponseError(w, "Invalid submission id", http.StatusBadRequest)
		return
	}

	sub, err := h.submissionService.GetSubmission(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get submission", "submissionId", id, "error", err)
		handlers.ResponseError(w, "Failed to get submission", http.StatusInternalServerError)
		return
	}
	if sub == nil || sub.UserID != identity.UserID {
		handlers.ResponseError(w, errs.SubmissionNotFound.Error(), http.StatusNotFound)
		return
	}

	handlers.ResponseWithJson(w, http.StatusOK, toView(sub))
}

// ListSubmissions handles submission history requests for one problem,
// scoped to the caller's own submissions
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	identity, ok := handlers.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	key, err := problemKeyFromVars(mux.Vars(r))
	if err != nil {
		handlers.ResponseError(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	subs, err := h.submissionService.ListSubmissions(r.Context(), identity, key, limit)
	if err != nil {
		h.logger.Error("Failed to list submissions", "task", key.String(), "error", err)
		handlers.ResponseError(w, "Failed to list submissions", http.StatusInternalServerError)
		return
	}

	views := make([]SubmissionView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, toView(sub))
	}
	handlers.ResponseWithJson(w, http.StatusOK, map[string][]SubmissionView{"submissions": views})
}
