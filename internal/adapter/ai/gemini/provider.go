// package gemini grades submissions through the Gemini REST API
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gitlab.com/omj-2025.net/internal/adapter/ai/parsing"
	"gitlab.com/omj-2025.net/internal/config"
	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
	"gitlab.com/omj-2025.net/internal/domain"
)

const statusAnalyzing = "Analizuję rozwiązanie..."

// User-facing failure messages per taxonomy kind
const (
	msgQuota   = "System jest obecnie przeciążony. Spróbuj ponownie za kilka minut."
	msgKey     = "Przepraszamy, wystąpił problem techniczny. Spróbuj ponownie później."
	msgSafety  = "Nie udało się przetworzyć zdjęcia. Upewnij się, że zdjęcie zawiera tylko rozwiązanie zadania."
	msgGeneric = "Przepraszamy, coś poszło nie tak. Spróbuj ponownie za chwilę."
)

// Provider implements the grading contract against the Gemini
// generateContent API. All provider failures leave as typed
// *domain.GradingError values; nothing Gemini-specific crosses the
// port.
type Provider struct {
	client     *http.Client
	apiKey     string
	model      string
	baseURL    string
	promptsDir string
	logger     primary.Logger
}

var _ secondary.GradingProvider = (*Provider)(nil)

// NewProvider creates a Gemini provider. The API key is required.
func NewProvider(cfg *config.AIConfig, storageCfg *config.StorageConfig, logger primary.Logger) (*Provider, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER=gemini")
	}
	return &Provider{
		client:     &http.Client{Timeout: cfg.GradingTimeout},
		apiKey:     cfg.GeminiAPIKey,
		model:      cfg.GeminiModel,
		baseURL:    strings.TrimRight(cfg.GeminiBaseURL, "/"),
		promptsDir: storageCfg.PromptsDir,
		logger:     logger,
	}, nil
}

// Name identifies the provider in logs
func (p *Provider) Name() string {
	return "gemini"
}

// Grade uploads the reference materials and solution images, asks the
// model for a verdict and normalizes the reply
func (p *Provider) Grade(ctx context.Context, req *secondary.GradingRequest) (*domain.Verdict, error) {
	uploaded, err := p.uploadFiles(ctx, req)
	if err != nil {
		return nil, err
	}
	defer p.cleanupFiles(uploaded)

	if req.OnStatus != nil {
		req.OnStatus(statusAnalyzing)
	}

	text, err := p.generate(ctx, req, uploaded)
	if err != nil {
		return nil, err
	}

	verdict, err := parsing.Parse(text, req.Materials.Key.Etap)
	if err != nil {
		p.logger.Error("Failed to parse model reply",
			"submissionId", req.SubmissionID,
			"replyLength", len(text))
		return nil, err
	}
	verdict.Meta["provider"] = p.Name()
	verdict.Meta["model"] = p.model

	return verdict, nil
}

type uploadedFile struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
}

// uploadFiles pushes the task PDF, the optional solution PDF and every
// solution image to the Files API, in request order
func (p *Provider) uploadFiles(ctx context.Context, req *secondary.GradingRequest) ([]uploadedFile, error) {
	paths := []string{req.Materials.TaskPDFPath}
	if req.Materials.SolutionPDFPath != "" {
		paths = append(paths, req.Materials.SolutionPDFPath)
	}
	paths = append(paths, req.ImagePaths...)

	uploaded := make([]uploadedFile, 0, len(paths))
	for _, path := range paths {
		file, err := p.uploadFile(ctx, path)
		if err != nil {
			p.cleanupFiles(uploaded)
			return nil, err
		}
		uploaded = append(uploaded, file)
	}
	return uploaded, nil
}

func (p *Provider) uploadFile(ctx context.Context, path string) (uploadedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		p.logger.Error("Failed to read file for upload", "path", path, "error", err)
		return uploadedFile{}, domain.NewGradingError(domain.GradingErrMalformedResponse, msgGeneric)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	url := fmt.Sprintf("%s/upload/v1beta/files", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return uploadedFile{}, domain.NewGradingError(domain.GradingErrMalformedResponse, msgGeneric)
	}
	httpReq.Header.Set("x-goog-api-key", p.apiKey)
	httpReq.Header.Set("X-Goog-Upload-Protocol", "raw")
	httpReq.Header.Set("X-Goog-File-Name", filepath.Base(path))
	httpReq.Header.Set("Content-Type", mimeType)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return uploadedFile{}, p.transportError(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return uploadedFile{}, p.apiError(resp.StatusCode, body)
	}

	var reply struct {
		File uploadedFile `json:"file"`
	}
	if err := json.Unmarshal(body, &reply); err != nil || reply.File.URI == "" {
		p.logger.Error("Unexpected file upload reply", "status", resp.StatusCode)
		return uploadedFile{}, domain.NewGradingError(domain.GradingErrMalformedResponse, msgGeneric)
	}
	if reply.File.MimeType == "" {
		reply.File.MimeType = mimeType
	}

	return reply.File, nil
}

type generatePart struct {
	Text     string `json:"text,omitempty"`
	FileData *struct {
		FileURI  string `json:"fileUri"`
		MimeType string `json:"mimeType"`
	} `json:"fileData,omitempty"`
}

// generate runs the generateContent call and returns the reply text
func (p *Provider) generate(ctx context.Context, req *secondary.GradingRequest, files []uploadedFile) (string, error) {
	parts := make([]generatePart, 0, len(files)+1)
	for _, f := range files {
		part := generatePart{}
		part.FileData = &struct {
			FileURI  string `json:"fileUri"`
			MimeType string `json:"mimeType"`
		}{FileURI: f.URI, MimeType: f.MimeType}
		parts = append(parts, part)
	}
	parts = append(parts, generatePart{Text: p.prompt(req)})

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": parts},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", domain.NewGradingError(domain.GradingErrMalformedResponse, msgGeneric)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, p.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", domain.NewGradingError(domain.GradingErrMalformedResponse, msgGeneric)
	}
	httpReq.Header.Set("x-goog-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", p.transportError(err)
	}
	defer resp.Body.Close()

	replyBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", p.apiError(resp.StatusCode, replyBody)
	}

	var reply struct {
		Candidates []struct {
			FinishReason string `json:"finishReason"`
			Content      struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback"`
	}
	if err := json.Unmarshal(replyBody, &reply); err != nil {
		return "", domain.NewGradingError(domain.GradingErrMalformedResponse, msgGeneric)
	}

	if reply.PromptFeedback.BlockReason != "" {
		p.logger.Warn("Prompt blocked by safety filter", "reason", reply.PromptFeedback.BlockReason)
		return "", domain.NewGradingError(domain.GradingErrSafetyRejected, msgSafety)
	}
	if len(reply.Candidates) == 0 {
		return "", domain.NewGradingError(domain.GradingErrMalformedResponse, msgGeneric)
	}
	if reason := reply.Candidates[0].FinishReason; reason == "SAFETY" || reason == "PROHIBITED_CONTENT" {
		return "", domain.NewGradingError(domain.GradingErrSafetyRejected, msgSafety)
	}

	var sb strings.Builder
	for _, part := range reply.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	p.logger.Info("Model reply received",
		"model", p.model,
		"elapsed", time.Since(start),
		"length", sb.Len())

	return sb.String(), nil
}

// prompt loads the etap-specific grading prompt, falling back to a
// built-in instruction when no prompt file is deployed
func (p *Provider) prompt(req *secondary.GradingRequest) string {
	etap := req.Materials.Key.Etap
	path := filepath.Join(p.promptsDir, fmt.Sprintf("gemini_%s.txt", etap))
	if data, err := os.ReadFile(path); err == nil {
		return fmt.Sprintf("%s\n\nZadanie numer: %d", string(data), req.Materials.Key.Number)
	}

	scores := make([]string, 0, 4)
	for _, s := range domain.ValidScores(etap) {
		scores = append(scores, fmt.Sprintf("%d", s))
	}
	return fmt.Sprintf(
		"Oceń rozwiązanie zadania %d z załączonych zdjęć, korzystając z treści zadań "+
			"w pierwszym pliku PDF. Dozwolone oceny: %s. "+
			"Odpowiedz wyłącznie obiektem JSON: {\"score\": <liczba>, \"feedback\": \"<uzasadnienie po polsku>\"}.",
		req.Materials.Key.Number, strings.Join(scores, ", "))
}

// cleanupFiles deletes uploaded files, best effort
func (p *Provider) cleanupFiles(files []uploadedFile) {
	for _, f := range files {
		if f.Name == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		url := fmt.Sprintf("%s/v1beta/%s", p.baseURL, f.Name)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
		if err == nil {
			httpReq.Header.Set("x-goog-api-key", p.apiKey)
			if resp, err := p.client.Do(httpReq); err == nil {
				resp.Body.Close()
			}
		}
		cancel()
	}
}

// transportError maps a transport-level failure; a deadline hit is a
// timeout, everything else is opaque
func (p *Provider) transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.NewGradingError(domain.GradingErrTimeout,
			"Analiza trwa zbyt długo. Spróbuj ponownie za chwilę.")
	}
	p.logger.Error("Gemini request failed", "error", err)
	return domain.NewGradingError(domain.GradingErrMalformedResponse, msgGeneric)
}

// apiError maps an API status to the fixed error taxonomy
func (p *Provider) apiError(status int, body []byte) error {
	lower := strings.ToLower(string(body))
	p.logger.Error("Gemini API error", "status", status)

	switch {
	case status == http.StatusTooManyRequests || strings.Contains(lower, "quota") || strings.Contains(lower, "resource_exhausted"):
		return domain.NewGradingError(domain.GradingErrQuotaExceeded, msgQuota)
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		(strings.Contains(lower, "invalid") && strings.Contains(lower, "key")):
		return domain.NewGradingError(domain.GradingErrInvalidCredentials, msgKey)
	case strings.Contains(lower, "safety") || strings.Contains(lower, "blocked"):
		return domain.NewGradingError(domain.GradingErrSafetyRejected, msgSafety)
	default:
		return domain.NewGradingError(domain.GradingErrMalformedResponse, msgGeneric)
	}
}
