// package parsing normalizes raw model replies into verdicts shared by
// all grading providers
package parsing

import (
	"encoding/json"
	"regexp"
	"strings"

	"gitlab.com/omj-2025.net/internal/domain"
)

// Canned user-facing feedback for flagged submissions
const (
	// wrongTaskFeedback tells the student the photos likely show a
	// different problem
	wrongTaskFeedback = "Uwaga: Przesłane rozwiązanie prawdopodobnie nie dotyczy tego zadania. " +
		"Sprawdź numer zadania i prześlij poprawne rozwiązanie."

	// injectionFeedback is deliberately bland; it must not reveal that
	// an injection attempt was detected
	injectionFeedback = "Nie udało się przeanalizować rozwiązania. " +
		"Upewnij się, że zdjęcia zawierają wyraźne rozwiązanie zadania matematycznego."

	malformedMessage = "Nie udało się przetworzyć odpowiedzi systemu oceniającego. Spróbuj ponownie za chwilę."
)

var jsonFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// modelReply is the JSON object the grading prompt asks the model for
type modelReply struct {
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
	Issue    string   `json:"issue"`
}

// NormalizeScore snaps any raw score to the etap's valid score set.
// Etap 1 grades 0/1/3, etaps 2 and 3 grade 0/2/5/6.
func NormalizeScore(score int, etap string) int {
	if etap == domain.Etap1 {
		switch {
		case score <= 0:
			return 0
		case score <= 2:
			return 1
		default:
			return 3
		}
	}
	switch {
	case score <= 1:
		return 0
	case score <= 3:
		return 2
	case score <= 5:
		return 5
	default:
		return 6
	}
}

// Parse extracts the verdict from a model reply. The score is snapped
// to the etap's score set; a flagged issue forces score 0 with canned
// feedback and is recorded in the verdict's metadata only.
func Parse(text, etap string) (*domain.Verdict, error) {
	reply, ok := extractReply(text)
	if !ok || reply.Score == nil {
		return nil, domain.NewGradingError(domain.GradingErrMalformedResponse, malformedMessage)
	}

	rawScore := int(*reply.Score)
	verdict := &domain.Verdict{
		Score:    NormalizeScore(rawScore, etap),
		Feedback: strings.TrimSpace(reply.Feedback),
		Meta: map[string]interface{}{
			"raw_score": rawScore,
		},
	}

	switch domain.IssueKind(reply.Issue) {
	case domain.IssueWrongTask:
		verdict.Score = 0
		verdict.Feedback = wrongTaskFeedback
		verdict.Meta["issue"] = string(domain.IssueWrongTask)
	case domain.IssuePromptInjection:
		verdict.Score = 0
		verdict.Feedback = injectionFeedback
		verdict.Meta["issue"] = string(domain.IssuePromptInjection)
	}

	if verdict.Feedback == "" {
		return nil, domain.NewGradingError(domain.GradingErrMalformedResponse, malformedMessage)
	}

	return verdict, nil
}

// extractReply tries, in order: the whole text as JSON, a fenced
// ```json``` block, and the first balanced JSON object mentioning
// "score"
func extractReply(text string) (modelReply, bool) {
	text = strings.TrimSpace(text)

	var reply modelReply
	if err := json.Unmarshal([]byte(text), &reply); err == nil {
		return reply, true
	}

	if m := jsonFencePattern.FindStringSubmatch(text); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &reply); err == nil {
			return reply, true
		}
	}

	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		if end, ok := balancedEnd(text, start); ok {
			candidate := text[start : end+1]
			if strings.Contains(candidate, "\"score\"") {
				if err := json.Unmarshal([]byte(candidate), &reply); err == nil {
					return reply, true
				}
			}
			start = end
		}
	}

	return modelReply{}, false
}

// balancedEnd finds the index of the brace closing the object that
// opens at start, string-literal aware
func balancedEnd(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
