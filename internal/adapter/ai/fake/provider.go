// package fake is a deterministic grading provider for tests and
// local development
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gitlab.com/omj-2025.net/internal/adapter/ai/parsing"
	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
	"gitlab.com/omj-2025.net/internal/domain"
)

// Scenario names the fake's canned behaviors
type Scenario string

const (
	ScenarioScore0         Scenario = "success_score_0"
	ScenarioScore2         Scenario = "success_score_2"
	ScenarioScore5         Scenario = "success_score_5"
	ScenarioScore6         Scenario = "success_score_6"
	ScenarioErrTimeout     Scenario = "error_timeout"
	ScenarioErrQuota       Scenario = "error_quota"
	ScenarioErrSafety      Scenario = "error_safety"
	ScenarioErrInvalidKey  Scenario = "error_invalid_key"
	ScenarioErrMalformed   Scenario = "error_malformed"
	ScenarioSlow           Scenario = "slow_response"
	ScenarioWrongTask      Scenario = "wrong_task"
	ScenarioInjectionFound Scenario = "prompt_injection"
)

var scenarioScores = map[Scenario]int{
	ScenarioScore0: 0,
	ScenarioScore2: 2,
	ScenarioScore5: 5,
	ScenarioScore6: 6,
}

// Provider returns canned verdicts keyed by problem, falling back to
// a default scenario. The scenario registry is mutable so tests can
// script one behavior per problem.
type Provider struct {
	mu              sync.Mutex
	defaultScenario Scenario
	byProblem       map[string]Scenario
	// SlowDelay is how long ScenarioSlow stalls before answering
	SlowDelay time.Duration
}

var _ secondary.GradingProvider = (*Provider)(nil)

// NewProvider creates a fake provider with the given default scenario
func NewProvider(defaultScenario string) *Provider {
	return &Provider{
		defaultScenario: Scenario(defaultScenario),
		byProblem:       make(map[string]Scenario),
		SlowDelay:       200 * time.Millisecond,
	}
}

// Name identifies the provider in logs
func (p *Provider) Name() string {
	return "fake"
}

// SetScenario scripts the behavior for one problem key
func (p *Provider) SetScenario(key domain.ProblemKey, scenario Scenario) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byProblem[key.String()] = scenario
}

func (p *Provider) scenarioFor(key domain.ProblemKey) Scenario {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.byProblem[key.String()]; ok {
		return s
	}
	return p.defaultScenario
}

// Grade plays the scripted scenario for the request's problem
func (p *Provider) Grade(ctx context.Context, req *secondary.GradingRequest) (*domain.Verdict, error) {
	scenario := p.scenarioFor(req.Materials.Key)

	if req.OnStatus != nil {
		req.OnStatus("Analizuję rozwiązanie...")
	}

	switch scenario {
	case ScenarioErrTimeout:
		// stall until the caller's deadline fires
		<-ctx.Done()
		return nil, ctx.Err()
	case ScenarioErrQuota:
		return nil, domain.NewGradingError(domain.GradingErrQuotaExceeded,
			"System jest obecnie przeciążony. Spróbuj ponownie za kilka minut.")
	case ScenarioErrSafety:
		return nil, domain.NewGradingError(domain.GradingErrSafetyRejected,
			"Nie udało się przetworzyć zdjęcia. Upewnij się, że zdjęcie zawiera tylko rozwiązanie zadania.")
	case ScenarioErrInvalidKey:
		return nil, domain.NewGradingError(domain.GradingErrInvalidCredentials,
			"Przepraszamy, wystąpił problem techniczny. Spróbuj ponownie później.")
	case ScenarioErrMalformed:
		return nil, domain.NewGradingError(domain.GradingErrMalformedResponse,
			"Nie udało się przetworzyć odpowiedzi systemu oceniającego. Spróbuj ponownie za chwilę.")
	case ScenarioWrongTask:
		return &domain.Verdict{
			Score: 0,
			Feedback: "Uwaga: Przesłane rozwiązanie prawdopodobnie nie dotyczy tego zadania. " +
				"Sprawdź numer zadania i prześlij poprawne rozwiązanie.",
			Meta: map[string]interface{}{"issue": string(domain.IssueWrongTask), "provider": p.Name()},
		}, nil
	case ScenarioInjectionFound:
		return &domain.Verdict{
			Score: 0,
			Feedback: "Nie udało się przeanalizować rozwiązania. " +
				"Upewnij się, że zdjęcia zawierają wyraźne rozwiązanie zadania matematycznego.",
			Meta: map[string]interface{}{"issue": string(domain.IssuePromptInjection), "provider": p.Name()},
		}, nil
	case ScenarioSlow:
		select {
		case <-time.After(p.SlowDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return p.success(req, scenarioScores[ScenarioScore6]), nil
	default:
		score, ok := scenarioScores[scenario]
		if !ok {
			score = scenarioScores[ScenarioScore6]
		}
		return p.success(req, score), nil
	}
}

func (p *Provider) success(req *secondary.GradingRequest, score int) *domain.Verdict {
	// snap to the etap's score set; etap1 never awards 5 or 6
	score = parsing.NormalizeScore(score, req.Materials.Key.Etap)
	return &domain.Verdict{
		Score: score,
		Feedback: fmt.Sprintf(
			"Rozwiązanie zadania %d ocenione na %d punktów. Tok rozumowania jest czytelny.",
			req.Materials.Key.Number, score),
		Meta: map[string]interface{}{"raw_score": score, "provider": p.Name()},
	}
}
