package config

import (
	"os"
	"strconv"
	"time"
)

type AIConfig struct {
	// Provider selects the grading backend: "gemini" or "fake"
	Provider string
	// GradingTimeout bounds one provider call end to end
	GradingTimeout time.Duration

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	// FakeScenario is the fake provider's default scenario name
	FakeScenario string
}

func NewAIConfig() *AIConfig {
	timeoutSec, err := strconv.Atoi(os.Getenv("GRADING_TIMEOUT_SEC"))
	if err != nil || timeoutSec <= 0 {
		timeoutSec = 300
	}
	return &AIConfig{
		Provider:       getEnv("AI_PROVIDER", "gemini"),
		GradingTimeout: time.Duration(timeoutSec) * time.Second,
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL:  getEnv("GEMINI_API_BASE_URL", "https://generativelanguage.googleapis.com"),
		FakeScenario:   getEnv("FAKE_AI_SCENARIO", "success_score_6"),
	}
}
