// package ai selects the configured grading provider
package ai

import (
	"fmt"

	"gitlab.com/omj-2025.net/internal/adapter/ai/fake"
	"gitlab.com/omj-2025.net/internal/adapter/ai/gemini"
	"gitlab.com/omj-2025.net/internal/config"
	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
)

// NewProvider creates the grading provider named by AI_PROVIDER
func NewProvider(cfg *config.AIConfig, storageCfg *config.StorageConfig, logger primary.Logger) (secondary.GradingProvider, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewProvider(cfg, storageCfg, logger)
	case "fake":
		return fake.NewProvider(cfg.FakeScenario), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s (supported: gemini, fake)", cfg.Provider)
	}
}
