package service

import (
	"context"
	"fmt"

	"github.com/okian/diarisk/internal/adapters/narrator"
	"github.com/okian/diarisk/internal/adapters/repository"
	"github.com/okian/diarisk/internal/config"
	"github.com/okian/diarisk/pkg/logger"
)

// OpenStore opens the history store named by cfg.StoreBackend.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory, "":
		return repository.NewMemoryStore(), nil
	case config.StoreBolt:
		s, err := repository.NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt store %s: %w", cfg.BoltPath, err)
		}
		return s, nil
	case config.StoreMongo:
		s, err := repository.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown store_backend %q", config.ErrInvalidConfig, cfg.StoreBackend)
	}
}

// BuildNarrator returns the narrator selected by cfg, or nil when narration
// is disabled.
func BuildNarrator(cfg *config.Config, l logger.Logger) (narrator.Narrator, error) {
	switch cfg.ResolvedNarrator() {
	case config.NarratorNone:
		return nil, nil
	case config.NarratorTemplate:
		return narrator.NewTemplate(), nil
	case config.NarratorGemini:
		g, err := narrator.NewGemini(cfg.GeminiAPIKey,
			narrator.WithBaseURL(cfg.GeminiBaseURL),
			narrator.WithModel(cfg.GeminiModel),
			narrator.WithTimeout(cfg.NarratorTimeout()),
			narrator.WithRetries(cfg.NarratorRetries),
			narrator.WithLogger(l),
		)
		if err != nil {
			return nil, fmt.Errorf("build gemini narrator: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("%w: unknown narrator %q", config.ErrInvalidConfig, cfg.Narrator)
	}
}
