package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/patient360/api/internal/config"
	"github.com/patient360/api/internal/domain/action"
	"github.com/patient360/api/internal/domain/copilot"
	"github.com/patient360/api/internal/domain/note"
	"github.com/patient360/api/internal/domain/patient"
	"github.com/patient360/api/internal/platform/db"
	"github.com/patient360/api/internal/platform/llm"
	"github.com/patient360/api/internal/platform/llm/azureopenai"
	"github.com/patient360/api/internal/platform/llm/gemini"
)

// services holds the domain services shared by the serve and ask commands.
type services struct {
	patients *patient.Service
	notes    *note.Service
	actions  *action.Service
	copilot  *copilot.Service
}

func newServices(ctx context.Context, cfg *config.Config, runner db.Runner, logger zerolog.Logger) (*services, error) {
	patients := patient.NewService(patient.NewRepoPG(runner), cfg.DemoAllowRaw, logger)

	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	template := copilot.NewTemplateGenerator(cfg.StreamDeltaDelay)
	backends := copilot.Backends{Template: template, HostedEnabled: cfg.HasHostedModel}
	if completer != nil {
		backends.Hosted = copilot.NewHostedGenerator(completer, template, cfg.GenerationTimeout, logger)
		logger.Info().Str("provider", cfg.LLMProvider).Str("model", completer.Model()).Msg("hosted model configured")
	} else {
		logger.Info().Msg("no hosted model configured, answers use templates")
	}
	retriever := copilot.NewRetriever(copilot.NewContextStorePG(runner), cfg.RetrievalTimeout, logger)

	return &services{
		patients: patients,
		notes:    note.NewService(note.NewRepoPG(runner), patients, cfg.DemoAllowRaw, logger),
		actions:  action.NewService(action.NewRepoPG(runner), patients, logger),
		copilot:  copilot.NewService(patients, retriever, backends, logger),
	}, nil
}

// newCompleter returns the client for the configured provider, or nil when
// no hosted model is configured.
func newCompleter(ctx context.Context, cfg *config.Config) (llm.Completer, error) {
	if !cfg.HasHostedModel() {
		return nil, nil
	}
	var (
		c   llm.Completer
		err error
	)
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		c, err = gemini.New(ctx, gemini.Config{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiEndpoint,
			Model:   cfg.GeminiModel,
		})
	default:
		c, err = azureopenai.New(azureopenai.Config{
			Endpoint:   cfg.AzureOpenAIEndpoint,
			APIKey:     cfg.AzureOpenAIKey,
			Deployment: cfg.AzureOpenAIChatDeployment,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.LLMProvider, err)
	}
	return llm.WithRateLimit(c, cfg.LLMRPS, cfg.LLMBurst), nil
}
