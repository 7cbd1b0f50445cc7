package bootstrap

import (
	"context"
	"fmt"

	"voice-server/internal/assistant"
	"voice-server/internal/clients/googleai"
	openaiClient "voice-server/internal/clients/openai"
	"voice-server/internal/config"
	"voice-server/internal/observability"
	"voice-server/internal/store"
	voiceCallHandler "voice-server/internal/voicecall/handler"
	voiceCallProcessor "voice-server/internal/voicecall/processor"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store  store.Store
	Logger *observability.Logger

	// Conversation
	Assistant *assistant.Assistant

	// Handlers
	VoiceCallHandler voiceCallHandler.Handler
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	// Initialize database store
	var err error
	deps.Store, err = store.New(cfg.Database.ConnectionString(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize external service clients
	openAI, err := openaiClient.NewClient(cfg.Services.OpenAIAPIKey, cfg.Voice.TTSVoice, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}

	provider := buildAgentProvider(ctx, cfg, openAI, logger)
	deps.Assistant = assistant.New(provider, logger)

	// Streaming voice call pipeline; OpenAI serves both speech directions.
	proc := voiceCallProcessor.NewVoiceCallProcessor(
		openAI,
		openAI,
		deps.Assistant,
		&deps.Store,
		cfg.Recording.Dir,
		logger,
	)
	deps.VoiceCallHandler = voiceCallHandler.New(proc, deps.Assistant, &deps.Store, cfg.Voice, logger)

	return deps, nil
}

// buildAgentProvider selects the conversational backend. A misconfigured
// Gemini setup degrades to OpenAI rather than failing startup, since the
// OpenAI client is already required for speech.
func buildAgentProvider(ctx context.Context, cfg *config.Config, openAI *openaiClient.Client, logger *observability.Logger) assistant.Provider {
	if cfg.Services.AgentProvider == "gemini" {
		gemini, err := googleai.NewClient(cfg.Services.GoogleAIAPIKey, logger)
		if err != nil {
			logger.Error(ctx, "Failed to initialize Gemini provider, falling back to OpenAI", err)
		} else {
			logger.Info(ctx, "Using Gemini conversation provider")
			return assistant.NewGeminiProvider(gemini)
		}
	}
	return assistant.NewOpenAIProvider(openAI)
}

// Cleanup closes all resources that need cleanup
func (d *Dependencies) Cleanup() {
	if db := d.Store.DB(); db != nil {
		db.Close()
	}
}
