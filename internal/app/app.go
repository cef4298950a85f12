package app

import (
	"context"

	"github.com/pomo-ai/pomo/internal/chat"
	"github.com/pomo-ai/pomo/internal/config"
	"github.com/pomo-ai/pomo/internal/server"
	"github.com/pomo-ai/pomo/internal/tts"
	"github.com/pomo-ai/pomo/internal/vad"
	"github.com/pomo-ai/pomo/pkg/Logger"
)

// App holds the wired application dependencies.
type App struct {
	Config     *config.Settings
	Logger     *Logger.Logger
	Provider   *chat.GeminiProvider
	ServerDeps server.Dependencies
}

// NewApp wires the chat provider, synthesis client and voice detector into
// the server dependencies.
func NewApp(ctx context.Context, cfg *config.Settings, logger *Logger.Logger) (*App, error) {
	provider, err := chat.NewGeminiProvider(ctx, cfg.Gemini)
	if err != nil {
		return nil, err
	}

	conversation := chat.NewConversation(provider, logger)
	ttsClient := tts.NewClient(cfg.Synthesis, logger)
	detector := vad.NewCobraDetector(cfg.VAD, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Provider: provider,
		ServerDeps: server.Dependencies{
			Settings:     cfg,
			Conversation: conversation,
			TTSClient:    ttsClient,
			Detector:     detector,
			Logger:       logger,
		},
	}, nil
}

// Close releases the provider and detector resources.
func (a *App) Close() {
	if err := a.ServerDeps.Detector.Close(); err != nil {
		a.Logger.Warnf("closing detector: %v", err)
	}
	if err := a.Provider.Close(); err != nil {
		a.Logger.Warnf("closing gemini provider: %v", err)
	}
}
