// Package chat drives the Gemini conversation behind the app: a rolling
// multimodal chat with the null-token contract, plus the object
// identification call that restarts the conversation with a new persona.
package chat

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/pomo-ai/pomo/internal/config"
)

type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, cfg config.GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is not configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  cfg.Model,
	}, nil
}

func (gp *GeminiProvider) Close() error {
	if gp.client == nil {
		return nil
	}
	return gp.client.Close()
}

// GetModel returns the configured generative model with the app's safety
// and generation settings applied.
func (gp *GeminiProvider) GetModel() *genai.GenerativeModel {
	model := gp.client.GenerativeModel(gp.model)
	model.SetTemperature(0.9)
	model.SetMaxOutputTokens(100)
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	}
	return model
}

// Stream walks a response iterator, handing every chunk to fn.
func (gp *GeminiProvider) Stream(
	iter *genai.GenerateContentResponseIterator,
	fn func(resp *genai.GenerateContentResponse) error,
) error {
	for {
		resp, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if strings.Contains(err.Error(), "no more items") || strings.Contains(err.Error(), "iterator stopped") {
				break
			}
			return fmt.Errorf("failed to receive from Gemini stream: %w", err)
		}
		if err := fn(resp); err != nil {
			return err
		}
	}
	return nil
}
