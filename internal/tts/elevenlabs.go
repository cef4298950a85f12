// Package tts talks to the ElevenLabs speech API: synthesis with neighbor
// text conditioning, and the voice catalogue.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pomo-ai/pomo/internal/config"
	"github.com/pomo-ai/pomo/pkg/Logger"
	"github.com/pomo-ai/pomo/pkg/speech"
)

const defaultBaseURL = "https://api.elevenlabs.io"

type Client struct {
	apiKey       string
	modelID      string
	outputFormat string
	defaultVoice string
	baseURL      string
	httpClient   *http.Client
	log          *Logger.Logger
}

func NewClient(cfg config.SynthesisConfig, log *Logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:       cfg.APIKey,
		modelID:      cfg.ModelID,
		outputFormat: cfg.OutputFormat,
		defaultVoice: cfg.VoiceID,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: timeout},
		log:          log,
	}
}

// SynthesisParams is one synthesis call. PreviousText and NextText condition
// the prosody on what surrounds this utterance; empty strings are omitted
// from the request.
type SynthesisParams struct {
	Text         string
	PreviousText string
	NextText     string
	VoiceID      string
}

type synthesisBody struct {
	ModelID      string `json:"model_id"`
	Text         string `json:"text"`
	PreviousText string `json:"previous_text,omitempty"`
	NextText     string `json:"next_text,omitempty"`
}

// Synthesize returns the raw audio bytes for one utterance, in the output
// format the client was configured with.
func (c *Client) Synthesize(ctx context.Context, p SynthesisParams) ([]byte, error) {
	if strings.TrimSpace(p.Text) == "" {
		return nil, fmt.Errorf("tts: no text provided")
	}
	voice := p.VoiceID
	if voice == "" {
		voice = c.defaultVoice
	}

	body, err := json.Marshal(synthesisBody{
		ModelID:      c.modelID,
		Text:         p.Text,
		PreviousText: p.PreviousText,
		NextText:     p.NextText,
	})
	if err != nil {
		return nil, fmt.Errorf("tts: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=%s", c.baseURL, voice, c.outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: build request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tts: synthesis returned status %d: %s", resp.StatusCode, string(msg))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: read audio stream: %w", err)
	}
	c.log.Debugf("synthesized %d bytes for voice %s", len(audio), voice)
	return audio, nil
}

// Voice is one entry of the selectable voice catalogue.
type Voice struct {
	Name       string            `json:"name"`
	PreviewURL string            `json:"preview_url"`
	VoiceID    string            `json:"voice_id"`
	Labels     map[string]string `json:"labels"`
}

type rawVoice struct {
	Name                    string            `json:"name"`
	PreviewURL              string            `json:"preview_url"`
	VoiceID                 string            `json:"voice_id"`
	Labels                  map[string]string `json:"labels"`
	IsLegacy                bool              `json:"is_legacy"`
	HighQualityBaseModelIDs []string          `json:"high_quality_base_model_ids"`
	VoiceVerification       struct {
		RequiresVerification bool `json:"requires_verification"`
	} `json:"voice_verification"`
}

type voicesResponse struct {
	Voices []rawVoice `json:"voices"`
}

// Voices lists the catalogue, filtered to voices usable with the configured
// model: no legacy entries, no verification-gated entries.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("tts: build request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: voices request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts: voices returned status %d", resp.StatusCode)
	}

	var parsed voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("tts: decode voices: %w", err)
	}

	out := make([]Voice, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		if v.IsLegacy || v.VoiceVerification.RequiresVerification {
			continue
		}
		if !supportsModel(v.HighQualityBaseModelIDs, c.modelID) {
			continue
		}
		out = append(out, Voice{
			Name:       v.Name,
			PreviewURL: v.PreviewURL,
			VoiceID:    v.VoiceID,
			Labels:     v.Labels,
		})
	}
	return out, nil
}

func supportsModel(ids []string, modelID string) bool {
	for _, id := range ids {
		if id == modelID {
			return true
		}
	}
	return false
}

// Synthesizer adapts the client to the speech pipeline. The pipeline hands
// over neighbor utterances as slices; the API wants them as single strings.
type Synthesizer struct {
	Client *Client
}

func (s *Synthesizer) Synthesize(ctx context.Context, req speech.Request) ([]byte, error) {
	return s.Client.Synthesize(ctx, SynthesisParams{
		Text:         req.Text,
		PreviousText: strings.Join(req.PreviousTexts, " "),
		NextText:     strings.Join(req.NextTexts, " "),
		VoiceID:      req.VoiceID,
	})
}
