package vad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pomo-ai/pomo/internal/config"
	"github.com/pomo-ai/pomo/pkg/Logger"
)

// CobraDetector scores audio through a Cobra scoring service over HTTP.
// Failures degrade to the energy detector instead of failing the caller;
// voice gating should never take the whole session down.
type CobraDetector struct {
	accessKey  string
	serviceURL string
	httpClient *http.Client
	fallback   *EnergyDetector
	log        *Logger.Logger

	mu     sync.Mutex
	closed bool
}

func NewCobraDetector(cfg config.VADConfig, log *Logger.Logger) *CobraDetector {
	return &CobraDetector{
		accessKey:  cfg.AccessKey,
		serviceURL: cfg.Endpoint,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		fallback:   NewEnergyDetector(),
		log:        log,
	}
}

type cobraResponse struct {
	VoiceProbability float64 `json:"voiceProbability"`
}

func (d *CobraDetector) Score(ctx context.Context, pcm []int16) (float64, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, fmt.Errorf("vad: detector is closed")
	}
	d.mu.Unlock()

	if len(pcm) == 0 {
		return 0, nil
	}
	if d.serviceURL == "" {
		return d.fallback.Score(ctx, pcm)
	}

	p, err := d.callService(ctx, pcm)
	if err != nil {
		d.log.Warnf("cobra service unavailable, using energy fallback: %v", err)
		return d.fallback.Score(ctx, pcm)
	}
	return p, nil
}

func (d *CobraDetector) callService(ctx context.Context, pcm []int16) (float64, error) {
	body := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		body[2*i] = byte(uint16(s))
		body[2*i+1] = byte(uint16(s) >> 8)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.serviceURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if d.accessKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.accessKey)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("cobra service returned status %d", resp.StatusCode)
	}

	var parsed cobraResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode cobra response: %w", err)
	}
	if parsed.VoiceProbability < 0 || parsed.VoiceProbability > 1 {
		return 0, fmt.Errorf("cobra probability out of range: %f", parsed.VoiceProbability)
	}
	return parsed.VoiceProbability, nil
}

func (d *CobraDetector) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}
