package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSynthesizer talks to a Pomo synthesis endpoint: POST of the request as
// JSON, raw audio bytes back on success, a JSON {message} body on failure.
type HTTPSynthesizer struct {
	BaseURL string       // e.g. "http://localhost:8080"
	Client  *http.Client // inject; default if nil
	Timeout time.Duration
}

func NewHTTPSynthesizer(baseURL string) *HTTPSynthesizer {
	return &HTTPSynthesizer{BaseURL: baseURL}
}

func (h *HTTPSynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("speech: empty text")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/api/tts", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	hc := h.Client
	if hc == nil {
		hc = &http.Client{}
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("speech: synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("speech: synthesis status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("speech: synthesis status %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
