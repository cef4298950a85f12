package speech

import "context"

// Request carries one utterance plus its neighbor context to a synthesis
// backend. PreviousTexts and NextTexts are ordered oldest-first and are
// frozen snapshots taken when the request is issued.
type Request struct {
	Text          string   `json:"text"`
	PreviousTexts []string `json:"previous_texts,omitempty"`
	NextTexts     []string `json:"next_texts"`
	Index         int      `json:"index"`
	VoiceID       string   `json:"voice_id,omitempty"`
}

// Synthesizer turns text into raw audio bytes. Implementations talk to an
// external speech service; the pipeline treats them as opaque and retries on
// error.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
