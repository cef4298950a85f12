package speech

import (
	"context"
	"time"

	"github.com/pomo-ai/pomo/pkg/speech/audio"
)

// Status tracks an utterance through the pipeline. Transitions are
// Pending -> Fetching -> Ready -> Playing; played items are removed from
// the queue rather than holding a terminal state.
type Status int

const (
	StatusPending Status = iota
	StatusFetching
	StatusReady
	StatusPlaying
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFetching:
		return "fetching"
	case StatusReady:
		return "ready"
	case StatusPlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Utterance is one synthesizable chunk of assistant text queued for playback.
type Utterance struct {
	Text string

	// Neighbor texts sent to the synthesis backend as prosody context.
	// ContextBefore is fixed at creation; ContextAfter grows as later
	// utterances are enqueued, up to the point the synthesis request is
	// actually sent.
	ContextBefore []string
	ContextAfter  []string

	// Sequence is assigned at creation and strictly increases for the
	// lifetime of a session. It defines playback order.
	Sequence  int
	Status    Status
	CreatedAt time.Time

	// Clip holds the decoded audio once Status is Ready.
	Clip *audio.Clip

	attempts      int
	contextFrozen bool
	fetchCancel   context.CancelFunc
}
