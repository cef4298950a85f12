package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Player plays one clip at a time. Play is asynchronous: done runs exactly
// once when the clip finishes on its own. A clip interrupted by Stop does
// not get its done callback; the sequencer clears its queue instead.
type Player interface {
	Play(clip *Clip, done func()) error
	Stop()
	Close() error
}

// ErrBusy is returned when Play is called while a clip is still playing.
var ErrBusy = errors.New("audio: player busy")

// OtoPlayer drives the default audio device through oto. The process gets a
// single oto context, so all clips must share one sample rate and channel
// layout.
type OtoPlayer struct {
	ctx        *oto.Context
	sampleRate int
	channels   int

	mu      sync.Mutex
	current *oto.Player
	stopped bool
	closed  bool
}

// NewOtoPlayer initializes the audio device for s16le PCM at the given
// format. It blocks until the device is ready.
func NewOtoPlayer(sampleRate, channels int) (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("audio: context init failed: %w", err)
	}
	<-ready
	return &OtoPlayer{ctx: ctx, sampleRate: sampleRate, channels: channels}, nil
}

func (p *OtoPlayer) Play(clip *Clip, done func()) error {
	if clip == nil || len(clip.PCM) == 0 {
		return ErrEmptyClip
	}
	if clip.SampleRate != p.sampleRate || clip.Channels != p.channels {
		return fmt.Errorf("audio: clip format %dHz/%dch does not match device %dHz/%dch",
			clip.SampleRate, clip.Channels, p.sampleRate, p.channels)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("audio: player closed")
	}
	if p.current != nil {
		return ErrBusy
	}

	op := p.ctx.NewPlayer(bytes.NewReader(clip.PCM))
	p.current = op
	p.stopped = false
	op.Play()

	go p.watch(op, done)
	return nil
}

// watch polls the device until the clip drains, then fires done. oto has no
// completion callback, so a short poll interval keeps the gap between clips
// inaudible.
func (p *OtoPlayer) watch(op *oto.Player, done func()) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		p.mu.Lock()
		if p.stopped || p.current != op {
			p.mu.Unlock()
			return
		}
		if !op.IsPlaying() {
			p.current = nil
			p.mu.Unlock()
			_ = op.Close()
			if done != nil {
				done()
			}
			return
		}
		p.mu.Unlock()
	}
}

// Stop halts the current clip immediately. Its done callback is suppressed.
func (p *OtoPlayer) Stop() {
	p.mu.Lock()
	op := p.current
	p.current = nil
	p.stopped = true
	p.mu.Unlock()
	if op != nil {
		_ = op.Close()
	}
}

func (p *OtoPlayer) Close() error {
	p.Stop()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
