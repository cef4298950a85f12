// Package speech implements the streaming text-to-speech playback pipeline:
// streamed chat text is cut into utterances, synthesized with bounded
// concurrency against an external speech service, and played back strictly
// in enqueue order even when fetches complete out of order.
package speech

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pomo-ai/pomo/pkg/Logger"
	"github.com/pomo-ai/pomo/pkg/speech/audio"
)

// Config carries the pipeline knobs. Zero values fall back to the defaults
// below.
type Config struct {
	// ContextWindow is how many neighbor utterances are sent to the
	// synthesis backend on each side as prosody context.
	ContextWindow int `mapstructure:"context_window"`

	// MaxConcurrentFetches caps in-flight synthesis requests.
	MaxConcurrentFetches int `mapstructure:"max_concurrent_fetches"`

	// MinTrailingContext is how many following utterances a short,
	// unterminated chunk waits for before its request is sent.
	MinTrailingContext int `mapstructure:"min_trailing_context"`

	// WaitForContextTimeout bounds that wait.
	WaitForContextTimeout time.Duration `mapstructure:"wait_for_context_timeout"`

	// WaitRetryInterval is the re-decision interval while waiting.
	WaitRetryInterval time.Duration `mapstructure:"wait_retry_interval"`

	// MaxFetchAttempts bounds synthesis retries per utterance. 0 retries
	// without bound, matching the behavior this pipeline grew out of.
	MaxFetchAttempts int `mapstructure:"max_fetch_attempts"`

	// RetryDelay spaces retries of a failed fetch.
	RetryDelay time.Duration `mapstructure:"retry_delay"`

	// SampleRate and Channels describe the PCM the synthesizer returns.
	SampleRate int `mapstructure:"sample_rate"`
	Channels   int `mapstructure:"channels"`
}

func DefaultConfig() Config {
	return Config{
		ContextWindow:         3,
		MaxConcurrentFetches:  3,
		MinTrailingContext:    1,
		WaitForContextTimeout: 3 * time.Second,
		WaitRetryInterval:     75 * time.Millisecond,
		MaxFetchAttempts:      3,
		RetryDelay:            250 * time.Millisecond,
		SampleRate:            16000,
		Channels:              1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ContextWindow <= 0 {
		c.ContextWindow = d.ContextWindow
	}
	if c.MaxConcurrentFetches <= 0 {
		c.MaxConcurrentFetches = d.MaxConcurrentFetches
	}
	if c.MinTrailingContext <= 0 {
		c.MinTrailingContext = d.MinTrailingContext
	}
	if c.WaitForContextTimeout <= 0 {
		c.WaitForContextTimeout = d.WaitForContextTimeout
	}
	if c.WaitRetryInterval <= 0 {
		c.WaitRetryInterval = d.WaitRetryInterval
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = d.Channels
	}
	return c
}

// Session owns one playback pipeline: the utterance queue, the sequence
// counter, the fetch pool and the playback cursor. All mutation goes through
// Enqueue, Stop and SetEnabled, so callers can run several sessions side by
// side without shared state.
type Session struct {
	cfg    Config
	synth  Synthesizer
	player audio.Player
	voices *VoiceSelector
	log    *Logger.Logger

	mu       sync.Mutex
	queue    []*Utterance
	nextSeq  int
	fetching int
	playing  bool
	enabled  bool
	kick     *time.Timer
}

func NewSession(cfg Config, synth Synthesizer, player audio.Player, voices *VoiceSelector, log *Logger.Logger) *Session {
	if voices == nil {
		voices = NewVoiceSelector("")
	}
	return &Session{
		cfg:     cfg.withDefaults(),
		synth:   synth,
		player:  player,
		voices:  voices,
		log:     log,
		enabled: true,
	}
}

// Voices exposes the session's voice selector.
func (s *Session) Voices() *VoiceSelector { return s.voices }

// Enqueue appends one utterance to the queue, links neighbor context both
// ways, and lets the fetch pool pick up work. Empty text is dropped before
// it ever enters the queue.
func (s *Session) Enqueue(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	u := &Utterance{
		Text:      text,
		Sequence:  s.nextSeq,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	s.nextSeq++

	n := s.cfg.ContextWindow
	start := len(s.queue) - n
	if start < 0 {
		start = 0
	}
	for _, prev := range s.queue[start:] {
		u.ContextBefore = append(u.ContextBefore, prev.Text)
		// Trailing context only helps while the neighbor's request has not
		// been sent; after that it is frozen.
		if !prev.contextFrozen && len(prev.ContextAfter) < n {
			prev.ContextAfter = append(prev.ContextAfter, text)
		}
	}

	s.queue = append(s.queue, u)
	s.fillFetchesLocked()
	s.mu.Unlock()
}

// Stop empties the queue, cancels in-flight synthesis requests, and halts
// playback immediately. It is safe to call repeatedly.
func (s *Session) Stop() {
	s.mu.Lock()
	for _, u := range s.queue {
		if u.fetchCancel != nil {
			u.fetchCancel()
		}
	}
	s.queue = nil
	s.playing = false
	if s.kick != nil {
		s.kick.Stop()
		s.kick = nil
	}
	s.mu.Unlock()

	s.player.Stop()
}

// SetEnabled gates both fetching and playback. Disabling is a hard cutover:
// current playback halts and the queue is cleared. Re-enabling lets
// utterances enqueued while disabled proceed.
func (s *Session) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()

	if !enabled {
		s.Stop()
		return
	}

	s.mu.Lock()
	s.fillFetchesLocked()
	next := s.preparePlayLocked()
	s.mu.Unlock()
	if next != nil {
		s.startPlay(next)
	}
}

// Enabled reports whether output is currently enabled.
func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// IsPlaying reports whether an utterance is being played right now.
func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// QueueLen returns how many utterances are queued, including the one
// playing.
func (s *Session) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// fillFetchesLocked starts synthesis requests until the concurrency cap is
// hit. Starts are strictly FIFO: a deferred head blocks later pending items
// so requests never begin out of order.
func (s *Session) fillFetchesLocked() {
	if !s.enabled {
		return
	}
	for s.fetching < s.cfg.MaxConcurrentFetches {
		u := s.nextPendingLocked()
		if u == nil {
			return
		}
		if s.shouldDeferLocked(u) {
			s.armKickLocked(s.cfg.WaitRetryInterval)
			return
		}
		s.startFetchLocked(u)
	}
}

func (s *Session) nextPendingLocked() *Utterance {
	for _, u := range s.queue {
		if u.Status == StatusPending {
			return u
		}
	}
	return nil
}

// shouldDeferLocked implements the wait-for-context policy: a chunk that
// does not end a sentence and has no trailing context yet is worth a short
// wait, because the following text markedly improves its prosody.
func (s *Session) shouldDeferLocked(u *Utterance) bool {
	if endsSentence(u.Text) {
		return false
	}
	if len(u.ContextAfter) >= s.cfg.MinTrailingContext {
		return false
	}
	return time.Since(u.CreatedAt) < s.cfg.WaitForContextTimeout
}

func endsSentence(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	switch text[len(text)-1] {
	case '.', '?', '!':
		return true
	}
	return false
}

// armKickLocked schedules one re-run of the fetch pool. An already-armed
// timer is left alone.
func (s *Session) armKickLocked(d time.Duration) {
	if s.kick != nil {
		return
	}
	s.kick = time.AfterFunc(d, func() {
		s.mu.Lock()
		s.kick = nil
		s.fillFetchesLocked()
		next := s.preparePlayLocked()
		s.mu.Unlock()
		if next != nil {
			s.startPlay(next)
		}
	})
}

func (s *Session) startFetchLocked(u *Utterance) {
	u.Status = StatusFetching
	u.contextFrozen = true
	s.fetching++

	ctx, cancel := context.WithCancel(context.Background())
	u.fetchCancel = cancel

	req := Request{
		Text:          u.Text,
		PreviousTexts: append([]string(nil), u.ContextBefore...),
		NextTexts:     append([]string(nil), u.ContextAfter...),
		Index:         u.Sequence,
		VoiceID:       s.voices.Current(),
	}
	go s.fetch(ctx, u, req)
}

func (s *Session) fetch(ctx context.Context, u *Utterance, req Request) {
	data, err := s.synth.Synthesize(ctx, req)
	var clip *audio.Clip
	if err == nil {
		clip, err = audio.DecodePCM(data, s.cfg.SampleRate, s.cfg.Channels)
	}

	s.mu.Lock()
	s.fetching--
	if u.fetchCancel != nil {
		u.fetchCancel()
		u.fetchCancel = nil
	}

	if !s.inQueueLocked(u) {
		// The session was stopped while this request was in flight; the
		// result belongs to nobody now.
		s.mu.Unlock()
		return
	}

	if err != nil {
		u.attempts++
		if s.cfg.MaxFetchAttempts > 0 && u.attempts >= s.cfg.MaxFetchAttempts {
			s.log.Errorf("synthesis failed for utterance %d after %d attempts, dropping: %v",
				u.Sequence, u.attempts, err)
			s.removeLocked(u)
			s.fillFetchesLocked()
			next := s.preparePlayLocked()
			s.mu.Unlock()
			if next != nil {
				s.startPlay(next)
			}
			return
		}
		s.log.Warnf("synthesis failed for utterance %d (attempt %d): %v", u.Sequence, u.attempts, err)
		u.Status = StatusPending
		s.armKickLocked(s.cfg.RetryDelay)
		s.mu.Unlock()
		return
	}

	u.Clip = clip
	u.Status = StatusReady
	s.fillFetchesLocked()
	next := s.preparePlayLocked()
	s.mu.Unlock()
	if next != nil {
		s.startPlay(next)
	}
}

// preparePlayLocked marks the queue head as playing when it is ready and
// nothing else is. The caller must invoke startPlay on the returned
// utterance outside the lock.
func (s *Session) preparePlayLocked() *Utterance {
	if !s.enabled || s.playing || len(s.queue) == 0 {
		return nil
	}
	head := s.queue[0]
	if head.Status != StatusReady {
		return nil
	}
	head.Status = StatusPlaying
	s.playing = true
	return head
}

func (s *Session) startPlay(u *Utterance) {
	err := s.player.Play(u.Clip, func() { s.playbackDone(u) })
	if err == nil {
		return
	}
	s.log.Errorf("playback failed for utterance %d: %v", u.Sequence, err)
	s.mu.Lock()
	if s.inQueueLocked(u) && u.Status == StatusPlaying {
		u.Status = StatusReady
		s.playing = false
		s.armKickLocked(s.cfg.RetryDelay)
	}
	s.mu.Unlock()
}

// playbackDone advances the queue when a clip finishes. A stale callback --
// the session was stopped and possibly refilled while the clip drained --
// is detected by checking that the finished utterance is still the head.
func (s *Session) playbackDone(u *Utterance) {
	s.mu.Lock()
	if len(s.queue) == 0 || s.queue[0] != u {
		s.mu.Unlock()
		return
	}
	s.queue = s.queue[1:]
	s.playing = false
	s.fillFetchesLocked()
	next := s.preparePlayLocked()
	s.mu.Unlock()
	if next != nil {
		s.startPlay(next)
	}
}

func (s *Session) inQueueLocked(u *Utterance) bool {
	for _, q := range s.queue {
		if q == u {
			return true
		}
	}
	return false
}

func (s *Session) removeLocked(u *Utterance) {
	for i, q := range s.queue {
		if q == u {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}
