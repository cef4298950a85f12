package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pomo-ai/pomo/pkg/Logger"
	"github.com/pomo-ai/pomo/pkg/speech/audio"
)

func testLogger() *Logger.Logger {
	return &Logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// stubSynth is a controllable Synthesizer. Without fn it returns a PCM
// payload whose length encodes the request index, so tests can recover which
// utterance a played clip belongs to.
type stubSynth struct {
	mu          sync.Mutex
	requests    []Request
	inflight    int
	maxInflight int
	fn          func(ctx context.Context, req Request) ([]byte, error)
}

func (s *stubSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.inflight++
	if s.inflight > s.maxInflight {
		s.maxInflight = s.inflight
	}
	fn := s.fn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()
	if fn != nil {
		return fn(ctx, req)
	}
	return pcmFor(req.Index), nil
}

func (s *stubSynth) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *stubSynth) request(i int) Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func pcmFor(index int) []byte {
	return make([]byte, (index+1)*2)
}

func clipIndex(c *audio.Clip) int {
	return len(c.PCM)/2 - 1
}

func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// drainPlayback drives the mock player until the queue is empty, finishing
// each clip as it starts.
func drainPlayback(t *testing.T, sess *Session, mock *audio.MockPlayer) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mock.Playing() {
			mock.FinishCurrent()
		}
		if sess.QueueLen() == 0 && !sess.IsPlaying() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("queue did not drain, %d left", sess.QueueLen())
}

func TestPlaybackOrderMatchesEnqueueOrder(t *testing.T) {
	synth := &stubSynth{
		// The first request is the slowest, so later fetches complete first.
		fn: func(ctx context.Context, req Request) ([]byte, error) {
			if req.Index == 0 {
				time.Sleep(40 * time.Millisecond)
			}
			return pcmFor(req.Index), nil
		},
	}
	mock := audio.NewMockPlayer()
	sess := NewSession(DefaultConfig(), synth, mock, nil, testLogger())

	sess.Enqueue("First.")
	sess.Enqueue("Second.")
	sess.Enqueue("Third.")

	drainPlayback(t, sess, mock)

	if len(mock.Played) != 3 {
		t.Fatalf("Expected 3 clips played, got %d", len(mock.Played))
	}
	for i, clip := range mock.Played {
		if clipIndex(clip) != i {
			t.Errorf("Clip at playback position %d came from utterance %d", i, clipIndex(clip))
		}
	}
}

func TestFetchStartsAreFIFO(t *testing.T) {
	synth := &stubSynth{}
	mock := audio.NewMockPlayer()
	cfg := DefaultConfig()
	cfg.MaxConcurrentFetches = 1
	sess := NewSession(cfg, synth, mock, nil, testLogger())

	sess.Enqueue("One.")
	sess.Enqueue("Two.")
	sess.Enqueue("Three.")

	drainPlayback(t, sess, mock)

	if synth.requestCount() != 3 {
		t.Fatalf("Expected 3 requests, got %d", synth.requestCount())
	}
	for i := 0; i < 3; i++ {
		if got := synth.request(i).Index; got != i {
			t.Errorf("Request %d was for utterance %d", i, got)
		}
	}
}

func TestConcurrentFetchCap(t *testing.T) {
	gate := make(chan struct{})
	synth := &stubSynth{
		fn: func(ctx context.Context, req Request) ([]byte, error) {
			select {
			case <-gate:
				return pcmFor(req.Index), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	mock := audio.NewMockPlayer()
	cfg := DefaultConfig()
	cfg.MaxConcurrentFetches = 2
	sess := NewSession(cfg, synth, mock, nil, testLogger())

	for _, text := range []string{"A.", "B.", "C.", "D.", "E."} {
		sess.Enqueue(text)
	}

	waitFor(t, time.Second, "two requests in flight", func() bool {
		synth.mu.Lock()
		defer synth.mu.Unlock()
		return synth.inflight == 2
	})
	time.Sleep(20 * time.Millisecond)

	synth.mu.Lock()
	inflight, maxInflight := synth.inflight, synth.maxInflight
	synth.mu.Unlock()
	if inflight != 2 {
		t.Errorf("Expected 2 requests in flight, got %d", inflight)
	}
	if maxInflight > 2 {
		t.Errorf("Concurrency cap exceeded: saw %d in flight", maxInflight)
	}

	close(gate)
	drainPlayback(t, sess, mock)

	synth.mu.Lock()
	maxInflight = synth.maxInflight
	synth.mu.Unlock()
	if maxInflight > 2 {
		t.Errorf("Concurrency cap exceeded after release: saw %d in flight", maxInflight)
	}
}

func TestNeighborContextLinking(t *testing.T) {
	synth := &stubSynth{}
	mock := audio.NewMockPlayer()
	sess := NewSession(DefaultConfig(), synth, mock, nil, testLogger())
	sess.SetEnabled(false)

	texts := []string{"U0.", "U1.", "U2.", "U3.", "U4."}
	for _, text := range texts {
		sess.Enqueue(text)
	}

	sess.mu.Lock()
	u0, u3, u4 := sess.queue[0], sess.queue[3], sess.queue[4]
	sess.mu.Unlock()

	if want := []string{"U1.", "U2.", "U3."}; !equalStrings(u0.ContextAfter, want) {
		t.Errorf("U0 trailing context = %v, want %v", u0.ContextAfter, want)
	}
	if want := []string{"U0.", "U1.", "U2."}; !equalStrings(u3.ContextBefore, want) {
		t.Errorf("U3 leading context = %v, want %v", u3.ContextBefore, want)
	}
	if want := []string{"U1.", "U2.", "U3."}; !equalStrings(u4.ContextBefore, want) {
		t.Errorf("U4 leading context = %v, want %v", u4.ContextBefore, want)
	}

	sess.SetEnabled(true)
	drainPlayback(t, sess, mock)

	var first Request
	found := false
	synth.mu.Lock()
	for _, req := range synth.requests {
		if req.Index == 0 {
			first = req
			found = true
		}
	}
	synth.mu.Unlock()
	if !found {
		t.Fatal("No request was sent for the first utterance")
	}
	if len(first.PreviousTexts) != 0 {
		t.Errorf("First utterance has leading context %v", first.PreviousTexts)
	}
	if want := []string{"U1.", "U2.", "U3."}; !equalStrings(first.NextTexts, want) {
		t.Errorf("First utterance trailing context = %v, want %v", first.NextTexts, want)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestUnterminatedChunkWaitsForContext(t *testing.T) {
	synth := &stubSynth{}
	mock := audio.NewMockPlayer()
	cfg := DefaultConfig()
	cfg.WaitForContextTimeout = 300 * time.Millisecond
	cfg.WaitRetryInterval = 10 * time.Millisecond
	sess := NewSession(cfg, synth, mock, nil, testLogger())

	sess.Enqueue("and then")

	time.Sleep(50 * time.Millisecond)
	if n := synth.requestCount(); n != 0 {
		t.Fatalf("Unterminated chunk was fetched without context, %d requests", n)
	}

	sess.Enqueue("it was over.")

	waitFor(t, time.Second, "both requests", func() bool { return synth.requestCount() == 2 })
	first := synth.request(0)
	if first.Index != 0 {
		t.Fatalf("First request was for utterance %d", first.Index)
	}
	if len(first.NextTexts) == 0 || first.NextTexts[0] != "it was over." {
		t.Errorf("Deferred chunk sent without trailing context: %v", first.NextTexts)
	}
	drainPlayback(t, sess, mock)
}

func TestContextWaitTimesOut(t *testing.T) {
	synth := &stubSynth{}
	mock := audio.NewMockPlayer()
	cfg := DefaultConfig()
	cfg.WaitForContextTimeout = 60 * time.Millisecond
	cfg.WaitRetryInterval = 10 * time.Millisecond
	sess := NewSession(cfg, synth, mock, nil, testLogger())

	sess.Enqueue("and then")

	waitFor(t, time.Second, "request after timeout", func() bool { return synth.requestCount() == 1 })
	if got := synth.request(0).NextTexts; len(got) != 0 {
		t.Errorf("Timed-out chunk carried trailing context %v", got)
	}
	drainPlayback(t, sess, mock)
}

func TestStopClearsQueueAndCancelsFetches(t *testing.T) {
	started := make(chan struct{}, 8)
	cancelled := make(chan struct{}, 8)
	synth := &stubSynth{
		fn: func(ctx context.Context, req Request) ([]byte, error) {
			started <- struct{}{}
			<-ctx.Done()
			cancelled <- struct{}{}
			return nil, ctx.Err()
		},
	}
	mock := audio.NewMockPlayer()
	sess := NewSession(DefaultConfig(), synth, mock, nil, testLogger())

	sess.Enqueue("One.")
	sess.Enqueue("Two.")
	<-started

	sess.Stop()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("In-flight fetch was not cancelled by Stop")
	}
	if n := sess.QueueLen(); n != 0 {
		t.Errorf("Queue not cleared, %d left", n)
	}
	if sess.IsPlaying() {
		t.Error("Still playing after Stop")
	}
	if mock.Stopped == 0 {
		t.Error("Player was not stopped")
	}

	// Stop is idempotent.
	sess.Stop()

	// Sequence numbers keep increasing across stops.
	sess.Enqueue("Three.")
	sess.mu.Lock()
	seq := sess.queue[0].Sequence
	sess.mu.Unlock()
	if seq != 2 {
		t.Errorf("Sequence after stop = %d, want 2", seq)
	}
	sess.Stop()
}

func TestDisableHaltsPlaybackAndGatesNewWork(t *testing.T) {
	synth := &stubSynth{}
	mock := audio.NewMockPlayer()
	sess := NewSession(DefaultConfig(), synth, mock, nil, testLogger())

	sess.Enqueue("One.")
	waitFor(t, time.Second, "first clip playing", mock.Playing)

	sess.SetEnabled(false)
	if mock.Stopped == 0 {
		t.Error("Playback not halted on disable")
	}
	if n := sess.QueueLen(); n != 0 {
		t.Errorf("Queue not cleared on disable, %d left", n)
	}

	before := synth.requestCount()
	sess.Enqueue("Two.")
	time.Sleep(30 * time.Millisecond)
	if n := synth.requestCount(); n != before {
		t.Errorf("Fetch started while disabled: %d requests, had %d", n, before)
	}
	if mock.Playing() {
		t.Error("Playback started while disabled")
	}

	sess.SetEnabled(true)
	waitFor(t, time.Second, "queued clip playing", mock.Playing)
	drainPlayback(t, sess, mock)

	last := mock.Played[len(mock.Played)-1]
	if clipIndex(last) != 1 {
		t.Errorf("Wrong utterance played after re-enable: %d", clipIndex(last))
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var calls int
	var mu sync.Mutex
	synth := &stubSynth{
		fn: func(ctx context.Context, req Request) ([]byte, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n <= 2 {
				return nil, errors.New("upstream 500")
			}
			return pcmFor(req.Index), nil
		},
	}
	mock := audio.NewMockPlayer()
	cfg := DefaultConfig()
	cfg.MaxFetchAttempts = 5
	cfg.RetryDelay = 5 * time.Millisecond
	sess := NewSession(cfg, synth, mock, nil, testLogger())

	sess.Enqueue("Eventually.")
	drainPlayback(t, sess, mock)

	if len(mock.Played) != 1 {
		t.Fatalf("Expected 1 clip played after retries, got %d", len(mock.Played))
	}
	if synth.requestCount() != 3 {
		t.Errorf("Expected 3 attempts, got %d", synth.requestCount())
	}
}

func TestFetchDroppedAfterMaxAttempts(t *testing.T) {
	synth := &stubSynth{
		fn: func(ctx context.Context, req Request) ([]byte, error) {
			return nil, errors.New("upstream 500")
		},
	}
	mock := audio.NewMockPlayer()
	cfg := DefaultConfig()
	cfg.MaxFetchAttempts = 2
	cfg.RetryDelay = 5 * time.Millisecond
	sess := NewSession(cfg, synth, mock, nil, testLogger())

	sess.Enqueue("Doomed.")
	sess.Enqueue("Also doomed.")

	waitFor(t, 2*time.Second, "queue to drain by dropping", func() bool {
		return sess.QueueLen() == 0
	})
	if len(mock.Played) != 0 {
		t.Errorf("Dropped utterances were played: %d clips", len(mock.Played))
	}
}

func TestEmptyTextIsDropped(t *testing.T) {
	synth := &stubSynth{}
	mock := audio.NewMockPlayer()
	sess := NewSession(DefaultConfig(), synth, mock, nil, testLogger())

	sess.Enqueue("")
	sess.Enqueue("   \n\t ")
	if n := sess.QueueLen(); n != 0 {
		t.Errorf("Blank text entered the queue, len %d", n)
	}
}

func TestVoiceReadAtRequestTime(t *testing.T) {
	synth := &stubSynth{}
	mock := audio.NewMockPlayer()
	sess := NewSession(DefaultConfig(), synth, mock, nil, testLogger())

	sess.Voices().Select("voice-b")
	sess.Enqueue("Hello.")
	drainPlayback(t, sess, mock)

	if got := synth.request(0).VoiceID; got != "voice-b" {
		t.Errorf("Request voice = %q, want voice-b", got)
	}
}

func TestVoiceSelector(t *testing.T) {
	v := NewVoiceSelector("")
	if got := v.Current(); got != DefaultVoiceID {
		t.Errorf("Default voice = %q, want %q", got, DefaultVoiceID)
	}
	v.Select("custom")
	if got := v.Current(); got != "custom" {
		t.Errorf("Selected voice = %q, want custom", got)
	}
	v.Select("")
	if got := v.Current(); got != DefaultVoiceID {
		t.Errorf("Voice after reset = %q, want %q", got, DefaultVoiceID)
	}
}
