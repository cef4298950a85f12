package audio

import (
	"sync"
)

// MockPlayer records Play/Stop calls for tests. Clips never complete on
// their own; the test drives completion with FinishCurrent so ordering races
// can be exercised deterministically.
type MockPlayer struct {
	mu      sync.Mutex
	playing *Clip
	done    func()

	Played  []*Clip
	Stopped int
}

func NewMockPlayer() *MockPlayer {
	return &MockPlayer{}
}

func (m *MockPlayer) Play(clip *Clip, done func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playing != nil {
		return ErrBusy
	}
	m.playing = clip
	m.done = done
	m.Played = append(m.Played, clip)
	return nil
}

func (m *MockPlayer) Stop() {
	m.mu.Lock()
	m.playing = nil
	m.done = nil
	m.Stopped++
	m.mu.Unlock()
}

func (m *MockPlayer) Close() error {
	m.Stop()
	return nil
}

// FinishCurrent completes the clip in flight, firing its done callback the
// way a real device would at end of audio. Returns false if nothing was
// playing.
func (m *MockPlayer) FinishCurrent() bool {
	m.mu.Lock()
	done := m.done
	playing := m.playing != nil
	m.playing = nil
	m.done = nil
	m.mu.Unlock()
	if !playing {
		return false
	}
	if done != nil {
		done()
	}
	return true
}

// Playing reports whether a clip is currently held by the mock.
func (m *MockPlayer) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing != nil
}
