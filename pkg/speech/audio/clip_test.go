package audio

import (
	"errors"
	"testing"
	"time"
)

func TestDecodePCM(t *testing.T) {
	// One second of mono s16le at 16kHz.
	data := make([]byte, 16000*2)
	clip, err := DecodePCM(data, 16000, 1)
	if err != nil {
		t.Fatalf("DecodePCM failed: %v", err)
	}
	if clip.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", clip.Duration)
	}
	if clip.SampleRate != 16000 || clip.Channels != 1 {
		t.Errorf("Format = %d/%d, want 16000/1", clip.SampleRate, clip.Channels)
	}
}

func TestDecodePCMStereoFrames(t *testing.T) {
	// 100 stereo frames at 200Hz is half a second.
	data := make([]byte, 100*4)
	clip, err := DecodePCM(data, 200, 2)
	if err != nil {
		t.Fatalf("DecodePCM failed: %v", err)
	}
	if clip.Duration != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", clip.Duration)
	}
}

func TestDecodePCMEmpty(t *testing.T) {
	if _, err := DecodePCM(nil, 16000, 1); !errors.Is(err, ErrEmptyClip) {
		t.Errorf("Expected ErrEmptyClip, got %v", err)
	}
}

func TestDecodePCMMisaligned(t *testing.T) {
	if _, err := DecodePCM([]byte{1, 2, 3}, 16000, 1); !errors.Is(err, ErrMisalignedPCM) {
		t.Errorf("Expected ErrMisalignedPCM for odd mono payload, got %v", err)
	}
	// Whole samples but a ragged stereo frame.
	if _, err := DecodePCM([]byte{1, 2, 3, 4, 5, 6}, 16000, 2); !errors.Is(err, ErrMisalignedPCM) {
		t.Errorf("Expected ErrMisalignedPCM for ragged stereo payload, got %v", err)
	}
}

func TestMockPlayerSingleClip(t *testing.T) {
	m := NewMockPlayer()
	clip := &Clip{PCM: []byte{0, 0}, SampleRate: 16000, Channels: 1}

	fired := 0
	if err := m.Play(clip, func() { fired++ }); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if err := m.Play(clip, nil); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy on overlapping Play, got %v", err)
	}

	if !m.FinishCurrent() {
		t.Fatal("FinishCurrent found nothing playing")
	}
	if fired != 1 {
		t.Errorf("done fired %d times, want 1", fired)
	}
	if m.FinishCurrent() {
		t.Error("FinishCurrent fired twice for one clip")
	}
}

func TestMockPlayerStopSuppressesDone(t *testing.T) {
	m := NewMockPlayer()
	clip := &Clip{PCM: []byte{0, 0}, SampleRate: 16000, Channels: 1}

	fired := false
	if err := m.Play(clip, func() { fired = true }); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	m.Stop()
	if m.FinishCurrent() {
		t.Error("Clip still playing after Stop")
	}
	if fired {
		t.Error("done fired for a stopped clip")
	}
	if m.Stopped != 1 {
		t.Errorf("Stopped = %d, want 1", m.Stopped)
	}
}
