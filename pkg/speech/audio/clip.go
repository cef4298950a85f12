// Package audio provides decoded-clip handling and playback for the speech
// pipeline. Playback sits behind the Player interface so the pipeline can be
// exercised in tests without an audio device.
package audio

import (
	"errors"
	"time"
)

var (
	// ErrEmptyClip is returned when a synthesis response carried no audio.
	ErrEmptyClip = errors.New("audio: empty clip")

	// ErrMisalignedPCM is returned when the payload does not divide into
	// whole 16-bit frames.
	ErrMisalignedPCM = errors.New("audio: misaligned pcm payload")
)

// Clip is a decoded, playable chunk of 16-bit little-endian PCM audio.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// DecodePCM validates raw s16le PCM bytes from a synthesis response and
// derives the clip duration. An odd trailing byte is rejected rather than
// truncated: it indicates a corrupt payload, and truncation would shift
// every later frame.
func DecodePCM(data []byte, sampleRate, channels int) (*Clip, error) {
	if len(data) == 0 {
		return nil, ErrEmptyClip
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, errors.New("audio: invalid format parameters")
	}
	bytesPerFrame := 2 * channels
	if len(data)%bytesPerFrame != 0 {
		return nil, ErrMisalignedPCM
	}
	frames := len(data) / bytesPerFrame
	dur := time.Duration(frames) * time.Second / time.Duration(sampleRate)
	return &Clip{
		PCM:        data,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   dur,
	}, nil
}
