// Package vad scores microphone audio for voice activity. The primary
// detector talks to a Cobra scoring service; when that is unreachable the
// energy detector keeps the app usable with a cruder estimate.
package vad

import (
	"context"
	"math"
)

// Detector scores one chunk of 16-bit mono PCM. The result is the
// probability that the chunk contains speech, in [0, 1].
type Detector interface {
	Score(ctx context.Context, pcm []int16) (float64, error)
	Close() error
}

// DecodeInt16 reinterprets little-endian bytes as 16-bit samples. An odd
// trailing byte is dropped, mirroring how browser recorders chunk streams.
func DecodeInt16(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}
	return out
}

// EnergyDetector estimates voice probability from RMS signal energy. It is
// the fallback when no scoring service is reachable.
type EnergyDetector struct {
	// Reference is the RMS level (0..1 of full scale) mapped to
	// probability 1. Speech over laptop mics usually sits well above
	// 0.05 full scale.
	Reference float64
}

func NewEnergyDetector() *EnergyDetector {
	return &EnergyDetector{Reference: 0.05}
}

func (d *EnergyDetector) Score(_ context.Context, pcm []int16) (float64, error) {
	if len(pcm) == 0 {
		return 0, nil
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s) / 32768.0
		sum += v * v
	}
	level := math.Sqrt(sum / float64(len(pcm)))
	p := level / d.Reference
	if p > 1 {
		p = 1
	}
	return p, nil
}

func (d *EnergyDetector) Close() error { return nil }
