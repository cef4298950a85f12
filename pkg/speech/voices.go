package speech

import "sync"

// DefaultVoiceID is used when no voice has been selected.
const DefaultVoiceID = "CYw3kZ02Hs0563khs1Fj" // Dave

// VoiceSelector holds the currently selected synthetic voice. The synthesis
// pool reads it at request time, so changing the voice mid-session affects
// only utterances whose requests have not been sent yet.
type VoiceSelector struct {
	mu       sync.RWMutex
	fallback string
	selected string
}

func NewVoiceSelector(fallback string) *VoiceSelector {
	if fallback == "" {
		fallback = DefaultVoiceID
	}
	return &VoiceSelector{fallback: fallback}
}

// Select sets the active voice. An empty id reverts to the fallback.
func (v *VoiceSelector) Select(id string) {
	v.mu.Lock()
	v.selected = id
	v.mu.Unlock()
}

// Current returns the selected voice id, or the fallback if none is set.
func (v *VoiceSelector) Current() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.selected == "" {
		return v.fallback
	}
	return v.selected
}
