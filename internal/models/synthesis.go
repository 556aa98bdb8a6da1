package models

import "time"

// SynthesisResult is a mono waveform in the [-1, 1] range at SampleRate Hz.
type SynthesisResult struct {
	Audio      []float32
	SampleRate int
}

// Duration returns the playback length of the waveform.
func (r *SynthesisResult) Duration() time.Duration {
	if r == nil || r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(r.Audio)) * time.Second / time.Duration(r.SampleRate)
}
