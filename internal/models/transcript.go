// Package models defines the data structures shared by the conversation pipeline.
package models

// TranscriptSegment is one timed span of recognized speech.
// Start and End are seconds from the beginning of the audio, Start <= End.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult is the normalized output of one transcription call.
// Text is the space-joined concatenation of the segment texts.
type TranscriptionResult struct {
	Text     string              `json:"text"`
	Language string              `json:"language"`
	Segments []TranscriptSegment `json:"segments"`
}

// Duration returns the end time of the last segment in seconds.
func (r *TranscriptionResult) Duration() float64 {
	if r == nil || len(r.Segments) == 0 {
		return 0
	}
	return r.Segments[len(r.Segments)-1].End
}
