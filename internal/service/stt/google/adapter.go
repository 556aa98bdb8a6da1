// Package google provides a Google Cloud Speech-to-Text backend.
package google

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/go-audio/wav"

	"virtual-secretary/internal/models"
	"virtual-secretary/internal/service/stt"
)

// Config holds Google STT configuration.
type Config struct {
	LanguageCode      string // BCP-47 code used when the caller gives no hint
	SampleRateHz      int    // used when the file header carries no rate
	AudioEncoding     string // LINEAR16, MULAW, FLAC, ...
	Model             string // "", "latest_long", "phone_call", ...
	EnablePunctuation bool
}

// DefaultConfig returns sensible defaults for 16-bit WAV input.
func DefaultConfig() Config {
	return Config{
		LanguageCode:      "en-US",
		SampleRateHz:      16000,
		AudioEncoding:     "LINEAR16",
		EnablePunctuation: true,
	}
}

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// Adapter implements stt.Backend using synchronous recognition.
type Adapter struct {
	cfg       Config
	client    *speech.Client
	recognize recognizeFunc
}

// New creates a new Google STT backend.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stt.ErrBackendUnavailable, err)
	}
	return &Adapter{
		cfg:    cfg,
		client: c,
		recognize: func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return c.Recognize(ctx, req)
		},
	}, nil
}

// Name returns the backend name.
func (a *Adapter) Name() string {
	return "google"
}

// Close releases the gRPC connection.
func (a *Adapter) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// Transcribe sends the file at path for recognition and splits the word
// timings into segments wherever a pause reaches opts.MinSilence.
func (a *Adapter) Transcribe(ctx context.Context, path string, opts stt.Options) (*models.TranscriptionResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	rate := a.cfg.SampleRateHz
	if r := wavSampleRate(path); r > 0 {
		rate = r
	}

	lang := toLanguageCode(opts.Language, a.cfg.LanguageCode)
	resp, err := a.recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(a.cfg.AudioEncoding),
			SampleRateHertz:            int32(rate),
			LanguageCode:               lang,
			Model:                      a.cfg.Model,
			EnableWordTimeOffsets:      true,
			EnableAutomaticPunctuation: a.cfg.EnablePunctuation,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
		},
	})
	if err != nil {
		return nil, err
	}

	minSilence := opts.MinSilence
	if !opts.VADFilter {
		minSilence = 0
	}

	result := &models.TranscriptionResult{
		Segments: segmentsFromResults(resp.GetResults(), minSilence),
	}
	for _, r := range resp.GetResults() {
		if r.GetLanguageCode() != "" {
			result.Language = r.GetLanguageCode()
			break
		}
	}
	return result, nil
}

// segmentsFromResults groups recognized words into segments separated by
// pauses of at least minSilence. A zero minSilence keeps one segment per
// result. Results without word timings become a single segment each.
func segmentsFromResults(results []*speechpb.SpeechRecognitionResult, minSilence time.Duration) []models.TranscriptSegment {
	var segments []models.TranscriptSegment
	var resultStart time.Duration

	for _, r := range results {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		alt := r.GetAlternatives()[0]
		words := alt.GetWords()
		resultEnd := r.GetResultEndTime().AsDuration()

		if len(words) == 0 {
			if text := strings.TrimSpace(alt.GetTranscript()); text != "" {
				segments = append(segments, models.TranscriptSegment{
					Start: resultStart.Seconds(),
					End:   resultEnd.Seconds(),
					Text:  text,
				})
			}
			resultStart = resultEnd
			continue
		}

		var cur []string
		segStart := words[0].GetStartTime().AsDuration()
		prevEnd := segStart
		for _, w := range words {
			start := w.GetStartTime().AsDuration()
			if len(cur) > 0 && minSilence > 0 && start-prevEnd >= minSilence {
				segments = append(segments, models.TranscriptSegment{
					Start: segStart.Seconds(),
					End:   prevEnd.Seconds(),
					Text:  strings.Join(cur, " "),
				})
				cur = cur[:0]
				segStart = start
			}
			cur = append(cur, w.GetWord())
			prevEnd = w.GetEndTime().AsDuration()
		}
		if len(cur) > 0 {
			segments = append(segments, models.TranscriptSegment{
				Start: segStart.Seconds(),
				End:   prevEnd.Seconds(),
				Text:  strings.Join(cur, " "),
			})
		}
		resultStart = resultEnd
	}
	return segments
}

// toLanguageCode maps a short hint like "en" to a BCP-47 code Google accepts.
func toLanguageCode(hint, fallback string) string {
	switch strings.ToLower(hint) {
	case "":
		return fallback
	case "en":
		return "en-US"
	case "it":
		return "it-IT"
	case "es":
		return "es-ES"
	case "fr":
		return "fr-FR"
	case "de":
		return "de-DE"
	case "pt":
		return "pt-BR"
	default:
		return hint
	}
}

// wavSampleRate reads the sample rate from a WAV header, 0 if unknown.
func wavSampleRate(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if d.Err() != nil || !d.IsValidFile() {
		return 0
	}
	return int(d.SampleRate)
}

// parseAudioEncoding converts string encoding to Google's enum.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
