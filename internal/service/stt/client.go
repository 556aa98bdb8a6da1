package stt

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"virtual-secretary/internal/models"
	"virtual-secretary/internal/observability/metrics"
	"virtual-secretary/internal/service/audio"
)

// Config holds the transcription client settings.
type Config struct {
	Language   string        // default language hint
	MinSilence time.Duration // VAD threshold
	TempDir    string        // where buffers are materialized, "" = os.TempDir()
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		MinSilence: DefaultMinSilence,
		Logger:     zerolog.Nop(),
	}
}

// Client wraps a Backend and normalizes its output.
type Client struct {
	backend Backend
	cfg     Config
	log     zerolog.Logger
}

// NewClient creates a transcription client around backend.
func NewClient(backend Backend, cfg Config) *Client {
	if cfg.MinSilence <= 0 {
		cfg.MinSilence = DefaultMinSilence
	}
	return &Client{
		backend: backend,
		cfg:     cfg,
		log:     cfg.Logger.With().Str("component", "stt").Str("backend", backend.Name()).Logger(),
	}
}

// Backend returns the wrapped backend name.
func (c *Client) Backend() string {
	return c.backend.Name()
}

// Transcribe converts src into a TranscriptionResult. A buffer source is
// written to a temporary WAV file that is removed before returning.
// Backend failures are returned as *TranscriptionError.
func (c *Client) Transcribe(ctx context.Context, src audio.Source, languageHint string) (*models.TranscriptionResult, error) {
	path, cleanup, err := c.materialize(src)
	if err != nil {
		return nil, &TranscriptionError{Backend: c.backend.Name(), Source: src.String(), Err: err}
	}
	defer cleanup()

	lang := languageHint
	if lang == "" {
		lang = c.cfg.Language
	}

	start := time.Now()
	raw, err := c.backend.Transcribe(ctx, path, Options{
		Language:   lang,
		VADFilter:  true,
		MinSilence: c.cfg.MinSilence,
	})
	elapsed := time.Since(start)
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordStage(metrics.StageTranscription, c.backend.Name(), err, elapsed.Seconds())
	}
	if err != nil {
		c.log.Error().Err(err).Str("source", src.String()).Msg("Transcription failed")
		return nil, &TranscriptionError{Backend: c.backend.Name(), Source: src.String(), Err: err}
	}

	result := normalize(raw, lang)
	c.log.Debug().
		Str("source", src.String()).
		Str("language", result.Language).
		Int("segments", len(result.Segments)).
		Dur("latency", elapsed).
		Msg("Transcription complete")
	return result, nil
}

// materialize returns a file path for src and a cleanup func that must
// always be called.
func (c *Client) materialize(src audio.Source) (string, func(), error) {
	noop := func() {}
	switch {
	case src.IsBuffer():
		if err := src.Buffer.Validate(); err != nil {
			return "", noop, err
		}
		f, err := os.CreateTemp(c.cfg.TempDir, "stt-*.wav")
		if err != nil {
			return "", noop, fmt.Errorf("create temp file: %w", err)
		}
		path := f.Name()
		cleanup := func() {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				c.log.Warn().Err(err).Str("path", path).Msg("Failed to remove temp audio")
			}
		}
		werr := audio.WriteWAV(f, src.Buffer.Samples, src.Buffer.SampleRate)
		cerr := f.Close()
		if werr != nil {
			cleanup()
			return "", noop, fmt.Errorf("write temp wav: %w", werr)
		}
		if cerr != nil {
			cleanup()
			return "", noop, fmt.Errorf("close temp wav: %w", cerr)
		}
		return path, cleanup, nil
	case src.Path != "":
		return src.Path, noop, nil
	default:
		return "", noop, audio.ErrNoSource
	}
}

// normalize trims segment text, drops empty segments, sorts segments by start
// time, removes overlaps and rebuilds the full text from what is left.
func normalize(raw *models.TranscriptionResult, hint string) *models.TranscriptionResult {
	out := &models.TranscriptionResult{Segments: []models.TranscriptSegment{}}
	if raw == nil {
		out.Language = hint
		return out
	}

	out.Language = raw.Language
	if out.Language == "" {
		out.Language = hint
	}

	texts := make([]string, 0, len(raw.Segments))
	for _, seg := range raw.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		seg.Text = text
		out.Segments = append(out.Segments, seg)
	}

	// Time order, then no overlap: each segment starts where the previous ended at the earliest.
	sort.SliceStable(out.Segments, func(i, j int) bool {
		return out.Segments[i].Start < out.Segments[j].Start
	})
	for i := range out.Segments {
		seg := &out.Segments[i]
		if i > 0 && seg.Start < out.Segments[i-1].End {
			seg.Start = out.Segments[i-1].End
		}
		if seg.End < seg.Start {
			seg.End = seg.Start
		}
		texts = append(texts, seg.Text)
	}

	// Backends that report only a full text and no segments.
	if len(out.Segments) == 0 {
		if text := strings.TrimSpace(raw.Text); text != "" {
			out.Segments = append(out.Segments, models.TranscriptSegment{Text: text})
			texts = append(texts, text)
		}
	}

	out.Text = strings.Join(texts, " ")
	return out
}
