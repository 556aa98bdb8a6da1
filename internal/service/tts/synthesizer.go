package tts

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"virtual-secretary/internal/models"
	"virtual-secretary/internal/observability/metrics"
	"virtual-secretary/internal/service/audio"
	"virtual-secretary/internal/service/voice"
)

// Config holds synthesizer settings.
type Config struct {
	Language string // used when a call passes no language
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

// Synthesizer clones the primary voice sample for every call.
type Synthesizer struct {
	backend Backend
	samples []voice.Sample
	cfg     Config
	log     zerolog.Logger
}

// NewSynthesizer creates a synthesizer. samples is fixed for its lifetime;
// an empty set is accepted and makes every Synthesize call fail.
func NewSynthesizer(backend Backend, samples []voice.Sample, cfg Config) *Synthesizer {
	s := &Synthesizer{
		backend: backend,
		samples: append([]voice.Sample(nil), samples...),
		cfg:     cfg,
		log:     cfg.Logger.With().Str("component", "tts").Str("backend", backend.Name()).Logger(),
	}
	if cfg.Metrics != nil {
		cfg.Metrics.SetVoiceSamples(len(s.samples))
	}
	return s
}

// Samples returns the reference samples in use.
func (s *Synthesizer) Samples() []voice.Sample {
	return append([]voice.Sample(nil), s.samples...)
}

// Backend returns the wrapped backend name.
func (s *Synthesizer) Backend() string {
	return s.backend.Name()
}

// Synthesize speaks text in the cloned voice. When outputPath is set the
// waveform is also written there as WAV; a write failure is returned as
// *PersistError together with the valid result.
func (s *Synthesizer) Synthesize(ctx context.Context, text, language, outputPath string) (*models.SynthesisResult, error) {
	if len(s.samples) == 0 {
		return nil, ErrNoVoiceSample
	}
	if language == "" {
		language = s.cfg.Language
	}

	s.log.Info().Str("text", preview(text)).Str("language", language).Msg("Synthesizing")

	start := time.Now()
	samples, rate, err := s.backend.Synthesize(ctx, Request{
		Text:          text,
		ReferencePath: s.samples[0].Path,
		Language:      language,
	})
	if err == nil && (len(samples) == 0 || rate <= 0) {
		err = ErrEmptyAudio
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordStage(metrics.StageSynthesis, s.backend.Name(), err, time.Since(start).Seconds())
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Synthesis failed")
		return nil, &SynthesisError{Backend: s.backend.Name(), Err: err}
	}

	result := &models.SynthesisResult{Audio: samples, SampleRate: rate}

	if outputPath != "" {
		if err := audio.WriteWAVFile(outputPath, samples, rate); err != nil {
			s.log.Error().Err(err).Str("path", outputPath).Msg("Failed to save synthesized audio")
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.RecordStage(metrics.StagePersist, s.backend.Name(), err, 0)
			}
			return result, &PersistError{Path: outputPath, Err: err}
		}
		s.log.Info().Str("path", outputPath).Msg("Saved synthesized audio")
	}

	return result, nil
}

// SynthesizeToFile synthesizes text and writes it to path.
func (s *Synthesizer) SynthesizeToFile(ctx context.Context, text, path, language string) (string, error) {
	if _, err := s.Synthesize(ctx, text, language, path); err != nil {
		return "", err
	}
	return path, nil
}

func preview(s string) string {
	const max = 50
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}
