// Package voice selects the reference recordings used to clone the
// assistant's voice.
package voice

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// MaxSamples caps how many reference clips are kept per synthesizer.
const MaxSamples = 3

// ErrMissingVoiceSamples signals that no reference clip was found.
// It is a warning: callers continue with an empty set and synthesis
// fails only when it is actually invoked.
var ErrMissingVoiceSamples = errors.New("voice: no voice samples found")

// Sample is a reference audio clip identified by its path.
type Sample struct {
	Path string
}

// Name returns the file name of the sample.
func (s Sample) Name() string {
	return filepath.Base(s.Path)
}

// Config controls which files count as samples.
type Config struct {
	Extensions []string // matched case-insensitively, e.g. ".wav"
	Logger     zerolog.Logger
}

// DefaultConfig matches WAV recordings only.
func DefaultConfig() Config {
	return Config{
		Extensions: []string{".wav"},
		Logger:     zerolog.Nop(),
	}
}

// Selector picks reference clips from a directory.
type Selector struct {
	extensions map[string]bool
	logger     zerolog.Logger
}

// NewSelector creates a Selector.
func NewSelector(cfg Config) *Selector {
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultConfig().Extensions
	}
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m[e] = true
	}
	return &Selector{
		extensions: m,
		logger:     cfg.Logger.With().Str("component", "voice.selector").Logger(),
	}
}

// Select returns up to MaxSamples clips from dir in lexicographic order of
// file name, so index 0 is the same primary reference on every run.
// A missing, unreadable or empty directory yields an empty slice and
// ErrMissingVoiceSamples.
func (s *Selector) Select(dir string) ([]Sample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn().Err(err).Str("dir", dir).Msg("Voice samples directory unavailable")
		return []Sample{}, fmt.Errorf("%w: %v", ErrMissingVoiceSamples, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if s.extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		s.logger.Warn().Str("dir", dir).Msg("No voice samples found in directory")
		return []Sample{}, ErrMissingVoiceSamples
	}

	sort.Strings(names)
	if len(names) > MaxSamples {
		names = names[:MaxSamples]
	}

	samples := make([]Sample, len(names))
	for i, n := range names {
		samples[i] = Sample{Path: filepath.Join(dir, n)}
	}

	s.logger.Info().
		Str("dir", dir).
		Int("count", len(samples)).
		Str("primary", samples[0].Name()).
		Msg("Voice samples selected")
	return samples, nil
}
