package stt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"virtual-secretary/internal/models"
	"virtual-secretary/internal/observability/metrics"
	"virtual-secretary/internal/service/audio"
)

type fakeBackend struct {
	result    *models.TranscriptionResult
	err       error
	paths     []string
	opts      []Options
	sawFile   bool
	sawSample int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Transcribe(ctx context.Context, path string, opts Options) (*models.TranscriptionResult, error) {
	f.paths = append(f.paths, path)
	f.opts = append(f.opts, opts)
	if buf, err := audio.ReadWAVFile(path); err == nil {
		f.sawFile = true
		f.sawSample = buf.SampleRate
	}
	return f.result, f.err
}

func tone() audio.Source {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = 0.25
	}
	return audio.FromBuffer(samples, 16000)
}

func TestTranscribe_BufferMaterializedAndRemoved(t *testing.T) {
	dir := t.TempDir()
	backend := &fakeBackend{result: &models.TranscriptionResult{
		Language: "en",
		Segments: []models.TranscriptSegment{{Start: 0, End: 1, Text: "hello"}},
	}}
	client := NewClient(backend, Config{TempDir: dir})

	res, err := client.Transcribe(context.Background(), tone(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "hello" {
		t.Errorf("expected 'hello', got %q", res.Text)
	}
	if !backend.sawFile || backend.sawSample != 16000 {
		t.Errorf("expected backend to read a 16kHz WAV, sawFile=%v rate=%d", backend.sawFile, backend.sawSample)
	}
	if filepath.Dir(backend.paths[0]) != dir {
		t.Errorf("expected temp file in %s, got %s", dir, backend.paths[0])
	}
	if _, err := os.Stat(backend.paths[0]); !os.IsNotExist(err) {
		t.Errorf("expected temp file to be removed, stat err = %v", err)
	}
}

func TestTranscribe_BufferRemovedOnBackendFailure(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("model crashed")
	backend := &fakeBackend{err: boom}
	client := NewClient(backend, Config{TempDir: dir})

	_, err := client.Transcribe(context.Background(), tone(), "en")

	var terr *TranscriptionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TranscriptionError, got %T", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
	if terr.Backend != "fake" {
		t.Errorf("expected backend 'fake', got %s", terr.Backend)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected temp dir to be empty, found %d entries", len(entries))
	}
}

func TestTranscribe_FilePathPassedThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := audio.WriteWAVFile(path, []float32{0.1, 0.2}, 8000); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	backend := &fakeBackend{result: &models.TranscriptionResult{Text: "ok"}}
	client := NewClient(backend, DefaultConfig())

	if _, err := client.Transcribe(context.Background(), audio.FromFile(path), "it"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.paths[0] != path {
		t.Errorf("expected %s, got %s", path, backend.paths[0])
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("caller's file must not be removed: %v", err)
	}
}

func TestTranscribe_VADOptions(t *testing.T) {
	backend := &fakeBackend{result: &models.TranscriptionResult{}}
	client := NewClient(backend, Config{Language: "it"})

	_, _ = client.Transcribe(context.Background(), tone(), "")

	opts := backend.opts[0]
	if !opts.VADFilter {
		t.Error("expected VAD filter enabled")
	}
	if opts.MinSilence != DefaultMinSilence {
		t.Errorf("expected min silence %v, got %v", DefaultMinSilence, opts.MinSilence)
	}
	if opts.Language != "it" {
		t.Errorf("expected configured language 'it', got %q", opts.Language)
	}
}

func TestTranscribe_InvalidSource(t *testing.T) {
	backend := &fakeBackend{}
	client := NewClient(backend, DefaultConfig())

	tests := []struct {
		name string
		src  audio.Source
		want error
	}{
		{"empty source", audio.Source{}, audio.ErrNoSource},
		{"empty buffer", audio.FromBuffer(nil, 16000), audio.ErrEmptyBuffer},
		{"bad rate", audio.FromBuffer([]float32{0.1}, 0), audio.ErrInvalidSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Transcribe(context.Background(), tt.src, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(backend.paths) != 0 {
		t.Errorf("backend should not be called for invalid sources, got %d calls", len(backend.paths))
	}
}

func TestTranscribe_RecordsMetrics(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	client := NewClient(&fakeBackend{err: errors.New("x")}, Config{Metrics: m})

	_, _ = client.Transcribe(context.Background(), tone(), "")

	if got := testutil.ToFloat64(m.StageErrors.WithLabelValues(metrics.StageTranscription, "fake")); got != 1 {
		t.Errorf("expected 1 transcription error, got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      *models.TranscriptionResult
		hint     string
		wantText string
		wantLang string
		wantSegs int
	}{
		{
			name:     "nil result",
			raw:      nil,
			hint:     "en",
			wantText: "",
			wantLang: "en",
			wantSegs: 0,
		},
		{
			name: "trims and joins",
			raw: &models.TranscriptionResult{Language: "it", Segments: []models.TranscriptSegment{
				{Start: 0, End: 1, Text: "  ciao "},
				{Start: 1, End: 2, Text: "   "},
				{Start: 2, End: 3, Text: "come stai?"},
			}},
			hint:     "en",
			wantText: "ciao come stai?",
			wantLang: "it",
			wantSegs: 2,
		},
		{
			name:     "text only",
			raw:      &models.TranscriptionResult{Text: " hello there "},
			hint:     "en",
			wantText: "hello there",
			wantLang: "en",
			wantSegs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize(tt.raw, tt.hint)
			if got.Text != tt.wantText {
				t.Errorf("text = %q, want %q", got.Text, tt.wantText)
			}
			if got.Language != tt.wantLang {
				t.Errorf("language = %q, want %q", got.Language, tt.wantLang)
			}
			if len(got.Segments) != tt.wantSegs {
				t.Errorf("segments = %d, want %d", len(got.Segments), tt.wantSegs)
			}
		})
	}
}

func TestNormalize_FixesInvertedBounds(t *testing.T) {
	got := normalize(&models.TranscriptionResult{Segments: []models.TranscriptSegment{
		{Start: 2.5, End: 2.0, Text: "x"},
	}}, "")

	if got.Segments[0].End < got.Segments[0].Start {
		t.Errorf("expected start <= end, got %+v", got.Segments[0])
	}
}

func TestNormalize_OrdersAndRemovesOverlap(t *testing.T) {
	got := normalize(&models.TranscriptionResult{Segments: []models.TranscriptSegment{
		{Start: 3.0, End: 4.0, Text: "tomorrow"},
		{Start: 0.0, End: 1.5, Text: "book a meeting"},
		{Start: 1.2, End: 2.5, Text: "with Marco"},
	}}, "en")

	if got.Text != "book a meeting with Marco tomorrow" {
		t.Errorf("text = %q", got.Text)
	}
	for i := 1; i < len(got.Segments); i++ {
		prev, cur := got.Segments[i-1], got.Segments[i]
		if cur.Start < prev.End {
			t.Errorf("segment %d overlaps the previous one: %+v after %+v", i, cur, prev)
		}
		if cur.End < cur.Start {
			t.Errorf("segment %d has end before start: %+v", i, cur)
		}
	}
	if got.Segments[1].Start != 1.5 {
		t.Errorf("expected overlapping start clamped to 1.5, got %v", got.Segments[1].Start)
	}
}
