package whisper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"virtual-secretary/internal/service/stt"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "turn.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVEfake"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Model != "medium" {
		t.Errorf("expected model 'medium', got %s", cfg.Model)
	}
	if cfg.Timeout <= 0 {
		t.Error("expected positive timeout")
	}
}

func TestTranscribe_SendsFormAndParses(t *testing.T) {
	var form map[string]string
	var fileBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing auth header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			form[k] = v[0]
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file: %v", err)
			return
		}
		b, _ := io.ReadAll(f)
		fileBody = string(b)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" Ciao. Come stai?","language":"it","segments":[{"start":0,"end":0.8,"text":" Ciao."},{"start":1.5,"end":2.4,"text":" Come stai?"}]}`))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL + "/", Model: "medium", APIKey: "secret"})
	res, err := a.Transcribe(context.Background(), writeAudio(t), stt.Options{
		Language: "it", VADFilter: true, MinSilence: stt.DefaultMinSilence,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if form["response_format"] != "verbose_json" {
		t.Errorf("expected verbose_json, got %q", form["response_format"])
	}
	if form["vad_filter"] != "true" || form["min_silence_duration_ms"] != "500" {
		t.Errorf("expected VAD fields, got %v", form)
	}
	if form["language"] != "it" || form["model"] != "medium" {
		t.Errorf("unexpected form %v", form)
	}
	if fileBody != "RIFF....WAVEfake" {
		t.Errorf("unexpected uploaded body %q", fileBody)
	}
	if res.Language != "it" || len(res.Segments) != 2 || res.Segments[1].Start != 1.5 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestTranscribe_NoLanguageOmitsField(t *testing.T) {
	var hasLanguage bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		_, hasLanguage = r.MultipartForm.Value["language"]
		_, _ = w.Write([]byte(`{"text":"","segments":[]}`))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL})
	if _, err := a.Transcribe(context.Background(), writeAudio(t), stt.Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasLanguage {
		t.Error("expected language field to be omitted for auto-detect")
	}
}

func TestTranscribe_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"server error", http.StatusInternalServerError, stt.ErrBackendUnavailable},
		{"bad audio", http.StatusUnprocessableEntity, stt.ErrUnsupportedAudio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			a := New(Config{BaseURL: srv.URL})
			_, err := a.Transcribe(context.Background(), writeAudio(t), stt.Options{})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTranscribe_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":`))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL})
	if _, err := a.Transcribe(context.Background(), writeAudio(t), stt.Options{}); err == nil {
		t.Error("expected decode error")
	}
}

func TestTranscribe_Unreachable(t *testing.T) {
	a := New(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := a.Transcribe(context.Background(), writeAudio(t), stt.Options{})
	if !errors.Is(err, stt.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}
