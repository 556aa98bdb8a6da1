// Package xtts provides a voice-cloning TTS backend for an XTTS v2 server.
package xtts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"virtual-secretary/internal/service/audio"
	"virtual-secretary/internal/service/tts"
)

// Device values accepted by the server.
const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// Config holds XTTS server configuration.
type Config struct {
	BaseURL string
	Model   string
	Device  string // auto, cpu or cuda
	Timeout time.Duration
}

// DefaultConfig returns defaults for a local XTTS v2 server.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8020",
		Model:   "tts_models/multilingual/multi-dataset/xtts_v2",
		Device:  DeviceAuto,
		Timeout: 2 * time.Minute,
	}
}

// errorResponse is the JSON body the server sends on failure.
type errorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// Backend implements tts.Backend. Reference clips are read from disk once
// per path and kept in memory.
type Backend struct {
	cfg    Config
	client *http.Client

	mu   sync.Mutex
	refs map[string][]byte
}

// New creates an XTTS backend.
func New(cfg Config) *Backend {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Device == "" {
		cfg.Device = def.Device
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	return &Backend{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		refs:   make(map[string][]byte),
	}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "xtts"
}

// Synthesize uploads the text and reference clip and decodes the WAV reply.
func (b *Backend) Synthesize(ctx context.Context, req tts.Request) ([]float32, int, error) {
	ref, err := b.reference(req.ReferencePath)
	if err != nil {
		return nil, 0, err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := map[string]string{
		"text":     req.Text,
		"language": req.Language,
		"model":    b.cfg.Model,
		"device":   b.cfg.Device,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, 0, err
		}
	}
	part, err := w.CreateFormFile("speaker_wav", filepath.Base(req.ReferencePath))
	if err != nil {
		return nil, 0, err
	}
	if _, err := part.Write(ref); err != nil {
		return nil, 0, err
	}
	if err := w.Close(); err != nil {
		return nil, 0, err
	}

	url := strings.TrimRight(b.cfg.BaseURL, "/") + "/tts"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	httpReq.Header.Set("Accept", "audio/wav")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("xtts: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("xtts: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("xtts: status %d: %s", resp.StatusCode, errorMessage(data))
	}

	buf, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, 0, fmt.Errorf("xtts: decode audio: %w", err)
	}
	return buf.Samples, buf.SampleRate, nil
}

func (b *Backend) reference(path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if data, ok := b.refs[path]; ok {
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("xtts: read reference: %w", err)
	}
	b.refs[path] = data
	return data, nil
}

// errorMessage extracts a message from a JSON error body, falling back to
// the raw body.
func errorMessage(data []byte) string {
	var e errorResponse
	if err := sonic.Unmarshal(data, &e); err == nil {
		if e.Detail != "" {
			return e.Detail
		}
		if e.Error != "" {
			return e.Error
		}
	}
	if len(data) > 200 {
		data = data[:200]
	}
	return string(data)
}
