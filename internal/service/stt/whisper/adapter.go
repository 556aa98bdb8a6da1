// Package whisper provides an STT backend for a self-hosted Whisper server
// exposing the OpenAI-compatible /v1/audio/transcriptions endpoint
// (faster-whisper-server, speaches and similar).
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"virtual-secretary/internal/models"
	"virtual-secretary/internal/service/stt"
)

// Config holds Whisper server configuration.
type Config struct {
	BaseURL string // e.g. http://localhost:8000
	Model   string // e.g. "medium"
	APIKey  string // optional bearer token
	Timeout time.Duration
}

// DefaultConfig returns defaults matching a local faster-whisper server.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8000",
		Model:   "medium",
		Timeout: 2 * time.Minute,
	}
}

// verboseResponse is the verbose_json response body.
type verboseResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Adapter implements stt.Backend over HTTP.
type Adapter struct {
	cfg    Config
	client *http.Client
}

// New creates a Whisper backend.
func New(cfg Config) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the backend name.
func (a *Adapter) Name() string {
	return "whisper"
}

// Transcribe uploads the file at path and parses the verbose_json result.
func (a *Adapter) Transcribe(ctx context.Context, path string, opts stt.Options) (*models.TranscriptionResult, error) {
	body, contentType, err := a.buildForm(path, opts)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(a.cfg.BaseURL, "/") + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stt.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnsupportedMediaType || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", stt.ErrUnsupportedAudio, truncate(data))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d: %s", stt.ErrBackendUnavailable, resp.StatusCode, truncate(data))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("whisper: status %d: %s", resp.StatusCode, truncate(data))
	}

	var out verboseResponse
	if err := sonic.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := &models.TranscriptionResult{
		Text:     out.Text,
		Language: out.Language,
		Segments: make([]models.TranscriptSegment, 0, len(out.Segments)),
	}
	for _, s := range out.Segments {
		result.Segments = append(result.Segments, models.TranscriptSegment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return result, nil
}

func (a *Adapter) buildForm(path string, opts stt.Options) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy audio: %w", err)
	}

	fields := map[string]string{
		"model":           a.cfg.Model,
		"response_format": "verbose_json",
		"vad_filter":      strconv.FormatBool(opts.VADFilter),
	}
	if opts.VADFilter && opts.MinSilence > 0 {
		fields["min_silence_duration_ms"] = strconv.FormatInt(opts.MinSilence.Milliseconds(), 10)
	}
	if opts.Language != "" {
		fields["language"] = opts.Language
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
