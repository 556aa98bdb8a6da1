// Package gemini provides an LLM backend for Google's Gemini models.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"virtual-secretary/internal/models"
	"virtual-secretary/internal/service/llm"
)

// Config holds Gemini configuration.
type Config struct {
	APIKey      string
	Model       string
	Temperature *float32 // nil keeps the model default
	MaxTokens   int32    // 0 keeps the model default
}

// DefaultConfig returns the default model settings.
func DefaultConfig() Config {
	return Config{Model: "gemini-2.5-pro"}
}

// Backend implements llm.Backend with a genai client created once.
type Backend struct {
	cfg    Config
	client *genai.Client
}

// New connects to the Gemini API.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, llm.ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Backend{cfg: cfg, client: client}, nil
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "gemini"
}

// Close releases the client.
func (b *Backend) Close() error {
	return b.client.Close()
}

// Generate starts a chat seeded with the request history and sends the
// new message. A model handle is built per call since it carries the
// system instruction and is not safe to share between sessions.
func (b *Backend) Generate(ctx context.Context, req llm.Request) (string, error) {
	model := b.client.GenerativeModel(b.cfg.Model)
	b.configure(model, req.SystemPrompt)

	cs := model.StartChat()
	cs.History = toContents(req.History)

	resp, err := cs.SendMessage(ctx, genai.Text(req.Message))
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// configure applies the persona and the generation settings to model.
func (b *Backend) configure(model *genai.GenerativeModel, systemPrompt string) {
	if systemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	}
	if b.cfg.Temperature != nil {
		model.SetTemperature(*b.cfg.Temperature)
	}
	if b.cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(b.cfg.MaxTokens)
	}
}

// toContents maps turns to genai contents; the assistant role is "model".
func toContents(turns []models.Turn) []*genai.Content {
	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == models.RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t.Text)}})
	}
	return out
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", llm.ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", llm.ErrEmptyResponse
	}
	return sb.String(), nil
}
