// Package openai provides an LLM backend for OpenAI-compatible chat APIs.
package openai

import (
	"context"
	"math"

	"github.com/sashabaranov/go-openai"

	"virtual-secretary/internal/models"
	"virtual-secretary/internal/service/llm"
)

// Config holds the configuration for the OpenAI backend.
type Config struct {
	APIKey      string
	BaseURL     string // empty for api.openai.com
	Model       string
	MaxTokens   int
	Temperature *float32 // nil keeps the API default
}

// DefaultConfig returns the default model settings.
func DefaultConfig() Config {
	defaultTemperature := float32(0.7)
	return Config{
		Model:       openai.GPT4oMini,
		MaxTokens:   512,
		Temperature: &defaultTemperature,
	}
}

// Backend implements llm.Backend with a go-openai client.
type Backend struct {
	cfg    Config
	client *openai.Client
}

// New creates an OpenAI backend.
func New(cfg Config) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, llm.ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Backend{cfg: cfg, client: openai.NewClientWithConfig(clientCfg)}, nil
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "openai"
}

// Close is a no-op; the HTTP client needs no teardown.
func (b *Backend) Close() error {
	return nil
}

// Generate runs a non-streaming chat completion.
func (b *Backend) Generate(ctx context.Context, req llm.Request) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.cfg.Model,
		Messages:    convertMessages(req),
		MaxTokens:   b.cfg.MaxTokens,
		Temperature: temperature(b.cfg.Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// temperature maps an unset value to 0, which the client omits from the
// request, and an explicit 0 to the smallest positive float so it is sent.
func temperature(t *float32) float32 {
	switch {
	case t == nil:
		return 0
	case *t == 0:
		return math.SmallestNonzeroFloat32
	default:
		return *t
	}
}

// convertMessages builds system, history and user messages in order.
func convertMessages(req llm.Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	for _, t := range req.History {
		role := openai.ChatMessageRoleUser
		if t.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})
}
