package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"virtual-secretary/internal/models"
	"virtual-secretary/internal/service/llm"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if !errors.Is(err, llm.ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	if got := DefaultConfig().Model; got != "gemini-2.5-pro" {
		t.Errorf("expected default model gemini-2.5-pro, got %s", got)
	}
}

func TestConfigure_AppliesExplicitZeroTemperature(t *testing.T) {
	zero := float32(0)
	b := &Backend{cfg: Config{Temperature: &zero, MaxTokens: 128}}
	model := &genai.GenerativeModel{}
	b.configure(model, "You are a secretary.")

	if model.Temperature == nil || *model.Temperature != 0 {
		t.Errorf("expected temperature 0 to be applied, got %v", model.Temperature)
	}
	if model.MaxOutputTokens == nil || *model.MaxOutputTokens != 128 {
		t.Errorf("expected 128 max tokens, got %v", model.MaxOutputTokens)
	}
	if model.SystemInstruction == nil {
		t.Error("expected system instruction")
	}

	unset := &genai.GenerativeModel{}
	(&Backend{}).configure(unset, "")
	if unset.Temperature != nil || unset.SystemInstruction != nil {
		t.Error("expected model defaults when nothing is configured")
	}
}

func TestToContents_MapsRoles(t *testing.T) {
	contents := toContents([]models.Turn{
		{Role: models.RoleUser, Text: "hi"},
		{Role: models.RoleAssistant, Text: "hello"},
	})

	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	if contents[0].Role != "user" || contents[1].Role != "model" {
		t.Errorf("unexpected roles %s, %s", contents[0].Role, contents[1].Role)
	}
	if contents[1].Parts[0] != genai.Text("hello") {
		t.Errorf("unexpected part %v", contents[1].Parts[0])
	}
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		want    string
		wantErr bool
	}{
		{"nil", nil, "", true},
		{"no candidates", &genai.GenerateContentResponse{}, "", true},
		{
			name: "joins text parts",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("Good "), genai.Text("morning.")}},
			}}},
			want: "Good morning.",
		},
		{
			name: "no text parts",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "audio/wav"}}},
			}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := responseText(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
