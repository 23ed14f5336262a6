package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/zinnia/internal/dispatch/mock"
	"github.com/MrWong99/zinnia/pkg/provider/llm"
	llmmock "github.com/MrWong99/zinnia/pkg/provider/llm/mock"
)

func TestAsk_Effect(t *testing.T) {
	t.Parallel()

	model := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "The sky is **blue** because of Rayleigh scattering.\nShorter wavelengths scatter more. That is 3.5 times... Fourth sentence here.",
	}}
	a := NewAsk(model, WithSystemPrompt("Be brief."))
	out := &mock.Speaker{}

	a.Effect(context.Background(), "why is the sky blue", out)

	want := "The sky is blue because of Rayleigh scattering. Shorter wavelengths scatter more. That is 3.5 times..."
	if out.Last() != want {
		t.Errorf("said %q, want %q", out.Last(), want)
	}
	calls := model.Calls()
	if len(calls) != 1 {
		t.Fatalf("Complete called %d times, want 1", len(calls))
	}
	req := calls[0].Req
	if req.SystemPrompt != "Be brief." {
		t.Errorf("SystemPrompt = %q", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != llm.RoleUser || req.Messages[0].Content != "why is the sky blue" {
		t.Errorf("Messages = %+v", req.Messages)
	}
}

func TestAsk_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		model *llmmock.Provider
		want  string
	}{
		{
			name:  "model error",
			model: &llmmock.Provider{CompleteErr: errors.New("connection refused")},
			want:  "I couldn't reach the language model. Please try again later.",
		},
		{
			name:  "empty answer",
			model: &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "  "}},
			want:  "I don't have an answer for that.",
		},
		{
			name:  "nil response",
			model: &llmmock.Provider{},
			want:  "I don't have an answer for that.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := &mock.Speaker{}
			NewAsk(tc.model).Effect(context.Background(), "what is love", out)
			if out.Last() != tc.want {
				t.Errorf("said %q, want %q", out.Last(), tc.want)
			}
		})
	}
}

func TestAsk_DefaultPromptAndCatchAll(t *testing.T) {
	t.Parallel()

	a := NewAsk(&llmmock.Provider{}, WithSystemPrompt(""))
	if a.prompt != DefaultSystemPrompt {
		t.Errorf("prompt = %q, want default", a.prompt)
	}
	if !a.Recognize("anything at all") {
		t.Error("Ask should accept any utterance")
	}
	if a.Recognize("  ") {
		t.Error("Ask should not accept blank text")
	}
}
