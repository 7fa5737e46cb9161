package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

type mockGenerator struct {
	reply  string
	err    error
	prompt string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.prompt = prompt
	return m.reply, m.err
}

func hera(t *testing.T) persona.Persona {
	t.Helper()
	p, ok := persona.DefaultRegistry().Get("hera")
	if !ok {
		t.Fatal("hera missing from default registry")
	}
	return p
}

func TestBuildPromptLayout(t *testing.T) {
	p := hera(t)
	var history []state.ChatMessage
	for i := 0; i < 7; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, state.ChatMessage{Role: role, Content: fmt.Sprintf("m%d", i)})
	}
	prompt := BuildPrompt(PromptInput{
		Persona:   p,
		Citations: []state.Citation{{Title: "Career Development Services", Snippet: "Resume reviews", Source: "Local Corpus", URL: "https://njit.edu/cds"}},
		History:   history,
		Message:   "can you check my resume?",
	})

	if !strings.HasPrefix(prompt, p.Prompt) {
		t.Fatal("prompt should open with persona voice")
	}
	if !strings.Contains(prompt, "[1] Career Development Services - Resume reviews (Source: Local Corpus) https://njit.edu/cds") {
		t.Fatalf("resources block missing:\n%s", prompt)
	}
	if strings.Contains(prompt, "m0") || strings.Contains(prompt, "m1\n") {
		t.Fatalf("history should keep only the last %d lines:\n%s", HistoryLines, prompt)
	}
	if !strings.Contains(prompt, "Hera: m5") || !strings.Contains(prompt, "Student: m6") {
		t.Fatalf("speaker names wrong:\n%s", prompt)
	}
	if !strings.HasSuffix(prompt, "Student: can you check my resume?\nHera:") {
		t.Fatalf("prompt should end on the persona name:\n%s", prompt)
	}
}

func TestBuildPromptNoResources(t *testing.T) {
	prompt := BuildPrompt(PromptInput{Persona: hera(t), Message: "hi"})
	if !strings.Contains(prompt, "Resources:\n") {
		t.Fatal("missing resources header")
	}
}

func TestRespond(t *testing.T) {
	p := hera(t)
	in := PromptInput{Persona: p, Message: "hi"}
	ctx := context.Background()

	tests := []struct {
		name    string
		gen     Generator
		want    string
		wantErr bool
	}{
		{"nil generator", nil, FallbackReply(p), false},
		{"reply trimmed", &mockGenerator{reply: "  hello  \n"}, "hello", false},
		{"error degrades", &mockGenerator{err: errors.New("quota")}, FallbackReply(p), true},
		{"blank degrades", &mockGenerator{reply: "   "}, FallbackReply(p), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Respond(ctx, tt.gen, in)
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRespondSendsBuiltPrompt(t *testing.T) {
	gen := &mockGenerator{reply: "ok"}
	in := PromptInput{Persona: hera(t), Message: "internship fair"}
	if _, err := Respond(context.Background(), gen, in); err != nil {
		t.Fatal(err)
	}
	if gen.prompt != BuildPrompt(in) {
		t.Fatal("generator did not receive the built prompt")
	}
}

func TestHandoffTexts(t *testing.T) {
	p := hera(t)
	if q := SuggestionQuestion(p); !strings.Contains(q, "Hera") || !strings.Contains(q, "(yes/no)") {
		t.Fatalf("unexpected suggestion question %q", q)
	}
	if r := Reprompt(p); !strings.Contains(r, "yes or no") {
		t.Fatalf("unexpected reprompt %q", r)
	}
	if a := ConfirmAck(p); !strings.HasPrefix(a, "Hera") {
		t.Fatalf("unexpected confirm ack %q", a)
	}
	if d := DeclineAck(persona.Persona{ID: "gaia"}); !strings.Contains(d, "gaia") {
		t.Fatalf("display name should fall back to id: %q", d)
	}
}

func TestNewGenerator(t *testing.T) {
	ctx := context.Background()
	gen, err := NewGenerator(ctx, Config{Provider: "none"})
	if err != nil || gen != nil {
		t.Fatalf("none: got %v, %v", gen, err)
	}
	if _, err := NewGenerator(ctx, Config{Provider: "genai"}); err == nil {
		t.Fatal("genai without key should fail")
	}
	if _, err := NewGenerator(ctx, Config{Provider: "anthropic"}); err == nil {
		t.Fatal("anthropic without key should fail")
	}
	if _, err := NewGenerator(ctx, Config{Provider: "openai"}); err == nil {
		t.Fatal("unknown provider should fail")
	}
	gen, err = NewGenerator(ctx, Config{Provider: "anthropic", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("anthropic: %v", err)
	}
	if _, ok := gen.(*AnthropicGenerator); !ok {
		t.Fatalf("expected *AnthropicGenerator, got %T", gen)
	}
}
