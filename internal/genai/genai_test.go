package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func reply(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}
}

func TestGeneratePrompt_Success(t *testing.T) {
	mock := &mockChatService{resp: reply("Hello World")}
	client := &Client{chat: mock, model: "test-model"}
	out, err := client.GeneratePrompt(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if len(mock.params.Messages) != 2 || string(mock.params.Model) != "test-model" {
		t.Errorf("unexpected request params: %+v", mock.params)
	}
}

func TestGeneratePrompt_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGeneratePrompt_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}}
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestSuggestFoodName(t *testing.T) {
	tests := map[string]string{
		"buckwheat":            "buckwheat",
		"  \"Greek yogurt.\" ": "Greek yogurt",
		"oatmeal\nbecause...":  "oatmeal",
	}
	for raw, want := range tests {
		client := &Client{chat: &mockChatService{resp: reply(raw)}}
		got, err := client.SuggestFoodName(context.Background(), "whatever")
		if err != nil {
			t.Fatalf("SuggestFoodName(%q): %v", raw, err)
		}
		if got != want {
			t.Errorf("SuggestFoodName(%q) = %q, want %q", raw, got, want)
		}
	}

	client := &Client{chat: &mockChatService{resp: reply("  ")}}
	if _, err := client.SuggestFoodName(context.Background(), "x"); err == nil {
		t.Error("expected error for blank suggestion")
	}
}

func TestNewClient_NoKey(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("expected error when API key not provided, got nil")
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil || cli.model != "gpt-4o" {
		t.Errorf("unexpected client: %+v", cli)
	}
}
