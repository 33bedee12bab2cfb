package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Error("expected api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("expected version header")
		}

		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["system"] != "You are terse." {
			t.Errorf("expected system prompt, got %v", body["system"])
		}

		fmt.Fprint(rw, `{"content":[{"text":"hello from model"}]}`)
	}))
	defer server.Close()

	p := &AnthropicProvider{Model: "test-model", APIKey: "sk-test", BaseURL: server.URL, client: server.Client()}

	got, err := p.Generate(context.Background(), "You are terse.", "say hello", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello from model" {
		t.Errorf("unexpected response %q", got)
	}
}

func TestAnthropicGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(rw, `{"error":{"message":"rate limited"}}`)
	}))
	defer server.Close()

	p := &AnthropicProvider{Model: "test-model", APIKey: "sk-test", BaseURL: server.URL, client: server.Client()}

	if _, err := p.Generate(context.Background(), "", "hi", 100); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestAnthropicNotConfigured(t *testing.T) {
	p := &AnthropicProvider{Model: "m"}
	if p.IsConfigured() {
		t.Error("expected unconfigured without key")
	}
	if _, err := p.Generate(context.Background(), "", "hi", 100); err == nil {
		t.Error("expected error without key")
	}
}

func TestOpenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("expected bearer token")
		}

		var body struct {
			Messages []map[string]string `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) != 2 || body.Messages[0]["role"] != "system" {
			t.Errorf("expected system then user messages, got %v", body.Messages)
		}

		fmt.Fprint(rw, `{"choices":[{"message":{"content":"answer"}}]}`)
	}))
	defer server.Close()

	p := &OpenAIProvider{Model: "test-model", APIKey: "sk-test", BaseURL: server.URL, client: server.Client()}

	got, err := p.Generate(context.Background(), "You are terse.", "question", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "answer" {
		t.Errorf("unexpected response %q", got)
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprint(rw, `{"choices":[]}`)
	}))
	defer server.Close()

	p := &OpenAIProvider{Model: "m", APIKey: "k", BaseURL: server.URL, client: server.Client()}

	if _, err := p.Generate(context.Background(), "", "hi", 100); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestCreateProviderNoneAvailable(t *testing.T) {
	t.Setenv("TEST_MISSING_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if p := CreateProvider("anthropic", "m1", "m2", "TEST_MISSING_KEY"); p != nil {
		t.Error("expected nil provider when no keys are set")
	}
}
