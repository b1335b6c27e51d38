package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLLMFlag(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		wantProv string
		wantModl string
		wantErr  bool
	}{
		{"empty defaults to ollama", "", "ollama", "deepseek-r1:7b", false},
		{"ollama with model", "ollama/llama3.2:3b", "ollama", "llama3.2:3b", false},
		{"openrouter nested model", "openrouter/openai/gpt-4o-mini", "openrouter", "openai/gpt-4o-mini", false},
		{"uppercase provider", "OLLAMA/deepseek-r1:7b", "ollama", "deepseek-r1:7b", false},
		{"missing model", "ollama", "", "", true},
		{"unknown provider", "cohere/command-r", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseLLMFlag(tt.flag)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got none", tt.flag)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLLMFlag(%q): %v", tt.flag, err)
			}
			if cfg.Provider != tt.wantProv || cfg.Model != tt.wantModl {
				t.Errorf("got %s/%s, want %s/%s", cfg.Provider, cfg.Model, tt.wantProv, tt.wantModl)
			}
		})
	}
}

func TestNewProviderOpenRouterRequiresKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	if _, err := NewProvider(Config{Provider: "openrouter"}); err == nil {
		t.Fatal("expected error without OPENROUTER_API_KEY")
	}
}

func TestOllamaComplete(t *testing.T) {
	var gotReq ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"content": "  YES\n"},
			"done":    true,
		})
	}))
	defer srv.Close()

	p, err := NewProvider(Config{Provider: "ollama", Model: "deepseek-r1:7b", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	out, err := p.Complete(context.Background(), "is this actionable?", CompletionOpts{
		MaxTokens:   100,
		Temperature: 0.1,
		System:      "You are an email filter.",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "YES" {
		t.Errorf("got %q, want trimmed YES", out)
	}
	if gotReq.Stream {
		t.Error("expected stream=false")
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("expected system+user messages, got %+v", gotReq.Messages)
	}
	if gotReq.Options == nil || gotReq.Options.NumPredict != 100 {
		t.Errorf("expected num_predict=100, got %+v", gotReq.Options)
	}
}

func TestOllamaCompleteErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "model not found"})
	}))
	defer srv.Close()

	p, err := NewProvider(Config{Provider: "ollama", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if _, err := p.Complete(context.Background(), "hi", CompletionOpts{}); err == nil {
		t.Fatal("expected error on 404")
	}
}

func TestOpenRouterComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		var req orRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %+v", req.ResponseFormat)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": `[{"title":"Review report"}]`}},
			},
		})
	}))
	defer srv.Close()

	p := &openrouterProvider{apiKey: "test-key", model: "openai/gpt-4o-mini", baseURL: srv.URL}
	out, err := p.Complete(context.Background(), "extract tasks", CompletionOpts{Format: "json"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.Contains(out, "Review report") {
		t.Errorf("unexpected output %q", out)
	}
}
