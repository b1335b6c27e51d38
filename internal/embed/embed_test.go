package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestParseEmbedFlag(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		wantProv string
		wantModl string
		wantErr  bool
	}{
		{"ollama", "ollama/nomic-embed-text", "ollama", "nomic-embed-text", false},
		{"openai", "openai/text-embedding-3-small", "openai", "text-embedding-3-small", false},
		{"model with slashes", "openrouter/sentence-transformers/all-MiniLM-L6-v2", "openrouter", "sentence-transformers/all-MiniLM-L6-v2", false},
		{"empty", "", "", "", true},
		{"no slash", "ollama", "", "", true},
		{"unknown provider", "hal9000/embed", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseEmbedFlag(tt.flag)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.flag)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEmbedFlag(%q): %v", tt.flag, err)
			}
			if cfg.Provider != tt.wantProv || cfg.Model != tt.wantModl {
				t.Errorf("got %s / %s, want %s / %s", cfg.Provider, cfg.Model, tt.wantProv, tt.wantModl)
			}
			if cfg.Endpoint == "" {
				t.Error("expected a default endpoint")
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Provider: "openai", Model: "text-embedding-3-small", Endpoint: "https://api.openai.com/v1/embeddings", MaxRetries: 3, TimeoutSecs: 60}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing openai API key")
	}
	cfg.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	ollama := &Config{Provider: "ollama", Model: "nomic-embed-text", Endpoint: "http://localhost:11434/v1/embeddings", MaxRetries: 3, TimeoutSecs: 60}
	if err := ollama.Validate(); err != nil {
		t.Errorf("ollama should not require a key: %v", err)
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if len(req.Input) != 1 || req.Input[0] != "review the quarterly report" {
			t.Errorf("unexpected input %v", req.Input)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2, 0.3}, "index": 0},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(&Config{Provider: "test", Model: "m", Endpoint: srv.URL, MaxRetries: 1, TimeoutSecs: 5})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	vec, err := client.Embed(context.Background(), "review the quarterly report")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("got %d dims, want 3", len(vec))
	}
	if client.Dimensions() != 3 {
		t.Errorf("Dimensions() = %d, want 3", client.Dimensions())
	}
}

func TestEmbedRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{1, 0}, "index": 0}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(&Config{Provider: "test", Model: "m", Endpoint: srv.URL, MaxRetries: 2, TimeoutSecs: 5})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("Embed after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestEmbedEmptyText(t *testing.T) {
	client, err := NewClient(&Config{Provider: "test", Model: "m", Endpoint: "http://localhost:0", MaxRetries: 0, TimeoutSecs: 1})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Embed(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank text")
	}
}
