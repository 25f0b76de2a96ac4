package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"captionsync/internal/services"
)

func chatCompletion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []any{
			map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

func TestClientTranslate(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected authorization %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion("“你好，世界”"))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	got, err := client.Translate(context.Background(), "Hello, world", "zh-CN")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if got != "你好，世界" {
		t.Fatalf("expected cleaned translation, got %q", got)
	}
	if body["model"] != "demo" {
		t.Fatalf("unexpected model %v", body["model"])
	}
	messages, _ := body["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %v", body["messages"])
	}
}

func TestClientErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		marker error
	}{
		{"rate limited", http.StatusTooManyRequests, services.ErrRateLimited},
		{"unauthorized", http.StatusUnauthorized, services.ErrMissingCredentials},
		{"server error", http.StatusInternalServerError, services.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test"}}`))
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
			_, err := client.Translate(context.Background(), "Hello", "fr")
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
			if calls != 1 {
				t.Fatalf("expected SDK retries disabled, got %d calls", calls)
			}
			if tt.marker == services.ErrRateLimited {
				if delay, ok := services.RetryAfter(err); !ok || delay != 2*time.Second {
					t.Fatalf("expected retry-after 2s, got %v %v", delay, ok)
				}
			}
		})
	}
}

func TestClientEmptyContentIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion(""))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	if _, err := client.Translate(context.Background(), "Hello", "fr"); !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestClientWithoutKey(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.Translate(context.Background(), "Hello", "fr"); !errors.Is(err, services.ErrMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
}
