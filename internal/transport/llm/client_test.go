package llm

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

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "stop",
					"message": map[string]any{
						"content": content,
					},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestClientTranslate(t *testing.T) {
	var got chatRequest
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		completionHandler(t, "```\n\"Bonjour le monde\"\n```")(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", Title: "captionsync"})
	translated, err := client.Translate(context.Background(), "Hello world", "fr")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if translated != "Bonjour le monde" {
		t.Fatalf("expected cleaned translation, got %q", translated)
	}
	if got.Model != "demo-model" || len(got.Messages) != 2 {
		t.Fatalf("unexpected request payload %+v", got)
	}
	if got.Messages[1].Content != "Hello world" || !strings.Contains(got.Messages[0].Content, "French") {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	if headers.Get("Authorization") != "Bearer test" || headers.Get("X-Title") != "captionsync" {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestClientRefusalIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "content_filter",
					"message":       map[string]any{"content": "", "refusal": "cannot help"},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"}, WithRetryMaxAttempts(1))
	_, err := client.Translate(context.Background(), "Hello", "de")
	if !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
	if !strings.Contains(err.Error(), `refusal="cannot help"`) || !strings.Contains(err.Error(), `finish_reason="content_filter"`) {
		t.Fatalf("expected refusal details in error, got %v", err)
	}
}

func TestClientTranslateWithoutKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0", Model: "demo"})
	_, err := client.Translate(context.Background(), "Hello", "de")
	if !errors.Is(err, services.ErrMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
}

func TestClientErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		marker  error
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			marker: services.ErrMissingCredentials,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			marker: services.ErrRateLimited,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			marker: services.ErrTransport,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>oops</html>"))
			},
			marker: services.ErrMalformedResponse,
		},
		{
			name: "empty content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
			},
			marker: services.ErrMalformedResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(
				Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
				WithRetryMaxAttempts(1),
			)
			_, err := client.Translate(context.Background(), "Hello", "de")
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
		})
	}
}

func TestClientRateLimitCarriesRetryAfterWithoutRetrying(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithRetryMaxAttempts(5),
		WithSleeper(func(time.Duration) {}),
	)
	_, err := client.Translate(context.Background(), "Hello", "de")
	delay, ok := services.RetryAfter(err)
	if !ok || delay != 3*time.Second {
		t.Fatalf("expected retry-after 3s, got %v ok=%v (err=%v)", delay, ok, err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestClientRetriesServerErrorThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		completionHandler(t, "Hallo")(w, r)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(250*time.Millisecond, time.Second),
	)
	translated, err := client.Translate(context.Background(), "Hello", "de")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if translated != "Hallo" || calls != 2 {
		t.Fatalf("expected Hallo after 2 calls, got %q after %d", translated, calls)
	}
	if len(slept) != 1 || slept[0] != 250*time.Millisecond {
		t.Fatalf("expected single 250ms sleep, got %v", slept)
	}
}

func TestClientEmptyContentHasSnippet(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, ""))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	)
	_, err := client.Translate(context.Background(), "Hello", "de")
	if err == nil {
		t.Fatal("expected translate to fail")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
}
