package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luisa-bot-go/internal/config"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testRequest() Request {
	return Request{
		Prompt:          "oi",
		MaxOutputTokens: 100,
		Temperature:     1.2,
		TopP:            0.95,
		TopK:            64,
		Safety:          PermissiveSafety(),
	}
}

func newGemini(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.ProviderConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "gemini-test"}
	return NewGeminiProvider(cfg, time.Second, 1, testLogger())
}

func TestGeminiGenerate(t *testing.T) {
	var got geminiRequest
	g := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-test:generateContent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("api key not sent as query parameter")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"e ai mano"}]}}]}`))
	})

	text, err := g.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "e ai mano" {
		t.Fatalf("text = %q", text)
	}
	if got.GenerationConfig.MaxOutputTokens != 100 || got.GenerationConfig.Temperature != 1.2 || got.GenerationConfig.TopK != 64 {
		t.Errorf("generation config = %+v", got.GenerationConfig)
	}
	if len(got.SafetySettings) != 4 || got.SafetySettings[0].Threshold != "BLOCK_NONE" {
		t.Errorf("safety settings = %+v", got.SafetySettings)
	}
}

func TestGeminiFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"no candidates", http.StatusOK, `{"candidates":[]}`, ErrBlocked},
		{"prompt blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, ErrBlocked},
		{"blank text", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`, ErrEmptyResponse},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := g.Generate(context.Background(), testRequest())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGeminiWithoutCredentials(t *testing.T) {
	g := NewGeminiProvider(&config.ProviderConfig{Model: "m"}, time.Second, 1, testLogger())
	if g.Available() {
		t.Fatal("provider without key should not be available")
	}
	if _, err := g.Generate(context.Background(), testRequest()); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("err = %v, want ErrNoCredentials", err)
	}
}

func TestGeminiRetriesTransientFailures(t *testing.T) {
	var calls int32
	g := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"voltei"}]}}]}`))
	})
	g.retry.attempts = 3
	g.retry.backoff = time.Millisecond

	text, err := g.Generate(context.Background(), testRequest())
	if err != nil || text != "voltei" {
		t.Fatalf("text=%q err=%v", text, err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestGeminiDoesNotRetryBlocks(t *testing.T) {
	var calls int32
	g := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"candidates":[]}`))
	})
	g.retry.attempts = 3
	g.retry.backoff = time.Millisecond

	if _, err := g.Generate(context.Background(), testRequest()); !errors.Is(err, ErrBlocked) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("blocked responses must not be retried, calls = %d", calls)
	}
}

func newOpenAI(t *testing.T, key string, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.ProviderConfig{APIKey: key, Model: "gpt-test"}
	return NewOpenAIProvider(cfg, time.Second, 1, testLogger(), option.WithBaseURL(srv.URL+"/"))
}

func TestOpenAIGenerate(t *testing.T) {
	var body map[string]any
	o := newOpenAI(t, "sk-test", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"suave"}}]}`))
	})

	text, err := o.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "suave" {
		t.Fatalf("text = %q", text)
	}
	if body["model"] != "gpt-test" || body["max_tokens"] != float64(100) {
		t.Errorf("request body = %v", body)
	}
}

func TestOpenAIFailures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"no choices", `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`, ErrBlocked},
		{"content filter", `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"content_filter","message":{"role":"assistant","content":""}}]}`, ErrBlocked},
		{"blank", `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":" "}}]}`, ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOpenAI(t, "sk-test", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			})
			if _, err := o.Generate(context.Background(), testRequest()); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenAIWithoutCredentials(t *testing.T) {
	o := newOpenAI(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without credentials")
	})
	if o.Available() {
		t.Fatal("provider without key should not be available")
	}
	if _, err := o.Generate(context.Background(), testRequest()); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("err = %v", err)
	}
}

func TestProvidersFromConfig(t *testing.T) {
	cfg := config.Default().AI
	cfg.Providers = []string{"openai", "claude", "gemini"}

	providers := ProvidersFromConfig(&cfg, testLogger())

	var names []string
	for _, p := range providers {
		names = append(names, p.Name())
	}
	if len(names) != 2 || names[0] != "openai" || names[1] != "gemini" {
		t.Errorf("providers = %v, want [openai gemini]", names)
	}
}
