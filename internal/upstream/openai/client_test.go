package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateTextRequestsJSONObjectAndReturnsContent(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"summary\":\"s\"}"}}]}`)
	}))
	defer ts.Close()

	var status int
	c := New(ts.URL+"/v1/", "test-key", ts.Client(), WithObserver(func(_ string, s int, _ error, _ time.Duration) { status = s }))
	text, err := c.GenerateText(context.Background(), "gpt-4o-mini", "analyze this")
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if text != `{"summary":"s"}` {
		t.Fatalf("unexpected text: %q", text)
	}
	format, _ := body["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", body["response_format"])
	}
	if _, ok := body["max_tokens"]; !ok {
		t.Fatalf("expected max_tokens for non-reasoning model: %v", body)
	}
	if status != http.StatusOK {
		t.Fatalf("unexpected observed status: %d", status)
	}
}

func TestGenerateTextEmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer ts.Close()

	c := New(ts.URL, "k", ts.Client())
	text, err := c.GenerateText(context.Background(), "m", "p")
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestGenerateTextReturnsStatusOnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}))
	defer ts.Close()

	c := New(ts.URL, "k", ts.Client())
	_, err := c.GenerateText(context.Background(), "m", "p")
	if err == nil {
		t.Fatal("expected error")
	}
	if StatusCode(err) != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d (%v)", StatusCode(err), err)
	}
}

func TestIsReasoningModel(t *testing.T) {
	if !isReasoningModel("o3-mini") || !isReasoningModel("gpt-5") {
		t.Fatal("expected reasoning models to be detected")
	}
	if isReasoningModel("gpt-4o-mini") {
		t.Fatal("gpt-4o-mini is not a reasoning model")
	}
}
