package vertex

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestGenerateTextPostsPromptAndReturnsFirstPart(t *testing.T) {
	var got GenerateContentRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/v1/projects/demo/locations/us-central1/publishers/google/models/gemini-1.5-flash:generateContent"
		if r.URL.Path != want {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"summary\":\"ok\"}"},{"text":"ignored"}]}},{"content":{"parts":[{"text":"second"}]}}],"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5,"totalTokenCount":15}}`)
	}))
	defer ts.Close()

	var observed string
	var observedStatus int
	c := New(ts.URL+"/v1", "demo", "us-central1", ts.Client(),
		WithJSONMode(true),
		WithObserver(func(endpoint string, status int, err error, _ time.Duration) {
			observed = endpoint
			observedStatus = status
			if err != nil {
				t.Errorf("unexpected observed error: %v", err)
			}
		}),
	)
	text, err := c.GenerateText(context.Background(), "gemini-1.5-flash", "hello prompt")
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if text != `{"summary":"ok"}` {
		t.Fatalf("unexpected text: %q", text)
	}
	if len(got.Contents) != 1 || got.Contents[0].Role != "user" || got.Contents[0].Parts[0].Text != "hello prompt" {
		t.Fatalf("unexpected request contents: %+v", got.Contents)
	}
	if got.GenerationConfig == nil || got.GenerationConfig.ResponseMIMEType != "application/json" {
		t.Fatalf("expected JSON mode generation config, got %+v", got.GenerationConfig)
	}
	if observed != "generate_content" || observedStatus != http.StatusOK {
		t.Fatalf("unexpected observation: %q %d", observed, observedStatus)
	}
}

func TestGenerateTextOmitsGenerationConfigWithoutJSONMode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&raw)
		if _, ok := raw["generationConfig"]; ok {
			t.Fatalf("generationConfig should be omitted")
		}
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	}))
	defer ts.Close()

	c := New(ts.URL, "demo", "us-central1", ts.Client())
	text, err := c.GenerateText(context.Background(), "m", "p")
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text for no candidates, got %q", text)
	}
}

func TestFirstTextHandlesMissingLinks(t *testing.T) {
	cases := map[string]GenerateContentResponse{
		"no candidates": {},
		"nil content":   {Candidates: []Candidate{{FinishReason: "SAFETY"}}},
		"no parts":      {Candidates: []Candidate{{Content: &Content{}}}},
		"empty text":    {Candidates: []Candidate{{Content: &Content{Parts: []Part{{}}}}}},
	}
	for name, resp := range cases {
		if got := resp.FirstText(); got != "" {
			t.Fatalf("%s: expected empty text, got %q", name, got)
		}
	}
}

func TestGenerateContentReturnsUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":429,"status":"RESOURCE_EXHAUSTED"}}`, http.StatusTooManyRequests)
	}))
	defer ts.Close()

	var observedErr error
	c := New(ts.URL, "demo", "us-central1", ts.Client(), WithObserver(func(_ string, _ int, err error, _ time.Duration) {
		observedErr = err
	}))
	_, err := c.GenerateText(context.Background(), "m", "p")
	if err == nil {
		t.Fatal("expected error")
	}
	if observedErr != err {
		t.Fatalf("observer saw %v, caller got %v", observedErr, err)
	}
	var vErr *Error
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if vErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status code: %d", vErr.StatusCode)
	}
}

func TestGenerateContentRejectsNonJSONBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	}))
	defer ts.Close()

	c := New(ts.URL, "demo", "us-central1", ts.Client())
	if _, err := c.GenerateText(context.Background(), "m", "p"); err == nil {
		t.Fatal("expected decode error")
	}
}

type stubTokenSource struct{ err error }

func (s stubTokenSource) Token() (*oauth2.Token, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &oauth2.Token{AccessToken: "t"}, nil
}

func TestPing(t *testing.T) {
	c := New("http://unused", "demo", "us-central1", nil)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() without token source error = %v", err)
	}

	c = New("http://unused", "demo", "us-central1", nil, WithTokenSource(stubTokenSource{}))
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	c = New("http://unused", "demo", "us-central1", nil, WithTokenSource(stubTokenSource{err: io.EOF}))
	if err := c.Ping(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected wrapped token error, got %v", err)
	}
}
