package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ObserverFunc receives every generateContent call. status is 0 when no HTTP
// response arrived.
type ObserverFunc func(endpoint string, status int, err error, duration time.Duration)

type Option func(*Client)

// Client calls the Vertex AI generateContent REST method. The supplied http.Client
// is expected to attach credentials; WithTokenSource only enables Ping.
type Client struct {
	baseURL     string
	project     string
	location    string
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	jsonMode    bool
	observer    ObserverFunc
}

type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("vertex request failed with status %d", e.StatusCode)
}

type Part struct {
	Text string `json:"text,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type GenerationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type GenerateContentRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type Candidate struct {
	Content      *Content `json:"content,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type GenerateContentResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// FirstText returns candidates[0].content.parts[0].text, or "" when any link is missing.
func (r GenerateContentResponse) FirstText() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	content := r.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return ""
	}
	return content.Parts[0].Text
}

func WithObserver(observer ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		c.tokenSource = ts
	}
}

// WithJSONMode asks the model for application/json output.
func WithJSONMode(enabled bool) Option {
	return func(c *Client) {
		c.jsonMode = enabled
	}
}

func New(baseURL, project, location string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		project:    strings.TrimSpace(project),
		location:   strings.TrimSpace(location),
		httpClient: httpClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) GenerateContent(ctx context.Context, model string, reqPayload GenerateContentRequest) (_ GenerateContentResponse, err error) {
	started := time.Now()
	statusCode := 0
	defer func() { c.observe("generate_content", statusCode, err, time.Since(started)) }()

	payload, err := json.Marshal(reqPayload)
	if err != nil {
		return GenerateContentResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL(model)+":generateContent", bytes.NewReader(payload))
	if err != nil {
		return GenerateContentResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return GenerateContentResponse{}, err
	}
	defer httpResp.Body.Close()
	statusCode = httpResp.StatusCode

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return GenerateContentResponse{}, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return GenerateContentResponse{}, &Error{StatusCode: httpResp.StatusCode, Body: truncateBody(string(respBody))}
	}

	var resp GenerateContentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return GenerateContentResponse{}, fmt.Errorf("invalid generateContent response: %w", err)
	}
	return resp, nil
}

// GenerateText sends prompt as a single user turn and returns the first text part.
func (c *Client) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	req := GenerateContentRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: prompt}}}},
	}
	if c.jsonMode {
		req.GenerationConfig = &GenerationConfig{ResponseMIMEType: "application/json"}
	}
	resp, err := c.GenerateContent(ctx, model, req)
	if err != nil {
		return "", err
	}
	return resp.FirstText(), nil
}

// Ping verifies that credentials can be minted.
func (c *Client) Ping(ctx context.Context) error {
	if c.tokenSource == nil {
		return nil
	}
	errCh := make(chan error, 1)
	go func() {
		_, err := c.tokenSource.Token()
		errCh <- err
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("vertex credentials: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) modelURL(model string) string {
	return fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s",
		c.baseURL, url.PathEscape(c.project), url.PathEscape(c.location), url.PathEscape(model))
}

func (c *Client) observe(endpoint string, status int, err error, duration time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, status, err, duration)
	}
}

func truncateBody(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4096 {
		return s
	}
	return s[:4096] + "..."
}
