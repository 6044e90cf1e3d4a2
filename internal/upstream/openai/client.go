package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

const maxTokens = 2048

type ObserverFunc func(endpoint string, status int, err error, duration time.Duration)

type Option func(*Client)

// Client sends prompts to an OpenAI-compatible chat completions endpoint in JSON-object mode.
type Client struct {
	api      *goopenai.Client
	observer ObserverFunc
}

func WithObserver(observer ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func New(baseURL, apiKey string, httpClient *http.Client, opts ...Option) *Client {
	cfg := goopenai.DefaultConfig(strings.TrimSpace(apiKey))
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	c := &Client{api: goopenai.NewClientWithConfig(cfg)}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// GenerateText returns choices[0].message.content, or "" when no choice came back.
func (c *Client) GenerateText(ctx context.Context, model, prompt string) (_ string, err error) {
	started := time.Now()
	statusCode := 0
	defer func() { c.observe("chat_completions", statusCode, err, time.Since(started)) }()

	req := goopenai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	}
	// Reasoning models reject max_tokens.
	if isReasoningModel(model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		statusCode = StatusCode(err)
		return "", err
	}
	statusCode = http.StatusOK
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) Ping(ctx context.Context) (err error) {
	started := time.Now()
	statusCode := 0
	defer func() { c.observe("models", statusCode, err, time.Since(started)) }()

	if _, err = c.api.ListModels(ctx); err != nil {
		statusCode = StatusCode(err)
		return err
	}
	statusCode = http.StatusOK
	return nil
}

// StatusCode extracts the HTTP status carried by a go-openai error, or 0.
func StatusCode(err error) int {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func (c *Client) observe(endpoint string, status int, err error, duration time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, status, err, duration)
	}
}

func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
