package config

import (
	"errors"
	"strings"
	"time"

	cenv "github.com/caarlos0/env/v11"
)

const (
	ProviderVertex = "vertex"
	ProviderOpenAI = "openai"
)

type Config struct {
	ListenAddr          string
	LogLevel            string
	ModelProvider       string
	ProjectID           string
	VertexLocation      string
	VertexModel         string
	VertexBaseURL       string
	VertexJSONMode      bool
	OpenAIBaseURL       string
	OpenAIAPIKey        string
	OpenAIModel         string
	FirebaseProjectID   string
	RequestTimeout      time.Duration
	MaxBodyBytes        int64
	CORSAllowedOrigins  []string
	StrictResponseShape bool
}

type envConfig struct {
	ListenAddr            string   `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel              string   `env:"LOG_LEVEL" envDefault:"info"`
	ModelProvider         string   `env:"MODEL_PROVIDER" envDefault:"vertex"`
	ProjectID             string   `env:"GCLOUD_PROJECT"`
	VertexLocation        string   `env:"VERTEX_LOCATION" envDefault:"us-central1"`
	VertexModel           string   `env:"VERTEX_MODEL" envDefault:"gemini-1.0-pro"`
	VertexBaseURL         string   `env:"VERTEX_BASE_URL"`
	VertexJSONMode        bool     `env:"VERTEX_JSON_MODE" envDefault:"false"`
	OpenAIBaseURL         string   `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIAPIKey          string   `env:"OPENAI_API_KEY"`
	OpenAIModel           string   `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	FirebaseProjectID     string   `env:"FIREBASE_PROJECT_ID"`
	RequestTimeoutSeconds int      `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"60"`
	MaxBodyBytes          int64    `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	CORSAllowedOrigins    []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	StrictResponseShape   bool     `env:"STRICT_RESPONSE_SHAPE" envDefault:"false"`
}

func Load() (Config, error) {
	var raw envConfig
	if err := cenv.Parse(&raw); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:          strings.TrimSpace(raw.ListenAddr),
		LogLevel:            strings.ToLower(strings.TrimSpace(raw.LogLevel)),
		ModelProvider:       strings.ToLower(strings.TrimSpace(raw.ModelProvider)),
		ProjectID:           strings.TrimSpace(raw.ProjectID),
		VertexLocation:      strings.TrimSpace(raw.VertexLocation),
		VertexModel:         strings.TrimSpace(raw.VertexModel),
		VertexBaseURL:       strings.TrimRight(strings.TrimSpace(raw.VertexBaseURL), "/"),
		VertexJSONMode:      raw.VertexJSONMode,
		OpenAIBaseURL:       strings.TrimRight(strings.TrimSpace(raw.OpenAIBaseURL), "/"),
		OpenAIAPIKey:        strings.TrimSpace(raw.OpenAIAPIKey),
		OpenAIModel:         strings.TrimSpace(raw.OpenAIModel),
		FirebaseProjectID:   strings.TrimSpace(raw.FirebaseProjectID),
		RequestTimeout:      time.Duration(raw.RequestTimeoutSeconds) * time.Second,
		MaxBodyBytes:        raw.MaxBodyBytes,
		CORSAllowedOrigins:  trimAll(raw.CORSAllowedOrigins),
		StrictResponseShape: raw.StrictResponseShape,
	}
	if cfg.FirebaseProjectID == "" {
		cfg.FirebaseProjectID = cfg.ProjectID
	}
	if cfg.VertexBaseURL == "" && cfg.VertexLocation != "" {
		cfg.VertexBaseURL = "https://" + cfg.VertexLocation + "-aiplatform.googleapis.com/v1"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR must not be empty")
	}
	switch c.ModelProvider {
	case ProviderVertex:
		if c.VertexLocation == "" {
			return errors.New("VERTEX_LOCATION must not be empty")
		}
		if c.VertexModel == "" {
			return errors.New("VERTEX_MODEL must not be empty")
		}
	case ProviderOpenAI:
		if c.OpenAIBaseURL == "" {
			return errors.New("OPENAI_BASE_URL must not be empty")
		}
		if c.OpenAIModel == "" {
			return errors.New("OPENAI_MODEL must not be empty")
		}
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required when MODEL_PROVIDER=openai")
		}
	default:
		return errors.New("MODEL_PROVIDER must be one of: vertex, openai")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be > 0")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be > 0")
	}
	return nil
}

// Model returns the model identifier for the selected provider.
func (c Config) Model() string {
	if c.ModelProvider == ProviderOpenAI {
		return c.OpenAIModel
	}
	return c.VertexModel
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
