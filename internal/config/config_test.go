package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GCLOUD_PROJECT", "demo-project")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ModelProvider != ProviderVertex {
		t.Fatalf("unexpected provider: %q", cfg.ModelProvider)
	}
	if cfg.VertexLocation != "us-central1" || cfg.VertexModel != "gemini-1.0-pro" {
		t.Fatalf("unexpected vertex settings: %+v", cfg)
	}
	if cfg.VertexBaseURL != "https://us-central1-aiplatform.googleapis.com/v1" {
		t.Fatalf("unexpected vertex base url: %q", cfg.VertexBaseURL)
	}
	if cfg.FirebaseProjectID != "demo-project" {
		t.Fatalf("expected firebase project to fall back to GCLOUD_PROJECT, got %q", cfg.FirebaseProjectID)
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.RequestTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.Model() != "gemini-1.0-pro" {
		t.Fatalf("unexpected model: %q", cfg.Model())
	}
	if cfg.VertexJSONMode {
		t.Fatal("JSON mode must be opt-in: gemini-1.0-pro rejects responseMimeType")
	}
}

func TestLoadEnablesJSONModeOnRequest(t *testing.T) {
	t.Setenv("VERTEX_MODEL", "gemini-1.5-flash")
	t.Setenv("VERTEX_JSON_MODE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.VertexJSONMode || cfg.VertexModel != "gemini-1.5-flash" {
		t.Fatalf("unexpected vertex settings: %+v", cfg)
	}
}

func TestLoadOpenAIRequiresAPIKey(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without OPENAI_API_KEY")
	}

	t.Setenv("OPENAI_API_KEY", " sk-test ")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1/")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Fatalf("expected trimmed key, got %q", cfg.OpenAIAPIKey)
	}
	if cfg.OpenAIBaseURL != "http://localhost:11434/v1" {
		t.Fatalf("unexpected base url: %q", cfg.OpenAIBaseURL)
	}
	if cfg.Model() != "gpt-4o-mini" {
		t.Fatalf("unexpected model: %q", cfg.Model())
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := Config{
		ListenAddr:     ":8080",
		ModelProvider:  "bard",
		RequestTimeout: time.Second,
		MaxBodyBytes:   1,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestLoadSplitsCORSOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
}
