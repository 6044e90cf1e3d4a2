package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"labinsight/internal/analysis"
	"labinsight/internal/config"
	"labinsight/internal/httpapi"
	"labinsight/internal/identity"
	"labinsight/internal/observability"
	"labinsight/internal/upstream/openai"
	"labinsight/internal/upstream/vertex"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

type modelBackend interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	metrics := observability.NewMetrics()
	metrics.SetModel(cfg.ModelProvider, cfg.Model())
	ctx := context.Background()

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	backend, err := newModelBackend(ctx, cfg, transport, metrics)
	if err != nil {
		logger.Error("model backend init failed", "provider", cfg.ModelProvider, "error", err)
		os.Exit(1)
	}

	verifier, err := identity.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID)
	if err != nil {
		logger.Error("identity verifier init failed", "error", err)
		os.Exit(1)
	}

	analyzer := analysis.New(backend, cfg.Model(), analysis.WithStrictShape(cfg.StrictResponseShape))

	handler := httpapi.NewServer(cfg, logger, httpapi.Dependencies{
		Analyzer:       analyzer,
		Verifier:       verifier,
		Upstream:       backend,
		Metrics:        metrics,
		MetricsHandler: metrics.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr, "provider", cfg.ModelProvider, "model", cfg.Model())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newModelBackend(ctx context.Context, cfg config.Config, transport http.RoundTripper, metrics *observability.Metrics) (modelBackend, error) {
	switch cfg.ModelProvider {
	case config.ProviderOpenAI:
		httpClient := &http.Client{Timeout: cfg.RequestTimeout, Transport: transport}
		return openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, httpClient, openai.WithObserver(metrics.ObserveUpstream)), nil
	default:
		creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("application default credentials: %w", err)
		}
		project := cfg.ProjectID
		if project == "" {
			project = creds.ProjectID
		}
		if project == "" {
			return nil, errors.New("GCLOUD_PROJECT is not set and credentials carry no project")
		}
		httpClient := &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: &oauth2.Transport{Source: creds.TokenSource, Base: transport},
		}
		return vertex.New(cfg.VertexBaseURL, project, cfg.VertexLocation, httpClient,
			vertex.WithTokenSource(creds.TokenSource),
			vertex.WithJSONMode(cfg.VertexJSONMode),
			vertex.WithObserver(metrics.ObserveUpstream),
		), nil
	}
}

func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
