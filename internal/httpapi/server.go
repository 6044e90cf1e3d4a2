package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"labinsight/internal/analysis"
	"labinsight/internal/config"
	"labinsight/internal/identity"
	"labinsight/internal/model"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Result, error)
}

type UpstreamChecker interface {
	Ping(ctx context.Context) error
}

type MetricsObserver interface {
	ObserveHTTP(route, method string, status int, duration time.Duration)
	ObserveAnalysis(outcome string, duration time.Duration)
}

type Dependencies struct {
	Analyzer       Analyzer
	Verifier       identity.Verifier
	Upstream       UpstreamChecker
	Metrics        MetricsObserver
	MetricsHandler http.Handler
}

type server struct {
	cfg          config.Config
	logger       *slog.Logger
	analyzer     Analyzer
	verifier     identity.Verifier
	upstream     UpstreamChecker
	metrics      MetricsObserver
	metricsRoute http.Handler
}

type ctxKey string

const (
	requestIDHeader  = "X-Request-Id"
	requestIDContext = ctxKey("request_id")
	analyzeRoute     = "/analyzeReport"
	maxRequestIDLen  = 128
)

func NewServer(cfg config.Config, logger *slog.Logger, deps Dependencies) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Analyzer == nil || deps.Verifier == nil || deps.Upstream == nil {
		panic("httpapi: analyzer, verifier and upstream dependencies are required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		analyzer:     deps.Analyzer,
		verifier:     deps.Verifier,
		upstream:     deps.Upstream,
		metrics:      deps.Metrics,
		metricsRoute: deps.MetricsHandler,
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader, "X-Firebase-AppCheck"},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         3600,
	}))
	r.Use(s.identityMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.metricsRoute != nil {
		r.Handle("/metrics", s.metricsRoute)
	}

	r.Post(analyzeRoute, s.handleAnalyzeReport)

	return r
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{OK: true})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.upstream.Ping(ctx); err != nil {
		s.logger.Warn("readiness_failed", "request_id", requestIDFromContext(r.Context()), "provider", s.cfg.ModelProvider, "error", err)
		s.writeError(w, r, http.StatusServiceUnavailable, "not_ready", "upstream check failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, model.ReadyResponse{
		OK:          true,
		ServiceName: "labinsight",
		Provider:    s.cfg.ModelProvider,
		Model:       s.cfg.Model(),
	})
}

func (s *server) handleAnalyzeReport(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	caller := identity.CallerFromContext(r.Context())

	text, err := s.decodeAnalyzeRequest(w, r)
	if err != nil && caller != nil {
		s.observeAnalysis("invalid_argument", time.Since(started))
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeCallableError(w, r, http.StatusRequestEntityTooLarge, &analysis.Error{
				Kind:    analysis.KindInvalidArgument,
				Message: fmt.Sprintf("request exceeds %d bytes", s.cfg.MaxBodyBytes),
			})
			return
		}
		s.writeCallableError(w, r, 0, &analysis.Error{Kind: analysis.KindInvalidArgument, Message: "Bad Request", Err: err})
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), analysis.Request{Caller: caller, Text: text})
	s.observeAnalysis(analysis.Cause(err), time.Since(started))
	if err != nil {
		s.writeCallableError(w, r, 0, err)
		return
	}

	writeJSON(w, http.StatusOK, model.CallableResponse{Result: result.JSON})
}

func (s *server) observeAnalysis(outcome string, duration time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveAnalysis(outcome, duration)
	}
}

// decodeAnalyzeRequest reads {"data":{"text":"..."}}. A missing text field decodes as "".
func (s *server) decodeAnalyzeRequest(w http.ResponseWriter, r *http.Request) (string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return "", errors.New("content type must be application/json")
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	var envelope model.CallableRequest
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		return "", err
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return "", nil
	}
	var data model.AnalyzeReportData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return "", fmt.Errorf("invalid data payload: %w", err)
	}
	return data.Text, nil
}

func (s *server) writeCallableError(w http.ResponseWriter, r *http.Request, status int, err error) {
	aErr := analysis.AsError(err)
	if status == 0 {
		status = statusForKind(aErr.Kind)
	}

	attrs := []any{
		"request_id", requestIDFromContext(r.Context()),
		"code", aErr.Kind.Code(),
		"cause", analysis.Cause(err),
	}
	if caller := identity.CallerFromContext(r.Context()); caller != nil {
		attrs = append(attrs, "uid", caller.UID)
	}
	if aErr.Kind == analysis.KindInternal {
		s.logger.Error("analysis_failed", append(attrs, "error", err.Error())...)
	} else {
		s.logger.Debug("analysis_rejected", attrs...)
	}

	if rid := requestIDFromContext(r.Context()); rid != "" {
		w.Header().Set(requestIDHeader, rid)
	}
	writeJSON(w, status, model.CallableErrorResponse{
		Error: model.CallableError{
			Status:  aErr.Kind.Status(),
			Code:    aErr.Kind.Code(),
			Message: aErr.Message,
		},
		RequestID: requestIDFromContext(r.Context()),
	})
}

func statusForKind(kind analysis.Kind) int {
	switch kind {
	case analysis.KindUnauthenticated:
		return http.StatusUnauthorized
	case analysis.KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	if rid := requestIDFromContext(r.Context()); rid != "" {
		w.Header().Set(requestIDHeader, rid)
	}
	writeJSON(w, status, model.ErrorResponse{
		Error:     model.APIError{Code: code, Message: message, Details: details},
		RequestID: requestIDFromContext(r.Context()),
	})
}

func (s *server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if !validRequestID(requestID) {
			requestID = newRequestID()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDContext, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		duration := time.Since(started)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, r.Method, status, duration)
		}

		s.logger.Info("http_request",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func (s *server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if r.URL.Path == analyzeRoute {
					s.writeCallableError(w, r, 0, fmt.Errorf("panic: %v", rec))
					return
				}
				s.logger.Error("panic recovered", "request_id", requestIDFromContext(r.Context()), "panic", rec)
				s.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// identityMiddleware attaches the verified caller, if any. Rejection is left to the
// handler so that an absent or invalid token surfaces as unauthenticated.
func (s *server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		token, hasHeader, ok := identity.ExtractBearerToken(r.Header.Get("Authorization"))
		if !hasHeader || !ok {
			next.ServeHTTP(w, r)
			return
		}
		caller, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			s.logger.Warn("identity_rejected", "request_id", requestIDFromContext(r.Context()), "error", err)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithCaller(r.Context(), caller)))
	})
}

func isPublicPath(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func requestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDContext).(string)
	return value
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
