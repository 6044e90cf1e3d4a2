package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"labinsight/internal/identity"
)

// Generator sends one prompt to a hosted model and returns the first text part
// of its answer, or "" when the answer carried none.
type Generator interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

type Request struct {
	Caller *identity.Caller
	Text   string
}

// Result holds the model's JSON object exactly as it was returned.
type Result struct {
	JSON json.RawMessage
}

// ReportAnalysis is the object shape the prompt asks for.
type ReportAnalysis struct {
	Summary         string   `json:"summary"`
	Recommendations string   `json:"recommendations"`
	DoctorQuestions []string `json:"doctorQuestions"`
}

type Option func(*Service)

// WithStrictShape rejects model output that is not a ReportAnalysis object.
func WithStrictShape(strict bool) Option {
	return func(s *Service) {
		s.strictShape = strict
	}
}

type Service struct {
	generator   Generator
	model       string
	strictShape bool
}

func New(generator Generator, model string, opts ...Option) *Service {
	s := &Service{
		generator: generator,
		model:     strings.TrimSpace(model),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) Analyze(ctx context.Context, req Request) (Result, error) {
	if req.Caller == nil {
		return Result{}, &Error{Kind: KindUnauthenticated, Message: MessageUnauthenticated}
	}
	if req.Text == "" {
		return Result{}, &Error{Kind: KindInvalidArgument, Message: MessageMissingText}
	}

	responseText, err := s.generator.GenerateText(ctx, s.model, BuildPrompt(req.Text))
	if err != nil {
		return Result{}, internal(err)
	}
	if responseText == "" {
		return Result{}, internal(ErrEmptyResponse)
	}

	raw := []byte(responseText)
	if !json.Valid(raw) {
		return Result{}, internal(ErrMalformedResponse)
	}
	if s.strictShape {
		if err := checkShape(raw); err != nil {
			return Result{}, internal(err)
		}
	}
	return Result{JSON: json.RawMessage(raw)}, nil
}

func internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: MessageInternal, Err: err}
}

func checkShape(raw []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("%w: not an object", ErrUnexpectedShape)
	}
	for _, key := range []string{"summary", "recommendations", "doctorQuestions"} {
		if _, ok := fields[key]; !ok {
			return fmt.Errorf("%w: missing %q", ErrUnexpectedShape, key)
		}
	}
	var parsed ReportAnalysis
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return nil
}
