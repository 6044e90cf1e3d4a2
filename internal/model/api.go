package model

import "encoding/json"

// CallableRequest is the envelope sent by callable-function clients.
type CallableRequest struct {
	Data json.RawMessage `json:"data"`
}

type AnalyzeReportData struct {
	Text string `json:"text"`
}

// CallableResponse wraps a successful result. Result holds the model's JSON as produced.
type CallableResponse struct {
	Result json.RawMessage `json:"result"`
}

type CallableError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CallableErrorResponse struct {
	Error     CallableError `json:"error"`
	RequestID string        `json:"request_id,omitempty"`
}

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}

type HealthResponse struct {
	OK bool `json:"ok"`
}

type ReadyResponse struct {
	OK          bool   `json:"ok"`
	ServiceName string `json:"service_name,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model,omitempty"`
}

