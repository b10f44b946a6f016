// Package handlers implements the HTTP API for research runs and health.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lexlabs/lexcrew/llm"
)

// Response is the uniform API envelope.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo carries error details in the envelope.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// WriteJSON writes data with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 envelope around data.
func WriteSuccess(w http.ResponseWriter, r *http.Request, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: RequestIDFrom(r.Context()),
	})
}

// WriteError writes an error envelope. LLM provider errors map to their
// carried HTTP status.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, logger *zap.Logger) {
	if logger != nil {
		logger.Error("API error",
			zap.String("code", code),
			zap.String("message", message),
			zap.Int("status", status))
	}
	WriteJSON(w, status, Response{
		Success:   false,
		Error:     &ErrorInfo{Code: code, Message: message},
		Timestamp: time.Now(),
		RequestID: RequestIDFrom(r.Context()),
	})
}

// WriteProviderError maps an error from the LLM or research stack to an
// envelope, preserving provider status codes when present.
func WriteProviderError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		status := llmErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadGateway
		}
		if logger != nil {
			logger.Error("API error",
				zap.String("code", string(llmErr.Code)),
				zap.String("message", llmErr.Message),
				zap.Int("status", status),
				zap.Bool("retryable", llmErr.Retryable))
		}
		WriteJSON(w, status, Response{
			Success: false,
			Error: &ErrorInfo{
				Code:      string(llmErr.Code),
				Message:   llmErr.Message,
				Retryable: llmErr.Retryable,
			},
			Timestamp: time.Now(),
			RequestID: RequestIDFrom(r.Context()),
		})
		return
	}
	WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), logger)
}
