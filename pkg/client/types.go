package client

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Record is a resource as returned by the server: "id" plus the kind's
// business fields.
type Record map[string]any

// ID returns the record id, or 0 when absent.
func (r Record) ID() int64 {
	switch v := r["id"].(type) {
	case json.Number:
		n, _ := v.Int64()
		return n
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

// DeleteResponse is the body of a successful delete.
type DeleteResponse struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// Token is a bearer token issued by /auth/login.
type Token struct {
	Type      string    `json:"type"`
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   *Token `json:"token,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error      string   `json:"error"`
	Message    string   `json:"message"`
	Messages   []string `json:"messages,omitempty"`
	StatusCode int      `json:"statusCode"`
}

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Messages   []string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	if len(e.Messages) > 0 {
		msg += ": " + strings.Join(e.Messages, "; ")
	}
	if e.Code != "" {
		return fmt.Sprintf("API error (%s): %s", e.Code, msg)
	}
	return "API error: " + msg
}
