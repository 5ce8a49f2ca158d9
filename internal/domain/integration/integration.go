package integration

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotConfigured = errors.New("integration not configured")

// Request is an outbound HTTP call issued by an api_call step.
type Request struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    any               `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Response is the decoded reply to a Request.
type Response struct {
	StatusCode int `json:"statusCode"`
	Body       any `json:"body"`
}

// Caller performs outbound HTTP calls.
type Caller interface {
	Call(ctx context.Context, req Request) (*Response, error)
}

// Adapter hands a step off to an external system (chat, calendar, task tracker).
type Adapter interface {
	Name() string
	Dispatch(ctx context.Context, action string, payload map[string]any) (map[string]any, error)
}

// StatusError reports a non-2xx reply.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// Unconfigured is the adapter used when no endpoint is set for a system.
type Unconfigured struct {
	System string
}

func (u Unconfigured) Name() string { return u.System }

func (u Unconfigured) Dispatch(context.Context, string, map[string]any) (map[string]any, error) {
	return nil, fmt.Errorf("%s: %w", u.System, ErrNotConfigured)
}
