// Package integrations performs outbound calls for api_call and adapter steps.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ntarekp/teamSynth/internal/domain/integration"
)

const (
	DefaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

// HTTPCaller implements integration.Caller over net/http.
type HTTPCaller struct {
	client *http.Client
	logger zerolog.Logger
}

func NewHTTPCaller(timeout time.Duration, logger zerolog.Logger) *HTTPCaller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPCaller{
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("service", "http_caller").Logger(),
	}
}

// Call sends req and decodes a JSON reply when possible, falling back to the
// raw text. Transport errors and non-2xx replies are errors.
func (c *HTTPCaller) Call(ctx context.Context, req integration.Request) (*integration.Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil && method != http.MethodGet && method != http.MethodHead {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("outbound call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &integration.StatusError{StatusCode: resp.StatusCode, URL: req.URL}
	}
	return &integration.Response{StatusCode: resp.StatusCode, Body: decodeBody(raw)}, nil
}

func decodeBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v
	}
	return string(trimmed)
}
