package integrations

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Ntarekp/teamSynth/internal/domain/integration"
)

// Webhook hands adapter steps to an external system by POSTing
// {"system","action","payload","sentAt"} to a fixed URL.
type Webhook struct {
	system string
	url    string
	caller integration.Caller
}

func NewWebhook(system, url string, caller integration.Caller) *Webhook {
	return &Webhook{system: system, url: url, caller: caller}
}

// NewAdapter returns a Webhook for url, or integration.Unconfigured when url is empty.
func NewAdapter(system, url string, caller integration.Caller) integration.Adapter {
	if url == "" || caller == nil {
		return integration.Unconfigured{System: system}
	}
	return NewWebhook(system, url, caller)
}

func (w *Webhook) Name() string { return w.system }

func (w *Webhook) Dispatch(ctx context.Context, action string, payload map[string]any) (map[string]any, error) {
	resp, err := w.caller.Call(ctx, integration.Request{
		Method: http.MethodPost,
		URL:    w.url,
		Body: map[string]any{
			"system":  w.system,
			"action":  action,
			"payload": payload,
			"sentAt":  time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s webhook: %w", w.system, err)
	}
	return map[string]any{
		"system":     w.system,
		"delivered":  true,
		"statusCode": resp.StatusCode,
		"response":   resp.Body,
	}, nil
}
