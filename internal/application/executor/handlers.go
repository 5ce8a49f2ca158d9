package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
	"github.com/Ntarekp/teamSynth/internal/domain/integration"
)

const (
	analysisConfidence = 0.85
	decisionConfidence = 0.8

	stepTemperature   = 0.5
	stepMaxTokens     = 800
	compactInputLimit = 500
)

var (
	errNoModel    = errors.New("no model configured")
	errNoCaller   = errors.New("no http caller configured")
	errNoEndpoint = errors.New("api_call step has no endpoint")

	ErrBadEndpoint    = errors.New("api_call endpoint is not an absolute http(s) URL")
	ErrHostNotAllowed = errors.New("api_call host is not allowed")
)

func generate(ctx context.Context, gen model.Generator, prompt string) (string, error) {
	if gen == nil {
		return "", errNoModel
	}
	return gen.Generate(ctx, prompt, model.Options{Temperature: stepTemperature, MaxTokens: stepMaxTokens})
}

func toJSON(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// compactInputs renders inputs on one line, truncated for simplified prompts.
func compactInputs(inputs map[string]any) string {
	s := toJSON(inputs)
	if len(s) > compactInputLimit {
		s = s[:compactInputLimit] + "..."
	}
	return s
}

func simplifiedPrompt(step execution.Step) string {
	return fmt.Sprintf("Briefly complete this step in a few sentences.\nStep: %s\nInputs: %s", step.Action, compactInputs(step.Inputs))
}

func stringInput(inputs map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := inputs[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

type apiCallHandler struct {
	caller  integration.Caller
	allowed []string
}

// checkEndpoint accepts absolute http(s) URLs whose host is on the allowlist.
func (h *apiCallHandler) checkEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return fmt.Errorf("%w: %q", ErrBadEndpoint, raw)
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	for _, pattern := range h.allowed {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if suffix, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(suffix, ".") {
			if strings.HasSuffix(host, suffix) {
				return nil
			}
			continue
		}
		if host == pattern {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
}

func (h *apiCallHandler) handle(ctx context.Context, step execution.Step) (map[string]any, error) {
	if h.caller == nil {
		return nil, errNoCaller
	}
	endpoint := stringInput(step.Inputs, "endpoint", "url")
	if endpoint == "" {
		return nil, errNoEndpoint
	}
	if err := h.checkEndpoint(endpoint); err != nil {
		return nil, err
	}
	method := strings.ToUpper(stringInput(step.Inputs, "method"))
	if method == "" {
		method = http.MethodGet
	}
	req := integration.Request{
		Method:  method,
		URL:     endpoint,
		Body:    step.Inputs["data"],
		Headers: headerInput(step.Inputs["headers"]),
	}
	resp, err := h.caller.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":    true,
		"statusCode": resp.StatusCode,
		"data":       resp.Body,
	}, nil
}

func (h *apiCallHandler) fallback(ctx context.Context, step execution.Step, cause error) (map[string]any, error) {
	if errors.Is(cause, errNoCaller) || errors.Is(cause, errNoEndpoint) ||
		errors.Is(cause, ErrBadEndpoint) || errors.Is(cause, ErrHostNotAllowed) {
		return nil, cause
	}
	return h.handle(ctx, step)
}

func headerInput(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	headers := make(map[string]string, len(m))
	for k, val := range m {
		headers[k] = fmt.Sprint(val)
	}
	return headers
}

type analysisHandler struct {
	model model.Generator
}

func (h *analysisHandler) handle(ctx context.Context, step execution.Step) (map[string]any, error) {
	analysisType := stringInput(step.Inputs, "analysisType")
	if analysisType == "" {
		analysisType = "general"
	}
	data, ok := step.Inputs["data"]
	if !ok {
		data = step.Inputs
	}
	prompt := fmt.Sprintf(`Analyze the following data and provide insights:

Step: %s
Data: %s
Analysis Type: %s

Provide structured insights and recommendations.`, step.Action, toJSON(data), analysisType)

	text, err := generate(ctx, h.model, prompt)
	if err != nil {
		return nil, err
	}
	return analysisResult(text), nil
}

func (h *analysisHandler) fallback(ctx context.Context, step execution.Step, _ error) (map[string]any, error) {
	text, err := generate(ctx, h.model, simplifiedPrompt(step))
	if err != nil {
		return nil, err
	}
	return analysisResult(text), nil
}

func analysisResult(text string) map[string]any {
	return map[string]any{
		"insights":        text,
		"recommendations": []string{},
		"confidence":      analysisConfidence,
	}
}

type decisionHandler struct {
	model model.Generator
}

func (h *decisionHandler) handle(ctx context.Context, step execution.Step) (map[string]any, error) {
	prompt := fmt.Sprintf(`Make a decision based on the following information:

Decision: %s
Context: %s
Options: %s
Criteria: %s

Provide your decision with reasoning.`,
		step.Action, toJSON(step.Inputs["context"]), toJSON(step.Inputs["options"]), toJSON(step.Inputs["criteria"]))

	text, err := generate(ctx, h.model, prompt)
	if err != nil {
		return nil, err
	}
	return decisionResult(step, text), nil
}

func (h *decisionHandler) fallback(ctx context.Context, step execution.Step, _ error) (map[string]any, error) {
	text, err := generate(ctx, h.model, simplifiedPrompt(step))
	if err != nil {
		return nil, err
	}
	return decisionResult(step, text), nil
}

func decisionResult(step execution.Step, text string) map[string]any {
	out := map[string]any{
		"decision":   text,
		"reasoning":  text,
		"confidence": decisionConfidence,
	}
	cond := stringInput(step.Inputs, "condition")
	if cond == "" {
		return out
	}
	ctxMap, _ := step.Inputs["context"].(map[string]any)
	met, err := EvaluateCondition(cond, ctxMap)
	if err != nil {
		out["conditionError"] = err.Error()
		return out
	}
	out["conditionMet"] = met
	return out
}

// adapterHandler covers communication, meeting_scheduling and task_creation.
type adapterHandler struct {
	adapter integration.Adapter
}

func (h *adapterHandler) handle(ctx context.Context, step execution.Step) (map[string]any, error) {
	payload := make(map[string]any, len(step.Inputs)+1)
	for k, v := range step.Inputs {
		payload[k] = v
	}
	payload["stepId"] = step.ID
	out, err := h.adapter.Dispatch(ctx, step.Action, payload)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	out["system"] = h.adapter.Name()
	return out, nil
}

func (h *adapterHandler) fallback(ctx context.Context, step execution.Step, cause error) (map[string]any, error) {
	if errors.Is(cause, integration.ErrNotConfigured) {
		return nil, cause
	}
	return h.handle(ctx, step)
}

type genericHandler struct {
	model model.Generator
}

func (h *genericHandler) handle(ctx context.Context, step execution.Step) (map[string]any, error) {
	prompt := fmt.Sprintf(`Complete the following task step and report the outcome.

Task: %s
Inputs: %s
Expected output: %s`, step.Action, toJSON(step.Inputs), step.Outputs)

	text, err := generate(ctx, h.model, prompt)
	if err != nil {
		return nil, err
	}
	return map[string]any{"output": text}, nil
}

// fallback tries a simplified prompt and otherwise degrades to a placeholder,
// so generic steps never end failed.
func (h *genericHandler) fallback(ctx context.Context, step execution.Step, cause error) (map[string]any, error) {
	text, err := generate(ctx, h.model, simplifiedPrompt(step))
	if err == nil {
		return map[string]any{"output": text}, nil
	}
	return map[string]any{
		"output":   fmt.Sprintf("Step %q could not be completed automatically and needs manual follow-up.", step.Action),
		"degraded": true,
		"reason":   cause.Error(),
	}, nil
}
