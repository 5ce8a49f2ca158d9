package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
)

// Request is the input to an agent run.
type Request struct {
	Task       string         `json:"task"`
	Context    map[string]any `json:"context"`
	Parameters map[string]any `json:"parameters"`
	User       string         `json:"user,omitempty"`
}

// Stage is one fixed step of an agent pipeline. Fallback, when set, turns a
// failed Run into a degraded output.
type Stage struct {
	Name     string
	Action   string
	Kind     execution.StepKind
	Run      func(ctx context.Context, st *State) (map[string]any, error)
	Fallback func(st *State, cause error) map[string]any
}

// Final is what an agent hands back after its pipeline.
type Final struct {
	Output          map[string]any
	Recommendations []string
	NextActions     []execution.NextAction
}

// State carries the request and the outputs of completed stages.
type State struct {
	Request Request
	outputs map[string]map[string]any
}

func newState(req Request) *State {
	if req.Context == nil {
		req.Context = map[string]any{}
	}
	if req.Parameters == nil {
		req.Parameters = map[string]any{}
	}
	return &State{Request: req, outputs: make(map[string]map[string]any)}
}

// Output returns a stage's output, or an empty map if the stage failed.
func (s *State) Output(stage string) map[string]any {
	if out, ok := s.outputs[stage]; ok && out != nil {
		return out
	}
	return map[string]any{}
}

func (s *State) set(stage string, out map[string]any) {
	s.outputs[stage] = out
}

func ask(ctx context.Context, gen model.Generator, prompt string, temperature float64) (string, error) {
	if gen == nil {
		return "", errNoModel
	}
	return gen.Generate(ctx, prompt, model.Options{Temperature: temperature, MaxTokens: 600})
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func str(m map[string]any, key, def string) string {
	if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return def
}

func num(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return def
}

func maps(m map[string]any, key string) []map[string]any {
	var out []map[string]any
	switch v := m[key].(type) {
	case []map[string]any:
		return v
	case []any:
		for _, item := range v {
			if mm, ok := item.(map[string]any); ok {
				out = append(out, mm)
			}
		}
	}
	return out
}

func strs(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
