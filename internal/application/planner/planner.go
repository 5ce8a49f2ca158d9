// Package planner turns a natural-language task into an execution plan.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/metrics"
)

const (
	planTemperature = 0.3
	planMaxTokens   = 1024
	fallbackOutputs = "task_result"
)

var (
	errNoSteps       = errors.New("plan has no steps")
	errNoUsableSteps = errors.New("plan has no step with an action")
)

// Outcome is the result of planning. It is either a ParsedPlan or a FallbackPlan.
type Outcome interface {
	Plan() execution.Plan
	isOutcome()
}

// ParsedPlan is a plan built from the model's structured output.
type ParsedPlan struct {
	plan execution.Plan
	// Unknown counts steps whose type was not recognised and became generic.
	Unknown int
}

func (p ParsedPlan) Plan() execution.Plan { return p.plan }
func (ParsedPlan) isOutcome()             {}

// FallbackPlan is the single generic step used when the model output is unusable.
type FallbackPlan struct {
	plan   execution.Plan
	Reason string
}

func (p FallbackPlan) Plan() execution.Plan { return p.plan }
func (FallbackPlan) isOutcome()             {}

// Planner asks the model for a workflow and guarantees a well-formed plan.
type Planner struct {
	model  model.Generator
	logger zerolog.Logger
}

// New creates a planner.
func New(gen model.Generator, logger zerolog.Logger) *Planner {
	return &Planner{
		model:  gen,
		logger: logger.With().Str("service", "planner").Logger(),
	}
}

// Plan produces a plan for task. It never fails: any problem with the model
// call or its output yields a FallbackPlan carrying the reason.
func (p *Planner) Plan(ctx context.Context, task execution.Task) Outcome {
	prompt := BuildPrompt(task)
	opts := model.Options{Temperature: planTemperature, MaxTokens: planMaxTokens}

	text, err := p.model.Generate(ctx, prompt, opts)
	if err != nil && model.IsUnavailable(err) && ctx.Err() == nil {
		p.logger.Warn().Err(err).Msg("planner model unavailable, retrying once")
		text, err = p.model.Generate(ctx, prompt, opts)
	}
	if err != nil {
		return p.fallback(task, fmt.Errorf("model unavailable: %w", err))
	}

	plan, unknown, err := Parse(text)
	if err != nil {
		return p.fallback(task, err)
	}
	if unknown > 0 {
		p.logger.Debug().Int("unknown_kinds", unknown).Msg("mapped unknown step types to generic")
	}
	return ParsedPlan{plan: plan, Unknown: unknown}
}

func (p *Planner) fallback(task execution.Task, cause error) FallbackPlan {
	metrics.PlanFallbacks.Inc()
	p.logger.Warn().Err(cause).Msg("using fallback plan")
	return FallbackPlan{plan: Fallback(task), Reason: cause.Error()}
}

// Fallback builds the one-step generic plan for task.
func Fallback(task execution.Task) execution.Plan {
	inputs := make(map[string]any, len(task.Parameters))
	for k, v := range task.Parameters {
		inputs[k] = v
	}
	plan, _ := execution.NewPlan([]execution.Step{{
		ID:           "step-1",
		Action:       task.Description,
		Kind:         execution.KindGeneric,
		Inputs:       inputs,
		Outputs:      fallbackOutputs,
		Dependencies: []string{},
	}})
	return plan
}

// BuildPrompt renders the planning prompt.
func BuildPrompt(task execution.Task) string {
	params, err := json.Marshal(task.Parameters)
	if err != nil || task.Parameters == nil {
		params = []byte("{}")
	}
	kinds := make([]string, 0, len(execution.Kinds))
	for _, k := range execution.Kinds {
		kinds = append(kinds, string(k))
	}

	var b strings.Builder
	b.WriteString("You are an autonomous AI agent. Plan a multi-step workflow to accomplish this task:\n\n")
	fmt.Fprintf(&b, "Task: %s\n", task.Description)
	fmt.Fprintf(&b, "Parameters: %s\n\n", params)
	b.WriteString("Create a detailed plan with specific, actionable steps. Each step should have:\n")
	b.WriteString("- action: What to do\n")
	fmt.Fprintf(&b, "- type: One of %s\n", strings.Join(kinds, ", "))
	b.WriteString("- inputs: Required inputs as a JSON object\n")
	b.WriteString("- outputs: Expected outputs\n")
	b.WriteString("- dependencies: Previous steps this depends on\n\n")
	b.WriteString(`Return only a JSON object of the form {"steps": [...]}.`)
	return b.String()
}

type rawStep struct {
	Action       string          `json:"action"`
	Type         string          `json:"type"`
	Inputs       json.RawMessage `json:"inputs"`
	Outputs      any             `json:"outputs"`
	Dependencies json.RawMessage `json:"dependencies"`
}

// Parse converts model output into a plan. Steps without an action are
// dropped, unknown types become generic, and ids are assigned step-1..step-n.
// It returns the number of steps whose type was not recognised.
func Parse(text string) (execution.Plan, int, error) {
	var raw struct {
		Steps []rawStep `json:"steps"`
	}
	if err := model.DecodeJSON(text, &raw); err != nil {
		return execution.Plan{}, 0, err
	}
	if len(raw.Steps) == 0 {
		return execution.Plan{}, 0, errNoSteps
	}

	steps := make([]execution.Step, 0, len(raw.Steps))
	unknown := 0
	for _, rs := range raw.Steps {
		action := strings.TrimSpace(rs.Action)
		if action == "" {
			continue
		}
		kind, ok := execution.ParseStepKind(rs.Type)
		if !ok {
			unknown++
		}
		steps = append(steps, execution.Step{
			ID:           fmt.Sprintf("step-%d", len(steps)+1),
			Action:       action,
			Kind:         kind,
			Inputs:       decodeInputs(rs.Inputs),
			Outputs:      stringify(rs.Outputs),
			Dependencies: decodeDependencies(rs.Dependencies),
		})
	}
	if len(steps) == 0 {
		return execution.Plan{}, 0, errNoUsableSteps
	}
	plan, err := execution.NewPlan(steps)
	return plan, unknown, err
}

func decodeInputs(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		return obj
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return map[string]any{}
	}
	return map[string]any{"value": v}
}

func decodeDependencies(raw json.RawMessage) []string {
	deps := []string{}
	if len(raw) == 0 {
		return deps
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		var single any
		if json.Unmarshal(raw, &single) == nil && single != nil {
			if s := stringify(single); s != "" {
				deps = append(deps, s)
			}
		}
		return deps
	}
	for _, d := range list {
		if s := stringify(d); s != "" {
			deps = append(deps, s)
		}
	}
	return deps
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
