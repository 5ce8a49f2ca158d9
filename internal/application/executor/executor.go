// Package executor runs a single plan step through its type-specific handler.
package executor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
	"github.com/Ntarekp/teamSynth/internal/domain/integration"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/metrics"
)

// Result keys set on steps that needed their fallback.
const (
	KeyRecovered    = "recovered"
	KeyPrimaryError = "primaryError"
)

// StepExecutionError wraps the primary failure of a step handler.
type StepExecutionError struct {
	StepID string
	Kind   execution.StepKind
	Err    error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s (%s): %v", e.StepID, e.Kind, e.Err)
}

func (e *StepExecutionError) Unwrap() error {
	return e.Err
}

// Deps are the collaborators step handlers reach out to. Nil adapters are
// treated as unconfigured.
type Deps struct {
	Model         model.Generator
	Caller        integration.Caller
	Communication integration.Adapter
	Calendar      integration.Adapter
	Tasks         integration.Adapter

	// AllowedHosts are the hosts api_call steps may reach, either exact
	// names or "*.example.com" suffixes. Empty rejects every api_call.
	AllowedHosts []string
}

type handler interface {
	handle(ctx context.Context, step execution.Step) (map[string]any, error)
	fallback(ctx context.Context, step execution.Step, cause error) (map[string]any, error)
}

// Executor dispatches steps to handlers and applies the failure policy.
type Executor struct {
	apiCall       handler
	analysis      handler
	decision      handler
	communication handler
	scheduling    handler
	taskCreation  handler
	generic       handler
	logger        zerolog.Logger
}

// New creates an executor.
func New(deps Deps, logger zerolog.Logger) *Executor {
	if deps.Communication == nil {
		deps.Communication = integration.Unconfigured{System: "communication"}
	}
	if deps.Calendar == nil {
		deps.Calendar = integration.Unconfigured{System: "calendar"}
	}
	if deps.Tasks == nil {
		deps.Tasks = integration.Unconfigured{System: "tasks"}
	}
	return &Executor{
		apiCall:       &apiCallHandler{caller: deps.Caller, allowed: deps.AllowedHosts},
		analysis:      &analysisHandler{model: deps.Model},
		decision:      &decisionHandler{model: deps.Model},
		communication: &adapterHandler{adapter: deps.Communication},
		scheduling:    &adapterHandler{adapter: deps.Calendar},
		taskCreation:  &adapterHandler{adapter: deps.Tasks},
		generic:       &genericHandler{model: deps.Model},
		logger:        logger.With().Str("service", "executor").Logger(),
	}
}

func (e *Executor) handlerFor(kind execution.StepKind) handler {
	switch kind {
	case execution.KindAPICall:
		return e.apiCall
	case execution.KindDataAnalysis:
		return e.analysis
	case execution.KindDecision:
		return e.decision
	case execution.KindCommunication:
		return e.communication
	case execution.KindMeetingScheduling:
		return e.scheduling
	case execution.KindTaskCreation:
		return e.taskCreation
	}
	return e.generic
}

// Execute runs step and always returns a completed or failed result.
// A failing primary handler gets exactly one fallback attempt. Results
// produced by the fallback carry recovered=true and the primary error.
func (e *Executor) Execute(ctx context.Context, step execution.Step) execution.StepResult {
	res := execution.NewStepResult(step)
	_ = res.Start()
	h := e.handlerFor(step.Kind)

	log := e.logger.With().Str("step_id", step.ID).Str("kind", string(step.Kind)).Logger()

	out, err := guard(func() (map[string]any, error) { return h.handle(ctx, step) })
	if err == nil {
		_ = res.Complete(out)
		metrics.ObserveStep(string(step.Kind), string(res.Status), false)
		return res
	}

	primary := &StepExecutionError{StepID: step.ID, Kind: step.Kind, Err: err}
	log.Warn().Err(primary).Msg("step failed, attempting fallback")

	out, ferr := guard(func() (map[string]any, error) { return h.fallback(ctx, step, err) })
	if ferr != nil {
		log.Error().Err(ferr).Msg("step fallback failed")
		_ = res.Fail(fmt.Sprintf("%v; fallback: %v", err, ferr))
		metrics.ObserveStep(string(step.Kind), string(res.Status), false)
		return res
	}

	if out == nil {
		out = map[string]any{}
	}
	out[KeyRecovered] = true
	out[KeyPrimaryError] = err.Error()
	_ = res.Complete(out)
	metrics.ObserveStep(string(step.Kind), string(res.Status), true)
	return res
}

// PrimaryError returns the primary failure recorded on a recovered result.
func PrimaryError(res execution.StepResult) string {
	if res.Result == nil {
		return ""
	}
	s, _ := res.Result[KeyPrimaryError].(string)
	return s
}

// guard converts a handler panic into an error so no step is left in progress.
func guard(fn func() (map[string]any, error)) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn()
}
