package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ntarekp/teamSynth/internal/application/executor"
	"github.com/Ntarekp/teamSynth/internal/application/orchestrator"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/metrics"
)

var errNoModel = errors.New("no model configured")

// Runner executes agent pipelines and records them like planned executions.
type Runner struct {
	registry  *Registry
	repo      execution.Repository
	publisher orchestrator.Publisher
	logger    zerolog.Logger
}

// NewRunner creates a runner. repo and publisher may be nil.
func NewRunner(registry *Registry, repo execution.Repository, publisher orchestrator.Publisher, logger zerolog.Logger) *Runner {
	return &Runner{
		registry:  registry,
		repo:      repo,
		publisher: publisher,
		logger:    logger.With().Str("service", "agent_runner").Logger(),
	}
}

// Registry returns the registry the runner dispatches to.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Run executes every stage of agentID in order. The only error is
// *NotFoundError; stage failures are recorded in the returned record.
func (r *Runner) Run(ctx context.Context, agentID string, req Request) (*execution.Record, error) {
	agent, err := r.registry.Get(agentID)
	if err != nil {
		return nil, err
	}
	desc := agent.Descriptor()
	stages := agent.Stages()

	rec := &execution.Record{
		ExecutionID: execution.NewID(desc.IDPrefix),
		AgentType:   agentID,
		Task:        execution.Task{Description: req.Task, Parameters: req.Parameters},
		CreatedAt:   time.Now().UTC(),
	}
	log := r.logger.With().Str("execution_id", rec.ExecutionID).Str("agent_type", agentID).Logger()
	tracer := orchestrator.NewTracer(rec.ExecutionID, r.publisher)

	tracer.Log(execution.TracePlanning, "", fmt.Sprintf("%s preparing pipeline for: %s", desc.Name, req.Task))
	steps := stageSteps(stages)
	rec.Plan, err = execution.NewPlan(steps)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", agentID, err)
	}
	tracer.Log(execution.TracePlanCreated, "", fmt.Sprintf("%d stage pipeline", len(stages)))

	st := newState(req)
	rec.StepResults = make([]execution.StepResult, 0, len(stages))
	for i, stage := range stages {
		var res execution.StepResult
		if ctx.Err() != nil {
			res = orchestrator.Cancelled(steps[i])
		} else {
			res = r.runStage(ctx, stage, steps[i], st, log)
		}
		if res.Status == execution.StepStatusCompleted {
			st.set(stage.Name, res.Result)
		}
		rec.StepResults = append(rec.StepResults, res)
		tracer.Step(res)
	}

	final := agent.Finalize(st)
	rec.FinalOutput = final.Output
	rec.Recommendations = final.Recommendations
	rec.NextActions = final.NextActions
	rec.Success = execution.SuccessFor(rec.StepResults)
	tracer.Log(execution.TraceCompleted, "", fmt.Sprintf("%s workflow completed", desc.Name))
	rec.Trace = tracer.Events()
	rec.CompletedAt = time.Now().UTC()

	r.registry.MarkExecuted(agentID, rec.CompletedAt)
	orchestrator.Persist(ctx, r.repo, rec, log)
	metrics.ObserveExecution("agent", agentID, rec.Success)
	log.Info().Int("failed", rec.FailedSteps()).Bool("success", rec.Success).Msg("agent run finished")
	return rec, nil
}

func (r *Runner) runStage(ctx context.Context, stage Stage, step execution.Step, st *State, log zerolog.Logger) execution.StepResult {
	res := execution.NewStepResult(step)
	_ = res.Start()

	out, err := runGuarded(ctx, stage, st)
	if err == nil {
		if out == nil {
			out = map[string]any{}
		}
		_ = res.Complete(out)
		metrics.ObserveStep(string(step.Kind), string(res.Status), false)
		return res
	}

	log.Warn().Err(err).Str("step_id", step.ID).Str("stage", stage.Name).Msg("stage failed")
	if stage.Fallback == nil {
		_ = res.Fail(err.Error())
		metrics.ObserveStep(string(step.Kind), string(res.Status), false)
		return res
	}

	out = stage.Fallback(st, err)
	if out == nil {
		out = map[string]any{}
	}
	out[executor.KeyRecovered] = true
	out[executor.KeyPrimaryError] = err.Error()
	out["degraded"] = true
	_ = res.Complete(out)
	metrics.ObserveStep(string(step.Kind), string(res.Status), true)
	return res
}

func runGuarded(ctx context.Context, stage Stage, st *State) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("stage %s panic: %v", stage.Name, r)
		}
	}()
	return stage.Run(ctx, st)
}

func stageSteps(stages []Stage) []execution.Step {
	steps := make([]execution.Step, len(stages))
	for i, s := range stages {
		kind := s.Kind
		if kind == "" {
			kind = execution.KindGeneric
		}
		var deps []string
		if i > 0 {
			deps = []string{steps[i-1].ID}
		}
		steps[i] = execution.Step{
			ID:           fmt.Sprintf("step-%d", i+1),
			Action:       s.Action,
			Kind:         kind,
			Inputs:       map[string]any{"stage": s.Name},
			Outputs:      s.Name,
			Dependencies: deps,
		}
	}
	return steps
}
