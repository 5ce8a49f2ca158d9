// Package orchestrator drives the plan-execute-synthesize loop for free-form tasks.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ntarekp/teamSynth/internal/application/planner"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/metrics"
)

const cancelledReason = "execution cancelled"

// Planner produces a plan for a task.
type Planner interface {
	Plan(ctx context.Context, task execution.Task) planner.Outcome
}

// StepExecutor runs a single step to a terminal state.
type StepExecutor interface {
	Execute(ctx context.Context, step execution.Step) execution.StepResult
}

// Orchestrator coordinates planning, step execution and synthesis.
type Orchestrator struct {
	planner   Planner
	executor  StepExecutor
	repo      execution.Repository
	publisher Publisher
	logger    zerolog.Logger
}

// NewOrchestrator creates a new orchestrator. repo and publisher may be nil.
func NewOrchestrator(
	p Planner,
	exec StepExecutor,
	repo execution.Repository,
	publisher Publisher,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		planner:   p,
		executor:  exec,
		repo:      repo,
		publisher: publisher,
		logger:    logger.With().Str("service", "orchestrator").Logger(),
	}
}

// Run plans task and executes every step in declared order. Step failures
// never abort the run. Cancellation is observed between steps: steps not yet
// dispatched are recorded failed. Run never returns a nil record.
func (o *Orchestrator) Run(ctx context.Context, task execution.Task) *execution.Record {
	rec := &execution.Record{
		ExecutionID: execution.NewID("exec"),
		Task:        task,
		CreatedAt:   time.Now().UTC(),
	}
	log := o.logger.With().Str("execution_id", rec.ExecutionID).Logger()
	tracer := NewTracer(rec.ExecutionID, o.publisher)

	tracer.Log(execution.TracePlanning, "", fmt.Sprintf("Analyzing task: %s", task.Description))
	outcome := o.planner.Plan(ctx, task)
	rec.Plan = outcome.Plan()
	switch out := outcome.(type) {
	case planner.FallbackPlan:
		tracer.Log(execution.TracePlanCreated, "", fmt.Sprintf("Generated %d step plan (fallback: %s)", rec.Plan.Len(), out.Reason))
	default:
		tracer.Log(execution.TracePlanCreated, "", fmt.Sprintf("Generated %d step plan", rec.Plan.Len()))
	}

	rec.StepResults = o.executeSteps(ctx, rec.Plan.Steps(), tracer)

	rec.FinalOutput = Synthesize(task, rec.StepResults)
	rec.NextActions = followUps(rec.StepResults)
	rec.Success = execution.SuccessFor(rec.StepResults)
	tracer.Log(execution.TraceCompleted, "", "Workflow execution completed")
	rec.Trace = tracer.Events()
	rec.CompletedAt = time.Now().UTC()

	o.persist(ctx, rec)
	metrics.ObserveExecution("task", "", rec.Success)
	log.Info().
		Int("steps", len(rec.StepResults)).
		Int("failed", rec.FailedSteps()).
		Bool("success", rec.Success).
		Msg("execution finished")
	return rec
}

func (o *Orchestrator) executeSteps(ctx context.Context, steps []execution.Step, tracer *Tracer) []execution.StepResult {
	results := make([]execution.StepResult, 0, len(steps))
	for _, step := range steps {
		var res execution.StepResult
		if ctx.Err() != nil {
			res = Cancelled(step)
		} else {
			res = o.executor.Execute(ctx, step)
		}
		results = append(results, res)
		tracer.Step(res)
	}
	return results
}

// Cancelled builds the failed result recorded for a step skipped by cancellation.
func Cancelled(step execution.Step) execution.StepResult {
	res := execution.NewStepResult(step)
	_ = res.Start()
	_ = res.Fail(cancelledReason)
	return res
}

// Get loads a stored execution record.
func (o *Orchestrator) Get(ctx context.Context, executionID string) (*execution.Record, error) {
	if o.repo == nil {
		return nil, execution.ErrNotFound
	}
	rec, err := o.repo.GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, execution.ErrNotFound
	}
	return rec, nil
}

func (o *Orchestrator) persist(ctx context.Context, rec *execution.Record) {
	Persist(ctx, o.repo, rec, o.logger)
}

// Persist saves rec if repo is set. Failures are logged and never surfaced.
func Persist(ctx context.Context, repo execution.Repository, rec *execution.Record, logger zerolog.Logger) {
	if repo == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := repo.Save(saveCtx, rec); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Str("execution_id", rec.ExecutionID).Msg("failed to persist execution")
	}
}
