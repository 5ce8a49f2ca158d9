package execution

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyPlan = errors.New("plan must contain at least one step")
	ErrNotFound  = errors.New("execution not found")
)

// Task is the immutable input to planning.
type Task struct {
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Plan is an ordered, non-empty sequence of steps. It is never mutated after creation.
type Plan struct {
	steps []Step
}

// NewPlan validates and deep-copies steps into a plan.
func NewPlan(steps []Step) (Plan, error) {
	if len(steps) == 0 {
		return Plan{}, ErrEmptyPlan
	}
	return Plan{steps: cloneSteps(steps)}, nil
}

// Steps returns a deep copy of the plan steps.
func (p Plan) Steps() []Step {
	return cloneSteps(p.steps)
}

// Len returns the number of steps.
func (p Plan) Len() int {
	return len(p.steps)
}

func (p Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Steps []Step `json:"steps"`
	}{Steps: p.steps})
}

func (p *Plan) UnmarshalJSON(data []byte) error {
	var raw struct {
		Steps []Step `json:"steps"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Steps) == 0 {
		return ErrEmptyPlan
	}
	p.steps = raw.Steps
	return nil
}

func cloneSteps(steps []Step) []Step {
	cp := make([]Step, len(steps))
	for i, s := range steps {
		cp[i] = s.clone()
	}
	return cp
}

// TraceType marks a state transition within an execution.
type TraceType string

const (
	TracePlanning      TraceType = "PLANNING"
	TracePlanCreated   TraceType = "PLAN_CREATED"
	TraceStepCompleted TraceType = "STEP_COMPLETED"
	TraceStepFailed    TraceType = "STEP_FAILED"
	TraceCompleted     TraceType = "COMPLETED"
)

// TraceEvent is an append-only log entry.
type TraceEvent struct {
	ExecutionID string    `json:"executionId"`
	Type        TraceType `json:"type"`
	StepID      string    `json:"stepId,omitempty"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// NextAction is a follow-up suggested by an agent.
type NextAction struct {
	Action   string `json:"action"`
	Priority string `json:"priority"`
	Deadline string `json:"deadline,omitempty"`
}

// Record is the full account of one orchestration run.
type Record struct {
	ExecutionID     string         `json:"executionId"`
	AgentType       string         `json:"agentType,omitempty"`
	Task            Task           `json:"task"`
	Plan            Plan           `json:"plan"`
	StepResults     []StepResult   `json:"stepResults"`
	Trace           []TraceEvent   `json:"trace"`
	FinalOutput     map[string]any `json:"finalOutput"`
	Recommendations []string       `json:"recommendations,omitempty"`
	NextActions     []NextAction   `json:"nextActions,omitempty"`
	Success         bool           `json:"success"`
	CreatedAt       time.Time      `json:"createdAt"`
	CompletedAt     time.Time      `json:"completedAt"`
}

// NewID returns a globally unique execution id with the given prefix.
func NewID(prefix string) string {
	if prefix == "" {
		prefix = "exec"
	}
	return prefix + "_" + uuid.NewString()
}

// FailedSteps counts results that ended failed.
func (r *Record) FailedSteps() int {
	n := 0
	for _, s := range r.StepResults {
		if s.Status == StepStatusFailed {
			n++
		}
	}
	return n
}

// SuccessFor applies the run-level success policy: a run succeeds when no step
// ended failed. Recovered steps count as completed.
func SuccessFor(results []StepResult) bool {
	for _, s := range results {
		if s.Status != StepStatusCompleted {
			return false
		}
	}
	return true
}
