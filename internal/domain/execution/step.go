package execution

import (
	"errors"
	"strings"
	"time"
)

// StepKind identifies the handler a step is dispatched to.
type StepKind string

const (
	KindAPICall           StepKind = "api_call"
	KindDataAnalysis      StepKind = "data_analysis"
	KindDecision          StepKind = "decision"
	KindCommunication     StepKind = "communication"
	KindMeetingScheduling StepKind = "meeting_scheduling"
	KindTaskCreation      StepKind = "task_creation"
	KindGeneric           StepKind = "generic"
)

// Kinds lists every step kind in a stable order.
var Kinds = []StepKind{
	KindAPICall,
	KindDataAnalysis,
	KindDecision,
	KindCommunication,
	KindMeetingScheduling,
	KindTaskCreation,
	KindGeneric,
}

// ParseStepKind maps a raw type string onto the closed kind set.
func ParseStepKind(s string) (StepKind, bool) {
	k := StepKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, true
		}
	}
	return KindGeneric, false
}

// StepStatus represents step result status.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
)

var ErrInvalidTransition = errors.New("invalid step status transition")

// Step is one unit of work inside a plan.
type Step struct {
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	Kind         StepKind       `json:"kind"`
	Inputs       map[string]any `json:"inputs"`
	Outputs      string         `json:"outputs"`
	Dependencies []string       `json:"dependencies"`
}

func (s Step) clone() Step {
	if s.Inputs != nil {
		s.Inputs = cloneMap(s.Inputs)
	}
	if s.Dependencies != nil {
		s.Dependencies = append([]string{}, s.Dependencies...)
	}
	return s
}

func cloneMap(m map[string]any) map[string]any {
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = cloneValue(v)
	}
	return cp
}

// cloneValue copies the container types produced by JSON decoding.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = cloneValue(e)
		}
		return cp
	case []string:
		return append([]string{}, t...)
	default:
		return v
	}
}

// StepResult tracks the outcome of a single step.
type StepResult struct {
	StepID     string         `json:"stepId"`
	Action     string         `json:"action"`
	Kind       StepKind       `json:"kind"`
	Status     StepStatus     `json:"status"`
	Result     map[string]any `json:"result"`
	Error      *string        `json:"error"`
	StartedAt  *time.Time     `json:"startedAt,omitempty"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}

// NewStepResult creates a pending result for the step.
func NewStepResult(step Step) StepResult {
	return StepResult{
		StepID: step.ID,
		Action: step.Action,
		Kind:   step.Kind,
		Status: StepStatusPending,
	}
}

// CanTransitionTo validates step status transition.
func (r *StepResult) CanTransitionTo(target StepStatus) bool {
	transitions := map[StepStatus][]StepStatus{
		StepStatusPending:    {StepStatusInProgress},
		StepStatusInProgress: {StepStatusCompleted, StepStatusFailed},
		StepStatusCompleted:  {},
		StepStatusFailed:     {},
	}
	for _, s := range transitions[r.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// Start marks the step as dispatched.
func (r *StepResult) Start() error {
	if !r.CanTransitionTo(StepStatusInProgress) {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	r.Status = StepStatusInProgress
	r.StartedAt = &now
	return nil
}

// Complete sets the result to completed.
func (r *StepResult) Complete(result map[string]any) error {
	if !r.CanTransitionTo(StepStatusCompleted) {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	r.Status = StepStatusCompleted
	r.Result = result
	r.Error = nil
	r.FinishedAt = &now
	return nil
}

// Fail sets the result to failed.
func (r *StepResult) Fail(reason string) error {
	if !r.CanTransitionTo(StepStatusFailed) {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	r.Status = StepStatusFailed
	r.Result = nil
	r.Error = &reason
	r.FinishedAt = &now
	return nil
}

// Terminal reports whether the result reached completed or failed.
func (r StepResult) Terminal() bool {
	return r.Status == StepStatusCompleted || r.Status == StepStatusFailed
}

// Recovered reports whether a fallback produced the result.
func (r StepResult) Recovered() bool {
	if r.Result == nil {
		return false
	}
	v, _ := r.Result["recovered"].(bool)
	return v
}
