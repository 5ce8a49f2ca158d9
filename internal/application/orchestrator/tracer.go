package orchestrator

import (
	"fmt"
	"time"

	"github.com/Ntarekp/teamSynth/internal/application/executor"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
)

// Publisher receives trace events as they are recorded.
type Publisher interface {
	Publish(event execution.TraceEvent)
}

// Tracer keeps the append-only trace of one execution. A tracer belongs to a
// single run and is not shared between goroutines.
type Tracer struct {
	executionID string
	events      []execution.TraceEvent
	publisher   Publisher
	now         func() time.Time
}

// NewTracer creates a tracer. publisher may be nil.
func NewTracer(executionID string, publisher Publisher) *Tracer {
	return &Tracer{
		executionID: executionID,
		publisher:   publisher,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Log appends an event.
func (t *Tracer) Log(typ execution.TraceType, stepID, message string) {
	ev := execution.TraceEvent{
		ExecutionID: t.executionID,
		Type:        typ,
		StepID:      stepID,
		Message:     message,
		Timestamp:   t.now(),
	}
	t.events = append(t.events, ev)
	if t.publisher != nil {
		t.publisher.Publish(ev)
	}
}

// Step records the outcome of a finished step. A recovered step logs the
// primary failure before its completion.
func (t *Tracer) Step(res execution.StepResult) {
	switch {
	case res.Status == execution.StepStatusFailed:
		reason := ""
		if res.Error != nil {
			reason = *res.Error
		}
		t.Log(execution.TraceStepFailed, res.StepID, fmt.Sprintf("Failed: %s - %s", res.Action, reason))
	case res.Recovered():
		t.Log(execution.TraceStepFailed, res.StepID, fmt.Sprintf("Failed: %s - %s", res.Action, executor.PrimaryError(res)))
		t.Log(execution.TraceStepCompleted, res.StepID, fmt.Sprintf("Recovered: %s", res.Action))
	default:
		t.Log(execution.TraceStepCompleted, res.StepID, fmt.Sprintf("Completed: %s", res.Action))
	}
}

// Events returns a copy of the trace.
func (t *Tracer) Events() []execution.TraceEvent {
	out := make([]execution.TraceEvent, len(t.events))
	copy(out, t.events)
	return out
}
