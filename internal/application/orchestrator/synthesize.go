package orchestrator

import (
	"fmt"

	"github.com/Ntarekp/teamSynth/internal/domain/execution"
)

// Synthesize folds step results into the final output. It is pure and
// tolerates any mix of completed and failed results.
func Synthesize(task execution.Task, results []execution.StepResult) map[string]any {
	completed, failed, recovered := 0, 0, 0
	outputs := make([]map[string]any, 0, len(results))
	failedSteps := make([]string, 0)

	for _, r := range results {
		switch r.Status {
		case execution.StepStatusCompleted:
			completed++
			if r.Recovered() {
				recovered++
			}
		case execution.StepStatusFailed:
			failed++
			failedSteps = append(failedSteps, r.StepID)
		}

		var errText any
		if r.Error != nil {
			errText = *r.Error
		}
		var result any
		if r.Result != nil {
			result = r.Result
		}
		outputs = append(outputs, map[string]any{
			"stepId": r.StepID,
			"action": r.Action,
			"kind":   string(r.Kind),
			"status": string(r.Status),
			"result": result,
			"error":  errText,
		})
	}

	return map[string]any{
		"task": task.Description,
		"summary": map[string]any{
			"total":     len(results),
			"completed": completed,
			"failed":    failed,
			"recovered": recovered,
		},
		"outputs":     outputs,
		"failedSteps": failedSteps,
	}
}

// followUps suggests a manual action for every failed step.
func followUps(results []execution.StepResult) []execution.NextAction {
	var actions []execution.NextAction
	for _, r := range results {
		if r.Status != execution.StepStatusFailed {
			continue
		}
		actions = append(actions, execution.NextAction{
			Action:   fmt.Sprintf("Complete %q manually", r.Action),
			Priority: "high",
		})
	}
	return actions
}
