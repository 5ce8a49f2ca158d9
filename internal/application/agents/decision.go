package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
)

var errNoExecutor = errors.New("no step executor configured")

type decisionFacilitator struct {
	desc     Descriptor
	model    model.Generator
	executor StepExecutor
}

func (a *decisionFacilitator) Descriptor() Descriptor { return a.desc }

func (a *decisionFacilitator) Stages() []Stage {
	return []Stage{
		{
			Name:     "frame-decision",
			Action:   "Framing the decision",
			Run:      a.frame,
			Fallback: func(st *State, _ error) map[string]any { return framing(st, "") },
		},
		{
			Name:   "evaluate-options",
			Action: "Evaluating options",
			Kind:   execution.KindDecision,
			Run:    a.evaluate,
		},
		{
			Name:     "assess-risks",
			Action:   "Assessing decision risks",
			Run:      a.assessRisks,
			Fallback: func(st *State, _ error) map[string]any { return decisionRisks(st, "") },
		},
		{
			Name:     "plan-implementation",
			Action:   "Planning implementation",
			Kind:     execution.KindTaskCreation,
			Run:      a.planImplementation,
			Fallback: func(st *State, _ error) map[string]any { return implementation(st, "") },
		},
	}
}

func framing(st *State, text string) map[string]any {
	c := st.Request.Context
	options := strs(c, "options")
	if options == nil {
		options = []string{}
	}
	criteria := strs(c, "criteria")
	if criteria == nil {
		criteria = []string{}
	}
	stakeholders := strs(c, "stakeholders")
	if stakeholders == nil {
		stakeholders = []string{}
	}
	return map[string]any{
		"question":     st.Request.Task,
		"options":      options,
		"criteria":     criteria,
		"stakeholders": stakeholders,
		"framing":      text,
	}
}

func (a *decisionFacilitator) frame(ctx context.Context, st *State) (map[string]any, error) {
	prompt := fmt.Sprintf(`Restate this decision as a clear question and list what a good answer must satisfy.

Decision: %s
Context: %s`, st.Request.Task, toJSON(st.Request.Context))

	text, err := ask(ctx, a.model, prompt, 0.3)
	if err != nil {
		return nil, err
	}
	return framing(st, text), nil
}

// evaluate runs the framed decision through the shared decision step handler.
func (a *decisionFacilitator) evaluate(ctx context.Context, st *State) (map[string]any, error) {
	if a.executor == nil {
		return nil, errNoExecutor
	}
	f := st.Output("frame-decision")
	inputs := map[string]any{
		"context":  st.Request.Context,
		"options":  f["options"],
		"criteria": f["criteria"],
	}
	if cond := str(st.Request.Context, "condition", ""); cond != "" {
		inputs["condition"] = cond
	}
	res := a.executor.Execute(ctx, execution.Step{
		ID:     "evaluate-options",
		Action: str(f, "question", st.Request.Task),
		Kind:   execution.KindDecision,
		Inputs: inputs,
	})
	if res.Status != execution.StepStatusCompleted {
		reason := "decision step failed"
		if res.Error != nil {
			reason = *res.Error
		}
		return nil, errors.New(reason)
	}
	return res.Result, nil
}

func (a *decisionFacilitator) assessRisks(ctx context.Context, st *State) (map[string]any, error) {
	prompt := fmt.Sprintf(`List the main risks of acting on this decision and how to mitigate them.

Decision: %s
Evaluation: %s`, st.Request.Task, toJSON(st.Output("evaluate-options")["decision"]))

	text, err := ask(ctx, a.model, prompt, 0.3)
	if err != nil {
		return nil, err
	}
	return decisionRisks(st, text), nil
}

// decisionRisks grades risk from the evaluation outcome and stakeholder spread.
func decisionRisks(st *State, text string) map[string]any {
	eval := st.Output("evaluate-options")
	level := "low"
	switch {
	case len(eval) == 0:
		level = "high"
	case eval["conditionMet"] == false:
		level = "high"
	case len(strs(st.Output("frame-decision"), "stakeholders")) > 3:
		level = "medium"
	case num(eval, "confidence", 0) < 0.7:
		level = "medium"
	}
	return map[string]any{
		"riskLevel": level,
		"analysis":  text,
	}
}

func (a *decisionFacilitator) planImplementation(ctx context.Context, st *State) (map[string]any, error) {
	prompt := fmt.Sprintf(`Draft a short implementation plan for this decision.

Decision: %s
Risks: %s
Stakeholders: %s`, toJSON(st.Output("evaluate-options")["decision"]), toJSON(st.Output("assess-risks")), toJSON(st.Output("frame-decision")["stakeholders"]))

	text, err := ask(ctx, a.model, prompt, 0.5)
	if err != nil {
		return nil, err
	}
	return implementation(st, text), nil
}

func implementation(st *State, text string) map[string]any {
	milestones := []map[string]any{
		{"milestone": "Communicate decision to stakeholders", "timeline": "2 days"},
		{"milestone": "Assign owners and start execution", "timeline": "1 week"},
		{"milestone": "Review outcomes against criteria", "timeline": "1 month"},
	}
	if str(st.Output("assess-risks"), "riskLevel", "low") == "high" {
		milestones = append([]map[string]any{
			{"milestone": "Run a small pilot before full rollout", "timeline": "1 week"},
		}, milestones...)
	}
	return map[string]any{
		"plan":       text,
		"milestones": milestones,
	}
}

func (a *decisionFacilitator) Finalize(st *State) Final {
	eval := st.Output("evaluate-options")
	risks := st.Output("assess-risks")
	recs := []string{"Document the decision and its rationale"}
	if str(risks, "riskLevel", "low") != "low" {
		recs = append(recs, "Schedule a checkpoint review after the first milestone")
	}
	return Final{
		Output: map[string]any{
			"decision":           eval["decision"],
			"confidence":         eval["confidence"],
			"conditionMet":       eval["conditionMet"],
			"riskLevel":          risks["riskLevel"],
			"implementationPlan": st.Output("plan-implementation"),
		},
		Recommendations: recs,
		NextActions: []execution.NextAction{
			{Action: "communicate_decision", Priority: "high"},
			{Action: "assign_owners", Priority: "medium"},
		},
	}
}
