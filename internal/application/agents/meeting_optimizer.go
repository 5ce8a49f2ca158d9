package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
)

const (
	defaultMeetingMinutes = 45
	meetingSuccessRate    = 0.85
)

// agenda template; minutes are shares of a 45 minute meeting.
var agendaTemplate = []struct {
	topic   string
	kind    string
	minutes int
}{
	{"Welcome & Objectives", "intro", 5},
	{"Main Discussion", "discussion", 20},
	{"Decision Making", "decision", 15},
	{"Action Items & Next Steps", "conclusion", 5},
}

type meetingOptimizer struct {
	desc  Descriptor
	model model.Generator
}

func (a *meetingOptimizer) Descriptor() Descriptor { return a.desc }

func (a *meetingOptimizer) Stages() []Stage {
	return []Stage{
		{
			Name:     "analyze-context",
			Action:   "Analyzing meeting context",
			Kind:     execution.KindDataAnalysis,
			Run:      a.analyzeContext,
			Fallback: func(st *State, _ error) map[string]any { return baseAnalysis(st, "") },
		},
		{
			Name:     "optimize-agenda",
			Action:   "Optimizing meeting agenda",
			Run:      a.optimizeAgenda,
			Fallback: func(st *State, _ error) map[string]any { return agenda(st, "") },
		},
		{
			Name:     "select-participants",
			Action:   "Selecting optimal participants",
			Kind:     execution.KindDecision,
			Run:      a.selectParticipants,
			Fallback: func(st *State, _ error) map[string]any { return participants(st, "") },
		},
		{
			Name:     "generate-brief",
			Action:   "Generating pre-meeting brief",
			Kind:     execution.KindCommunication,
			Run:      a.generateBrief,
			Fallback: func(st *State, _ error) map[string]any { return templateBrief(st) },
		},
	}
}

func (a *meetingOptimizer) analyzeContext(ctx context.Context, st *State) (map[string]any, error) {
	prompt := fmt.Sprintf(`Analyze this meeting context and provide optimization insights:

Task: %s
Context: %s

Analyze:
1. Meeting purpose and objectives
2. Required expertise and stakeholders
3. Optimal duration
4. Success factors
5. Potential challenges

Provide structured analysis with recommendations.`, st.Request.Task, toJSON(st.Request.Context))

	text, err := ask(ctx, a.model, prompt, 0.3)
	if err != nil {
		return nil, err
	}
	return baseAnalysis(st, text), nil
}

func baseAnalysis(st *State, text string) map[string]any {
	c := st.Request.Context
	duration := num(st.Request.Parameters, "duration", num(c, "duration", defaultMeetingMinutes))
	objectives := strs(c, "objectives")
	if objectives == nil {
		objectives = []string{}
	}
	return map[string]any{
		"purpose":            str(c, "purpose", "General discussion"),
		"estimatedDuration":  int(duration),
		"successProbability": meetingSuccessRate,
		"keyObjectives":      objectives,
		"challenges":         []string{},
		"analysis":           text,
	}
}

func (a *meetingOptimizer) optimizeAgenda(ctx context.Context, st *State) (map[string]any, error) {
	prompt := fmt.Sprintf(`Create an optimized meeting agenda based on this analysis:

Analysis: %s
Parameters: %s

Create a time-boxed agenda that:
1. Maximizes productivity
2. Ensures all objectives are met
3. Includes decision points
4. Has clear action items
5. Respects time constraints

Format as structured agenda with time allocations.`, toJSON(st.Output("analyze-context")), toJSON(st.Request.Parameters))

	text, err := ask(ctx, a.model, prompt, 0.5)
	if err != nil {
		return nil, err
	}
	return agenda(st, text), nil
}

// agenda scales the template to the analysed duration. Every item gets at
// least one minute, so meetings shorter than the template are stretched to one
// minute per item. The final item absorbs rounding; minutes sum to the total.
func agenda(st *State, notes string) map[string]any {
	total := int(num(st.Output("analyze-context"), "estimatedDuration", defaultMeetingMinutes))
	if total <= 0 {
		total = defaultMeetingMinutes
	}
	n := len(agendaTemplate)
	if total < n {
		total = n
	}
	items := make([]map[string]any, 0, n)
	used := 0
	for i, t := range agendaTemplate {
		minutes := t.minutes * total / defaultMeetingMinutes
		if i == n-1 {
			minutes = total - used
		}
		// leave a minute for each item still to come
		minutes = max(1, min(minutes, total-used-(n-1-i)))
		used += minutes
		items = append(items, map[string]any{
			"time":  fmt.Sprintf("%d min", minutes),
			"topic": t.topic,
			"type":  t.kind,
		})
	}
	return map[string]any{
		"items":             items,
		"totalDuration":     total,
		"optimizationNotes": notes,
	}
}

func (a *meetingOptimizer) selectParticipants(ctx context.Context, st *State) (map[string]any, error) {
	candidates := maps(st.Request.Context, "participants")
	prompt := fmt.Sprintf(`Select the participants this meeting needs.

Meeting analysis: %s
Candidates: %s

Explain in two or three sentences who must attend and who is optional.`, toJSON(st.Output("analyze-context")), toJSON(candidates))

	text, err := ask(ctx, a.model, prompt, 0.3)
	if err != nil {
		return nil, err
	}
	return participants(st, text), nil
}

// participants splits candidates into required and optional attendees. Owners,
// decision makers and anyone whose expertise matches the purpose are required.
func participants(st *State, reasoning string) map[string]any {
	purpose := strings.ToLower(str(st.Output("analyze-context"), "purpose", str(st.Request.Context, "purpose", "")))
	required, optional := []string{}, []string{}
	for _, p := range maps(st.Request.Context, "participants") {
		who := str(p, "email", str(p, "name", ""))
		if who == "" {
			continue
		}
		if isRequired(p, purpose) {
			required = append(required, who)
		} else {
			optional = append(optional, who)
		}
	}
	if reasoning == "" {
		reasoning = "Selected based on expertise alignment and decision-making authority"
	}
	return map[string]any{
		"required":  required,
		"optional":  optional,
		"reasoning": reasoning,
	}
}

func isRequired(p map[string]any, purpose string) bool {
	switch strings.ToLower(str(p, "role", "")) {
	case "owner", "organizer", "decision-maker", "lead":
		return true
	}
	if purpose == "" {
		return false
	}
	for _, skill := range strs(p, "expertise") {
		if skill != "" && strings.Contains(purpose, strings.ToLower(skill)) {
			return true
		}
	}
	return false
}

func (a *meetingOptimizer) generateBrief(ctx context.Context, st *State) (map[string]any, error) {
	prompt := fmt.Sprintf(`Generate a comprehensive pre-meeting brief:

Agenda: %s
Participants: %s

Include:
1. Meeting objectives
2. Preparation requirements
3. Expected outcomes
4. Role assignments
5. Background context

Make it actionable and clear.`, toJSON(st.Output("optimize-agenda")), toJSON(st.Output("select-participants")))

	text, err := ask(ctx, a.model, prompt, 0.5)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"brief":           text,
		"preparationTime": "15 minutes",
		"materials":       []string{},
		"expectations":    []string{},
	}, nil
}

func templateBrief(st *State) map[string]any {
	var b strings.Builder
	fmt.Fprintf(&b, "Purpose: %s\n", str(st.Output("analyze-context"), "purpose", "General discussion"))
	for _, item := range maps(st.Output("optimize-agenda"), "items") {
		fmt.Fprintf(&b, "- %s (%s)\n", item["topic"], item["time"])
	}
	return map[string]any{
		"brief":           b.String(),
		"preparationTime": "15 minutes",
		"materials":       []string{},
		"expectations":    []string{},
	}
}

func (a *meetingOptimizer) Finalize(st *State) Final {
	analysis := st.Output("analyze-context")
	return Final{
		Output: map[string]any{
			"optimizedAgenda":         st.Output("optimize-agenda"),
			"recommendedParticipants": st.Output("select-participants"),
			"preMeetingBrief":         st.Output("generate-brief"),
			"estimatedDuration":       analysis["estimatedDuration"],
			"successProbability":      analysis["successProbability"],
		},
		Recommendations: []string{
			"Send pre-meeting brief 24 hours in advance",
			"Set up automated follow-up reminders",
			"Enable real-time transcription for decision tracking",
		},
		NextActions: []execution.NextAction{
			{Action: "schedule_meeting", Priority: "high"},
			{Action: "send_invites", Priority: "high"},
			{Action: "setup_transcription", Priority: "medium"},
		},
	}
}
