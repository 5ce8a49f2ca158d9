package agents

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
)

const (
	automationMinFrequency = 3.0
	automationSavingsRate  = 0.7
)

// toolCategories maps task keywords to a class of tooling.
var toolCategories = []struct {
	keyword  string
	category string
}{
	{"report", "dashboard and report automation"},
	{"meeting", "scheduling assistant"},
	{"schedul", "scheduling assistant"},
	{"email", "email templates and rules"},
	{"deploy", "CI/CD pipeline"},
	{"test", "automated test suite"},
	{"review", "review bots and checklists"},
	{"data", "ETL or spreadsheet automation"},
	{"ticket", "issue tracker automation"},
}

type productivityEnhancer struct {
	desc  Descriptor
	model model.Generator
}

func (a *productivityEnhancer) Descriptor() Descriptor { return a.desc }

func (a *productivityEnhancer) Stages() []Stage {
	return []Stage{
		{
			Name:     "analyze-workflow",
			Action:   "Analyzing current workflows",
			Kind:     execution.KindDataAnalysis,
			Run:      a.analyzeWorkflow,
			Fallback: func(st *State, _ error) map[string]any { return workflowStats(st, "") },
		},
		{
			Name:   "identify-automation",
			Action: "Identifying automation opportunities",
			Run: func(_ context.Context, st *State) (map[string]any, error) {
				return automationOpportunities(maps(st.Request.Context, "tasks")), nil
			},
		},
		{
			Name:     "recommend-tools",
			Action:   "Recommending tools",
			Run:      a.recommendTools,
			Fallback: func(st *State, _ error) map[string]any { return toolRecommendations(st, "") },
		},
		{
			Name:   "build-plan",
			Action: "Building improvement plan",
			Kind:   execution.KindTaskCreation,
			Run: func(_ context.Context, st *State) (map[string]any, error) {
				return improvementPlan(st), nil
			},
		},
	}
}

func weeklyMinutes(t map[string]any) float64 {
	return num(t, "durationMinutes", 0) * num(t, "frequencyPerWeek", 1)
}

func workflowStats(st *State, narrative string) map[string]any {
	tasks := maps(st.Request.Context, "tasks")
	var total, manual float64
	for _, t := range tasks {
		m := weeklyMinutes(t)
		total += m
		if b, _ := t["manual"].(bool); b {
			manual += m
		}
	}
	share := 0.0
	if total > 0 {
		share = math.Round(manual/total*100) / 100
	}
	return map[string]any{
		"taskCount":           len(tasks),
		"weeklyMinutes":       total,
		"manualWeeklyMinutes": manual,
		"manualShare":         share,
		"analysis":            narrative,
	}
}

func (a *productivityEnhancer) analyzeWorkflow(ctx context.Context, st *State) (map[string]any, error) {
	prompt := fmt.Sprintf(`Analyze this team's workflow for bottlenecks and wasted effort.

Goal: %s
Recurring tasks: %s

Summarize the biggest inefficiencies in a short paragraph.`, st.Request.Task, toJSON(maps(st.Request.Context, "tasks")))

	text, err := ask(ctx, a.model, prompt, 0.3)
	if err != nil {
		return nil, err
	}
	return workflowStats(st, text), nil
}

// automationOpportunities selects manual tasks that recur often enough to automate.
func automationOpportunities(tasks []map[string]any) map[string]any {
	opps := []map[string]any{}
	var saved float64
	for _, t := range tasks {
		manual, _ := t["manual"].(bool)
		if !manual || num(t, "frequencyPerWeek", 0) < automationMinFrequency {
			continue
		}
		minutes := math.Round(weeklyMinutes(t) * automationSavingsRate)
		saved += minutes
		opps = append(opps, map[string]any{
			"task":                 str(t, "name", "unnamed task"),
			"weeklyMinutesSaved":   minutes,
			"currentWeeklyMinutes": weeklyMinutes(t),
		})
	}
	return map[string]any{
		"opportunities":      opps,
		"count":              len(opps),
		"weeklyMinutesSaved": saved,
	}
}

func (a *productivityEnhancer) recommendTools(ctx context.Context, st *State) (map[string]any, error) {
	prompt := fmt.Sprintf(`Recommend tools or practices to automate these tasks. Keep it brief.

Opportunities: %s`, toJSON(st.Output("identify-automation")["opportunities"]))

	text, err := ask(ctx, a.model, prompt, 0.5)
	if err != nil {
		return nil, err
	}
	return toolRecommendations(st, text), nil
}

func toolRecommendations(st *State, notes string) map[string]any {
	seen := map[string]bool{}
	tools := []map[string]any{}
	for _, o := range maps(st.Output("identify-automation"), "opportunities") {
		name := strings.ToLower(str(o, "task", ""))
		category := "workflow automation"
		for _, c := range toolCategories {
			if strings.Contains(name, c.keyword) {
				category = c.category
				break
			}
		}
		if seen[category] {
			continue
		}
		seen[category] = true
		tools = append(tools, map[string]any{"category": category, "for": o["task"]})
	}
	return map[string]any{
		"tools": tools,
		"notes": notes,
	}
}

func improvementPlan(st *State) map[string]any {
	stats := st.Output("analyze-workflow")
	auto := st.Output("identify-automation")

	gain := 0.0
	if total := num(stats, "weeklyMinutes", 0); total > 0 {
		gain = num(auto, "weeklyMinutesSaved", 0) / total * 100
	}
	improvements := []string{}
	for _, o := range maps(auto, "opportunities") {
		improvements = append(improvements, fmt.Sprintf("Automate %s", str(o, "task", "task")))
	}
	if num(stats, "manualShare", 0) > 0.5 {
		improvements = append(improvements, "Document and standardize manual processes")
	}
	return map[string]any{
		"efficiencyGains":     fmt.Sprintf("%d%%", int(math.Round(gain))),
		"processImprovements": improvements,
	}
}

func (a *productivityEnhancer) Finalize(st *State) Final {
	plan := st.Output("build-plan")
	auto := st.Output("identify-automation")

	gains, _ := plan["efficiencyGains"].(string)
	if gains == "" {
		gains = "0%"
	}
	improvements := strs(plan, "processImprovements")
	if improvements == nil {
		improvements = []string{}
	}
	next := []execution.NextAction{}
	for i, imp := range improvements {
		priority := "medium"
		if i == 0 {
			priority = "high"
		}
		next = append(next, execution.NextAction{Action: imp, Priority: priority})
	}
	return Final{
		Output: map[string]any{
			"efficiencyGains":         gains,
			"automationOpportunities": int(num(auto, "count", 0)),
			"toolRecommendations":     st.Output("recommend-tools")["tools"],
			"processImprovements":     improvements,
		},
		Recommendations: improvements,
		NextActions:     next,
	}
}
