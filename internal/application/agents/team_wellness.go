package agents

import (
	"context"
	"fmt"
	"math"

	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
)

// Thresholds for per-member risk factors.
const (
	workloadHoursLimit = 45.0
	lowMoodLimit       = 5.0
	overtimeHoursLimit = 5.0
	lowEngagementLimit = 60.0
)

// Baseline metrics reported when no member data is supplied.
var baselineWellness = map[string]any{
	"averageMood":     7.2,
	"burnoutRisk":     23.0,
	"engagementLevel": 85.0,
	"workLifeBalance": 72.0,
}

type teamWellness struct {
	desc  Descriptor
	model model.Generator
}

func (a *teamWellness) Descriptor() Descriptor { return a.desc }

func (a *teamWellness) Stages() []Stage {
	return []Stage{
		{
			Name:   "analyze-wellness",
			Action: "Analyzing team wellness metrics",
			Kind:   execution.KindDataAnalysis,
			Run: func(_ context.Context, st *State) (map[string]any, error) {
				return analyzeWellness(maps(st.Request.Context, "members")), nil
			},
		},
		{
			Name:   "assess-risks",
			Action: "Identifying wellness risks",
			Kind:   execution.KindDecision,
			Run: func(_ context.Context, st *State) (map[string]any, error) {
				return assessWellnessRisks(st.Output("analyze-wellness"), maps(st.Request.Context, "members")), nil
			},
		},
		{
			Name:     "plan-interventions",
			Action:   "Generating intervention plan",
			Run:      a.planInterventions,
			Fallback: func(st *State, _ error) map[string]any { return interventions(st.Output("assess-risks"), "") },
		},
		{
			Name:   "create-action-plan",
			Action: "Creating wellness action plan",
			Kind:   execution.KindTaskCreation,
			Run: func(_ context.Context, st *State) (map[string]any, error) {
				return wellnessActionPlan(st.Output("assess-risks")), nil
			},
		},
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// analyzeWellness aggregates member signals. mood is 0-10, engagement 0-100,
// workloadHours and overtimeHours are weekly.
func analyzeWellness(members []map[string]any) map[string]any {
	if len(members) == 0 {
		return map[string]any{
			"overallScore": 78,
			"trends":       "improving",
			"keyMetrics":   baselineWellness,
			"source":       "baseline",
			"memberCount":  0,
		}
	}

	var mood, engagement, workload float64
	burnout := 0
	for _, m := range members {
		mood += num(m, "mood", 7)
		engagement += num(m, "engagement", 75)
		hours := num(m, "workloadHours", 40)
		workload += hours
		if len(memberRiskFactors(m)) >= 2 {
			burnout++
		}
	}
	n := float64(len(members))
	mood /= n
	engagement /= n
	workload /= n
	burnoutRisk := float64(burnout) / n * 100
	balance := math.Max(0, math.Min(100, 100-(workload-40)*4))

	score := int(math.Round(mood*10*0.35 + engagement*0.25 + balance*0.25 + (100-burnoutRisk)*0.15))
	return map[string]any{
		"overallScore": score,
		"trends":       "current",
		"keyMetrics": map[string]any{
			"averageMood":     round1(mood),
			"burnoutRisk":     round1(burnoutRisk),
			"engagementLevel": round1(engagement),
			"workLifeBalance": round1(balance),
		},
		"source":      "members",
		"memberCount": len(members),
	}
}

func memberRiskFactors(m map[string]any) []string {
	var factors []string
	if num(m, "workloadHours", 0) > workloadHoursLimit {
		factors = append(factors, "high_workload")
	}
	if mood, ok := m["mood"]; ok && mood != nil && num(m, "mood", 10) < lowMoodLimit {
		factors = append(factors, "declining_mood")
	}
	if num(m, "overtimeHours", 0) > overtimeHoursLimit {
		factors = append(factors, "overtime_hours")
	}
	if e, ok := m["engagement"]; ok && e != nil && num(m, "engagement", 100) < lowEngagementLimit {
		factors = append(factors, "low_engagement")
	}
	return factors
}

func assessWellnessRisks(analysis map[string]any, members []map[string]any) map[string]any {
	atRisk := []map[string]any{}
	for _, m := range members {
		factors := memberRiskFactors(m)
		if len(factors) == 0 {
			continue
		}
		level := "medium"
		if len(factors) >= 2 {
			level = "high"
		}
		atRisk = append(atRisk, map[string]any{
			"id":        str(m, "id", str(m, "name", "unknown")),
			"riskLevel": level,
			"factors":   factors,
		})
	}

	score := num(analysis, "overallScore", 78)
	level := "low"
	switch {
	case score < 60:
		level = "high"
	case score < 80:
		level = "medium"
	}

	teamFactors := []string{}
	if len(members) > 0 && float64(len(atRisk))/float64(len(members)) >= 0.3 {
		teamFactors = append(teamFactors, "widespread_strain")
	}
	return map[string]any{
		"level":           level,
		"atRiskMembers":   atRisk,
		"teamRiskFactors": teamFactors,
	}
}

func (a *teamWellness) planInterventions(ctx context.Context, st *State) (map[string]any, error) {
	risks := st.Output("assess-risks")
	prompt := fmt.Sprintf(`You are a team wellbeing coach. Given this risk assessment, suggest supportive interventions in a short paragraph.

Wellness metrics: %s
Risk assessment: %s`, toJSON(st.Output("analyze-wellness")), toJSON(risks))

	text, err := ask(ctx, a.model, prompt, 0.5)
	if err != nil {
		return nil, err
	}
	return interventions(risks, text), nil
}

func interventions(risks map[string]any, narrative string) map[string]any {
	immediate := []map[string]any{}
	for _, m := range maps(risks, "atRiskMembers") {
		target := str(m, "id", "unknown")
		if m["riskLevel"] == "high" {
			immediate = append(immediate, map[string]any{
				"type":   "workload_redistribution",
				"target": target,
				"action": "Reduce current sprint capacity by 20%",
			})
		}
		immediate = append(immediate, map[string]any{
			"type":   "manager_check_in",
			"target": target,
			"action": "Schedule 1:1 meeting within 24 hours",
		})
	}

	recommendations := []string{"Review project timelines"}
	switch str(risks, "level", "low") {
	case "high":
		recommendations = append(recommendations, "Pause non-critical work for one sprint", "Implement flexible working hours", "Introduce mindfulness sessions")
	case "medium":
		recommendations = append(recommendations, "Implement flexible working hours", "Introduce mindfulness sessions")
	}
	return map[string]any{
		"immediate":       immediate,
		"recommendations": recommendations,
		"narrative":       narrative,
	}
}

func wellnessActionPlan(risks map[string]any) map[string]any {
	immediateActions := []execution.NextAction{}
	if len(maps(risks, "atRiskMembers")) > 0 {
		immediateActions = append(immediateActions,
			execution.NextAction{Action: "schedule_manager_meeting", Priority: "urgent", Deadline: "24 hours"},
			execution.NextAction{Action: "adjust_workload", Priority: "high", Deadline: "48 hours"},
		)
	} else {
		immediateActions = append(immediateActions,
			execution.NextAction{Action: "share_wellness_summary", Priority: "medium", Deadline: "1 week"},
		)
	}
	return map[string]any{
		"immediateActions": immediateActions,
		"shortTerm": []map[string]any{
			{"action": "wellness_workshop", "timeline": "1 week"},
			{"action": "team_building_activity", "timeline": "2 weeks"},
		},
		"longTerm": []map[string]any{
			{"action": "wellness_program_review", "timeline": "1 month"},
			{"action": "policy_updates", "timeline": "2 months"},
		},
	}
}

func (a *teamWellness) Finalize(st *State) Final {
	risks := st.Output("assess-risks")
	plan := st.Output("create-action-plan")
	iv := st.Output("plan-interventions")

	next, _ := plan["immediateActions"].([]execution.NextAction)
	return Final{
		Output: map[string]any{
			"wellnessScore": st.Output("analyze-wellness")["overallScore"],
			"riskLevel":     risks["level"],
			"atRiskMembers": risks["atRiskMembers"],
			"interventions": iv["immediate"],
			"actionPlan":    plan,
		},
		Recommendations: strs(iv, "recommendations"),
		NextActions:     next,
	}
}
