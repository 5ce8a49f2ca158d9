package agents

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Ntarekp/teamSynth/internal/application/executor"
	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/application/model/mocks"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
	"github.com/Ntarekp/teamSynth/internal/domain/knowledge"
)

type fakeRetriever struct {
	chunks []knowledge.Chunk
	err    error
	query  string
}

func (f *fakeRetriever) Search(_ context.Context, query string, _ int) ([]knowledge.Chunk, error) {
	f.query = query
	return f.chunks, f.err
}

func newRunner(t *testing.T, gen model.Generator, retriever Retriever) *Runner {
	t.Helper()
	reg, err := DefaultRegistry(Deps{
		Model:     gen,
		Executor:  executor.New(executor.Deps{Model: gen}, zerolog.Nop()),
		Knowledge: retriever,
	})
	require.NoError(t, err)
	return NewRunner(reg, nil, nil, zerolog.Nop())
}

func okModel(t *testing.T) *mocks.MockGenerator {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).Return("model says ok", nil).AnyTimes()
	return gen
}

func downModel(t *testing.T) *mocks.MockGenerator {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", model.NewUnavailableError("m", errors.New("refused"))).AnyTimes()
	return gen
}

func countTrace(rec *execution.Record, typ execution.TraceType) int {
	n := 0
	for _, e := range rec.Trace {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestDefaultCatalog(t *testing.T) {
	descs, err := DefaultCatalog()
	require.NoError(t, err)

	ids := make([]string, 0, len(descs))
	for _, d := range descs {
		ids = append(ids, d.ID)
		assert.Len(t, d.Capabilities, 5, d.ID)
		assert.NotEmpty(t, d.IDPrefix, d.ID)
	}
	assert.Equal(t, []string{
		"meeting-optimizer", "team-wellness", "productivity-enhancer", "decision-facilitator", "knowledge-curator",
	}, ids)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	_, err := LoadCatalog([]byte("agents: []"))
	assert.Error(t, err)

	_, err = LoadCatalog([]byte("agents:\n  - id: a\n    name: A\n  - id: a\n    name: B\n"))
	assert.ErrorContains(t, err, "duplicate")
}

func TestRegistry(t *testing.T) {
	r := newRunner(t, okModel(t), nil)

	_, err := r.Registry().Get("unknown-agent-xyz")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "unknown-agent-xyz", nf.ID)

	statuses := r.Registry().Statuses()
	require.Len(t, statuses, 5)
	for _, s := range statuses {
		assert.Equal(t, "active", s.Status)
		assert.Nil(t, s.LastExecution)
	}
}

func TestRunner_UnknownAgent(t *testing.T) {
	r := newRunner(t, okModel(t), nil)

	rec, err := r.Run(context.Background(), "unknown-agent-xyz", Request{Task: "x"})

	assert.Nil(t, rec)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestMeetingOptimizer_EndToEnd(t *testing.T) {
	r := newRunner(t, okModel(t), nil)

	rec, err := r.Run(context.Background(), "meeting-optimizer", Request{
		Task: "optimize our team meeting",
		Context: map[string]any{
			"purpose": "sprint planning for the api",
			"participants": []any{
				map[string]any{"email": "ana@example.com", "role": "owner"},
				map[string]any{"email": "raj@example.com", "expertise": []any{"api"}},
				map[string]any{"email": "kim@example.com"},
			},
		},
	})

	require.NoError(t, err)
	require.Len(t, rec.StepResults, 4)
	assert.Equal(t, 4, countTrace(rec, execution.TraceStepCompleted))
	assert.Equal(t, 0, countTrace(rec, execution.TraceStepFailed))
	for _, s := range rec.StepResults {
		assert.Equal(t, execution.StepStatusCompleted, s.Status)
		assert.NotNil(t, s.Result, s.StepID)
	}
	assert.True(t, rec.Success)
	assert.Equal(t, "meeting-optimizer", rec.AgentType)
	assert.Regexp(t, `^meeting_opt_`, rec.ExecutionID)
	assert.Equal(t, 45, rec.FinalOutput["estimatedDuration"])
	assert.Equal(t, 0.85, rec.FinalOutput["successProbability"])
	assert.Len(t, rec.Recommendations, 3)
	assert.Len(t, rec.NextActions, 3)

	people := rec.FinalOutput["recommendedParticipants"].(map[string]any)
	assert.Equal(t, []string{"ana@example.com", "raj@example.com"}, people["required"])
	assert.Equal(t, []string{"kim@example.com"}, people["optional"])

	agenda := rec.FinalOutput["optimizedAgenda"].(map[string]any)
	items := agenda["items"].([]map[string]any)
	require.Len(t, items, 4)
	assert.Equal(t, "5 min", items[0]["time"])
	assert.Equal(t, "20 min", items[1]["time"])

	status := r.Registry().Statuses()[0]
	assert.NotNil(t, status.LastExecution)
}

func TestMeetingOptimizer_ModelDownStillCompletes(t *testing.T) {
	r := newRunner(t, downModel(t), nil)

	rec, err := r.Run(context.Background(), "meeting-optimizer", Request{
		Task:       "optimize our team meeting",
		Parameters: map[string]any{"duration": 30.0},
	})

	require.NoError(t, err)
	require.Len(t, rec.StepResults, 4)
	for _, s := range rec.StepResults {
		assert.Equal(t, execution.StepStatusCompleted, s.Status)
		assert.True(t, s.Recovered())
	}
	assert.True(t, rec.Success)
	assert.Equal(t, 30, rec.FinalOutput["estimatedDuration"])
	agenda := rec.FinalOutput["optimizedAgenda"].(map[string]any)
	assert.Equal(t, 30, agenda["totalDuration"])
}

func TestTeamWellness(t *testing.T) {
	t.Run("baseline without member data", func(t *testing.T) {
		r := newRunner(t, okModel(t), nil)

		rec, err := r.Run(context.Background(), "team-wellness", Request{Task: "check in"})

		require.NoError(t, err)
		assert.Equal(t, 78, rec.FinalOutput["wellnessScore"])
		assert.Equal(t, "medium", rec.FinalOutput["riskLevel"])
		assert.True(t, rec.Success)
	})

	t.Run("flags overloaded members", func(t *testing.T) {
		r := newRunner(t, okModel(t), nil)

		rec, err := r.Run(context.Background(), "team-wellness", Request{
			Task: "check in",
			Context: map[string]any{"members": []any{
				map[string]any{"id": "alex", "mood": 4.0, "workloadHours": 55.0, "overtimeHours": 10.0, "engagement": 50.0},
				map[string]any{"id": "sam", "mood": 8.0, "workloadHours": 38.0, "engagement": 90.0},
			}},
		})

		require.NoError(t, err)
		atRisk := rec.FinalOutput["atRiskMembers"].([]map[string]any)
		require.Len(t, atRisk, 1)
		assert.Equal(t, "alex", atRisk[0]["id"])
		assert.Equal(t, "high", atRisk[0]["riskLevel"])
		require.NotEmpty(t, rec.NextActions)
		assert.Equal(t, "schedule_manager_meeting", rec.NextActions[0].Action)
		assert.Equal(t, "urgent", rec.NextActions[0].Priority)
	})
}

func TestProductivityEnhancer(t *testing.T) {
	r := newRunner(t, okModel(t), nil)

	rec, err := r.Run(context.Background(), "productivity-enhancer", Request{
		Task: "speed up our week",
		Context: map[string]any{"tasks": []any{
			map[string]any{"name": "weekly status report", "durationMinutes": 30.0, "frequencyPerWeek": 5.0, "manual": true},
			map[string]any{"name": "design review", "durationMinutes": 60.0, "frequencyPerWeek": 1.0, "manual": true},
			map[string]any{"name": "standup", "durationMinutes": 15.0, "frequencyPerWeek": 5.0},
		}},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, rec.FinalOutput["automationOpportunities"])
	// 105 of 285 weekly minutes saved
	assert.Equal(t, "37%", rec.FinalOutput["efficiencyGains"])
	assert.Contains(t, rec.Recommendations, "Automate weekly status report")
}

func TestDecisionFacilitator(t *testing.T) {
	r := newRunner(t, okModel(t), nil)

	rec, err := r.Run(context.Background(), "decision-facilitator", Request{
		Task: "choose a database",
		Context: map[string]any{
			"options":   []any{"postgres", "sqlite"},
			"budget":    100.0,
			"condition": "budget > 500",
		},
	})

	require.NoError(t, err)
	require.Len(t, rec.StepResults, 4)
	assert.Equal(t, execution.KindDecision, rec.StepResults[1].Kind)
	assert.Equal(t, 0.8, rec.FinalOutput["confidence"])
	assert.Equal(t, false, rec.FinalOutput["conditionMet"])
	assert.Equal(t, "high", rec.FinalOutput["riskLevel"])
}

func TestDecisionFacilitator_EvaluationFailureIsRecorded(t *testing.T) {
	r := newRunner(t, downModel(t), nil)

	rec, err := r.Run(context.Background(), "decision-facilitator", Request{Task: "choose a database"})

	require.NoError(t, err)
	assert.Equal(t, execution.StepStatusFailed, rec.StepResults[1].Status)
	assert.Equal(t, execution.StepStatusCompleted, rec.StepResults[2].Status)
	assert.Equal(t, execution.StepStatusCompleted, rec.StepResults[3].Status)
	assert.False(t, rec.Success)
	assert.Equal(t, "high", rec.FinalOutput["riskLevel"])
}

func TestKnowledgeCurator(t *testing.T) {
	t.Run("with stored knowledge", func(t *testing.T) {
		retriever := &fakeRetriever{chunks: []knowledge.Chunk{
			{Text: "we deploy on tuesdays", Metadata: knowledge.Metadata{SourceType: knowledge.SourceMeeting, SourceID: "m1"}, Score: 0.9},
			{Text: "runbook for rollbacks", Metadata: knowledge.Metadata{SourceType: knowledge.SourceDocument, SourceID: "d1"}, Score: 0.7},
		}}
		r := newRunner(t, okModel(t), retriever)

		rec, err := r.Run(context.Background(), "knowledge-curator", Request{Task: "deployments"})

		require.NoError(t, err)
		assert.Equal(t, "deployments", retriever.query)
		assert.Equal(t, map[string]int{"meeting": 1, "document": 1}, rec.FinalOutput["sources"])
		assert.Equal(t, []string{}, rec.FinalOutput["gaps"])
		assert.True(t, rec.Success)
	})

	t.Run("retrieval failure degrades", func(t *testing.T) {
		r := newRunner(t, okModel(t), &fakeRetriever{err: errors.New("chroma down")})

		rec, err := r.Run(context.Background(), "knowledge-curator", Request{Task: "deployments"})

		require.NoError(t, err)
		assert.True(t, rec.StepResults[0].Recovered())
		assert.Equal(t, 1, countTrace(rec, execution.TraceStepFailed))
		assert.Len(t, rec.FinalOutput["gaps"], 1)
	})
}

func TestRunner_CancelledBeforeStart(t *testing.T) {
	r := newRunner(t, okModel(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := r.Run(ctx, "team-wellness", Request{Task: "x"})

	require.NoError(t, err)
	for _, s := range rec.StepResults {
		assert.Equal(t, execution.StepStatusFailed, s.Status)
	}
	assert.False(t, rec.Success)
	assert.Equal(t, 4, countTrace(rec, execution.TraceStepFailed))
}

func TestAgendaMinutesSumToTotal(t *testing.T) {
	for _, duration := range []float64{1, 2, 3, 4, 5, 7, 30, 45, 90} {
		st := newState(Request{})
		st.set("analyze-context", map[string]any{"estimatedDuration": duration})

		out := agenda(st, "")
		items := out["items"].([]map[string]any)
		require.Len(t, items, len(agendaTemplate))

		sum := 0
		for _, it := range items {
			var m int
			_, err := fmt.Sscanf(it["time"].(string), "%d min", &m)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, m, 1, "duration %v", duration)
			sum += m
		}
		want := max(int(duration), len(agendaTemplate))
		assert.Equal(t, want, sum, "duration %v", duration)
		assert.Equal(t, want, out["totalDuration"], "duration %v", duration)
	}
}
