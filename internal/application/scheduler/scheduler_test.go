package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Ntarekp/teamSynth/internal/application/agents"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, agentID string, req agents.Request) (*execution.Record, error) {
	args := m.Called(ctx, agentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*execution.Record), args.Error(1)
}

func TestNew_RegistersScheduledCatalogAgents(t *testing.T) {
	catalog, err := agents.DefaultCatalog()
	require.NoError(t, err)

	s, err := New(&MockRunner{}, catalog, zerolog.Nop())
	require.NoError(t, err)
	defer s.Stop()

	ids := []string{}
	for _, j := range s.Jobs() {
		ids = append(ids, j.AgentID)
	}
	assert.ElementsMatch(t, []string{"team-wellness", "knowledge-curator"}, ids)

	s.Start()
	next, ok := s.Next("team-wellness")
	require.True(t, ok)
	assert.False(t, next.IsZero())
	_, ok = s.Next("meeting-optimizer")
	assert.False(t, ok)
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New(&MockRunner{}, []agents.Descriptor{{ID: "x", Schedule: "every tuesday"}}, zerolog.Nop())
	assert.ErrorContains(t, err, "schedule agent x")
}

func TestRunNow_PassesScheduledTask(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", mock.Anything, "team-wellness", mock.MatchedBy(func(req agents.Request) bool {
		return req.Task == "weekly check" && req.Context["trigger"] == "schedule" && req.User == "scheduler"
	})).Return(&execution.Record{ExecutionID: "wellness_1", Success: true}, nil).Once()

	s, err := New(runner, []agents.Descriptor{{ID: "team-wellness", Schedule: "0 9 * * 1-5", ScheduledTask: "weekly check"}}, zerolog.Nop())
	require.NoError(t, err)
	defer s.Stop()

	s.RunNow(s.Jobs()[0])

	runner.AssertExpectations(t)
}

func TestRunNow_ErrorIsLogged(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", mock.Anything, "gone", mock.Anything).Return(nil, errors.New("agent not found")).Once()

	s, err := New(runner, []agents.Descriptor{{ID: "gone", Description: "d", Schedule: "@daily"}}, zerolog.Nop())
	require.NoError(t, err)
	defer s.Stop()

	job := s.Jobs()[0]
	assert.Equal(t, "Scheduled review: d", job.Task)
	assert.NotPanics(t, func() { s.RunNow(job) })
	runner.AssertExpectations(t)
}
