package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/application/model/mocks"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
	"github.com/Ntarekp/teamSynth/internal/domain/integration"
)

type MockCaller struct {
	mock.Mock
}

func (m *MockCaller) Call(ctx context.Context, req integration.Request) (*integration.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Response), args.Error(1)
}

type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) Name() string { return "mock" }

func (m *MockAdapter) Dispatch(ctx context.Context, action string, payload map[string]any) (map[string]any, error) {
	args := m.Called(ctx, action, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

var errDown = model.NewUnavailableError("m", errors.New("connection refused"))

func step(kind execution.StepKind, inputs map[string]any) execution.Step {
	return execution.Step{ID: "step-1", Action: "do the thing", Kind: kind, Inputs: inputs}
}

func TestExecutor_DataAnalysis(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	ex := New(Deps{Model: gen}, zerolog.Nop())

	gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).Return("velocity is up", nil)

	res := ex.Execute(context.Background(), step(execution.KindDataAnalysis, map[string]any{"data": []int{1, 2}}))

	assert.Equal(t, execution.StepStatusCompleted, res.Status)
	assert.Equal(t, "velocity is up", res.Result["insights"])
	assert.Equal(t, 0.85, res.Result["confidence"])
	assert.False(t, res.Recovered())
}

func TestExecutor_DecisionCondition(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	ex := New(Deps{Model: gen}, zerolog.Nop())

	gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).Return("go with option B", nil)

	res := ex.Execute(context.Background(), step(execution.KindDecision, map[string]any{
		"context":   map[string]any{"budget": 5000.0, "team": map[string]any{"size": 6.0}},
		"options":   []string{"A", "B"},
		"condition": "budget > 1000 && [team.size] >= 5",
	}))

	require.Equal(t, execution.StepStatusCompleted, res.Status)
	assert.Equal(t, 0.8, res.Result["confidence"])
	assert.Equal(t, true, res.Result["conditionMet"])
}

func TestExecutor_FallbackRecovers(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	ex := New(Deps{Model: gen}, zerolog.Nop())

	gomock.InOrder(
		gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errDown),
		gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, prompt string, _ model.Options) (string, error) {
				assert.Contains(t, prompt, "Briefly complete this step")
				return "short answer", nil
			}),
	)

	res := ex.Execute(context.Background(), step(execution.KindDataAnalysis, nil))

	assert.Equal(t, execution.StepStatusCompleted, res.Status)
	assert.True(t, res.Recovered())
	assert.Contains(t, PrimaryError(res), "connection refused")
}

func TestExecutor_FailingPrimaryNeverInProgress(t *testing.T) {
	for _, kind := range execution.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			gen := mocks.NewMockGenerator(ctrl)
			gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errDown).AnyTimes()
			caller := &MockCaller{}
			caller.On("Call", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
			ex := New(Deps{Model: gen, Caller: caller}, zerolog.Nop())

			res := ex.Execute(context.Background(), step(kind, map[string]any{"endpoint": "http://example.invalid"}))

			assert.True(t, res.Terminal())
			assert.NotEqual(t, execution.StepStatusInProgress, res.Status)
			if res.Status == execution.StepStatusFailed {
				require.NotNil(t, res.Error)
				assert.NotEmpty(t, *res.Error)
			}
		})
	}
}

func TestExecutor_GenericDegrades(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	ex := New(Deps{Model: gen}, zerolog.Nop())

	gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errDown).Times(2)

	res := ex.Execute(context.Background(), step(execution.KindGeneric, nil))

	assert.Equal(t, execution.StepStatusCompleted, res.Status)
	assert.Equal(t, true, res.Result["degraded"])
	assert.True(t, res.Recovered())
}

func TestExecutor_APICall(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		caller := &MockCaller{}
		caller.On("Call", mock.Anything, integration.Request{
			Method: "POST", URL: "https://api.example.com/v1", Body: map[string]any{"x": 1.0},
		}).Return(&integration.Response{StatusCode: 201, Body: map[string]any{"id": "42"}}, nil)
		ex := New(Deps{Caller: caller, AllowedHosts: []string{"api.example.com"}}, zerolog.Nop())

		res := ex.Execute(context.Background(), step(execution.KindAPICall, map[string]any{
			"endpoint": "https://api.example.com/v1",
			"method":   "post",
			"data":     map[string]any{"x": 1.0},
		}))

		assert.Equal(t, execution.StepStatusCompleted, res.Status)
		assert.Equal(t, 201, res.Result["statusCode"])
		caller.AssertExpectations(t)
	})

	t.Run("retries once then fails", func(t *testing.T) {
		caller := &MockCaller{}
		caller.On("Call", mock.Anything, mock.Anything).
			Return(nil, &integration.StatusError{StatusCode: 502, URL: "u"}).Twice()
		ex := New(Deps{Caller: caller, AllowedHosts: []string{"*.example.com"}}, zerolog.Nop())

		res := ex.Execute(context.Background(), step(execution.KindAPICall, map[string]any{"url": "https://flaky.example.com/v1"}))

		assert.Equal(t, execution.StepStatusFailed, res.Status)
		assert.Nil(t, res.Result)
		caller.AssertNumberOfCalls(t, "Call", 2)
	})

	t.Run("host outside allowlist fails without calling", func(t *testing.T) {
		for _, endpoint := range []string{
			"http://169.254.169.254/latest/meta-data",
			"http://localhost:5432",
			"https://example.com.evil.net/x",
			"https://notexample.com/",
		} {
			caller := &MockCaller{}
			ex := New(Deps{Caller: caller, AllowedHosts: []string{"api.example.com", "*.example.com"}}, zerolog.Nop())

			res := ex.Execute(context.Background(), step(execution.KindAPICall, map[string]any{"endpoint": endpoint}))

			require.Equal(t, execution.StepStatusFailed, res.Status, endpoint)
			assert.Contains(t, *res.Error, "not allowed", endpoint)
			caller.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
		}
	})

	t.Run("empty allowlist rejects every host", func(t *testing.T) {
		caller := &MockCaller{}
		ex := New(Deps{Caller: caller}, zerolog.Nop())

		res := ex.Execute(context.Background(), step(execution.KindAPICall, map[string]any{"endpoint": "https://api.example.com/v1"}))

		require.Equal(t, execution.StepStatusFailed, res.Status)
		caller.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
	})

	t.Run("non http endpoint is rejected", func(t *testing.T) {
		caller := &MockCaller{}
		ex := New(Deps{Caller: caller, AllowedHosts: []string{"api.example.com"}}, zerolog.Nop())

		res := ex.Execute(context.Background(), step(execution.KindAPICall, map[string]any{"endpoint": "file:///etc/passwd"}))

		require.Equal(t, execution.StepStatusFailed, res.Status)
		assert.Contains(t, *res.Error, "http(s)")
		caller.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
	})

	t.Run("allowed host matches case and port insensitively", func(t *testing.T) {
		caller := &MockCaller{}
		caller.On("Call", mock.Anything, mock.Anything).Return(&integration.Response{StatusCode: 200}, nil).Once()
		ex := New(Deps{Caller: caller, AllowedHosts: []string{"API.example.com"}}, zerolog.Nop())

		res := ex.Execute(context.Background(), step(execution.KindAPICall, map[string]any{"endpoint": "https://api.EXAMPLE.com:8443/v1"}))

		assert.Equal(t, execution.StepStatusCompleted, res.Status)
		caller.AssertExpectations(t)
	})

	t.Run("missing endpoint fails without retry", func(t *testing.T) {
		caller := &MockCaller{}
		ex := New(Deps{Caller: caller}, zerolog.Nop())

		res := ex.Execute(context.Background(), step(execution.KindAPICall, map[string]any{}))

		assert.Equal(t, execution.StepStatusFailed, res.Status)
		caller.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
	})
}

func TestExecutor_Adapters(t *testing.T) {
	t.Run("unconfigured fails", func(t *testing.T) {
		ex := New(Deps{}, zerolog.Nop())

		res := ex.Execute(context.Background(), step(execution.KindCommunication, nil))

		require.Equal(t, execution.StepStatusFailed, res.Status)
		assert.Contains(t, *res.Error, "not configured")
	})

	t.Run("dispatches and retries once", func(t *testing.T) {
		adapter := &MockAdapter{}
		adapter.On("Dispatch", mock.Anything, "do the thing", mock.Anything).Return(nil, errors.New("timeout")).Once()
		adapter.On("Dispatch", mock.Anything, "do the thing", mock.Anything).Return(map[string]any{"taskId": "T-1"}, nil).Once()
		ex := New(Deps{Tasks: adapter}, zerolog.Nop())

		res := ex.Execute(context.Background(), step(execution.KindTaskCreation, map[string]any{"title": "x"}))

		assert.Equal(t, execution.StepStatusCompleted, res.Status)
		assert.Equal(t, "T-1", res.Result["taskId"])
		assert.True(t, res.Recovered())
		adapter.AssertExpectations(t)
	})
}

type panicGenerator struct{}

func (panicGenerator) Generate(context.Context, string, model.Options) (string, error) {
	panic("nil map write")
}

func TestExecutor_PanicBecomesFailure(t *testing.T) {
	ex := New(Deps{Model: panicGenerator{}}, zerolog.Nop())

	res := ex.Execute(context.Background(), step(execution.KindDecision, nil))

	require.Equal(t, execution.StepStatusFailed, res.Status)
	assert.Contains(t, *res.Error, "handler panic")
}

func TestEvaluateCondition(t *testing.T) {
	ctx := map[string]any{"score": 72.0, "risk": "high", "team": map[string]any{"size": 3.0}}

	tests := []struct {
		cond    string
		want    bool
		wantErr bool
	}{
		{"", true, false},
		{"false", false, false},
		{"score > 70", true, false},
		{"risk == 'low'", false, false},
		{"[team.size] < 5", true, false},
		{"score +", false, true},
		{"score + 1", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			got, err := EvaluateCondition(tt.cond, ctx)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
