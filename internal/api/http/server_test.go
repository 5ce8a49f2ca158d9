package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Ntarekp/teamSynth/internal/application/agents"
	"github.com/Ntarekp/teamSynth/internal/application/chat"
	"github.com/Ntarekp/teamSynth/internal/application/executor"
	"github.com/Ntarekp/teamSynth/internal/application/insight"
	"github.com/Ntarekp/teamSynth/internal/application/memory"
	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/application/model/mocks"
	"github.com/Ntarekp/teamSynth/internal/application/orchestrator"
	"github.com/Ntarekp/teamSynth/internal/application/planner"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/sqlite"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/sse"
)

func newTestServer(t *testing.T, gen model.Generator, tokenHash string) (*Server, *sse.Hub) {
	t.Helper()
	nop := zerolog.Nop()
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "executions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	hub := sse.NewHub()
	exec := executor.New(executor.Deps{Model: gen}, nop)
	reg, err := agents.DefaultRegistry(agents.Deps{Model: gen, Executor: exec})
	require.NoError(t, err)
	mem := memory.NewService(memory.NewInProcessStore(), 10, nop)

	srv := NewServer(Deps{
		Agents:       agents.NewRunner(reg, repo, hub, nop),
		Directory:    reg,
		Orchestrator: orchestrator.NewOrchestrator(planner.New(gen, nop), exec, repo, hub, nop),
		Chat:         chat.NewService(gen, "llama3.1:8b", nil, mem, 5, nop),
		Meetings:     insight.NewMeetingService(gen, nil, nop),
		Teams:        insight.NewTeamService(gen, nop),
		Hub:          hub,
		TokenHash:    tokenHash,
	}, nop)
	return srv, hub
}

func replying(t *testing.T, text string) *mocks.MockGenerator {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).Return(text, nil).AnyTimes()
	return gen
}

func unavailable(t *testing.T) *mocks.MockGenerator {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", model.NewUnavailableError("llama3.1:8b", errors.New("connection refused"))).AnyTimes()
	return gen
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestExecuteAgent_UnknownAgent(t *testing.T) {
	srv, _ := newTestServer(t, replying(t, "ok"), "")

	rr := doJSON(t, srv.Router(), http.MethodPost, "/api/agents/execute/unknown-agent-xyz", map[string]any{"task": "x"}, "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "AGENT_NOT_FOUND", decode(t, rr)["error"])
}

func TestExecuteAgent_MeetingOptimizer(t *testing.T) {
	srv, _ := newTestServer(t, replying(t, "Keep it to 30 minutes."), "")
	router := srv.Router()

	rr := doJSON(t, router, http.MethodPost, "/api/agents/execute/meeting-optimizer", map[string]any{
		"task":    "optimize our team meeting",
		"context": map[string]any{"attendees": []string{"ana", "ben"}},
	}, "")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "meeting-optimizer", body["agentType"])
	assert.NotEmpty(t, body["executionId"])
	steps := body["steps"].([]any)
	require.Len(t, steps, 4)
	for _, s := range steps {
		assert.NotNil(t, s.(map[string]any)["result"])
	}
	completed := 0
	for _, ev := range body["trace"].([]any) {
		if ev.(map[string]any)["type"] == "STEP_COMPLETED" {
			completed++
		}
	}
	assert.Equal(t, 4, completed)

	replay := doJSON(t, router, http.MethodGet, "/api/executions/"+body["executionId"].(string), nil, "")
	require.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "meeting-optimizer", decode(t, replay)["agentType"])
}

func TestAgentStatus(t *testing.T) {
	srv, _ := newTestServer(t, replying(t, "ok"), "")
	router := srv.Router()

	before := decode(t, doJSON(t, router, http.MethodGet, "/api/agents/status", nil, ""))
	assert.EqualValues(t, 5, before["totalAgents"])
	assert.Equal(t, "operational", before["systemStatus"])
	wellness := before["agents"].(map[string]any)["team-wellness"].(map[string]any)
	assert.Nil(t, wellness["lastExecution"])
	assert.Equal(t, "active", wellness["status"])

	doJSON(t, router, http.MethodPost, "/api/agents/execute/team-wellness", map[string]any{"task": "check in"}, "")

	after := decode(t, doJSON(t, router, http.MethodGet, "/api/agents/status", nil, ""))
	wellness = after["agents"].(map[string]any)["team-wellness"].(map[string]any)
	assert.NotNil(t, wellness["lastExecution"])
}

func TestChat_ModelUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, unavailable(t), "")

	rr := doJSON(t, srv.Router(), http.MethodPost, "/api/ai/chat", map[string]any{"message": "hello"}, "")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "MODEL_UNAVAILABLE", decode(t, rr)["error"])
}

func TestChat_Replies(t *testing.T) {
	srv, _ := newTestServer(t, replying(t, "Take a break."), "")

	rr := doJSON(t, srv.Router(), http.MethodPost, "/api/ai/chat", map[string]any{
		"message": "I'm tired", "sessionId": "s-1", "context": map[string]any{"team": "billing"},
	}, "")

	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "Take a break.", body["response"])
	assert.Equal(t, "s-1", body["sessionId"])
	assert.Equal(t, "llama3.1:8b", body["model"])
}

func TestChat_RejectsEmptyAndUnknownFields(t *testing.T) {
	srv, _ := newTestServer(t, replying(t, "x"), "")
	router := srv.Router()

	rr := doJSON(t, router, http.MethodPost, "/api/ai/chat", map[string]any{"message": "  "}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/ai/chat", map[string]any{"message": "hi", "mood": "happy"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_PARAM", decode(t, rr)["error"])
}

func TestBodyLimit(t *testing.T) {
	srv, _ := newTestServer(t, replying(t, "ok"), "")
	assert.Equal(t, int64(10<<20), srv.maxBodyBytes)

	srv.maxBodyBytes = 64
	router := srv.Router()

	rr := doJSON(t, router, http.MethodPost, "/api/ai/chat", map[string]any{"message": strings.Repeat("a", 200)}, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decode(t, rr)["error"])

	rr = doJSON(t, router, http.MethodPost, "/api/ai/chat", map[string]any{"message": "hi"}, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestExecuteTask_GenericPath(t *testing.T) {
	srv, _ := newTestServer(t, replying(t, "not a plan"), "")
	router := srv.Router()

	rr := doJSON(t, router, http.MethodPost, "/api/ai/agent/execute", map[string]any{
		"task": "summarize this week's blockers", "userId": "u-7",
	}, "")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, true, body["success"])
	require.Len(t, body["steps"].([]any), 1)
	id := body["executionId"].(string)
	assert.True(t, strings.HasPrefix(id, "exec_"))

	replay := doJSON(t, router, http.MethodGet, "/api/executions/"+id, nil, "")
	require.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, id, decode(t, replay)["executionId"])

	missing := doJSON(t, router, http.MethodGet, "/api/executions/exec_missing", nil, "")
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, missing)["error"])
}

func TestExecuteTask_RequiresTask(t *testing.T) {
	srv, _ := newTestServer(t, replying(t, "x"), "")

	rr := doJSON(t, srv.Router(), http.MethodPost, "/api/ai/agent/execute", map[string]any{"task": " "}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAnalyzeMeeting_NeutralDefaults(t *testing.T) {
	srv, _ := newTestServer(t, replying(t, "it was a good meeting"), "")

	rr := doJSON(t, srv.Router(), http.MethodPost, "/api/ai/meeting/analyze", map[string]any{
		"transcript": "Ana: ship it. Ben: agreed.", "meetingId": "m-9",
	}, "")

	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "neutral", body["sentiment"])
	assert.Equal(t, []any{}, body["decisions"])
	assert.Equal(t, []any{}, body["actionItems"])
}

func TestAnalyzeMeeting_ModelUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, unavailable(t), "")

	rr := doJSON(t, srv.Router(), http.MethodPost, "/api/ai/meeting/analyze", map[string]any{"transcript": "hi"}, "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRecommendTeam(t *testing.T) {
	srv, _ := newTestServer(t, replying(t, `{"summary":"api work","requiredSkills":["go"]}`), "")

	rr := doJSON(t, srv.Router(), http.MethodPost, "/api/ai/team/recommend", map[string]any{
		"projectBrief": "Build the billing API",
		"requirements": []string{"postgres"},
		"constraints": map[string]any{
			"teamSize": 2,
			"candidates": []map[string]any{
				{"id": "a", "name": "Ana", "skills": []string{"go", "postgres"}, "department": "eng"},
				{"id": "b", "name": "Ben", "skills": []string{"design"}, "department": "product"},
			},
		},
	}, "")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.EqualValues(t, 1, body["skillsCoverage"])
	recs := body["recommendations"].([]any)
	require.NotEmpty(t, recs)
	assert.Equal(t, "a", recs[0].(map[string]any)["id"])
	assert.Contains(t, body, "diversityScore")
	assert.Contains(t, body, "estimatedSuccess")
	assert.Equal(t, "api work", body["analysis"].(map[string]any)["summary"])
}

func TestRequireAuth(t *testing.T) {
	hash, err := HashToken("s3cret")
	require.NoError(t, err)
	srv, _ := newTestServer(t, replying(t, "ok"), hash)
	router := srv.Router()

	rr := doJSON(t, router, http.MethodGet, "/api/agents/status", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/agents/status", nil, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/agents/status", nil, "s3cret")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, replying(t, "ok"), "")
	router := srv.Router()

	health := doJSON(t, router, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, health.Code)
	assert.Equal(t, "OK", decode(t, health)["status"])

	rr := doJSON(t, router, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "teamsynth_http_requests_total")
}

func TestStreamExecutions(t *testing.T) {
	srv, _ := newTestServer(t, replying(t, "not a plan"), "")
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/executions/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	run, err := http.Post(ts.URL+"/api/ai/agent/execute", "application/json", strings.NewReader(`{"task":"write the weekly update"}`))
	require.NoError(t, err)
	_ = run.Body.Close()

	var events []string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: ") {
			typ := strings.TrimSpace(strings.TrimPrefix(line, "event: "))
			events = append(events, typ)
			if typ == "COMPLETED" {
				break
			}
		}
	}
	assert.Equal(t, []string{"PLANNING", "PLAN_CREATED", "STEP_COMPLETED", "COMPLETED"}, events)
}
