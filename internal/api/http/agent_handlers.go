package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Ntarekp/teamSynth/internal/application/agents"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/sse"
)

type agentExecuteRequest struct {
	Task       string         `json:"task"`
	Context    map[string]any `json:"context"`
	Parameters map[string]any `json:"parameters"`
	UserID     string         `json:"userId"`
}

type agentExecuteResponse struct {
	Success         bool                   `json:"success"`
	AgentType       string                 `json:"agentType"`
	ExecutionID     string                 `json:"executionId"`
	Result          map[string]any         `json:"result"`
	Steps           []execution.StepResult `json:"steps"`
	Recommendations []string               `json:"recommendations"`
	NextActions     []execution.NextAction `json:"nextActions"`
	Trace           []execution.TraceEvent `json:"trace"`
}

func (s *Server) executeAgent(w http.ResponseWriter, r *http.Request) {
	agentType := chi.URLParam(r, "agentType")
	var req agentExecuteRequest
	if err := decodeBody(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	rec, err := s.agents.Run(r.Context(), agentType, agents.Request{
		Task:       strings.TrimSpace(req.Task),
		Context:    req.Context,
		Parameters: req.Parameters,
		User:       userFor(r.Context(), req.UserID),
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	recs := rec.Recommendations
	if recs == nil {
		recs = []string{}
	}
	next := rec.NextActions
	if next == nil {
		next = []execution.NextAction{}
	}
	respondJSON(w, http.StatusOK, agentExecuteResponse{
		Success:         rec.Success,
		AgentType:       agentType,
		ExecutionID:     rec.ExecutionID,
		Result:          rec.FinalOutput,
		Steps:           rec.StepResults,
		Recommendations: recs,
		NextActions:     next,
		Trace:           rec.Trace,
	})
}

type agentStatusEntry struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Capabilities  []string   `json:"capabilities"`
	Status        string     `json:"status"`
	LastExecution *time.Time `json:"lastExecution"`
}

func (s *Server) agentStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.directory.Statuses()
	out := make(map[string]agentStatusEntry, len(statuses))
	for _, st := range statuses {
		out[st.ID] = agentStatusEntry{
			Name:          st.Name,
			Description:   st.Description,
			Capabilities:  st.Capabilities,
			Status:        st.Status,
			LastExecution: st.LastExecution,
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"agents":       out,
		"totalAgents":  len(statuses),
		"systemStatus": "operational",
	})
}

type taskExecuteRequest struct {
	Task       string         `json:"task"`
	Parameters map[string]any `json:"parameters"`
	UserID     string         `json:"userId"`
}

func (s *Server) executeTask(w http.ResponseWriter, r *http.Request) {
	var req taskExecuteRequest
	if err := decodeBody(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	task := strings.TrimSpace(req.Task)
	if task == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "task is required")
		return
	}
	params := req.Parameters
	if params == nil {
		params = map[string]any{}
	}
	if user := userFor(r.Context(), req.UserID); user != "" {
		params["userId"] = user
	}
	rec := s.orchestrator.Run(r.Context(), execution.Task{Description: task, Parameters: params})
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     rec.Success,
		"result":      rec,
		"executionId": rec.ExecutionID,
		"steps":       rec.StepResults,
		"timestamp":   time.Now().UTC(),
	})
}

func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	rec, err := s.orchestrator.Get(r.Context(), chi.URLParam(r, "executionId"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) streamExecutions(w http.ResponseWriter, r *http.Request) {
	if s.sseHub == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "trace streaming is disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}
	client := sse.NewClient(uuid.NewString(), r.URL.Query().Get("executionId"))
	s.sseHub.Register(client)
	defer s.sseHub.Unregister(client.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	// initial comment flushes headers
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case ev, open := <-client.Events:
			if !open {
				return
			}
			payload, _ := json.Marshal(ev)
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
