package httpapi

import (
	"net/http"

	"github.com/Ntarekp/teamSynth/internal/application/chat"
	"github.com/Ntarekp/teamSynth/internal/application/insight"
)

type chatRequest struct {
	Message   string `json:"message"`
	Context   any    `json:"context"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

func (s *Server) chatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	reply, err := s.chat.Chat(r.Context(), chat.Request{
		Message:   req.Message,
		Context:   req.Context,
		UserID:    userFor(r.Context(), req.UserID),
		SessionID: req.SessionID,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

type meetingAnalyzeRequest struct {
	Transcript   string   `json:"transcript"`
	MeetingID    string   `json:"meetingId"`
	Participants []string `json:"participants"`
}

func (s *Server) analyzeMeeting(w http.ResponseWriter, r *http.Request) {
	var req meetingAnalyzeRequest
	if err := decodeBody(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	analysis, err := s.meetings.Analyze(r.Context(), insight.MeetingRequest{
		Transcript:   req.Transcript,
		MeetingID:    req.MeetingID,
		Participants: req.Participants,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, analysis)
}

type teamRecommendRequest struct {
	ProjectBrief string              `json:"projectBrief"`
	Requirements []string            `json:"requirements"`
	Constraints  insight.Constraints `json:"constraints"`
}

func (s *Server) recommendTeam(w http.ResponseWriter, r *http.Request) {
	var req teamRecommendRequest
	if err := decodeBody(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	rec, err := s.teams.Recommend(r.Context(), insight.TeamRequest{
		ProjectBrief: req.ProjectBrief,
		Requirements: req.Requirements,
		Constraints:  req.Constraints,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
