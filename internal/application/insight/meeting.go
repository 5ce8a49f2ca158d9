// Package insight serves the one-shot analysis endpoints: meeting transcripts
// and team formation.
package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/domain/knowledge"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/sanitize"
)

const neutralSentiment = "neutral"

var ErrEmptyTranscript = errors.New("transcript is required")

// Ingester writes text into the knowledge store.
type Ingester interface {
	Ingest(ctx context.Context, text string, meta knowledge.Metadata) (int, error)
}

// MeetingRequest is a transcript to analyse.
type MeetingRequest struct {
	Transcript   string
	MeetingID    string
	Participants []string
}

// MeetingAnalysis is the structured summary of a meeting. Items are kept as
// the model produced them (strings or objects).
type MeetingAnalysis struct {
	Decisions           []any  `json:"decisions"`
	ActionItems         []any  `json:"actionItems"`
	Sentiment           string `json:"sentiment"`
	KeyTopics           []any  `json:"keyTopics"`
	FollowUpSuggestions []any  `json:"followUpSuggestions"`
}

// NeutralAnalysis is returned when the model output cannot be parsed.
func NeutralAnalysis() MeetingAnalysis {
	return MeetingAnalysis{
		Decisions:           []any{},
		ActionItems:         []any{},
		Sentiment:           neutralSentiment,
		KeyTopics:           []any{},
		FollowUpSuggestions: []any{},
	}
}

func (a *MeetingAnalysis) normalize() {
	if a.Decisions == nil {
		a.Decisions = []any{}
	}
	if a.ActionItems == nil {
		a.ActionItems = []any{}
	}
	if a.KeyTopics == nil {
		a.KeyTopics = []any{}
	}
	if a.FollowUpSuggestions == nil {
		a.FollowUpSuggestions = []any{}
	}
	a.Sentiment = strings.ToLower(strings.TrimSpace(a.Sentiment))
	if a.Sentiment == "" {
		a.Sentiment = neutralSentiment
	}
}

// MeetingService analyses transcripts and files the result as knowledge.
type MeetingService struct {
	model    model.Generator
	ingester Ingester
	logger   zerolog.Logger
}

// NewMeetingService creates a meeting service. ingester may be nil.
func NewMeetingService(gen model.Generator, ingester Ingester, logger zerolog.Logger) *MeetingService {
	return &MeetingService{
		model:    gen,
		ingester: ingester,
		logger:   logger.With().Str("service", "meeting_insight").Logger(),
	}
}

// Analyze extracts decisions, action items, sentiment, topics and follow-ups.
// Unparseable model output yields NeutralAnalysis; a model failure is returned.
func (s *MeetingService) Analyze(ctx context.Context, req MeetingRequest) (*MeetingAnalysis, error) {
	transcript := sanitize.Markup(req.Transcript)
	if transcript == "" {
		return nil, ErrEmptyTranscript
	}
	meetingID := req.MeetingID
	if meetingID == "" {
		meetingID = "meeting_" + uuid.NewString()
	}
	log := s.logger.With().Str("meeting_id", meetingID).Logger()

	text, err := s.model.Generate(ctx, meetingPrompt(transcript, req.Participants), model.Options{Temperature: 0.3, MaxTokens: 1024})
	if err != nil {
		return nil, err
	}

	analysis := NeutralAnalysis()
	if err := model.DecodeJSON(text, &analysis); err != nil {
		log.Warn().Err(err).Msg("meeting analysis was not valid JSON, using neutral defaults")
		analysis = NeutralAnalysis()
	}
	analysis.normalize()

	s.ingest(ctx, meetingID, transcript, analysis, log)
	return &analysis, nil
}

func (s *MeetingService) ingest(ctx context.Context, meetingID, transcript string, analysis MeetingAnalysis, log zerolog.Logger) {
	if s.ingester == nil {
		return
	}
	summary, _ := json.Marshal(analysis)
	doc := fmt.Sprintf("Meeting %s analysis: %s\n\nTranscript:\n%s", meetingID, summary, transcript)
	n, err := s.ingester.Ingest(ctx, doc, knowledge.Metadata{SourceType: knowledge.SourceMeeting, SourceID: meetingID})
	if err != nil {
		log.Warn().Err(err).Msg("failed to store meeting knowledge")
		return
	}
	log.Debug().Int("chunks", n).Msg("meeting knowledge stored")
}

func meetingPrompt(transcript string, participants []string) string {
	names := "not listed"
	if len(participants) > 0 {
		names = strings.Join(participants, ", ")
	}
	return fmt.Sprintf(`Analyze this meeting transcript and extract:

1. Key decisions made
2. Action items with assignees
3. Overall sentiment
4. Main topics discussed
5. Follow-up suggestions

Transcript:
%s

Participants: %s

Respond with a JSON object with keys decisions, actionItems, sentiment, keyTopics, followUpSuggestions.`, transcript, names)
}
