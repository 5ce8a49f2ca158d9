package insight

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/sanitize"
)

const defaultTeamSize = 5

var ErrEmptyBrief = errors.New("project brief is required")

// Candidate is a person who can be staffed onto a team.
type Candidate struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Skills       []string `json:"skills"`
	Department   string   `json:"department,omitempty"`
	Location     string   `json:"location,omitempty"`
	Seniority    string   `json:"seniority,omitempty"`
	Availability *float64 `json:"availability,omitempty"`
}

func (c Candidate) availability() float64 {
	if c.Availability == nil {
		return 1
	}
	return math.Max(0, math.Min(1, *c.Availability))
}

// Constraints bound the recommendation.
type Constraints struct {
	TeamSize   int         `json:"teamSize"`
	Candidates []Candidate `json:"candidates"`
}

// TeamRequest asks for a team for a project.
type TeamRequest struct {
	ProjectBrief string
	Requirements []string
	Constraints  Constraints
}

// RequirementsAnalysis is the model's reading of the brief.
type RequirementsAnalysis struct {
	Summary        string   `json:"summary"`
	RequiredSkills []string `json:"requiredSkills"`
}

// Member is a selected candidate and the required skills they bring.
type Member struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	MatchedSkills []string `json:"matchedSkills"`
}

// TeamRecommendation is the outcome of a recommendation.
type TeamRecommendation struct {
	Analysis         RequirementsAnalysis `json:"analysis"`
	Members          []Member             `json:"recommendations"`
	MissingSkills    []string             `json:"missingSkills"`
	DiversityScore   float64              `json:"diversityScore"`
	SkillsCoverage   float64              `json:"skillsCoverage"`
	EstimatedSuccess float64              `json:"estimatedSuccess"`
}

// TeamService recommends teams.
type TeamService struct {
	model  model.Generator
	logger zerolog.Logger
}

func NewTeamService(gen model.Generator, logger zerolog.Logger) *TeamService {
	return &TeamService{model: gen, logger: logger.With().Str("service", "team_insight").Logger()}
}

// Recommend analyses the brief with the model, then picks members greedily by
// uncovered-skill gain. A model failure is returned; unparseable model output
// falls back to the explicit requirements.
func (s *TeamService) Recommend(ctx context.Context, req TeamRequest) (*TeamRecommendation, error) {
	brief := sanitize.Text(req.ProjectBrief)
	if brief == "" {
		return nil, ErrEmptyBrief
	}

	text, err := s.model.Generate(ctx, teamPrompt(brief, req.Requirements), model.Options{Temperature: 0.3, MaxTokens: 800})
	if err != nil {
		return nil, err
	}
	var analysis RequirementsAnalysis
	if err := model.DecodeJSON(text, &analysis); err != nil {
		s.logger.Warn().Err(err).Msg("requirements analysis was not valid JSON")
		analysis = RequirementsAnalysis{Summary: strings.TrimSpace(text)}
	}
	analysis.RequiredSkills = normalizeSkills(append(append([]string{}, req.Requirements...), analysis.RequiredSkills...))

	rec := SelectTeam(analysis.RequiredSkills, req.Constraints)
	rec.Analysis = analysis

	s.logger.Info().
		Int("members", len(rec.Members)).
		Float64("coverage", rec.SkillsCoverage).
		Msg("team recommended")
	return rec, nil
}

// SelectTeam picks up to TeamSize candidates. Each round takes the candidate
// covering the most still-uncovered skills; ties go to whoever adds a new
// department, location or seniority, then to higher availability, then to
// input order.
func SelectTeam(required []string, c Constraints) *TeamRecommendation {
	size := c.TeamSize
	if size <= 0 {
		size = defaultTeamSize
	}
	required = normalizeSkills(required)
	uncovered := make(map[string]bool, len(required))
	for _, sk := range required {
		uncovered[sk] = true
	}

	remaining := append([]Candidate(nil), c.Candidates...)
	var team []Candidate
	seen := map[string]map[string]bool{"department": {}, "location": {}, "seniority": {}}

	for len(team) < size && len(remaining) > 0 {
		best, bestGain, bestNovelty, bestAvail := -1, -1, -1, -1.0
		for i, cand := range remaining {
			gain := len(matched(cand, uncovered))
			novelty := noveltyOf(cand, seen)
			avail := cand.availability()
			if gain > bestGain ||
				(gain == bestGain && novelty > bestNovelty) ||
				(gain == bestGain && novelty == bestNovelty && avail > bestAvail) {
				best, bestGain, bestNovelty, bestAvail = i, gain, novelty, avail
			}
		}
		pick := remaining[best]
		team = append(team, pick)
		remaining = append(remaining[:best], remaining[best+1:]...)
		for _, sk := range matched(pick, uncovered) {
			delete(uncovered, sk)
		}
		markSeen(pick, seen)
	}

	rec := &TeamRecommendation{
		Members:       make([]Member, 0, len(team)),
		MissingSkills: make([]string, 0, len(uncovered)),
	}
	requiredSet := make(map[string]bool, len(required))
	for _, sk := range required {
		requiredSet[sk] = true
	}
	var availSum float64
	for _, m := range team {
		rec.Members = append(rec.Members, Member{ID: m.ID, Name: m.Name, MatchedSkills: matched(m, requiredSet)})
		availSum += m.availability()
	}
	for _, sk := range required {
		if uncovered[sk] {
			rec.MissingSkills = append(rec.MissingSkills, sk)
		}
	}

	rec.SkillsCoverage = 1
	if len(required) > 0 {
		rec.SkillsCoverage = round2(float64(len(required)-len(uncovered)) / float64(len(required)))
	}
	rec.DiversityScore = round2(Diversity(team))
	if len(team) > 0 {
		avgAvail := availSum / float64(len(team))
		rec.EstimatedSuccess = round2(0.5*rec.SkillsCoverage + 0.3*rec.DiversityScore + 0.2*avgAvail)
	}
	return rec
}

// Diversity is the mean, over department, location and seniority, of the
// share of distinct values among members that set the attribute. Attributes
// no member sets are ignored; a team of one scores 0.
func Diversity(team []Candidate) float64 {
	if len(team) < 2 {
		return 0
	}
	attrs := []func(Candidate) string{
		func(c Candidate) string { return c.Department },
		func(c Candidate) string { return c.Location },
		func(c Candidate) string { return c.Seniority },
	}
	var total float64
	var counted int
	for _, get := range attrs {
		distinct := map[string]bool{}
		var set int
		for _, m := range team {
			if v := strings.ToLower(strings.TrimSpace(get(m))); v != "" {
				distinct[v] = true
				set++
			}
		}
		if set < 2 {
			continue
		}
		total += float64(len(distinct)-1) / float64(set-1)
		counted++
	}
	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}

func matched(c Candidate, want map[string]bool) []string {
	out := []string{}
	dup := map[string]bool{}
	for _, sk := range c.Skills {
		n := normalizeSkill(sk)
		if want[n] && !dup[n] {
			out = append(out, n)
			dup[n] = true
		}
	}
	sort.Strings(out)
	return out
}

func noveltyOf(c Candidate, seen map[string]map[string]bool) int {
	n := 0
	for attr, v := range attrValues(c) {
		if v != "" && !seen[attr][v] {
			n++
		}
	}
	return n
}

func markSeen(c Candidate, seen map[string]map[string]bool) {
	for attr, v := range attrValues(c) {
		if v != "" {
			seen[attr][v] = true
		}
	}
}

func attrValues(c Candidate) map[string]string {
	return map[string]string{
		"department": strings.ToLower(strings.TrimSpace(c.Department)),
		"location":   strings.ToLower(strings.TrimSpace(c.Location)),
		"seniority":  strings.ToLower(strings.TrimSpace(c.Seniority)),
	}
}

func normalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeSkills(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		n := normalizeSkill(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func teamPrompt(brief string, requirements []string) string {
	reqs := "none given"
	if len(requirements) > 0 {
		reqs = strings.Join(requirements, ", ")
	}
	return fmt.Sprintf(`Analyze these project requirements and identify the skills the team needs.

Project brief:
%s

Stated requirements: %s

Respond with a JSON object: {"summary": "one paragraph", "requiredSkills": ["skill", ...]}`, brief, reqs)
}
