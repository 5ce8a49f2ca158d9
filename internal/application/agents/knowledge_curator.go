package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
)

const curatorTopK = 5

var errNoKnowledge = errors.New("no knowledge store configured")

type knowledgeCurator struct {
	desc      Descriptor
	model     model.Generator
	knowledge Retriever
}

func (a *knowledgeCurator) Descriptor() Descriptor { return a.desc }

func (a *knowledgeCurator) Stages() []Stage {
	return []Stage{
		{
			Name:   "retrieve-knowledge",
			Action: "Retrieving team knowledge",
			Kind:   execution.KindDataAnalysis,
			Run:    a.retrieve,
			Fallback: func(_ *State, cause error) map[string]any {
				return map[string]any{"chunks": []map[string]any{}, "count": 0, "reason": cause.Error()}
			},
		},
		{
			Name:   "organize-content",
			Action: "Organizing content",
			Run:    a.organize,
			Fallback: func(st *State, _ error) map[string]any {
				return organized(st, "")
			},
		},
		{
			Name:     "identify-gaps",
			Action:   "Identifying knowledge gaps",
			Run:      a.identifyGaps,
			Fallback: func(st *State, _ error) map[string]any { return gaps(st, "") },
		},
		{
			Name:   "recommend-learning",
			Action: "Recommending learning",
			Run:    a.recommendLearning,
			Fallback: func(st *State, _ error) map[string]any {
				return map[string]any{"recommendations": baselineLearning(st)}
			},
		},
	}
}

func (a *knowledgeCurator) retrieve(ctx context.Context, st *State) (map[string]any, error) {
	if a.knowledge == nil {
		return nil, errNoKnowledge
	}
	query := str(st.Request.Context, "topic", st.Request.Task)
	found, err := a.knowledge.Search(ctx, query, curatorTopK)
	if err != nil {
		return nil, err
	}
	chunks := make([]map[string]any, 0, len(found))
	for _, c := range found {
		chunks = append(chunks, map[string]any{
			"text":       c.Text,
			"sourceType": c.Metadata.SourceType,
			"sourceId":   c.Metadata.SourceID,
			"score":      c.Score,
		})
	}
	return map[string]any{"chunks": chunks, "count": len(chunks), "query": query}, nil
}

func organized(st *State, themes string) map[string]any {
	bySource := map[string]int{}
	for _, c := range maps(st.Output("retrieve-knowledge"), "chunks") {
		bySource[str(c, "sourceType", "unknown")]++
	}
	sources := make([]string, 0, len(bySource))
	for s := range bySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return map[string]any{
		"bySource": bySource,
		"sources":  sources,
		"themes":   themes,
	}
}

func (a *knowledgeCurator) organize(ctx context.Context, st *State) (map[string]any, error) {
	chunks := maps(st.Output("retrieve-knowledge"), "chunks")
	if len(chunks) == 0 {
		return organized(st, ""), nil
	}
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, str(c, "text", ""))
	}
	prompt := fmt.Sprintf(`Group these knowledge excerpts into a few themes and name each theme.

Excerpts: %s`, toJSON(texts))

	text, err := ask(ctx, a.model, prompt, 0.3)
	if err != nil {
		return nil, err
	}
	return organized(st, text), nil
}

func gaps(st *State, analysis string) map[string]any {
	count := int(num(st.Output("retrieve-knowledge"), "count", 0))
	list := []string{}
	if count == 0 {
		list = append(list, fmt.Sprintf("No stored knowledge covers: %s", st.Request.Task))
	}
	return map[string]any{
		"gaps":     list,
		"coverage": float64(count) / curatorTopK,
		"analysis": analysis,
	}
}

func (a *knowledgeCurator) identifyGaps(ctx context.Context, st *State) (map[string]any, error) {
	prompt := fmt.Sprintf(`A team wants to know about: %s
Their knowledge base has these themes: %s

What important knowledge is missing? Answer briefly.`, st.Request.Task, toJSON(st.Output("organize-content")["themes"]))

	text, err := ask(ctx, a.model, prompt, 0.3)
	if err != nil {
		return nil, err
	}
	return gaps(st, text), nil
}

func baselineLearning(st *State) []string {
	recs := []string{"Capture meeting decisions in the knowledge base"}
	if len(strs(st.Output("identify-gaps"), "gaps")) > 0 {
		recs = append(recs, "Write a short guide on "+st.Request.Task)
	}
	return recs
}

func (a *knowledgeCurator) recommendLearning(ctx context.Context, st *State) (map[string]any, error) {
	prompt := fmt.Sprintf(`Suggest learning resources or sessions to close these knowledge gaps.

Gaps: %s`, toJSON(st.Output("identify-gaps")))

	text, err := ask(ctx, a.model, prompt, 0.5)
	if err != nil {
		return nil, err
	}
	return map[string]any{"recommendations": baselineLearning(st), "suggestions": text}, nil
}

func (a *knowledgeCurator) Finalize(st *State) Final {
	org := st.Output("organize-content")
	gapOut := st.Output("identify-gaps")
	learning := st.Output("recommend-learning")

	recs := strs(learning, "recommendations")
	if recs == nil {
		recs = baselineLearning(st)
	}
	next := []execution.NextAction{}
	if len(strs(gapOut, "gaps")) > 0 {
		next = append(next, execution.NextAction{Action: "document_missing_knowledge", Priority: "medium"})
	}
	return Final{
		Output: map[string]any{
			"sources":     org["bySource"],
			"themes":      org["themes"],
			"gaps":        gapOut["gaps"],
			"coverage":    gapOut["coverage"],
			"suggestions": learning["suggestions"],
		},
		Recommendations: recs,
		NextActions:     next,
	}
}
