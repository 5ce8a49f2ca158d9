// Package knowledge retrieves and ingests reference text for prompt augmentation.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/Ntarekp/teamSynth/internal/domain/knowledge"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/sanitize"
)

const (
	DefaultTopK  = 5
	chunkSize    = 1000
	chunkOverlap = 200
)

var ErrEmptyContent = errors.New("nothing to ingest")

// Store is the KnowledgeStore client backed by a langchaingo vector store.
type Store struct {
	vs       vectorstores.VectorStore
	splitter textsplitter.TextSplitter
	topK     int
	logger   zerolog.Logger
	now      func() time.Time
}

// NewStore wraps vs. topK <= 0 uses DefaultTopK.
func NewStore(vs vectorstores.VectorStore, topK int, logger zerolog.Logger) *Store {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Store{
		vs: vs,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		topK:   topK,
		logger: logger.With().Str("service", "knowledge").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// TopK returns the default number of chunks retrieved per query.
func (s *Store) TopK() int {
	return s.topK
}

// Search returns the k chunks most similar to query, best first.
func (s *Store) Search(ctx context.Context, query string, k int) ([]knowledge.Chunk, error) {
	if k <= 0 {
		k = s.topK
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	docs, err := s.vs.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	chunks := make([]knowledge.Chunk, 0, len(docs))
	for _, d := range docs {
		chunks = append(chunks, knowledge.Chunk{
			Text:     d.PageContent,
			Metadata: metadataFrom(d.Metadata),
			Score:    d.Score,
		})
	}
	return chunks, nil
}

// Ingest strips markup from HTML input, splits the text into overlapping
// chunks and stores them under meta. It returns the number of chunks written.
func (s *Store) Ingest(ctx context.Context, text string, meta knowledge.Metadata) (int, error) {
	clean := sanitize.Markup(text)
	if clean == "" {
		return 0, ErrEmptyContent
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = s.now()
	}
	parts, err := s.splitter.SplitText(clean)
	if err != nil {
		return 0, fmt.Errorf("split text: %w", err)
	}

	base := DocumentID(meta)
	docs := make([]schema.Document, 0, len(parts))
	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		docs = append(docs, schema.Document{
			PageContent: p,
			Metadata: map[string]any{
				"sourceType": meta.SourceType,
				"sourceId":   meta.SourceID,
				"timestamp":  meta.Timestamp.Format(time.RFC3339),
				"chunkId":    fmt.Sprintf("%s_%d", base, i),
			},
		})
	}
	if len(docs) == 0 {
		return 0, ErrEmptyContent
	}
	if _, err := s.vs.AddDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("add documents: %w", err)
	}
	s.logger.Info().
		Str("source_type", meta.SourceType).
		Str("source_id", meta.SourceID).
		Int("chunks", len(docs)).
		Msg("knowledge ingested")
	return len(docs), nil
}

// DocumentID is the stable prefix of every chunk id for a source: <type>_<id>_<unix millis>.
func DocumentID(meta knowledge.Metadata) string {
	return fmt.Sprintf("%s_%s_%d", meta.SourceType, meta.SourceID, meta.Timestamp.UnixMilli())
}

func metadataFrom(m map[string]any) knowledge.Metadata {
	var meta knowledge.Metadata
	if m == nil {
		return meta
	}
	meta.SourceType, _ = m["sourceType"].(string)
	meta.SourceID, _ = m["sourceId"].(string)
	if ts, ok := m["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			meta.Timestamp = t
		}
	}
	return meta
}
