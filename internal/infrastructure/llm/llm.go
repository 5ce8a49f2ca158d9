// Package llm constructs the langchaingo model, embedder and vector store
// backends from configuration.
package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/tmc/langchaingo/vectorstores/chroma"
)

const (
	ProviderOllama     = "ollama"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

var ErrNoChromaURL = errors.New("chroma url is not configured")

// Settings selects and configures a provider.
type Settings struct {
	Provider       string
	OllamaHost     string
	Model          string
	EmbeddingModel string
	APIKey         string
	BaseURL        string
}

func (s Settings) provider() string {
	p := strings.ToLower(strings.TrimSpace(s.Provider))
	if p == "" {
		return ProviderOllama
	}
	return p
}

// NewModel returns the chat/completion model for s.
func NewModel(s Settings) (llms.Model, error) {
	return newClient(s, s.Model)
}

// NewEmbedder returns an embedder backed by s.EmbeddingModel on the same provider.
func NewEmbedder(s Settings) (embeddings.Embedder, error) {
	client, err := newClient(s, s.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	embedClient, ok := client.(embeddings.EmbedderClient)
	if !ok {
		return nil, fmt.Errorf("provider %s cannot create embeddings", s.provider())
	}
	return embeddings.NewEmbedder(embedClient)
}

func newClient(s Settings, modelName string) (llms.Model, error) {
	switch p := s.provider(); p {
	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(modelName)}
		if s.OllamaHost != "" {
			opts = append(opts, ollama.WithServerURL(s.OllamaHost))
		}
		return ollama.New(opts...)
	case ProviderOpenAI, ProviderOpenRouter:
		opts := []openai.Option{
			openai.WithToken(s.APIKey),
			openai.WithModel(modelName),
			openai.WithEmbeddingModel(modelName),
		}
		if s.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(s.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("provider %s is not supported", p)
	}
}

// NewVectorStore opens (creating if needed) the Chroma collection.
func NewVectorStore(chromaURL, collection string, embedder embeddings.Embedder) (vectorstores.VectorStore, error) {
	if chromaURL == "" {
		return nil, ErrNoChromaURL
	}
	store, err := chroma.New(
		chroma.WithChromaURL(chromaURL),
		chroma.WithEmbedder(embedder),
		chroma.WithNameSpace(collection),
	)
	if err != nil {
		return nil, fmt.Errorf("connect chroma at %s: %w", chromaURL, err)
	}
	return &store, nil
}
