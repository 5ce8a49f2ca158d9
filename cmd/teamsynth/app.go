package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	httpapi "github.com/Ntarekp/teamSynth/internal/api/http"
	"github.com/Ntarekp/teamSynth/internal/application/agents"
	"github.com/Ntarekp/teamSynth/internal/application/chat"
	"github.com/Ntarekp/teamSynth/internal/application/executor"
	"github.com/Ntarekp/teamSynth/internal/application/insight"
	"github.com/Ntarekp/teamSynth/internal/application/knowledge"
	"github.com/Ntarekp/teamSynth/internal/application/memory"
	"github.com/Ntarekp/teamSynth/internal/application/model"
	"github.com/Ntarekp/teamSynth/internal/application/orchestrator"
	"github.com/Ntarekp/teamSynth/internal/application/planner"
	"github.com/Ntarekp/teamSynth/internal/config"
	"github.com/Ntarekp/teamSynth/internal/domain/conversation"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/integrations"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/llm"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/postgres"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/redis"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/sqlite"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/sse"
	"github.com/Ntarekp/teamSynth/internal/migrations"
)

// app is the wired service graph shared by every command.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	gateway      *model.Gateway
	knowledge    *knowledge.Store
	memory       *memory.Service
	repo         execution.Repository
	hub          *sse.Hub
	registry     *agents.Registry
	runner       *agents.Runner
	orchestrator *orchestrator.Orchestrator
	chat         *chat.Service
	meetings     *insight.MeetingService
	teams        *insight.TeamService

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, hub: sse.NewHub()}

	settings := llm.Settings{
		Provider:       cfg.ModelProvider,
		OllamaHost:     cfg.OllamaHost,
		Model:          cfg.ModelName,
		EmbeddingModel: cfg.EmbeddingModel,
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
	}
	lm, err := llm.NewModel(settings)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	a.gateway = model.NewGateway(lm, cfg.ModelName, cfg.ModelTimeout, logger)

	a.knowledge = a.openKnowledge(settings)

	store, err := a.openConversationStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.memory = memory.NewService(store, cfg.MemoryWindow, logger)

	if a.repo, err = a.openRepository(ctx); err != nil {
		a.Close()
		return nil, err
	}

	caller := integrations.NewHTTPCaller(cfg.IntegrationTimeout, logger)
	exec := executor.New(executor.Deps{
		Model:         a.gateway,
		Caller:        caller,
		Communication: integrations.NewAdapter("communication", cfg.CommunicationWebhookURL, caller),
		Calendar:      integrations.NewAdapter("calendar", cfg.CalendarWebhookURL, caller),
		Tasks:         integrations.NewAdapter("tasks", cfg.TasksWebhookURL, caller),
		AllowedHosts:  cfg.APICallAllowedHosts,
	}, logger)
	if len(cfg.APICallAllowedHosts) == 0 {
		logger.Info().Msg("API_CALL_ALLOWED_HOSTS is empty, api_call steps are disabled")
	}

	// nil stores must stay untyped nil behind the interfaces
	var retriever chat.Retriever
	var agentKnowledge agents.Retriever
	var ingester insight.Ingester
	if a.knowledge != nil {
		retriever, agentKnowledge, ingester = a.knowledge, a.knowledge, a.knowledge
	}

	a.registry, err = agents.DefaultRegistry(agents.Deps{Model: a.gateway, Executor: exec, Knowledge: agentKnowledge})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.runner = agents.NewRunner(a.registry, a.repo, a.hub, logger)
	a.orchestrator = orchestrator.NewOrchestrator(planner.New(a.gateway, logger), exec, a.repo, a.hub, logger)
	a.chat = chat.NewService(a.gateway, a.gateway.ModelName(), retriever, a.memory, cfg.KnowledgeTopK, logger)
	a.meetings = insight.NewMeetingService(a.gateway, ingester, logger)
	a.teams = insight.NewTeamService(a.gateway, logger)
	return a, nil
}

// openKnowledge connects the vector store. Knowledge is optional: failures
// leave retrieval disabled.
func (a *app) openKnowledge(settings llm.Settings) *knowledge.Store {
	if a.cfg.ChromaURL == "" {
		a.logger.Warn().Msg("CHROMA_URL is empty, knowledge retrieval disabled")
		return nil
	}
	embedder, err := llm.NewEmbedder(settings)
	if err != nil {
		a.logger.Warn().Err(err).Msg("embedder unavailable, knowledge retrieval disabled")
		return nil
	}
	vs, err := llm.NewVectorStore(a.cfg.ChromaURL, a.cfg.KnowledgeCollection, embedder)
	if err != nil {
		a.logger.Warn().Err(err).Msg("vector store unavailable, knowledge retrieval disabled")
		return nil
	}
	return knowledge.NewStore(vs, a.cfg.KnowledgeTopK, a.logger)
}

func (a *app) openConversationStore(ctx context.Context) (conversation.Store, error) {
	if a.cfg.RedisURL == "" {
		return memory.NewInProcessStore(), nil
	}
	rdb, err := redis.NewClient(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	return redis.NewConversationStore(rdb), nil
}

func (a *app) openRepository(ctx context.Context) (execution.Repository, error) {
	if a.cfg.DatabaseURL == "" {
		repo, err := sqlite.Open(a.cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		a.closers = append(a.closers, func() { _ = repo.Close() })
		return repo, nil
	}

	pool, err := postgres.NewPool(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	var fsys fs.FS = migrations.FS
	if a.cfg.MigrationsDir != "" {
		fsys = os.DirFS(a.cfg.MigrationsDir)
	}
	if err := postgres.RunMigrations(ctx, pool, fsys); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return postgres.NewExecutionRepository(pool), nil
}

func (a *app) server() *httpapi.Server {
	return httpapi.NewServer(httpapi.Deps{
		Agents:       a.runner,
		Directory:    a.registry,
		Orchestrator: a.orchestrator,
		Chat:         a.chat,
		Meetings:     a.meetings,
		Teams:        a.teams,
		Hub:          a.hub,
		TokenHash:    a.cfg.AuthTokenHash,
		MaxBodyBytes: a.cfg.MaxBodyBytes,
	}, a.logger)
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	a.hub.Stop()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
