// Package model is the single choke-point for generative model calls.
package model

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_generator.go -package=mocks . Generator

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"

	"github.com/Ntarekp/teamSynth/internal/infrastructure/metrics"
)

// Options tunes a single generation.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Gateway dispatches prompts to a langchaingo model with an enforced timeout.
// It performs no retries and no caching.
type Gateway struct {
	llm       llms.Model
	modelName string
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewGateway creates a model gateway.
func NewGateway(llm llms.Model, modelName string, timeout time.Duration, logger zerolog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Gateway{
		llm:       llm,
		modelName: modelName,
		timeout:   timeout,
		logger:    logger.With().Str("service", "model_gateway").Str("model", modelName).Logger(),
	}
}

// ModelName returns the configured generation model.
func (g *Gateway) ModelName() string {
	return g.modelName
}

// Generate sends prompt to the model. Transport errors, timeouts and empty
// responses all surface as *UnavailableError.
func (g *Gateway) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	start := time.Now()
	text, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, callOpts...)
	elapsed := time.Since(start)
	metrics.ModelLatency.Observe(elapsed.Seconds())

	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		metrics.ModelRequests.WithLabelValues("unavailable").Inc()
		g.logger.Warn().Err(err).
			Dur("elapsed", elapsed).
			Int("prompt_chars", len(prompt)).
			Msg("model call failed")
		return "", NewUnavailableError(g.modelName, err)
	}

	metrics.ModelRequests.WithLabelValues("ok").Inc()
	g.logger.Debug().
		Dur("elapsed", elapsed).
		Int("prompt_chars", len(prompt)).
		Int("response_chars", len(text)).
		Msg("model call completed")
	return text, nil
}
