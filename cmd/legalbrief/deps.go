package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/joelkehle/legalbrief/internal/analysis"
	"github.com/joelkehle/legalbrief/internal/config"
	"github.com/joelkehle/legalbrief/internal/llm"
	"github.com/joelkehle/legalbrief/internal/telemetry"
)

// pipelineEnv holds a pipeline and the resources behind it.
type pipelineEnv struct {
	Pipeline *analysis.Pipeline
	closers  []func() error
}

func (e *pipelineEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close resource", zap.Error(err))
		}
	}
}

func pipelineOptions(c *config.Config) analysis.Options {
	return analysis.Options{
		ChunkSize:           c.Pipeline.ChunkSize,
		ChunkOverlap:        c.Pipeline.ChunkOverlap,
		Concurrency:         c.Pipeline.Concurrency,
		RequestsPerMinute:   c.Pipeline.RequestsPerMinute,
		ChunkTimeout:        c.LLM.Timeout(),
		Temperature:         analysis.Temperature(c.LLM.Temperature),
		MaxOutputTokens:     c.LLM.MaxOutputTokens,
		SummaryContextLimit: c.Pipeline.SummaryContextLimit,
	}
}

// initPipeline builds the completer stack (provider, optional Redis cache,
// metrics) and the pipeline over it. A missing credential is not an error
// here; the pipeline then fails each run with ErrCapabilityUnavailable.
func initPipeline(ctx context.Context, c *config.Config, metrics *telemetry.Metrics) (*pipelineEnv, error) {
	env := &pipelineEnv{}
	completer, closer, err := newCompleter(ctx, c.LLM)
	switch {
	case errors.Is(err, llm.ErrCapabilityUnavailable):
		zap.L().Warn("llm capability unavailable", zap.String("provider", c.LLM.Provider), zap.Error(err))
		env.Pipeline = analysis.NewPipeline(nil, pipelineOptions(c), metrics)
		return env, nil
	case err != nil:
		return nil, err
	}
	if closer != nil {
		env.closers = append(env.closers, closer)
	}

	completer = telemetry.Instrument(completer, metrics)
	if c.Cache.RedisURL != "" {
		cache, err := llm.NewRedisCache(ctx, c.Cache.RedisURL, c.Cache.Prefix)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("init response cache: %w", err)
		}
		env.closers = append(env.closers, cache.Close)
		completer = llm.NewCachingCompleter(completer, cache, c.Cache.TTL(), analysis.CacheableReply)
	}

	env.Pipeline = analysis.NewPipeline(completer, pipelineOptions(c), metrics)
	zap.L().Info("pipeline ready",
		zap.String("provider", c.LLM.Provider),
		zap.String("model", llm.ModelName(completer)),
		zap.Bool("cache", c.Cache.RedisURL != ""),
		zap.Int("concurrency", c.Pipeline.Concurrency),
	)
	return env, nil
}

func newCompleter(ctx context.Context, c config.LLMConfig) (llm.Completer, func() error, error) {
	switch c.Provider {
	case "", "anthropic":
		a, err := llm.NewAnthropicCompleter(c.AnthropicAPIKey, c.Model)
		if err != nil {
			return nil, nil, err
		}
		return a, nil, nil
	case "gemini":
		g, err := llm.NewGeminiCompleter(ctx, c.GeminiAPIKey, c.Model)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", c.Provider)
	}
}
