package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/joelkehle/legalbrief/internal/llm"
	"github.com/joelkehle/legalbrief/internal/telemetry"
)

const DefaultChunkTimeout = 90 * time.Second

// Chunk outcome labels, shared with the metrics and the dropped-chunk log.
const (
	outcomeAnalyzed        = "analyzed"
	outcomeDecodeFailed    = "decode_failed"
	outcomeTransportFailed = "transport_failed"
	outcomeTimeout         = "timeout"
)

// StageProgressFn receives progress messages. With Concurrency above one it
// is called from several goroutines.
type StageProgressFn func(stage, message string)

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	// Concurrency bounds in-flight chunk requests. 1 analyzes sequentially.
	Concurrency int
	// RequestsPerMinute caps LLM calls across the run. Zero disables the limit.
	RequestsPerMinute   int
	ChunkTimeout        time.Duration
	// Temperature is nil for DefaultTemperature.
	Temperature         *float64
	MaxOutputTokens     int
	SummaryContextLimit int
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkOverlap < 0 {
		o.ChunkOverlap = 0
	}
	if o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = o.ChunkSize / 10
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.ChunkTimeout <= 0 {
		o.ChunkTimeout = DefaultChunkTimeout
	}
	if o.SummaryContextLimit <= 0 {
		o.SummaryContextLimit = DefaultSummaryContextLimit
	}
	return o
}

type Pipeline struct {
	completer llm.Completer
	opts      Options
	metrics   *telemetry.Metrics
	now       func() time.Time
}

// NewPipeline builds a pipeline over completer. A nil completer is allowed;
// every run then fails with ErrCapabilityUnavailable before any chunk is sent.
func NewPipeline(completer llm.Completer, opts Options, metrics *telemetry.Metrics) *Pipeline {
	return &Pipeline{completer: completer, opts: opts.withDefaults(), metrics: metrics, now: time.Now}
}

func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	return p.runWithProgress(ctx, req, nil)
}

func (p *Pipeline) RunWithProgress(ctx context.Context, req Request, progress StageProgressFn) (Result, error) {
	return p.runWithProgress(ctx, req, progress)
}

func (p *Pipeline) runWithProgress(ctx context.Context, req Request, progress StageProgressFn) (Result, error) {
	started := p.now()
	res, err := p.run(ctx, req, progress, started)
	status := "ok"
	switch {
	case err == nil && res.Metadata.ChunksDropped > 0:
		status = "degraded"
	case err != nil:
		status = runStatus(err)
	}
	p.metrics.ObserveRun(status, p.now().Sub(started))
	return res, err
}

func (p *Pipeline) run(ctx context.Context, req Request, progress StageProgressFn, started time.Time) (Result, error) {
	req, truncated, err := NormalizeRequest(req)
	if err != nil {
		return Result{}, err
	}
	if p.completer == nil {
		return Result{}, &StageError{Stage: "analyze", Err: ErrCapabilityUnavailable}
	}

	ctx, span := telemetry.StartSpan(ctx, "analysis.run",
		attribute.String("language", string(req.Language)),
		attribute.String("simplification_level", string(req.SimplificationLevel)),
		attribute.Int("content_chars", len([]rune(req.Content))),
	)
	defer span.End()

	calls := &countingCompleter{next: p.completer}
	ctx = llm.WithCacheHitHook(ctx, func() { calls.cacheHits.Add(1) })
	meta := RunMetadata{
		InputTruncated: truncated,
		Language:       req.Language,
		Level:          req.SimplificationLevel,
		Model:          llm.ModelName(p.completer),
		StartedAt:      started,
	}

	emit(progress, "chunk", "Splitting document into sections...")
	chunks := Chunk(req.Content, p.opts.ChunkSize, p.opts.ChunkOverlap)
	meta.ChunksTotal = len(chunks)
	emit(progress, "chunk", fmt.Sprintf("Document split into %d section(s)", len(chunks)))

	emit(progress, "analyze", fmt.Sprintf("Analyzing %d section(s)...", len(chunks)))
	stageStarted := p.now()
	partials, dropped, err := p.analyzeChunks(ctx, calls, chunks, req, progress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	meta.ChunksAnalyzed = len(partials)
	meta.ChunksDropped = len(dropped)
	meta.DroppedChunks = dropped
	emit(progress, "analyze", fmt.Sprintf("Analysis complete in %s (%d analyzed, %d dropped)",
		p.now().Sub(stageStarted).Round(time.Millisecond), len(partials), len(dropped)))
	if len(partials) == 0 {
		err := &StageError{Stage: "analyze", Err: ErrNoUsableResult}
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	emit(progress, "merge", "Merging section results...")
	doc := Merge(partials)
	doc.ID = uuid.NewString()
	emit(progress, "merge", fmt.Sprintf("Merged %d clause(s), %d risk(s)", len(doc.Clauses), len(doc.Risks)))

	if doc.PlainSummary == "" {
		emit(progress, "summary", "Writing document summary...")
		meta.SummaryFinisher = true
		summary, err := p.finishSummary(ctx, calls, doc, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			zap.L().Warn("analysis summary_failed",
				zap.String("stage", "summary"),
				zap.String("analysis_id", doc.ID),
				zap.Error(err),
			)
		} else {
			doc.PlainSummary = summary
		}
	}

	meta.CacheHits = int(calls.cacheHits.Load())
	meta.LLMCalls = int(calls.calls.Load()) - meta.CacheHits
	meta.CompletedAt = p.now()
	meta.DurationMS = meta.CompletedAt.Sub(meta.StartedAt).Milliseconds()
	span.SetAttributes(
		attribute.String("analysis_id", doc.ID),
		attribute.Int("chunks_total", meta.ChunksTotal),
		attribute.Int("chunks_dropped", meta.ChunksDropped),
	)
	zap.L().Info("analysis completed",
		zap.String("analysis_id", doc.ID),
		zap.Int("chunks_total", meta.ChunksTotal),
		zap.Int("chunks_dropped", meta.ChunksDropped),
		zap.Int("llm_calls", meta.LLMCalls),
		zap.Int("cache_hits", meta.CacheHits),
		zap.Int64("elapsed_ms", meta.DurationMS),
	)
	return Result{Analysis: doc, Metadata: meta}, nil
}

// analyzeChunks returns partials ordered by chunk index. Per-chunk failures
// are collected as dropped chunks; only cancellation and capability loss
// return an error.
func (p *Pipeline) analyzeChunks(ctx context.Context, completer llm.Completer, chunks []string, req Request, progress StageProgressFn) ([]PartialResult, []DroppedChunk, error) {
	analyzer := NewChunkAnalyzer(completer, ChunkAnalyzerOptions{
		Temperature:     p.opts.Temperature,
		MaxOutputTokens: p.opts.MaxOutputTokens,
	})
	limiter := p.newLimiter()

	results := make([]*PartialResult, len(chunks))
	reasons := make([]string, len(chunks))
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, text := range chunks {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}
			partial, outcome, err := p.analyzeOne(gctx, analyzer, text, req, i, len(chunks))
			p.metrics.ObserveChunk(outcome)
			if err != nil {
				if errors.Is(err, ErrCapabilityUnavailable) || gctx.Err() != nil {
					return err
				}
				reasons[i] = outcome
				zap.L().Warn("analysis chunk_dropped",
					zap.String("stage", "analyze"),
					zap.Int("chunk_index", i),
					zap.String("reason", outcome),
					zap.Error(err),
				)
			} else {
				results[i] = &partial
			}
			emit(progress, "analyze", fmt.Sprintf("Section %d/%d %s", done.Add(1), len(chunks), outcome))
			return nil
		})
	}
	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, ctxErr
	}
	if err != nil {
		return nil, nil, &StageError{Stage: "analyze", Err: err}
	}

	partials := make([]PartialResult, 0, len(chunks))
	var dropped []DroppedChunk
	for i, r := range results {
		if r != nil {
			partials = append(partials, *r)
			continue
		}
		dropped = append(dropped, DroppedChunk{Index: i, Reason: reasons[i]})
	}
	return partials, dropped, nil
}

func (p *Pipeline) analyzeOne(ctx context.Context, analyzer *ChunkAnalyzer, text string, req Request, index, total int) (PartialResult, string, error) {
	ctx, span := telemetry.StartSpan(ctx, "analysis.chunk", attribute.Int("chunk_index", index))
	defer span.End()

	chunkCtx, cancel := context.WithTimeout(ctx, p.opts.ChunkTimeout)
	defer cancel()
	started := p.now()
	partial, err := analyzer.AnalyzeChunk(chunkCtx, text, req.Language, req.SimplificationLevel, index, total)
	zap.L().Debug("analysis chunk_finished",
		zap.Int("chunk_index", index),
		zap.Int64("elapsed_ms", p.now().Sub(started).Milliseconds()),
		zap.Bool("ok", err == nil),
	)
	if err == nil {
		return partial, outcomeAnalyzed, nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	var decodeErr *DecodeError
	switch {
	case errors.As(err, &decodeErr):
		return PartialResult{}, outcomeDecodeFailed, err
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(chunkCtx.Err(), context.DeadlineExceeded):
		return PartialResult{}, outcomeTimeout, err
	default:
		return PartialResult{}, outcomeTransportFailed, err
	}
}

func (p *Pipeline) finishSummary(ctx context.Context, completer llm.Completer, doc DocumentAnalysis, req Request) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "analysis.summary")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.opts.ChunkTimeout)
	defer cancel()
	finisher := NewSummaryFinisher(completer, p.opts.SummaryContextLimit, ChunkAnalyzerOptions{
		Temperature:     p.opts.Temperature,
		MaxOutputTokens: p.opts.MaxOutputTokens,
	})
	summary, err := finisher.FinishSummary(ctx, doc.Clauses, doc.Risks, req.Language, req.SimplificationLevel)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return summary, err
}

func (p *Pipeline) newLimiter() *rate.Limiter {
	if p.opts.RequestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(p.opts.RequestsPerMinute)), 1)
}

// NormalizeRequest fills in the default language and level and rejects
// anything the pipeline cannot analyze. Content beyond MaxContentChars is cut
// and reported through the second return value.
func NormalizeRequest(req Request) (Request, bool, error) {
	if strings.TrimSpace(req.Content) == "" {
		return req, false, fmt.Errorf("%w: content is required", ErrInvalidRequest)
	}
	req.Language = Language(strings.ToLower(strings.TrimSpace(string(req.Language))))
	if req.Language == "" {
		req.Language = LanguageEnglish
	}
	if _, ok := languageWording[req.Language]; !ok {
		return req, false, fmt.Errorf("%w: unsupported language %q", ErrInvalidRequest, req.Language)
	}
	req.SimplificationLevel = SimplificationLevel(strings.ToLower(strings.TrimSpace(string(req.SimplificationLevel))))
	if req.SimplificationLevel == "" {
		req.SimplificationLevel = LevelSimple
	}
	if _, ok := levelWording[req.SimplificationLevel]; !ok {
		return req, false, fmt.Errorf("%w: unsupported simplification level %q", ErrInvalidRequest, req.SimplificationLevel)
	}
	truncated := false
	if r := []rune(req.Content); len(r) > MaxContentChars {
		req.Content = string(r[:MaxContentChars])
		truncated = true
	}
	return req, truncated, nil
}

func runStatus(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, ErrCapabilityUnavailable):
		return "unavailable"
	case errors.Is(err, ErrNoUsableResult):
		return "no_result"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failed"
	}
}

func emit(progress StageProgressFn, stage, message string) {
	if progress != nil {
		progress(stage, message)
	}
}

// countingCompleter tallies completion requests for the run metadata.
// Requests answered by a response cache are counted in cacheHits too.
type countingCompleter struct {
	next      llm.Completer
	calls     atomic.Int64
	cacheHits atomic.Int64
}

func (c *countingCompleter) ModelName() string { return llm.ModelName(c.next) }

func (c *countingCompleter) Complete(ctx context.Context, prompt string, opts llm.CompletionOptions) (string, error) {
	c.calls.Add(1)
	return c.next.Complete(ctx, prompt, opts)
}
