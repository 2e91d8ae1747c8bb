package tts

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/config"
	"github.com/book-expert/narrator/internal/core"
	"github.com/book-expert/narrator/internal/metrics"
	"github.com/book-expert/narrator/internal/tts/audio"
	"github.com/book-expert/narrator/internal/tts/text"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// HealthCheckTimeout defines the timeout for health check operations.
	HealthCheckTimeout = 10 * time.Second

	minBackoff = time.Millisecond
)

const (
	errFmtHealthCheckFailed     = "TTS service health check failed: %w"
	errFmtChunkFailed           = "chunk %d failed: %w"
	logFmtServiceHealthy        = "TTS backend is healthy, processing %d chunks under %s"
	logFmtChunkResumed          = "Reusing chunk %d/%d: %s (%d bytes)"
	logFmtChunkProcessed        = "Processed chunk %d/%d: %s (%d bytes)"
	logFmtChunkRetry            = "Attempt %d for chunk %d failed: %v"
	logFmtChunkProcessingFailed = "Failed to process chunk %d: %v"
	logFmtResumeCheckFailed     = "Could not check existing audio for chunk %d: %v"
	outputFileFormat            = "chunk_%04d.%s"
)

// ErrPrefixEmpty is returned when Synthesize is called without a key prefix.
var ErrPrefixEmpty = errors.New("key prefix cannot be empty")

// HealthChecker is implemented by backends that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EngineConfig holds the synthesis policy.
type EngineConfig struct {
	Voice             string
	Speed             string
	Concurrency       int
	MaxAttempts       int
	Backoff           time.Duration
	Timeout           time.Duration
	MinAudioBytes     int
	RequestsPerSecond float64
}

// EngineConfigFrom maps the [tts_service] section onto an EngineConfig.
func EngineConfigFrom(cfg config.TTSServiceConfig) EngineConfig {
	return EngineConfig{
		Voice:             cfg.Voice,
		Speed:             cfg.Speed,
		Concurrency:       cfg.Concurrency,
		MaxAttempts:       cfg.MaxAttempts,
		Backoff:           cfg.Backoff(),
		Timeout:           cfg.Timeout(),
		MinAudioBytes:     cfg.MinAudioBytes,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
}

// ChunkResult describes what happened to one chunk.
type ChunkResult struct {
	Index   int
	Key     string
	Bytes   int64
	Resumed bool
	Err     error
}

// Engine synthesizes chunk sequences into an object store. Every chunk gets a
// deterministic key, so a rerun with the same prefix skips the chunks whose
// audio is already stored.
type Engine struct {
	synthesizer core.Synthesizer
	store       core.ObjectStore
	cfg         EngineConfig
	limiter     *rate.Limiter
	metrics     *metrics.Recorder
	logger      *logger.Logger
}

// NewEngine creates an engine. recorder may be nil.
func NewEngine(
	synthesizer core.Synthesizer,
	store core.ObjectStore,
	cfg EngineConfig,
	log *logger.Logger,
	recorder *metrics.Recorder,
) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = config.DefaultConcurrency
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = config.DefaultMaxAttempts
	}

	if cfg.Backoff < minBackoff {
		cfg.Backoff = minBackoff
	}

	if cfg.MinAudioBytes <= 0 {
		cfg.MinAudioBytes = audio.DefaultMinBytes
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Engine{
		synthesizer: synthesizer,
		store:       store,
		cfg:         cfg,
		limiter:     limiter,
		metrics:     recorder,
		logger:      log,
	}
}

// ChunkKey returns the object key of a chunk's audio.
func ChunkKey(prefix string, index int, extension string) string {
	return path.Join(prefix, fmt.Sprintf(outputFileFormat, index, extension))
}

// Options returns the configured voice and speed.
func (e *Engine) Options() core.SynthesisOptions {
	return core.SynthesisOptions{Voice: e.cfg.Voice, Speed: e.cfg.Speed}
}

// Synthesize processes every chunk with the configured voice and speed.
func (e *Engine) Synthesize(ctx context.Context, prefix string, chunks []text.Chunk) ([]ChunkResult, error) {
	return e.SynthesizeWithOptions(ctx, prefix, chunks, e.Options())
}

// SynthesizeWithOptions processes every chunk, at most Concurrency at a time.
// A failed chunk does not stop the others. The results are ordered by chunk
// index and the error joins the failures of all chunks.
func (e *Engine) SynthesizeWithOptions(
	ctx context.Context,
	prefix string,
	chunks []text.Chunk,
	opts core.SynthesisOptions,
) ([]ChunkResult, error) {
	if prefix == "" {
		return nil, ErrPrefixEmpty
	}

	if len(chunks) == 0 {
		return nil, nil
	}

	healthErr := e.checkHealth(ctx)
	if healthErr != nil {
		return nil, healthErr
	}

	e.logger.Info(logFmtServiceHealthy, len(chunks), prefix)

	results := make([]ChunkResult, len(chunks))

	var group errgroup.Group

	group.SetLimit(e.cfg.Concurrency)

	for position, chunk := range chunks {
		group.Go(func() error {
			results[position] = e.processChunk(ctx, prefix, chunk, opts)

			return nil
		})
	}

	_ = group.Wait()

	failures := make([]error, 0, len(results))

	for _, result := range results {
		if result.Err != nil {
			failures = append(failures, fmt.Errorf(errFmtChunkFailed, result.Index, result.Err))
		}
	}

	return results, errors.Join(failures...)
}

func (e *Engine) checkHealth(ctx context.Context) error {
	checker, ok := e.synthesizer.(HealthChecker)
	if !ok {
		return nil
	}

	healthCtx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	err := checker.HealthCheck(healthCtx)
	if err != nil {
		return fmt.Errorf(errFmtHealthCheckFailed, err)
	}

	return nil
}

func (e *Engine) processChunk(ctx context.Context, prefix string, chunk text.Chunk, opts core.SynthesisOptions) ChunkResult {
	result := ChunkResult{
		Index: chunk.Index,
		Key:   ChunkKey(prefix, chunk.Index, e.synthesizer.Extension()),
	}

	if err := ctx.Err(); err != nil {
		result.Err = err
		e.metrics.Chunk(metrics.OutcomeFailed)

		return result
	}

	if size, ok := e.existing(ctx, chunk.Index, result.Key); ok {
		result.Bytes = size
		result.Resumed = true

		e.metrics.Chunk(metrics.OutcomeResumed)
		e.logger.Info(logFmtChunkResumed, chunk.Index, chunk.Total, result.Key, size)

		return result
	}

	size, err := e.synthesizeWithRetry(ctx, chunk, opts, result.Key)
	if err != nil {
		result.Err = err

		e.metrics.Chunk(metrics.OutcomeFailed)
		e.logger.Error(logFmtChunkProcessingFailed, chunk.Index, err)

		return result
	}

	result.Bytes = size

	e.metrics.Chunk(metrics.OutcomeSynthesized)
	e.logger.Info(logFmtChunkProcessed, chunk.Index, chunk.Total, result.Key, size)

	return result
}

// existing reports whether usable audio is already stored under key.
func (e *Engine) existing(ctx context.Context, index int, key string) (int64, bool) {
	size, err := e.store.Size(ctx, key)
	if err != nil {
		if !errors.Is(err, core.ErrObjectNotFound) {
			e.logger.Warn(logFmtResumeCheckFailed, index, err)
		}

		return 0, false
	}

	return size, size > int64(e.cfg.MinAudioBytes)
}

func (e *Engine) synthesizeWithRetry(
	ctx context.Context,
	chunk text.Chunk,
	opts core.SynthesisOptions,
	key string,
) (int64, error) {
	backoff := retry.WithMaxRetries(uint64(e.cfg.MaxAttempts-1), retry.NewExponential(e.cfg.Backoff))

	var attempt int

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		err := e.attempt(ctx, chunk.Text, opts, key)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return err
		}

		e.logger.Warn(logFmtChunkRetry, attempt, chunk.Index, err)

		return retry.RetryableError(err)
	})
	if err != nil {
		return 0, err
	}

	stored, err := e.store.Size(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to confirm stored audio %s: %w", key, err)
	}

	return stored, nil
}

// attempt makes one paced backend call, validates the audio and stores it.
func (e *Engine) attempt(ctx context.Context, chunkText string, opts core.SynthesisOptions, key string) error {
	err := e.limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	callCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc

		callCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	e.metrics.Attempt()

	started := time.Now()

	data, err := e.synthesizer.Synthesize(callCtx, chunkText, opts)
	if err != nil {
		return fmt.Errorf("failed to generate speech: %w", err)
	}

	_, err = audio.Validate(data, e.cfg.MinAudioBytes)
	if err != nil {
		return fmt.Errorf("invalid audio: %w", err)
	}

	e.metrics.Synthesized(time.Since(started))

	err = e.store.Upload(ctx, key, data)
	if err != nil {
		return fmt.Errorf("failed to store audio %s: %w", key, err)
	}

	return nil
}
