// Package worker provides a NATS worker that narrates processed book text.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/core"
	"github.com/book-expert/narrator/internal/metrics"
	"github.com/book-expert/narrator/internal/tts"
	"github.com/book-expert/narrator/internal/tts/text"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	// DefaultJobTimeout bounds the handling of one event.
	DefaultJobTimeout = 30 * time.Minute

	normalizedObjectName = "normalized.txt"
	jobResultOK          = "ok"
	jobResultError       = "error"
)

const (
	logFmtJobReceived   = "Received text %s for workflow %s"
	logFmtJobNormalized = "Workflow %s: %d characters normalized into %d chunks"
	logFmtJobFinished   = "Workflow %s: published %d audio chunks"
	logFmtJobFailed     = "Failed to process workflow %s: %v"
)

var (
	// ErrSubjectEmpty is returned when the worker has nothing to subscribe to.
	ErrSubjectEmpty = errors.New("subject cannot be empty")
	// ErrTextKeyEmpty is returned for events without a text key.
	ErrTextKeyEmpty = errors.New("text key cannot be empty")
	// ErrNoSpeakableText is returned when normalization leaves nothing to narrate.
	ErrNoSpeakableText = errors.New("text has nothing to narrate")
)

// Options configures subjects and limits of the worker.
type Options struct {
	Subject       string
	AudioSubject  string
	MaxChunkChars int
	JobTimeout    time.Duration
}

// NatsWorker listens for TextProcessedEvents on a NATS subject, narrates the
// referenced text and announces each stored audio chunk.
type NatsWorker struct {
	natsConnection *nats.Conn
	texts          core.ObjectStore
	preprocessor   *text.Preprocessor
	engine         *tts.Engine
	opts           Options
	metrics        *metrics.Recorder
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. recorder may be nil.
func NewNatsWorker(
	natsConnection *nats.Conn,
	texts core.ObjectStore,
	preprocessor *text.Preprocessor,
	engine *tts.Engine,
	opts Options,
	log *logger.Logger,
	recorder *metrics.Recorder,
) (*NatsWorker, error) {
	if opts.Subject == "" {
		return nil, ErrSubjectEmpty
	}

	if opts.MaxChunkChars <= 0 {
		opts.MaxChunkChars = text.DefaultMaxChunkChars
	}

	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		texts:          texts,
		preprocessor:   preprocessor,
		engine:         engine,
		opts:           opts,
		metrics:        recorder,
		log:            log,
	}, nil
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.opts.Subject, func(msg *nats.Msg) {
		w.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.opts.Subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(parent context.Context, msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), w.opts.JobTimeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.metrics.Job(jobResultError)
		w.log.Error("Failed to parse and validate event: %v", err)

		return
	}

	published, err := w.processJob(ctx, event)
	if err != nil {
		w.metrics.Job(jobResultError)
		w.log.Error(logFmtJobFailed, event.Header.WorkflowID, err)

		return
	}

	w.metrics.Job(jobResultOK)
	w.log.Info(logFmtJobFinished, event.Header.WorkflowID, len(published))

	if msg.Reply == "" {
		return
	}

	err = w.respond(msg, published[len(published)-1])
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)
	}
}

// processJob downloads and normalizes the text, synthesizes its chunks and
// publishes one event per stored chunk. Chunks that were stored are announced
// even when others failed.
func (w *NatsWorker) processJob(
	ctx context.Context,
	event *events.TextProcessedEvent,
) ([]*events.AudioChunkCreatedEvent, error) {
	w.log.Info(logFmtJobReceived, event.TextKey, event.Header.WorkflowID)

	raw, err := w.texts.Download(ctx, event.TextKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download text data for key '%s': %w", event.TextKey, err)
	}

	normalized := w.preprocessor.Normalize(string(raw))
	if strings.TrimSpace(normalized) == "" {
		return nil, ErrNoSpeakableText
	}

	w.metrics.NormalizedText(len([]rune(normalized)))

	prefix := jobPrefix(event)

	normalizedKey := path.Join(prefix, normalizedObjectName)

	err = w.texts.Upload(ctx, normalizedKey, []byte(normalized))
	if err != nil {
		return nil, fmt.Errorf("failed to upload normalized text '%s': %w", normalizedKey, err)
	}

	chunks := text.ChunkText(normalized, w.opts.MaxChunkChars)
	w.log.Info(logFmtJobNormalized, event.Header.WorkflowID, len([]rune(normalized)), len(chunks))

	opts := w.engine.Options()
	if event.Voice != "" {
		opts.Voice = event.Voice
	}

	results, synthErr := w.engine.SynthesizeWithOptions(ctx, prefix, chunks, opts)

	published := make([]*events.AudioChunkCreatedEvent, 0, len(results))

	for _, result := range results {
		if result.Err != nil {
			continue
		}

		chunkEvent := newChunkEvent(event.Header, result, len(chunks))

		publishErr := w.publish(chunkEvent)
		if publishErr != nil {
			return published, errors.Join(synthErr, publishErr)
		}

		published = append(published, chunkEvent)
	}

	if synthErr != nil {
		return published, synthErr
	}

	return published, nil
}

func (w *NatsWorker) publish(event *events.AudioChunkCreatedEvent) error {
	if w.opts.AudioSubject == "" {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audio event: %w", err)
	}

	err = w.natsConnection.Publish(w.opts.AudioSubject, data)
	if err != nil {
		return fmt.Errorf("failed to publish audio event to %s: %w", w.opts.AudioSubject, err)
	}

	return nil
}

// respond marshals and responds with the AudioChunkCreatedEvent.
func (w *NatsWorker) respond(msg *nats.Msg, replyEvent *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func newChunkEvent(header events.EventHeader, result tts.ChunkResult, total int) *events.AudioChunkCreatedEvent {
	header.EventID = uuid.NewString()
	header.Timestamp = time.Now()

	return &events.AudioChunkCreatedEvent{
		Header:     header,
		AudioKey:   result.Key,
		PageNumber: result.Index,
		TotalPages: total,
	}
}

// jobPrefix keys a job's objects by workflow, falling back to the text key.
func jobPrefix(event *events.TextProcessedEvent) string {
	if event.Header.WorkflowID != "" {
		return event.Header.WorkflowID
	}

	return strings.TrimSuffix(event.TextKey, path.Ext(event.TextKey))
}

func parseEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.TextKey == "" {
		return nil, ErrTextKeyEmpty
	}

	return &event, nil
}
