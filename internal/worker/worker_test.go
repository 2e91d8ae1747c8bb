// Package worker_test tests the NATS narration worker.
package worker_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/core"
	"github.com/book-expert/narrator/internal/metrics"
	"github.com/book-expert/narrator/internal/numwords"
	"github.com/book-expert/narrator/internal/objectstore"
	"github.com/book-expert/narrator/internal/tts"
	"github.com/book-expert/narrator/internal/tts/text"
	"github.com/book-expert/narrator/internal/worker"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	textSubject  = "text.processed"
	audioSubject = "audio.chunk.created"
	requestWait  = 5 * time.Second
)

var errMockSynthesis = errors.New("mock synthesis error")

// mockSynthesizer returns a fixed MP3 payload and records the requested voices.
type mockSynthesizer struct {
	mu       sync.Mutex
	voices   []string
	texts    []string
	failText string
}

func (m *mockSynthesizer) Synthesize(_ context.Context, chunkText string, opts core.SynthesisOptions) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.voices = append(m.voices, opts.Voice)
	m.texts = append(m.texts, chunkText)

	if m.failText != "" && chunkText == m.failText {
		return nil, errMockSynthesis
	}

	return append([]byte("ID3\x03\x00"), bytes.Repeat([]byte{0xff}, 400)...), nil
}

func (m *mockSynthesizer) Extension() string {
	return "mp3"
}

func (m *mockSynthesizer) recordedVoices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.voices...)
}

type testHarness struct {
	conn        *nats.Conn
	server      *server.Server
	texts       core.ObjectStore
	audio       core.ObjectStore
	synthesizer *mockSynthesizer
	worker      *worker.NatsWorker
}

func createTestNatsClient(t *testing.T) (*nats.Conn, *server.Server) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	require.NoError(t, err, "Failed to connect to test NATS server")

	t.Cleanup(func() {
		natsConnection.Close()
		natsServer.Shutdown()
	})

	return natsConnection, natsServer
}

func setupTest(t *testing.T, maxChunkChars int) *testHarness {
	t.Helper()

	natsConnection, natsServer := createTestNatsClient(t)

	testLogger, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = testLogger.Close() })

	fs := afero.NewMemMapFs()
	texts := objectstore.NewFileStoreFs(fs, "/texts")
	audioStore := objectstore.NewFileStoreFs(fs, "/audio")
	synthesizer := &mockSynthesizer{}

	engine := tts.NewEngine(synthesizer, audioStore, tts.EngineConfig{
		Voice:         "pt-BR-ThalitaMultilingualNeural",
		Speed:         "x1.0",
		Concurrency:   2,
		MaxAttempts:   1,
		Backoff:       time.Millisecond,
		Timeout:       time.Second,
		MinAudioBytes: 200,
	}, testLogger, nil)

	preprocessor := text.NewPreprocessor(text.DefaultRules(), numwords.New())

	workerInstance, err := worker.NewNatsWorker(natsConnection, texts, preprocessor, engine, worker.Options{
		Subject:       textSubject,
		AudioSubject:  audioSubject,
		MaxChunkChars: maxChunkChars,
		JobTimeout:    10 * time.Second,
	}, testLogger, metrics.New())
	require.NoError(t, err)

	return &testHarness{
		conn:        natsConnection,
		server:      natsServer,
		texts:       texts,
		audio:       audioStore,
		synthesizer: synthesizer,
		worker:      workerInstance,
	}
}

// start runs the worker until the test ends and waits for its subscription.
func (h *testHarness) start(t *testing.T) {
	t.Helper()

	require.NoError(t, h.conn.Flush())

	baseline := h.server.NumSubscriptions()
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- h.worker.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return h.server.NumSubscriptions() > baseline
	}, requestWait, 10*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errChan, "worker.Run should not error on graceful shutdown")
	})
}

func newEvent(textKey, voice string) []byte {
	event := events.TextProcessedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
		},
		TextKey: textKey,
		Voice:   voice,
	}

	data, _ := json.Marshal(event)

	return data
}

func decodeAudioEvent(t *testing.T, data []byte) events.AudioChunkCreatedEvent {
	t.Helper()

	var event events.AudioChunkCreatedEvent

	require.NoError(t, json.Unmarshal(data, &event))

	return event
}

func TestNewNatsWorker_RequiresSubject(t *testing.T) {
	t.Parallel()

	_, err := worker.NewNatsWorker(nil, nil, nil, nil, worker.Options{}, nil, nil)
	require.ErrorIs(t, err, worker.ErrSubjectEmpty)
}

func TestMessageHandler_Success(t *testing.T) {
	t.Parallel()

	harness := setupTest(t, 0)
	ctx := context.Background()

	require.NoError(t, harness.texts.Upload(ctx, "books/gatos.txt", []byte("Ele tinha 3 gatos")))

	audioSub, err := harness.conn.SubscribeSync(audioSubject)
	require.NoError(t, err)

	harness.start(t)

	eventData := newEvent("books/gatos.txt", "")

	var request events.TextProcessedEvent

	require.NoError(t, json.Unmarshal(eventData, &request))

	replyMsg, err := harness.conn.Request(textSubject, eventData, requestWait)
	require.NoError(t, err, "Request should succeed and receive a reply")

	reply := decodeAudioEvent(t, replyMsg.Data)
	assert.Equal(t, request.Header.WorkflowID, reply.Header.WorkflowID)
	assert.NotEqual(t, request.Header.EventID, reply.Header.EventID)
	assert.Equal(t, tts.ChunkKey(request.Header.WorkflowID, 1, "mp3"), reply.AudioKey)
	assert.Equal(t, 1, reply.PageNumber)
	assert.Equal(t, 1, reply.TotalPages)

	announced, err := audioSub.NextMsg(requestWait)
	require.NoError(t, err)
	assert.Equal(t, reply.AudioKey, decodeAudioEvent(t, announced.Data).AudioKey)

	normalized, err := harness.texts.Download(ctx, request.Header.WorkflowID+"/normalized.txt")
	require.NoError(t, err)
	assert.Contains(t, string(normalized), "três gatos.")

	size, err := harness.audio.Size(ctx, reply.AudioKey)
	require.NoError(t, err)
	assert.Greater(t, size, int64(200))

	assert.Equal(t, []string{"pt-BR-ThalitaMultilingualNeural"}, harness.synthesizer.recordedVoices())
}

func TestMessageHandler_PublishesEveryChunk(t *testing.T) {
	t.Parallel()

	harness := setupTest(t, 40)
	ctx := context.Background()

	raw := "Primeiro parágrafo da história.\n\nSegundo parágrafo da história.\n\nTerceiro parágrafo da história."
	require.NoError(t, harness.texts.Upload(ctx, "books/longo.txt", []byte(raw)))

	audioSub, err := harness.conn.SubscribeSync(audioSubject)
	require.NoError(t, err)

	harness.start(t)

	replyMsg, err := harness.conn.Request(textSubject, newEvent("books/longo.txt", "pt-BR-AntonioNeural"), requestWait)
	require.NoError(t, err)

	reply := decodeAudioEvent(t, replyMsg.Data)
	require.Equal(t, 3, reply.TotalPages)
	assert.Equal(t, 3, reply.PageNumber)

	pages := make(map[int]bool)

	for range 3 {
		msg, nextErr := audioSub.NextMsg(requestWait)
		require.NoError(t, nextErr)

		event := decodeAudioEvent(t, msg.Data)
		assert.Equal(t, 3, event.TotalPages)
		pages[event.PageNumber] = true
	}

	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, pages)
	assert.Equal(t, []string{"pt-BR-AntonioNeural", "pt-BR-AntonioNeural", "pt-BR-AntonioNeural"},
		harness.synthesizer.recordedVoices())
}

func TestMessageHandler_PartialFailure(t *testing.T) {
	t.Parallel()

	harness := setupTest(t, 40)
	harness.synthesizer.failText = "Segundo parágrafo da história."
	ctx := context.Background()

	raw := "Primeiro parágrafo da história.\n\nSegundo parágrafo da história.\n\nTerceiro parágrafo da história."
	require.NoError(t, harness.texts.Upload(ctx, "books/falha.txt", []byte(raw)))

	audioSub, err := harness.conn.SubscribeSync(audioSubject)
	require.NoError(t, err)

	harness.start(t)

	_, err = harness.conn.Request(textSubject, newEvent("books/falha.txt", ""), time.Second)
	require.ErrorIs(t, err, nats.ErrTimeout, "failed jobs are not answered")

	pages := make(map[int]bool)

	for range 2 {
		msg, nextErr := audioSub.NextMsg(requestWait)
		require.NoError(t, nextErr)

		pages[decodeAudioEvent(t, msg.Data).PageNumber] = true
	}

	assert.Equal(t, map[int]bool{1: true, 3: true}, pages)
}

func TestMessageHandler_InvalidEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "malformed json", data: []byte("{not json")},
		{name: "missing text key", data: newEvent("", "")},
		{name: "missing object", data: newEvent("books/nao-existe.txt", "")},
	}

	harness := setupTest(t, 0)
	harness.start(t)

	for _, tc := range tests {
		_, err := harness.conn.Request(textSubject, tc.data, 500*time.Millisecond)
		require.ErrorIs(t, err, nats.ErrTimeout, tc.name)
	}

	assert.Empty(t, harness.synthesizer.recordedVoices())
}

func TestMessageHandler_BlankText(t *testing.T) {
	t.Parallel()

	harness := setupTest(t, 0)
	require.NoError(t, harness.texts.Upload(context.Background(), "books/vazio.txt", []byte(" \n\t \n")))

	harness.start(t)

	_, err := harness.conn.Request(textSubject, newEvent("books/vazio.txt", ""), 500*time.Millisecond)
	require.ErrorIs(t, err, nats.ErrTimeout)
	assert.Empty(t, harness.synthesizer.recordedVoices())
}
