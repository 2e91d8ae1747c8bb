package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/narrator/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, recorder *metrics.Recorder) string {
	t.Helper()

	server := httptest.NewServer(recorder.Handler())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(body)
}

func TestRecorder_Handler(t *testing.T) {
	t.Parallel()

	recorder := metrics.New()
	recorder.Chunk(metrics.OutcomeSynthesized)
	recorder.Chunk(metrics.OutcomeSynthesized)
	recorder.Chunk(metrics.OutcomeResumed)
	recorder.Attempt()
	recorder.Synthesized(time.Second)
	recorder.Job("ok")
	recorder.NormalizedText(42)

	body := scrape(t, recorder)

	assert.Contains(t, body, `narrator_chunks_total{outcome="synthesized"} 2`)
	assert.Contains(t, body, `narrator_chunks_total{outcome="resumed"} 1`)
	assert.Contains(t, body, "narrator_synthesis_attempts_total 1")
	assert.Contains(t, body, "narrator_synthesis_duration_seconds_count 1")
	assert.Contains(t, body, `narrator_jobs_total{result="ok"} 1`)
	assert.Contains(t, body, "narrator_normalized_characters_total 42")
}

func TestRecorder_NilIsNoop(t *testing.T) {
	t.Parallel()

	var recorder *metrics.Recorder

	assert.NotPanics(t, func() {
		recorder.Chunk(metrics.OutcomeFailed)
		recorder.Attempt()
		recorder.Synthesized(time.Millisecond)
		recorder.Job("error")
		recorder.NormalizedText(1)
	})
}
