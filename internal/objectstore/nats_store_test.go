// Package objectstore_test tests the object store implementations.
package objectstore_test

import (
	"context"
	"testing"

	"github.com/book-expert/narrator/internal/core"
	"github.com/book-expert/narrator/internal/objectstore"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StartTestServer starts an in-memory NATS server for testing purposes.
func StartTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func newNatsStore(t *testing.T, bucket string) (*objectstore.NatsObjectStore, nats.JetStreamContext) {
	t.Helper()

	natsServer, natsConnection := StartTestServer(t)
	t.Cleanup(natsServer.Shutdown)
	t.Cleanup(natsConnection.Close)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, bucket)
	require.NoError(t, err)

	return store, jetstreamContext
}

func TestNatsObjectStore_UploadDownload(t *testing.T) {
	t.Parallel()

	store, _ := newNatsStore(t, "test-bucket")

	ctx := context.Background()
	key := "workflow/chunk_0000.mp3"
	uploadData := []byte("hello world, this is a test")

	require.NoError(t, store.Upload(ctx, key, uploadData))

	downloadData, err := store.Download(ctx, key)
	require.NoError(t, err)
	require.Equal(t, uploadData, downloadData)

	size, err := store.Size(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(uploadData)), size)
}

func TestNatsObjectStore_Overwrite(t *testing.T) {
	t.Parallel()

	store, _ := newNatsStore(t, "overwrite-bucket")
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "key", []byte("first version")))
	require.NoError(t, store.Upload(ctx, "key", []byte("second")))

	data, err := store.Download(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestNatsObjectStore_NotFound(t *testing.T) {
	t.Parallel()

	store, _ := newNatsStore(t, "empty-bucket")
	ctx := context.Background()

	_, err := store.Download(ctx, "missing")
	require.ErrorIs(t, err, core.ErrObjectNotFound)

	_, err = store.Size(ctx, "missing")
	require.ErrorIs(t, err, core.ErrObjectNotFound)
}

func TestNew_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	store, jetstreamContext := newNatsStore(t, "shared-bucket")
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "key", []byte("kept")))

	again, err := objectstore.New(jetstreamContext, "shared-bucket")
	require.NoError(t, err)

	data, err := again.Download(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), data)
}
