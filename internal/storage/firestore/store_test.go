//go:build integration

package firestore_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/tinywideclouds/go-push-kit/internal/storage/firestore"
)

func setupSuite(t *testing.T) (context.Context, *fs.Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	projectID := "test-topic-store"
	conn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	client, err := firestore.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return ctx, fs.NewStore(client, "install-integration")
}

func TestStore_Integration(t *testing.T) {
	ctx, store := setupSuite(t)

	t.Run("Subscription Lifecycle", func(t *testing.T) {
		// 1. Subscribe
		require.NoError(t, store.Add(ctx, "news"))
		require.NoError(t, store.Add(ctx, "alerts"))

		// 2. List and Verify
		topics, err := store.List(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"news", "alerts"}, topics)

		// 3. Re-adding is an upsert, not a duplicate
		require.NoError(t, store.Add(ctx, "news"))
		topics, err = store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, topics, 2)

		// 4. Unsubscribe
		require.NoError(t, store.Remove(ctx, "news"))
		topics, err = store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alerts"}, topics)
	})

	t.Run("Clear removes everything", func(t *testing.T) {
		require.NoError(t, store.Add(ctx, "a"))
		require.NoError(t, store.Add(ctx, "b"))

		require.NoError(t, store.Clear(ctx))

		topics, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, topics)
	})
}
