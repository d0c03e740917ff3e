package contextstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/agenthub/internal/contextstore"
	"github.com/kazz187/agenthub/internal/contextstore/repositoryimpl"
	"github.com/kazz187/agenthub/internal/eventbus"
	"github.com/kazz187/agenthub/pkg/cerr"
	"github.com/kazz187/agenthub/pkg/storage"
)

func newContextService(t *testing.T) *contextstore.Service {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return contextstore.NewService(repositoryimpl.NewYAMLRepository(store), eventbus.New())
}

func TestSetVersioning(t *testing.T) {
	svc := newContextService(t)
	ctx := context.Background()

	e, err := svc.Set(ctx, contextstore.SetParams{Key: "branch", Value: "main", Agent: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, e.Version)
	assert.Equal(t, contextstore.DefaultNamespace, e.Namespace)

	e, err = svc.Set(ctx, contextstore.SetParams{Key: "branch", Value: "feature/x", Agent: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, e.Version)
	assert.Equal(t, "b", e.SetBy)

	got, err := svc.Get(ctx, "", "branch")
	require.NoError(t, err)
	assert.Equal(t, "feature/x", got.Value)
	assert.Equal(t, 2, got.Version)
}

func TestNamespaceIsolation(t *testing.T) {
	svc := newContextService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, contextstore.SetParams{Key: "port", Value: 8080, Agent: "a", Namespace: "proj-a"})
	require.NoError(t, err)
	_, err = svc.Set(ctx, contextstore.SetParams{Key: "port", Value: 9090, Agent: "b", Namespace: "proj-b"})
	require.NoError(t, err)

	a, err := svc.Get(ctx, "proj-a", "port")
	require.NoError(t, err)
	assert.Equal(t, 8080, a.Value)
	assert.Equal(t, 1, a.Version)

	b, err := svc.Get(ctx, "proj-b", "port")
	require.NoError(t, err)
	assert.Equal(t, 9090, b.Value)

	entries, err := svc.List(ctx, "proj-a")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = svc.Get(ctx, "", "port")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestSetValidation(t *testing.T) {
	svc := newContextService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, contextstore.SetParams{Value: "x", Agent: "a"})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	_, err = svc.Set(ctx, contextstore.SetParams{Key: "k", Value: "x"})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	_, err = svc.Set(ctx, contextstore.SetParams{Key: "k", Value: "x", Agent: "a", TTL: -1})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	_, err = svc.Set(ctx, contextstore.SetParams{Key: "k", Value: "x", Agent: "a", TTL: (25 * time.Hour).Milliseconds()})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	_, err = svc.Set(ctx, contextstore.SetParams{Key: "k", Value: "x", Agent: "a", TTL: (24 * time.Hour).Milliseconds()})
	assert.NoError(t, err)
}

func TestTTLExpiry(t *testing.T) {
	svc := newContextService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, contextstore.SetParams{Key: "ephemeral", Value: "x", Agent: "a", TTL: 100})
	require.NoError(t, err)
	_, err = svc.Set(ctx, contextstore.SetParams{Key: "durable", Value: "y", Agent: "a"})
	require.NoError(t, err)

	// Before expiry the entry is visible.
	e, err := svc.Get(ctx, "", "ephemeral")
	require.NoError(t, err)
	assert.Equal(t, "x", e.Value)

	time.Sleep(150 * time.Millisecond)

	_, err = svc.Get(ctx, "", "ephemeral")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	// Listing hides the expired entry and keeps the durable one.
	entries, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "durable", entries[0].Key)
}

func TestOverwriteResetsTTL(t *testing.T) {
	svc := newContextService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, contextstore.SetParams{Key: "k", Value: "short", Agent: "a", TTL: 100})
	require.NoError(t, err)

	// Rewriting without a TTL removes the expiry.
	e, err := svc.Set(ctx, contextstore.SetParams{Key: "k", Value: "forever", Agent: "a"})
	require.NoError(t, err)
	assert.Equal(t, 2, e.Version)

	time.Sleep(150 * time.Millisecond)

	got, err := svc.Get(ctx, "", "k")
	require.NoError(t, err)
	assert.Equal(t, "forever", got.Value)
}
