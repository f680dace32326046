package gate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) redis.Cmdable {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisNonceStoreConsumeOnce(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedisNonceStore(client, "test")
	ctx := context.Background()

	ok, err := store.Consume(ctx, "n-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Consume(ctx, "n-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "SET NX must lose the second time")

	ok, err = store.Consume(ctx, "n-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "distinct nonces are independent")
}

func TestRedisNonceStoreTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisNonceStore(client, "test")
	ctx := context.Background()

	ok, err := store.Consume(ctx, "n-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = store.Consume(ctx, "n-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired key frees the nonce")
}

func TestRedisSimulationStoreRoundTrip(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedisSimulationStore(client, "test", time.Hour)
	ctx := context.Background()

	rec := &SimulationRecord{
		ID:            "rec-1",
		IntentHash:    "hash-1",
		ExecutionHash: "exec-1",
		ManifestHash:  "man-1",
		CanonicalJSON: []byte(`{"canonical":true}`),
		CreatedAt:     time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC),
		Venue:         "gmx-v2",
		EstimatedFill: "1850.50",
		Nonce:         "n-1",
		Deadline:      time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.CanonicalJSON, got.CanonicalJSON)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	assert.False(t, got.Settled)
}

func TestRedisSimulationStoreAbsent(t *testing.T) {
	store := NewRedisSimulationStore(newTestRedis(t), "test", time.Hour)

	got, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSimulationStoreMarkSettled(t *testing.T) {
	store := NewRedisSimulationStore(newTestRedis(t), "test", time.Hour)
	ctx := context.Background()

	rec := &SimulationRecord{IntentHash: "hash-1", CanonicalJSON: []byte("{}")}
	require.NoError(t, store.Put(ctx, rec))

	at := time.Date(2026, 9, 1, 0, 30, 0, 0, time.UTC)
	require.NoError(t, store.MarkSettled(ctx, "hash-1", at))

	got, err := store.Get(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Settled)
	assert.True(t, at.Equal(got.SettledAt))

	require.ErrorIs(t, store.MarkSettled(ctx, "missing", at), ErrRecordNotFound)
}

func TestRedisSimulationStoreRetention(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisSimulationStore(client, "test", time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &SimulationRecord{IntentHash: "hash-1", CanonicalJSON: []byte("{}")}))
	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "hash-1")
	require.NoError(t, err)
	assert.Nil(t, got, "records expire at the retention window")
}

func TestGateWithRedisStores(t *testing.T) {
	client := newTestRedis(t)
	g, err := New(testConfig(t),
		WithClock(newTestClock().Now),
		WithNonceStore(NewRedisNonceStore(client, "test")),
		WithSimulationStore(NewRedisSimulationStore(client, "test", 24*time.Hour)),
	)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = g.StoreSimulation(ctx, rawIntent("n-1", "1.5"), defaultResult(), Metadata{})
	require.NoError(t, err)

	decision, err := g.CheckExecutionAllowed(ctx, rawIntent("n-1", "1.5"), Metadata{})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	_, err = g.StoreSimulation(ctx, rawIntent("n-1", "2.5"), defaultResult(), Metadata{})
	require.ErrorIs(t, err, ErrReplayPrevented)
}
