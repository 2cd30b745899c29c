package wizard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisSnapshotStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return &RedisSnapshotStore{Rdb: rdb, TTL: time.Hour}, mr
}

func TestRedisSnapshotStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	installID := uuid.New()

	snap := newSnapshot()
	snap.Step = StepTariffs
	snap.InstallationID = &installID
	snap.SkippedSteps = []Step{StepConnectionCheck}
	require.NoError(t, store.Save(ctx, "abc", snap))

	loaded, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StepTariffs, loaded.Step)
	require.NotNil(t, loaded.InstallationID)
	assert.Equal(t, installID, *loaded.InstallationID)
	assert.Equal(t, []Step{StepConnectionCheck}, loaded.SkippedSteps)
}

func TestRedisSnapshotStoreMissingSession(t *testing.T) {
	store, _ := newRedisStore(t)
	loaded, err := store.Load(context.Background(), "never-saved")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisSnapshotStoreCorruptPayload(t *testing.T) {
	store, mr := newRedisStore(t)
	require.NoError(t, mr.Set(snapshotKeyPrefix+"broken", "{not json"))

	// A snapshot that cannot be decoded reads as a fresh session.
	loaded, err := store.Load(context.Background(), "broken")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisSnapshotStoreDelete(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "gone", newSnapshot()))
	require.NoError(t, store.Delete(ctx, "gone"))

	loaded, err := store.Load(ctx, "gone")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
