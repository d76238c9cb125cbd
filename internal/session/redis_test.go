package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megcare/caseflow/pkg/metrics"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, metrics.NewMetrics("caseflow", "test", prometheus.NewRegistry())), mr
}

func TestRedisStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Save(ctx, "abc", map[string]string{KeyUserID: "3", KeyHospital: `{"id":7}`}, time.Hour))
	assert.True(t, mr.Exists("session:abc"))
	assert.Equal(t, time.Hour, mr.TTL("session:abc"))

	values, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "3", values[KeyUserID])
	assert.Equal(t, `{"id":7}`, values[KeyHospital])
}

func TestRedisStore_SaveReplacesRemovedKeys(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	require.NoError(t, store.Save(ctx, "abc", map[string]string{"a": "1", "b": "2"}, time.Hour))
	require.NoError(t, store.Save(ctx, "abc", map[string]string{"a": "1"}, time.Hour))

	values, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	_, ok := values["b"]
	assert.False(t, ok)
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Save(ctx, "abc", map[string]string{"a": "1"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Save(ctx, "abc", map[string]string{"a": "1"}, time.Minute))
	require.NoError(t, store.Delete(ctx, "abc"))
	assert.False(t, mr.Exists("session:abc"))
}

func TestRedisStore_UpdateTouchesOnlyNamedKeys(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Save(ctx, "abc", map[string]string{"a": "1", "b": "2", "c": "3"}, time.Minute))
	require.NoError(t, store.Update(ctx, "abc", map[string]string{"d": "4"}, []string{"b"}, time.Hour))

	values, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "c": "3", "d": "4"}, values)
	assert.Equal(t, time.Hour, mr.TTL("session:abc"))

	require.NoError(t, store.Update(ctx, "abc", nil, []string{"a", "c", "d"}, time.Hour))
	assert.False(t, mr.Exists("session:abc"))
}

func TestRedisStore_ConcurrentCopiesKeepEachOthersKeys(t *testing.T) {
	store, _ := newRedisStore(t)
	concurrentCopies(t, store)
}
