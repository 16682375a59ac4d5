package kv

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"securestop-backend/internal/config"
	"securestop-backend/pkg/logging"
	"securestop-backend/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Items []string `json:"items"`
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(config.RedisConfig{
		Host:        mr.Host(),
		Port:        mr.Port(),
		PoolSize:    2,
		DialTimeout: time.Second,
	})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "test:")
	return store, mr
}

func testStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		var d doc
		found, err := GetJSON(ctx, store, "absent", &d)
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, PutJSON(ctx, store, "k", doc{Items: []string{"a", "b"}}))

		var d doc
		found, err := GetJSON(ctx, store, "k", &d)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []string{"a", "b"}, d.Items)
	})

	t.Run("nil deletes", func(t *testing.T) {
		require.NoError(t, PutJSON(ctx, store, "k", nil))
		_, found, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("malformed value", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "bad", []byte("{not json")))
		d := doc{Items: []string{"keep"}}
		found, err := GetJSON(ctx, store, "bad", &d)
		assert.Error(t, err)
		assert.False(t, found)
		assert.Equal(t, []string{"keep"}, d.Items)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	store, mr := newRedisStore(t)
	testStoreContract(t, store)

	require.NoError(t, store.Put(context.Background(), "prefixed", []byte(`{}`)))
	assert.True(t, mr.Exists("test:prefixed"))
	assert.Equal(t, time.Duration(0), mr.TTL("test:prefixed"))
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	store, err := ConnectMongo(context.Background(), uri)
	require.NoError(t, err)
	defer store.Close()

	testStoreContract(t, store)
}

// flakyStore fails every Put while failing is set
type flakyStore struct {
	*MemoryStore
	mu      sync.Mutex
	failing bool
	puts    map[string]int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: NewMemoryStore(), puts: make(map[string]int)}
}

func (f *flakyStore) Put(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	f.puts[key]++
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return errors.New("disk full")
	}
	return f.MemoryStore.Put(ctx, key, data)
}

func TestWriter(t *testing.T) {
	logging.Quiet()
	ctx := context.Background()

	t.Run("latest value wins", func(t *testing.T) {
		store := NewMemoryStore()
		w := NewWriter(store, time.Hour)
		defer w.Close()

		w.Set("k", doc{Items: []string{"1"}})
		w.Set("k", doc{Items: []string{"2"}})
		w.Flush(ctx)

		var d doc
		found, err := GetJSON(ctx, store, "k", &d)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []string{"2"}, d.Items)
	})

	t.Run("snapshot taken at Set", func(t *testing.T) {
		store := NewMemoryStore()
		w := NewWriter(store, time.Hour)
		defer w.Close()

		items := []string{"a"}
		w.Set("k", doc{Items: items})
		items[0] = "mutated"
		w.Flush(ctx)

		var d doc
		_, err := GetJSON(ctx, store, "k", &d)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, d.Items)
	})

	t.Run("nil deletes", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, PutJSON(ctx, store, "k", doc{}))
		w := NewWriter(store, time.Hour)
		defer w.Close()

		w.Set("k", nil)
		w.Flush(ctx)

		_, found, _ := store.Get(ctx, "k")
		assert.False(t, found)
	})

	t.Run("failures are swallowed and counted", func(t *testing.T) {
		store := newFlakyStore()
		store.failing = true
		w := NewWriter(store, time.Hour)
		defer w.Close()

		w.Set("k", doc{})
		w.Flush(ctx)

		assert.GreaterOrEqual(t, w.Stats().Failed, int64(1))
		_, found, _ := store.Get(ctx, "k")
		assert.False(t, found)
	})

	t.Run("close flushes", func(t *testing.T) {
		store := NewMemoryStore()
		w := NewWriter(store, time.Hour)
		w.Set("k", doc{Items: []string{"x"}})
		require.NoError(t, w.Close())

		_, found, _ := store.Get(ctx, "k")
		assert.True(t, found)
	})
}
