package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoguard/internal/errdefs"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	_, err := s.Get(ctx, "absent")
	require.ErrorIs(t, err, errdefs.ErrBlobNotFound)

	require.NoError(t, s.Set(ctx, "alerts", []byte(`[{"id":1}]`)))
	got, err := s.Get(ctx, "alerts")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(got))

	require.NoError(t, s.Set(ctx, "alerts", []byte(`[]`)))
	got, err = s.Get(ctx, "alerts")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	exerciseStore(t, m)

	buf := []byte("abc")
	require.NoError(t, m.Set(context.Background(), "k", buf))
	buf[0] = 'z'
	got, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	require.NoError(t, m.Close())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.db")
	s, err := NewSQLite(context.Background(), path)
	if err != nil {
		t.Skipf("sqlite unavailable (cgo disabled?): %v", err)
	}
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)

	require.NoError(t, s.Close())
	reopened, err := NewSQLite(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	got, err := reopened.Get(context.Background(), "alerts")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("AUTOGUARD_TEST_REDIS_URL")
	if addr == "" {
		t.Skip("AUTOGUARD_TEST_REDIS_URL not set")
	}
	s, err := NewRedis(context.Background(), addr)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	require.NoError(t, s.rdb.Del(context.Background(), "absent", "alerts").Err())
	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(context.Background(), Options{Backend: "etcd"})
	require.Error(t, err)

	_, err = Open(context.Background(), Options{Backend: BackendRedis, RedisURL: "not a url"})
	require.Error(t, err)
}
