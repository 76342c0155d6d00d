package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoguard/internal/blobstore"
	"autoguard/internal/errdefs"
	"autoguard/internal/model"
)

type brokenKV struct {
	getErr error
	setErr error
}

func (b brokenKV) Get(context.Context, string) ([]byte, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	return nil, errdefs.ErrBlobNotFound
}

func (b brokenKV) Set(context.Context, string, []byte) error {
	return b.setErr
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func draft(msg string) model.AlertDraft {
	return model.AlertDraft{Severity: model.SeverityWarning, Type: "manual", Message: msg, Source: "web"}
}

func TestStoreInsertNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore(blobstore.NewMemory(), 0)

	first, err := s.Insert(ctx, draft("one"))
	require.NoError(t, err)
	second, err := s.Insert(ctx, draft("two"))
	require.NoError(t, err)

	assert.Greater(t, second.ID, first.ID)
	assert.False(t, first.Resolved)
	assert.Nil(t, first.ResolvedAt)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "two", list[0].Message)
	assert.Equal(t, "one", list[1].Message)
}

func TestStoreCapacity(t *testing.T) {
	ctx := context.Background()
	s := NewStore(blobstore.NewMemory(), 3)

	var ids []int64
	for i := 0; i < 5; i++ {
		a, err := s.Insert(ctx, draft("x"))
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{ids[4], ids[3], ids[2]}, []int64{list[0].ID, list[1].ID, list[2].ID})

	_, err = s.Get(ctx, ids[0])
	require.ErrorIs(t, err, errdefs.ErrAlertNotFound)
}

func TestStoreDefaultCapacity(t *testing.T) {
	ctx := context.Background()
	s := NewStore(blobstore.NewMemory(), 0)
	for i := 0; i < DefaultCapacity+5; i++ {
		_, err := s.Insert(ctx, draft("x"))
		require.NoError(t, err)
	}
	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, DefaultCapacity)
}

func TestStoreIDsUniqueWithinSameMillisecond(t *testing.T) {
	ctx := context.Background()
	s := NewStore(blobstore.NewMemory(), 10)
	s.now = fixedClock(time.UnixMilli(1_700_000_000_000))

	a, err := s.Insert(ctx, draft("a"))
	require.NoError(t, err)
	b, err := s.Insert(ctx, draft("b"))
	require.NoError(t, err)
	c, err := s.Insert(ctx, draft("c"))
	require.NoError(t, err)

	assert.Equal(t, int64(1_700_000_000_000), a.ID)
	assert.Equal(t, a.ID+1, b.ID)
	assert.Equal(t, b.ID+1, c.ID)
}

func TestStoreIDsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemory()
	clock := fixedClock(time.UnixMilli(5000))

	s := NewStore(blobs, 10)
	s.now = clock
	a, err := s.Insert(ctx, draft("a"))
	require.NoError(t, err)

	restarted := NewStore(blobs, 10)
	restarted.now = fixedClock(time.UnixMilli(4000))
	b, err := restarted.Insert(ctx, draft("b"))
	require.NoError(t, err)
	assert.Greater(t, b.ID, a.ID)
}

func TestStoreResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore(blobstore.NewMemory(), 10)
	a, err := s.Insert(ctx, draft("a"))
	require.NoError(t, err)

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = fixedClock(first)
	resolved, err := s.Resolve(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, first, *resolved.ResolvedAt)

	s.now = fixedClock(first.Add(time.Hour))
	again, err := s.Resolve(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, again.Resolved)
	assert.Equal(t, first, *again.ResolvedAt)

	stored, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first, *stored.ResolvedAt)
	assert.False(t, stored.AutoHealed)
}

func TestStoreResolveUnknown(t *testing.T) {
	s := NewStore(blobstore.NewMemory(), 10)
	_, err := s.Resolve(context.Background(), 42)
	require.ErrorIs(t, err, errdefs.ErrAlertNotFound)
	assert.True(t, errdefs.IsNotFound(err))
}

func TestStoreMarkAutoHealed(t *testing.T) {
	ctx := context.Background()
	s := NewStore(blobstore.NewMemory(), 10)
	a, err := s.Insert(ctx, draft("a"))
	require.NoError(t, err)
	b, err := s.Insert(ctx, draft("b"))
	require.NoError(t, err)

	healed, err := s.MarkAutoHealed(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, healed.Resolved)
	assert.True(t, healed.AutoHealed)
	assert.NotNil(t, healed.ResolvedAt)

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = fixedClock(first)
	_, err = s.Resolve(ctx, b.ID)
	require.NoError(t, err)
	s.now = fixedClock(first.Add(time.Minute))
	healed, err = s.MarkAutoHealed(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, healed.AutoHealed)
	assert.Equal(t, first, *healed.ResolvedAt)
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()

	s := NewStore(brokenKV{getErr: errors.New("dial tcp: refused")}, 10)
	_, err := s.Insert(ctx, draft("a"))
	require.ErrorIs(t, err, errdefs.ErrStoreUnavailable)
	_, err = s.List(ctx)
	require.ErrorIs(t, err, errdefs.ErrStoreUnavailable)
	_, err = s.Resolve(ctx, 1)
	require.ErrorIs(t, err, errdefs.ErrStoreUnavailable)

	s = NewStore(brokenKV{setErr: errors.New("read only replica")}, 10)
	_, err = s.Insert(ctx, draft("a"))
	require.ErrorIs(t, err, errdefs.ErrStoreUnavailable)
}

func TestStoreCorruptBlob(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemory()
	require.NoError(t, blobs.Set(ctx, AlertsKey, []byte("{not json")))

	_, err := NewStore(blobs, 10).List(ctx)
	require.ErrorIs(t, err, errdefs.ErrStoreUnavailable)
}

func TestStorePersistsJSONArray(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemory()
	s := NewStore(blobs, 10)
	_, err := s.Insert(ctx, draft("a"))
	require.NoError(t, err)

	raw, err := blobs.Get(ctx, AlertsKey)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "a", decoded[0]["message"])
	assert.Contains(t, decoded[0], "timestamp")
	assert.NotContains(t, decoded[0], "resolved_at")
}

func TestStoreConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	s := NewStore(blobstore.NewMemory(), 200)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Insert(ctx, draft("x"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 50)
	seen := map[int64]bool{}
	for i, a := range list {
		assert.False(t, seen[a.ID], "duplicate id %d", a.ID)
		seen[a.ID] = true
		if i > 0 {
			assert.Greater(t, list[i-1].ID, a.ID)
		}
	}
}

func TestStoreReloadReproducesSequence(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemory()
	s := NewStore(blobs, 10)
	for _, msg := range []string{"a", "b", "c"} {
		_, err := s.Insert(ctx, draft(msg))
		require.NoError(t, err)
	}
	before, err := s.List(ctx)
	require.NoError(t, err)

	after, err := NewStore(blobs, 10).List(ctx)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Message, after[i].Message)
		assert.True(t, before[i].CreatedAt.Equal(after[i].CreatedAt))
	}
}
