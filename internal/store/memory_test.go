package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/serroba/redirect-engine/internal/shortener"
	"github.com/serroba/redirect-engine/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMapping(code string) *shortener.Mapping {
	return &shortener.Mapping{
		Code:      shortener.Code(code),
		TargetURL: "https://example.com/" + code,
		CreatedAt: time.Now(),
		Active:    true,
	}
}

func TestMemoryStore_InsertIfAbsent(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a new mapping", func(t *testing.T) {
		s := store.NewMemoryStore()

		require.NoError(t, s.InsertIfAbsent(ctx, newMapping("abc123")))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("never overwrites an existing code", func(t *testing.T) {
		s := store.NewMemoryStore()
		_ = s.InsertIfAbsent(ctx, newMapping("abc123"))

		other := newMapping("abc123")
		other.TargetURL = "https://other.com"

		err := s.InsertIfAbsent(ctx, other)
		require.ErrorIs(t, err, shortener.ErrAlreadyExists)

		got, _ := s.Get(ctx, "abc123")
		assert.Equal(t, "https://example.com/abc123", got.TargetURL)
	})

	t.Run("exactly one concurrent insert wins", func(t *testing.T) {
		s := store.NewMemoryStore()

		var (
			wg   sync.WaitGroup
			wins atomic.Int64
		)

		for range 50 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				if s.InsertIfAbsent(ctx, newMapping("race")) == nil {
					wins.Add(1)
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, int64(1), wins.Load())
	})

	t.Run("honours a cancelled context", func(t *testing.T) {
		s := store.NewMemoryStore()
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		err := s.InsertIfAbsent(cctx, newMapping("abc123"))

		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, s.Len())
	})
}

func TestMemoryStore_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("returns not found for unknown codes", func(t *testing.T) {
		_, err := store.NewMemoryStore().Get(ctx, "missing")

		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("returns copies", func(t *testing.T) {
		s := store.NewMemoryStore()
		m := newMapping("abc123")
		expires := time.Now().Add(time.Hour)
		m.ExpiresAt = &expires
		_ = s.InsertIfAbsent(ctx, m)

		m.TargetURL = "https://mutated.example"

		got, err := s.Get(ctx, "abc123")
		require.NoError(t, err)

		got.ExpiresAt = nil
		again, _ := s.Get(ctx, "abc123")

		assert.Equal(t, "https://example.com/abc123", again.TargetURL)
		require.NotNil(t, again.ExpiresAt)
		assert.True(t, expires.Equal(*again.ExpiresAt))
	})
}

func TestMemoryStore_Deactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps the mapping but marks it inactive", func(t *testing.T) {
		s := store.NewMemoryStore()
		_ = s.InsertIfAbsent(ctx, newMapping("abc123"))

		require.NoError(t, s.Deactivate(ctx, "abc123"))

		got, err := s.Get(ctx, "abc123")
		require.NoError(t, err)
		assert.False(t, got.Active)

		err = s.InsertIfAbsent(ctx, newMapping("abc123"))
		assert.ErrorIs(t, err, shortener.ErrAlreadyExists, "codes are never reused")
	})

	t.Run("returns not found for unknown codes", func(t *testing.T) {
		err := store.NewMemoryStore().Deactivate(ctx, "missing")

		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})
}

func TestMemoryStore_IncrementClickCount(t *testing.T) {
	ctx := context.Background()

	t.Run("adds delta to the count", func(t *testing.T) {
		s := store.NewMemoryStore()
		_ = s.InsertIfAbsent(ctx, newMapping("abc123"))

		require.NoError(t, s.IncrementClickCount(ctx, "abc123", 1))
		require.NoError(t, s.IncrementClickCount(ctx, "abc123", 4))

		got, _ := s.Get(ctx, "abc123")
		assert.Equal(t, int64(5), got.ClickCount)
	})

	t.Run("returns not found for unknown codes", func(t *testing.T) {
		err := store.NewMemoryStore().IncrementClickCount(ctx, "missing", 1)

		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})
}
