package keypool_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/serroba/redirect-engine/internal/base62"
	"github.com/serroba/redirect-engine/internal/keypool"
	"github.com/serroba/redirect-engine/internal/shortener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type brokenStore struct {
	keypool.Store
}

func (brokenStore) Pop(context.Context) (string, error) {
	return "", errors.New("connection reset")
}

func TestNew(t *testing.T) {
	t.Run("rejects code lengths outside alias bounds", func(t *testing.T) {
		for _, n := range []int{0, shortener.MinAliasLength - 1, shortener.MaxAliasLength + 1} {
			cfg := keypool.DefaultConfig()
			cfg.CodeLength = n

			_, err := keypool.New(keypool.NewMemoryStore(), cfg, zap.NewNop())
			assert.Error(t, err, n)
		}
	})

	t.Run("rejects empty batches", func(t *testing.T) {
		cfg := keypool.DefaultConfig()
		cfg.BatchSize = 0

		_, err := keypool.New(keypool.NewMemoryStore(), cfg, zap.NewNop())

		assert.Error(t, err)
	})
}

func TestPool_NextCode(t *testing.T) {
	ctx := context.Background()
	codec := base62.MustNew()

	t.Run("fills an empty store on first use", func(t *testing.T) {
		s := keypool.NewMemoryStore()
		p, err := keypool.New(s, keypool.Config{CodeLength: 8, BatchSize: 50, LowWater: 10}, zap.NewNop())
		require.NoError(t, err)

		code, err := p.NextCode(ctx)
		require.NoError(t, err)

		assert.Len(t, string(code), 8)
		assert.True(t, codec.Valid(string(code)))
		assert.NoError(t, shortener.ValidateAlias(string(code)))
	})

	t.Run("hands out distinct codes under concurrency", func(t *testing.T) {
		p, err := keypool.New(keypool.NewMemoryStore(), keypool.Config{CodeLength: 8, BatchSize: 1000, LowWater: 20}, zap.NewNop())
		require.NoError(t, err)

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = make(map[shortener.Code]struct{})
		)

		for range 500 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				code, err := p.NextCode(ctx)
				if !assert.NoError(t, err) {
					return
				}

				mu.Lock()
				seen[code] = struct{}{}
				mu.Unlock()
			}()
		}

		wg.Wait()

		assert.Len(t, seen, 500)
	})

	t.Run("surfaces store failures", func(t *testing.T) {
		p, err := keypool.New(brokenStore{}, keypool.DefaultConfig(), zap.NewNop())
		require.NoError(t, err)

		_, err = p.NextCode(ctx)

		assert.Error(t, err)
	})
}

func TestPool_Refill(t *testing.T) {
	ctx := context.Background()

	t.Run("skips when above the low water mark", func(t *testing.T) {
		s := keypool.NewMemoryStore()
		p, err := keypool.New(s, keypool.Config{CodeLength: 8, BatchSize: 30, LowWater: 10}, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, p.Refill(ctx))
		require.NoError(t, p.Refill(ctx))

		n, _ := s.Len(ctx)
		assert.Equal(t, int64(30), n)
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("pop on empty reports ErrEmpty", func(t *testing.T) {
		_, err := keypool.NewMemoryStore().Pop(ctx)

		assert.ErrorIs(t, err, keypool.ErrEmpty)
	})

	t.Run("never re-adds a code it has seen", func(t *testing.T) {
		s := keypool.NewMemoryStore()
		require.NoError(t, s.Push(ctx, "aaaaaa", "bbbbbb", "aaaaaa"))

		code, err := s.Pop(ctx)
		require.NoError(t, err)
		require.NoError(t, s.Push(ctx, code))

		n, _ := s.Len(ctx)
		assert.Equal(t, int64(1), n)
	})
}
