// Package keypool hands out pre-generated random codes. It is an alternative
// to snowflake codes for deployments that want short, unguessable codes.
package keypool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jaevor/go-nanoid"
	"github.com/serroba/redirect-engine/internal/base62"
	"github.com/serroba/redirect-engine/internal/shortener"
	"go.uber.org/zap"
)

// ErrEmpty is returned by a Store with no codes left.
var ErrEmpty = errors.New("key pool is empty")

// Store holds unissued codes. Pop must hand each code to at most one caller.
type Store interface {
	Pop(ctx context.Context) (string, error)
	Push(ctx context.Context, codes ...string) error
	Len(ctx context.Context) (int64, error)
}

// Config sizes the pool.
type Config struct {
	CodeLength int
	BatchSize  int
	LowWater   int
}

// DefaultConfig returns the defaults used by the server.
func DefaultConfig() Config {
	return Config{
		CodeLength: 7,
		BatchSize:  1000,
		LowWater:   100,
	}
}

// Pool is a shortener.CodeSource drawing from a Store and refilling it with
// nanoid codes over the base62 alphabet.
type Pool struct {
	store    Store
	generate func() string
	cfg      Config
	logger   *zap.Logger
	refillMu sync.Mutex
}

// New creates a pool over store.
func New(store Store, cfg Config, logger *zap.Logger) (*Pool, error) {
	if cfg.CodeLength < shortener.MinAliasLength || cfg.CodeLength > shortener.MaxAliasLength {
		return nil, fmt.Errorf("code length %d out of range", cfg.CodeLength)
	}

	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}

	generate, err := nanoid.CustomASCII(base62.AlphabetV1, cfg.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("nanoid generator: %w", err)
	}

	return &Pool{
		store:    store,
		generate: generate,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// NextCode pops a code, refilling the store once if it is empty.
func (p *Pool) NextCode(ctx context.Context) (shortener.Code, error) {
	code, err := p.store.Pop(ctx)
	if errors.Is(err, ErrEmpty) {
		if err := p.Refill(ctx); err != nil {
			return "", err
		}

		code, err = p.store.Pop(ctx)
	}

	if err != nil {
		return "", fmt.Errorf("pop code: %w", err)
	}

	p.maybeRefill(ctx)

	return shortener.Code(code), nil
}

// Refill tops the store up with a batch when it holds fewer than LowWater codes.
// Codes that later collide with a stored mapping are retried by the allocator.
func (p *Pool) Refill(ctx context.Context) error {
	p.refillMu.Lock()
	defer p.refillMu.Unlock()

	n, err := p.store.Len(ctx)
	if err != nil {
		return fmt.Errorf("pool length: %w", err)
	}

	if n >= int64(p.cfg.LowWater) && n > 0 {
		return nil
	}

	batch := make([]string, p.cfg.BatchSize)
	for i := range batch {
		batch[i] = p.generate()
	}

	if err := p.store.Push(ctx, batch...); err != nil {
		return fmt.Errorf("push codes: %w", err)
	}

	p.logger.Debug("key pool refilled", zap.Int64("before", n), zap.Int("added", len(batch)))

	return nil
}

func (p *Pool) maybeRefill(ctx context.Context) {
	n, err := p.store.Len(ctx)
	if err != nil || n >= int64(p.cfg.LowWater) {
		return
	}

	go func() {
		refillCtx := context.WithoutCancel(ctx)
		if err := p.Refill(refillCtx); err != nil {
			p.logger.Warn("key pool refill failed", zap.Error(err))
		}
	}()
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	codes []string
	seen  map[string]struct{}
}

// NewMemoryStore creates an empty in-memory key store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

func (m *MemoryStore) Pop(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.codes) == 0 {
		return "", ErrEmpty
	}

	last := len(m.codes) - 1
	code := m.codes[last]
	m.codes = m.codes[:last]

	return code, nil
}

// Push adds codes, skipping any this store has handed out or holds already.
func (m *MemoryStore) Push(_ context.Context, codes ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range codes {
		if _, ok := m.seen[c]; ok {
			continue
		}

		m.seen[c] = struct{}{}
		m.codes = append(m.codes, c)
	}

	return nil
}

func (m *MemoryStore) Len(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return int64(len(m.codes)), nil
}

var _ shortener.CodeSource = (*Pool)(nil)
