// Package clicks accounts resolved redirects off the request path. Clicks are
// buffered and handed to a Sink by a fixed set of workers; when the buffer is
// full new clicks are dropped and counted.
package clicks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/serroba/redirect-engine/internal/metrics"
	"github.com/serroba/redirect-engine/internal/requestmeta"
	"github.com/serroba/redirect-engine/internal/shortener"
	"go.uber.org/zap"
)

// Event is one resolved redirect.
type Event struct {
	Code shortener.Code
	At   time.Time
	Meta requestmeta.Meta
}

// Sink persists or forwards click events.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Record(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Config sizes the worker pool.
type Config struct {
	Workers     int
	BufferSize  int
	SinkTimeout time.Duration
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		BufferSize:  4096,
		SinkTimeout: 2 * time.Second,
	}
}

// Pool implements shortener.ClickRecorder.
type Pool struct {
	sink    Sink
	events  chan Event
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool starts cfg.Workers workers draining into sink.
func NewPool(sink Sink, cfg Config, logger *zap.Logger) *Pool {
	defaults := DefaultConfig()

	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}

	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}

	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaults.SinkTimeout
	}

	p := &Pool{
		sink:   sink,
		events: make(chan Event, cfg.BufferSize),
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}

	p.wg.Add(cfg.Workers)

	for range cfg.Workers {
		go p.work()
	}

	logger.Info("click workers started", zap.Int("workers", cfg.Workers), zap.Int("buffer", cfg.BufferSize))

	return p
}

// RecordClick enqueues a click without blocking.
func (p *Pool) RecordClick(ctx context.Context, code shortener.Code) {
	event := Event{
		Code: code,
		At:   p.now(),
		Meta: requestmeta.FromContext(ctx),
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(code)

		return
	}

	select {
	case p.events <- event:
	default:
		p.drop(code)
	}
}

// Dropped returns how many clicks were discarded.
func (p *Pool) Dropped() int64 {
	return p.dropped.Load()
}

// Shutdown stops accepting clicks and waits for buffered ones to be handled.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return nil
	}

	p.closed = true
	close(p.events)
	p.mu.Unlock()

	p.wg.Wait()

	return nil
}

func (p *Pool) drop(code shortener.Code) {
	p.dropped.Add(1)
	metrics.ClicksDropped.Inc()
	p.logger.Debug("click dropped", zap.String("code", string(code)))
}

func (p *Pool) work() {
	defer p.wg.Done()

	for event := range p.events {
		p.handle(event)
	}
}

func (p *Pool) handle(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.SinkTimeout)
	defer cancel()

	if err := p.sink.Record(ctx, event); err != nil {
		metrics.ClickFailures.Inc()
		p.logger.Warn("click not recorded",
			zap.String("code", string(event.Code)),
			zap.Error(err),
		)
	}
}

// RepositorySink increments the stored click count directly.
type RepositorySink struct {
	repo shortener.Repository
}

// NewRepositorySink creates a sink writing to repo.
func NewRepositorySink(repo shortener.Repository) *RepositorySink {
	return &RepositorySink{repo: repo}
}

func (s *RepositorySink) Record(ctx context.Context, event Event) error {
	err := s.repo.IncrementClickCount(ctx, event.Code, 1)
	if errors.Is(err, shortener.ErrNotFound) {
		return nil
	}

	return err
}

var _ shortener.ClickRecorder = (*Pool)(nil)
