package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/redirect-engine/internal/idgen"
	"github.com/serroba/redirect-engine/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/serroba/redirect-engine/internal/shortener"

// tracer reads the global provider on every call.
func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

const (
	DefaultMaxAttempts  = 3
	DefaultStoreTimeout = 2 * time.Second
)

// Invalidator drops cached resolutions for a code.
type Invalidator interface {
	Invalidate(ctx context.Context, code string) error
}

// CreatedFunc is called after a mapping has been stored.
type CreatedFunc func(ctx context.Context, m *Mapping)

// Allocator creates and deactivates mappings.
type Allocator struct {
	repo         Repository
	source       CodeSource
	cache        Invalidator
	logger       *zap.Logger
	maxAttempts  int
	storeTimeout time.Duration
	onCreated    CreatedFunc
	now          func() time.Time
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithMaxAttempts bounds how many generated codes Create tries.
func WithMaxAttempts(n int) AllocatorOption {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithStoreTimeout bounds each store write.
func WithStoreTimeout(d time.Duration) AllocatorOption {
	return func(a *Allocator) {
		if d > 0 {
			a.storeTimeout = d
		}
	}
}

// WithCreatedHook registers fn to run after every successful Create.
func WithCreatedHook(fn CreatedFunc) AllocatorOption {
	return func(a *Allocator) {
		a.onCreated = fn
	}
}

// WithAllocatorClock replaces time.Now.
func WithAllocatorClock(now func() time.Time) AllocatorOption {
	return func(a *Allocator) {
		a.now = now
	}
}

// NewAllocator wires an allocator. cache may be nil when nothing caches resolutions.
func NewAllocator(repo Repository, source CodeSource, cache Invalidator, logger *zap.Logger, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		repo:         repo,
		source:       source,
		cache:        cache,
		logger:       logger,
		maxAttempts:  DefaultMaxAttempts,
		storeTimeout: DefaultStoreTimeout,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Create validates req and stores a new active mapping under the alias or a
// generated code. Generated codes that collide are retried up to the
// configured attempts.
func (a *Allocator) Create(ctx context.Context, req CreateRequest) (*Mapping, error) {
	ctx, span := tracer().Start(ctx, "Allocator.Create")
	defer span.End()

	m, err := a.create(ctx, req)

	outcome := creationOutcome(err)
	metrics.Creations.WithLabelValues(outcome).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)

		return nil, err
	}

	span.SetAttributes(
		attribute.String("shortener.code", string(m.Code)),
		attribute.Bool("shortener.alias", req.Alias != ""),
	)

	// A tombstone may have been cached for this code before it existed.
	a.invalidate(ctx, m.Code)

	if a.onCreated != nil {
		a.onCreated(ctx, m)
	}

	return m, nil
}

func (a *Allocator) create(ctx context.Context, req CreateRequest) (*Mapping, error) {
	if err := ValidateTargetURL(req.TargetURL); err != nil {
		return nil, err
	}

	if req.TTL < 0 {
		return nil, ErrInvalidTTL
	}

	now := a.now()
	m := &Mapping{
		TargetURL: req.TargetURL,
		Owner:     req.Owner,
		CreatedAt: now,
		Active:    true,
	}

	if req.TTL > 0 {
		expiresAt := now.Add(req.TTL)
		m.ExpiresAt = &expiresAt
	}

	if req.Alias != "" {
		return a.createAlias(ctx, m, req.Alias)
	}

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		code, err := a.source.NextCode(ctx)
		if err != nil {
			return nil, fmt.Errorf("next code: %w", err)
		}

		m.Code = code

		err = a.insert(ctx, m)
		if err == nil {
			return m, nil
		}

		if !errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}

		a.logger.Warn("generated code collided",
			zap.String("code", string(code)),
			zap.Int("attempt", attempt),
		)
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrExhaustedRetries, a.maxAttempts)
}

func (a *Allocator) createAlias(ctx context.Context, m *Mapping, alias string) (*Mapping, error) {
	if err := ValidateAlias(alias); err != nil {
		return nil, err
	}

	m.Code = Code(alias)

	if err := a.insert(ctx, m); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrAliasTaken, alias)
		}

		return nil, err
	}

	return m, nil
}

func (a *Allocator) insert(ctx context.Context, m *Mapping) error {
	storeCtx, cancel := context.WithTimeout(ctx, a.storeTimeout)
	defer cancel()

	err := a.repo.InsertIfAbsent(storeCtx, m)
	if err == nil || errors.Is(err, ErrAlreadyExists) {
		return err
	}

	if storeCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &UnknownOutcomeError{Code: m.Code, Err: err}
	}

	return fmt.Errorf("insert %s: %w", m.Code, err)
}

// Deactivate marks code inactive and drops it from the resolution cache
// before returning, so later resolves in this process miss.
func (a *Allocator) Deactivate(ctx context.Context, code Code) error {
	ctx, span := tracer().Start(ctx, "Allocator.Deactivate")
	defer span.End()

	span.SetAttributes(attribute.String("shortener.code", string(code)))

	storeCtx, cancel := context.WithTimeout(ctx, a.storeTimeout)
	defer cancel()

	if err := a.repo.Deactivate(storeCtx, code); err != nil {
		span.RecordError(err)

		if errors.Is(err, ErrNotFound) {
			return err
		}

		return fmt.Errorf("deactivate %s: %w", code, err)
	}

	a.invalidate(ctx, code)

	return nil
}

// Stats returns the stored mapping for code, live or not.
func (a *Allocator) Stats(ctx context.Context, code Code) (*Mapping, error) {
	storeCtx, cancel := context.WithTimeout(ctx, a.storeTimeout)
	defer cancel()

	return a.repo.Get(storeCtx, code)
}

func (a *Allocator) invalidate(ctx context.Context, code Code) {
	if a.cache == nil {
		return
	}

	if err := a.cache.Invalidate(ctx, string(code)); err != nil {
		a.logger.Error("cache invalidation failed", zap.String("code", string(code)), zap.Error(err))
	}
}

func creationOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrInvalidURL), errors.Is(err, ErrInvalidAlias), errors.Is(err, ErrInvalidTTL):
		return "invalid"
	case errors.Is(err, ErrAliasTaken):
		return "alias_taken"
	case errors.Is(err, ErrExhaustedRetries):
		return "exhausted"
	case errors.Is(err, ErrUnknownOutcome):
		return "unknown_outcome"
	case errors.Is(err, idgen.ErrClockRegression):
		return "clock_regression"
	default:
		return "error"
	}
}
