package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/redirect-engine/internal/cache"
	"github.com/serroba/redirect-engine/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// EntryCache is the read-through cache the redirector resolves through.
type EntryCache interface {
	GetOrLoad(ctx context.Context, code string, load cache.Loader) (cache.Entry, error)
}

// ClickRecorder accepts a click for asynchronous accounting. It must not block.
type ClickRecorder interface {
	RecordClick(ctx context.Context, code Code)
}

// Redirector resolves codes to redirect targets.
type Redirector struct {
	repo      Repository
	cache     EntryCache
	clicks    ClickRecorder
	logger    *zap.Logger
	permanent bool
	now       func() time.Time
}

// RedirectorOption configures a Redirector.
type RedirectorOption func(*Redirector)

// WithPermanentRedirects makes resolved targets request a 301 instead of a 302.
func WithPermanentRedirects(permanent bool) RedirectorOption {
	return func(r *Redirector) {
		r.permanent = permanent
	}
}

// WithClickRecorder sets where successful resolutions are reported.
func WithClickRecorder(c ClickRecorder) RedirectorOption {
	return func(r *Redirector) {
		r.clicks = c
	}
}

// WithRedirectorClock replaces time.Now.
func WithRedirectorClock(now func() time.Time) RedirectorOption {
	return func(r *Redirector) {
		r.now = now
	}
}

// NewRedirector wires a redirector reading through entries.
func NewRedirector(repo Repository, entries EntryCache, logger *zap.Logger, opts ...RedirectorOption) *Redirector {
	r := &Redirector{
		repo:   repo,
		cache:  entries,
		logger: logger,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve returns the target for code. Unknown, inactive and expired codes
// all yield ErrNotFound.
func (r *Redirector) Resolve(ctx context.Context, code Code) (RedirectTarget, error) {
	ctx, span := tracer().Start(ctx, "Redirector.Resolve")
	defer span.End()

	span.SetAttributes(attribute.String("shortener.code", string(code)))

	if !plausibleCode(code) {
		metrics.Resolutions.WithLabelValues("not_found").Inc()

		return RedirectTarget{}, ErrNotFound
	}

	entry, err := r.cache.GetOrLoad(ctx, string(code), r.load)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			metrics.Resolutions.WithLabelValues("not_found").Inc()

			return RedirectTarget{}, ErrNotFound
		}

		metrics.Resolutions.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")

		return RedirectTarget{}, fmt.Errorf("resolve %s: %w", code, err)
	}

	// The entry may have expired after it was cached.
	if !entry.Live(r.now()) {
		metrics.Resolutions.WithLabelValues("not_found").Inc()

		return RedirectTarget{}, ErrNotFound
	}

	metrics.Resolutions.WithLabelValues("found").Inc()

	if r.clicks != nil {
		r.clicks.RecordClick(ctx, code)
	}

	return RedirectTarget{URL: entry.TargetURL, Permanent: r.permanent}, nil
}

func (r *Redirector) load(ctx context.Context, code string) (cache.Entry, error) {
	m, err := r.repo.Get(ctx, Code(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return cache.Entry{}, cache.ErrNotFound
		}

		r.logger.Error("mapping lookup failed", zap.String("code", code), zap.Error(err))

		return cache.Entry{}, err
	}

	if !m.Live(r.now()) {
		return cache.Entry{}, cache.ErrNotFound
	}

	return cache.Entry{
		Code:      string(m.Code),
		TargetURL: m.TargetURL,
		Active:    m.Active,
		ExpiresAt: m.ExpiresAt,
	}, nil
}
