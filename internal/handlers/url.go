package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/redirect-engine/internal/base62"
	"github.com/serroba/redirect-engine/internal/idgen"
	"github.com/serroba/redirect-engine/internal/shortener"
	"go.uber.org/zap"
)

// Allocator is the write side of the engine.
type Allocator interface {
	Create(ctx context.Context, req shortener.CreateRequest) (*shortener.Mapping, error)
	Deactivate(ctx context.Context, code shortener.Code) error
	Stats(ctx context.Context, code shortener.Code) (*shortener.Mapping, error)
}

// Resolver is the read side of the engine.
type Resolver interface {
	Resolve(ctx context.Context, code shortener.Code) (shortener.RedirectTarget, error)
}

// URLHandler handles URL shortening operations.
type URLHandler struct {
	allocator Allocator
	resolver  Resolver
	codec     *base62.Codec
	baseURL   string
	logger    *zap.Logger
	now       func() time.Time
}

// NewURLHandler creates a new URL handler.
func NewURLHandler(allocator Allocator, resolver Resolver, codec *base62.Codec, baseURL string, logger *zap.Logger) *URLHandler {
	return &URLHandler{
		allocator: allocator,
		resolver:  resolver,
		codec:     codec,
		baseURL:   baseURL,
		logger:    logger,
		now:       time.Now,
	}
}

func (h *URLHandler) CreateShortURL(ctx context.Context, req *CreateShortURLRequest) (*CreateShortURLResponse, error) {
	m, err := h.allocator.Create(ctx, shortener.CreateRequest{
		TargetURL: req.Body.URL,
		Alias:     req.Body.Alias,
		TTL:       time.Duration(req.Body.TTLSeconds) * time.Second,
		Owner:     req.Body.Owner,
	})
	if err != nil {
		return nil, h.httpError(err, "create")
	}

	shortURL := fmt.Sprintf("%s/%s", h.baseURL, m.Code)

	resp := &CreateShortURLResponse{Status: http.StatusCreated}
	resp.Headers.Location = shortURL
	resp.Body.Code = string(m.Code)
	resp.Body.ShortURL = shortURL
	resp.Body.OriginalURL = m.TargetURL
	resp.Body.ExpiresAt = m.ExpiresAt

	return resp, nil
}

func (h *URLHandler) RedirectToURL(ctx context.Context, req *CodeRequest) (*RedirectResponse, error) {
	target, err := h.resolver.Resolve(ctx, shortener.Code(req.Code))
	if err != nil {
		return nil, h.httpError(err, "resolve")
	}

	resp := &RedirectResponse{Status: http.StatusFound, Location: target.URL}
	if target.Permanent {
		resp.Status = http.StatusMovedPermanently
	}

	return resp, nil
}

// DeleteShortURL is idempotent: unknown and already deactivated codes answer
// 204 like live ones.
func (h *URLHandler) DeleteShortURL(ctx context.Context, req *CodeRequest) (*struct{}, error) {
	err := h.allocator.Deactivate(ctx, shortener.Code(req.Code))
	if err != nil && !errors.Is(err, shortener.ErrNotFound) {
		return nil, h.httpError(err, "deactivate")
	}

	return nil, nil
}

func (h *URLHandler) GetStats(ctx context.Context, req *CodeRequest) (*StatsResponse, error) {
	m, err := h.allocator.Stats(ctx, shortener.Code(req.Code))
	if err != nil {
		return nil, h.httpError(err, "stats")
	}

	// Deactivated and expired codes answer like codes that never existed.
	if !m.Live(h.now()) {
		return nil, huma.Error404NotFound("short url not found")
	}

	resp := &StatsResponse{}
	resp.Body.Code = string(m.Code)
	resp.Body.OriginalURL = m.TargetURL
	resp.Body.Owner = m.Owner
	resp.Body.CreatedAt = m.CreatedAt
	resp.Body.ExpiresAt = m.ExpiresAt
	resp.Body.Clicks = m.ClickCount
	resp.Body.Generated = h.generatedID(m)

	return resp, nil
}

// generatedID decodes the snowflake behind a generated code. Aliases that
// happen to decode are told apart by their timestamp not matching CreatedAt.
func (h *URLHandler) generatedID(m *shortener.Mapping) *GeneratedID {
	n, err := h.codec.Decode(string(m.Code))
	if err != nil || n>>63 != 0 {
		return nil
	}

	parts := idgen.Decompose(idgen.ID(n))

	if d := parts.Timestamp.Sub(m.CreatedAt); d > time.Minute || d < -time.Minute {
		return nil
	}

	return &GeneratedID{IssuedAt: parts.Timestamp, Instance: parts.Instance, Sequence: parts.Sequence}
}

// httpError maps domain errors to HTTP responses. Anything unrecognised is
// logged and hidden behind a 500.
func (h *URLHandler) httpError(err error, op string) error {
	var unknown *shortener.UnknownOutcomeError

	switch {
	case errors.Is(err, shortener.ErrNotFound):
		return huma.Error404NotFound("short url not found")
	case errors.Is(err, shortener.ErrInvalidURL), errors.Is(err, shortener.ErrInvalidTTL):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, shortener.ErrInvalidAlias):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, shortener.ErrAliasTaken):
		return huma.Error409Conflict(err.Error())
	case errors.As(err, &unknown):
		h.logger.Warn("write outcome unknown", zap.String("op", op), zap.String("code", string(unknown.Code)), zap.Error(err))

		return huma.Error504GatewayTimeout(fmt.Sprintf("write for code %s timed out and may have been applied", unknown.Code))
	case errors.Is(err, idgen.ErrClockRegression), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("temporarily unavailable", zap.String("op", op), zap.Error(err))

		return huma.Error503ServiceUnavailable("temporarily unavailable, retry shortly")
	}

	h.logger.Error("request failed", zap.String("op", op), zap.Error(err))

	return huma.Error500InternalServerError("internal server error")
}
