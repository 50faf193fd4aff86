// Package requestmeta carries client details of an HTTP request through its context.
package requestmeta

import (
	"context"
	"net"
	"strings"
)

// Meta holds HTTP request metadata for analytics and rate limiting.
type Meta struct {
	ClientIP  string
	UserAgent string
	Referrer  string
}

type metaKey struct{}

// WithContext adds meta to ctx.
func WithContext(ctx context.Context, meta Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

// FromContext extracts request metadata, or the zero Meta.
func FromContext(ctx context.Context) Meta {
	if v, ok := ctx.Value(metaKey{}).(Meta); ok {
		return v
	}

	return Meta{}
}

// Headers is the subset of a request the client IP is derived from.
type Headers interface {
	Header(name string) string
	RemoteAddr() string
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address without its port.
func ClientIP(h Headers) string {
	if xff := h.Header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	if xri := h.Header("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := h.RemoteAddr()

	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return ip
}
