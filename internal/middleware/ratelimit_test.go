package middleware_test

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/redirect-engine/internal/middleware"
	"github.com/serroba/redirect-engine/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const (
	testRemoteAddr = "192.168.1.1:12345"
	testUserAgent  = "TestAgent/1.0"
)

var errMultipartNotSupported = errors.New("multipart not supported in mock")

func newTestAPI() huma.API {
	return humachi.New(chi.NewMux(), huma.DefaultConfig("Test", "1.0.0"))
}

// mockHumaContext implements huma.Context for testing.
type mockHumaContext struct {
	headers     map[string]string
	respHeaders map[string]string
	remoteAddr  string
	written     []byte
	statusCode  int
	method      string
	operation   *huma.Operation
}

func newMockHumaContext() *mockHumaContext {
	return &mockHumaContext{
		headers:     map[string]string{"User-Agent": testUserAgent},
		respHeaders: make(map[string]string),
		remoteAddr:  testRemoteAddr,
		method:      http.MethodGet,
	}
}

func (m *mockHumaContext) Operation() *huma.Operation              { return m.operation }
func (m *mockHumaContext) Context() context.Context                { return context.Background() }
func (m *mockHumaContext) TLS() *tls.ConnectionState               { return nil }
func (m *mockHumaContext) Version() huma.ProtoVersion              { return huma.ProtoVersion{} }
func (m *mockHumaContext) Method() string                          { return m.method }
func (m *mockHumaContext) Host() string                            { return "localhost" }
func (m *mockHumaContext) RemoteAddr() string                      { return m.remoteAddr }
func (m *mockHumaContext) URL() url.URL                            { return url.URL{Path: "/raw"} }
func (m *mockHumaContext) Param(_ string) string                   { return "" }
func (m *mockHumaContext) Query(_ string) string                   { return "" }
func (m *mockHumaContext) Header(name string) string               { return m.headers[name] }
func (m *mockHumaContext) EachHeader(_ func(name, value string))   {}
func (m *mockHumaContext) BodyReader() io.Reader                   { return nil }
func (m *mockHumaContext) SetReadDeadline(_ time.Time) error       { return nil }
func (m *mockHumaContext) SetStatus(code int)                      { m.statusCode = code }
func (m *mockHumaContext) Status() int                             { return m.statusCode }
func (m *mockHumaContext) AppendHeader(name, value string)         { m.respHeaders[name] = value }
func (m *mockHumaContext) SetHeader(name, value string)            { m.respHeaders[name] = value }
func (m *mockHumaContext) BodyWriter() io.Writer                   { return &mockBodyWriter{ctx: m} }
func (m *mockHumaContext) GetMultipartForm() (*multipart.Form, error) {
	return nil, errMultipartNotSupported
}

type mockBodyWriter struct {
	ctx *mockHumaContext
}

func (w *mockBodyWriter) Write(p []byte) (int, error) {
	w.ctx.written = append(w.ctx.written, p...)

	return len(p), nil
}

// mockPolicyStore counts per key and remembers the keys it saw.
type mockPolicyStore struct {
	counts map[string]int64
	keys   []string
	err    error
}

func newMockPolicyStore() *mockPolicyStore {
	return &mockPolicyStore{counts: make(map[string]int64)}
}

func (m *mockPolicyStore) Record(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}

	m.keys = append(m.keys, key)
	m.counts[key]++

	return m.counts[key], nil
}

type staticResolver []ratelimit.Scope

func (s staticResolver) Resolve(_ huma.Context) []ratelimit.Scope {
	return s
}

func limitTo(scope ratelimit.Scope, limit int64) *ratelimit.Policy {
	return &ratelimit.Policy{Limits: map[ratelimit.Scope][]ratelimit.LimitConfig{
		scope: {{Window: time.Minute, Max: limit}},
	}}
}

func run(mw func(huma.Context, func(huma.Context)), ctx *mockHumaContext) bool {
	called := false

	mw(ctx, func(_ huma.Context) {
		called = true
	})

	return called
}

func TestPolicyRateLimiter(t *testing.T) {
	t.Run("allows requests under the limit", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(newMockPolicyStore(), limitTo(ratelimit.ScopeGlobal, 2))
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, staticResolver{ratelimit.ScopeGlobal}, zap.NewNop())

		assert.True(t, run(mw, newMockHumaContext()))
		assert.True(t, run(mw, newMockHumaContext()))
	})

	t.Run("returns 429 with Retry-After when exceeded", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(newMockPolicyStore(), limitTo(ratelimit.ScopeWrite, 1))
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, staticResolver{ratelimit.ScopeWrite}, zap.NewNop())

		run(mw, newMockHumaContext())

		ctx := newMockHumaContext()

		assert.False(t, run(mw, ctx), "next should not be called when rate limited")
		assert.Equal(t, http.StatusTooManyRequests, ctx.statusCode)
		assert.Equal(t, "60", ctx.respHeaders["Retry-After"])
		assert.Contains(t, string(ctx.written), "write scope, 2/1")
	})

	t.Run("clients are keyed by ip and user agent", func(t *testing.T) {
		store := newMockPolicyStore()
		limiter := ratelimit.NewPolicyLimiter(store, limitTo(ratelimit.ScopeGlobal, 1))
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, staticResolver{ratelimit.ScopeGlobal}, zap.NewNop())

		run(mw, newMockHumaContext())

		otherAgent := newMockHumaContext()
		otherAgent.headers["User-Agent"] = "OtherAgent/2.0"

		otherIP := newMockHumaContext()
		otherIP.headers["X-Forwarded-For"] = "203.0.113.195, 70.41.3.18"

		assert.True(t, run(mw, otherAgent))
		assert.True(t, run(mw, otherIP))
		assert.Len(t, store.counts, 3)
		assert.NotContains(t, store.keys[0], "192.168.1.1", "keys must not expose the client ip")
	})

	t.Run("returns 500 on store error", func(t *testing.T) {
		store := newMockPolicyStore()
		store.err = errors.New("redis down")
		limiter := ratelimit.NewPolicyLimiter(store, limitTo(ratelimit.ScopeGlobal, 1))
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, staticResolver{ratelimit.ScopeGlobal}, zap.NewNop())

		ctx := newMockHumaContext()

		assert.False(t, run(mw, ctx))
		assert.Equal(t, http.StatusInternalServerError, ctx.statusCode)
	})

	t.Run("skips limiting when disabled via metadata", func(t *testing.T) {
		store := newMockPolicyStore()
		limiter := ratelimit.NewPolicyLimiter(store, limitTo(ratelimit.ScopeGlobal, 0))
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, staticResolver{ratelimit.ScopeGlobal}, zap.NewNop())

		ctx := newMockHumaContext()
		ctx.operation = &huma.Operation{
			Path:     "/health",
			Metadata: map[string]any{ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true}},
		}

		assert.True(t, run(mw, ctx))
		assert.Empty(t, store.keys)
	})

	t.Run("applies custom limits keyed by route template", func(t *testing.T) {
		store := newMockPolicyStore()
		limiter := ratelimit.NewPolicyLimiter(store, limitTo(ratelimit.ScopeGlobal, 100))
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, staticResolver{ratelimit.ScopeGlobal}, zap.NewNop())

		op := &huma.Operation{
			Path: "/{code}",
			Metadata: map[string]any{ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{{Window: time.Second, Max: 1}},
			}},
		}

		first := newMockHumaContext()
		first.operation = op
		second := newMockHumaContext()
		second.operation = op

		assert.True(t, run(mw, first))
		assert.False(t, run(mw, second))
		assert.Equal(t, http.StatusTooManyRequests, second.statusCode)
		assert.Equal(t, "1", second.respHeaders["Retry-After"])
		assert.Contains(t, store.keys[0], ":custom:/{code}:1000")
	})

	t.Run("custom limit store error returns 500", func(t *testing.T) {
		store := newMockPolicyStore()
		store.err = errors.New("redis down")
		limiter := ratelimit.NewPolicyLimiter(store, limitTo(ratelimit.ScopeGlobal, 100))
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, staticResolver{ratelimit.ScopeGlobal}, zap.NewNop())

		ctx := newMockHumaContext()
		ctx.operation = &huma.Operation{
			Path: "/shorten",
			Metadata: map[string]any{ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{{Window: time.Minute, Max: 1}},
			}},
		}

		assert.False(t, run(mw, ctx))
		assert.Equal(t, http.StatusInternalServerError, ctx.statusCode)
	})
}
