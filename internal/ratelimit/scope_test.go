package ratelimit_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/redirect-engine/internal/ratelimit"
	"github.com/stretchr/testify/assert"
)

// opContext satisfies huma.Context; only Method and Operation are used by the
// resolver, anything else panics on the nil embedded interface.
type opContext struct {
	huma.Context
	method string
	op     *huma.Operation
}

func (c opContext) Method() string             { return c.method }
func (c opContext) Operation() *huma.Operation { return c.op }

func withConfig(cfg any) *huma.Operation {
	return &huma.Operation{Metadata: map[string]any{ratelimit.MetadataKey: cfg}}
}

func TestOperationScopeResolver_Resolve(t *testing.T) {
	resolver := ratelimit.NewOperationScopeResolver()

	tests := []struct {
		name   string
		method string
		op     *huma.Operation
		want   ratelimit.Scope
	}{
		{"GET without operation is a read", http.MethodGet, nil, ratelimit.ScopeRead},
		{"HEAD is a read", http.MethodHead, &huma.Operation{}, ratelimit.ScopeRead},
		{"OPTIONS is a read", http.MethodOptions, nil, ratelimit.ScopeRead},
		{"POST is a write", http.MethodPost, nil, ratelimit.ScopeWrite},
		{"DELETE is a write", http.MethodDelete, &huma.Operation{}, ratelimit.ScopeWrite},
		{"PATCH is a write", http.MethodPatch, nil, ratelimit.ScopeWrite},
		{"metadata scope wins over the method", http.MethodGet, withConfig(ratelimit.EndpointConfig{Scope: ratelimit.ScopeResolve}), ratelimit.ScopeResolve},
		{"metadata can mark a GET as a write", http.MethodGet, withConfig(ratelimit.EndpointConfig{Scope: ratelimit.ScopeWrite}), ratelimit.ScopeWrite},
		{"empty metadata scope falls back", http.MethodPost, withConfig(ratelimit.EndpointConfig{}), ratelimit.ScopeWrite},
		{"foreign metadata is ignored", http.MethodGet, withConfig("not a config"), ratelimit.ScopeRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolver.Resolve(opContext{method: tt.method, op: tt.op})

			assert.Equal(t, []ratelimit.Scope{ratelimit.ScopeGlobal, tt.want}, got)
		})
	}
}

func TestGetEndpointConfig(t *testing.T) {
	t.Run("nil without an operation", func(t *testing.T) {
		assert.Nil(t, ratelimit.GetEndpointConfig(opContext{}))
	})

	t.Run("nil without metadata", func(t *testing.T) {
		assert.Nil(t, ratelimit.GetEndpointConfig(opContext{op: &huma.Operation{}}))
	})

	t.Run("nil for a value of another type", func(t *testing.T) {
		assert.Nil(t, ratelimit.GetEndpointConfig(opContext{op: withConfig(42)}))
	})

	t.Run("returns a copy of the stored config", func(t *testing.T) {
		cfg := ratelimit.EndpointConfig{
			Limits: []ratelimit.LimitConfig{{Window: time.Minute, Max: 10}},
		}

		got := ratelimit.GetEndpointConfig(opContext{op: withConfig(cfg)})

		if assert.NotNil(t, got) {
			assert.Equal(t, cfg, *got)
			assert.False(t, got.Disabled)
		}
	})

	t.Run("reads the disabled flag", func(t *testing.T) {
		got := ratelimit.GetEndpointConfig(opContext{op: withConfig(ratelimit.EndpointConfig{Disabled: true})})

		if assert.NotNil(t, got) {
			assert.True(t, got.Disabled)
		}
	})
}
