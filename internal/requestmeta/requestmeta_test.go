package requestmeta_test

import (
	"context"
	"testing"

	"github.com/serroba/redirect-engine/internal/requestmeta"
	"github.com/stretchr/testify/assert"
)

type fakeHeaders struct {
	headers    map[string]string
	remoteAddr string
}

func (f fakeHeaders) Header(name string) string { return f.headers[name] }
func (f fakeHeaders) RemoteAddr() string        { return f.remoteAddr }

func TestContext(t *testing.T) {
	t.Run("round trips metadata", func(t *testing.T) {
		meta := requestmeta.Meta{ClientIP: "10.0.0.1", UserAgent: "curl/8", Referrer: "https://ref.example"}

		ctx := requestmeta.WithContext(context.Background(), meta)

		assert.Equal(t, meta, requestmeta.FromContext(ctx))
	})

	t.Run("returns zero value when absent", func(t *testing.T) {
		assert.Equal(t, requestmeta.Meta{}, requestmeta.FromContext(context.Background()))
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name string
		in   fakeHeaders
		want string
	}{
		{
			name: "first forwarded hop",
			in:   fakeHeaders{headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, remoteAddr: "10.0.0.2:80"},
			want: "203.0.113.5",
		},
		{
			name: "single forwarded address",
			in:   fakeHeaders{headers: map[string]string{"X-Forwarded-For": " 203.0.113.9 "}},
			want: "203.0.113.9",
		},
		{
			name: "real ip header",
			in:   fakeHeaders{headers: map[string]string{"X-Real-IP": "198.51.100.7"}, remoteAddr: "10.0.0.2:80"},
			want: "198.51.100.7",
		},
		{
			name: "peer address without port",
			in:   fakeHeaders{remoteAddr: "192.168.1.1:12345"},
			want: "192.168.1.1",
		},
		{
			name: "peer address that has no port",
			in:   fakeHeaders{remoteAddr: "192.168.1.1"},
			want: "192.168.1.1",
		},
		{
			name: "ipv6 peer",
			in:   fakeHeaders{remoteAddr: "[::1]:8080"},
			want: "::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, requestmeta.ClientIP(tt.in))
		})
	}
}
