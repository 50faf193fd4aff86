package middleware

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/redirect-engine/internal/requestmeta"
)

// RequestMeta adds client IP, user-agent and referrer to the request context.
func RequestMeta(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := requestmeta.Meta{
			ClientIP:  requestmeta.ClientIP(ctx),
			UserAgent: ctx.Header("User-Agent"),
			Referrer:  ctx.Header("Referer"),
		}

		next(huma.WithContext(ctx, requestmeta.WithContext(ctx.Context(), meta)))
	}
}
