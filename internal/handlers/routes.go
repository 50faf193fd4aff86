package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/redirect-engine/internal/ratelimit"
)

// RegisterRoutes registers the URL routes with their rate limit configuration.
func RegisterRoutes(api huma.API, urlHandler *URLHandler) {
	// Creation has its own budget on top of the write scope.
	huma.Register(api, huma.Operation{
		OperationID:   "create-short-url",
		Method:        http.MethodPost,
		Path:          "/shorten",
		Summary:       "Create short URL",
		Description:   "Creates a short code for a URL, optionally with a custom alias and expiry.",
		Tags:          []string{"URLs"},
		DefaultStatus: http.StatusCreated,
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{
					{Window: time.Minute, Max: 10},
					{Window: time.Hour, Max: 100},
					{Window: 24 * time.Hour, Max: 500},
				},
			},
		},
	}, urlHandler.CreateShortURL)

	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Redirect to original URL",
		Description: "Redirects to the URL behind the code. Unknown, expired and deleted codes all return 404.",
		Tags:        []string{"URLs"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Scope: ratelimit.ScopeResolve},
		},
	}, urlHandler.RedirectToURL)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-short-url",
		Method:        http.MethodDelete,
		Path:          "/{code}",
		Summary:       "Deactivate short URL",
		Description:   "Stops the code from resolving. The code is never reissued. Unknown codes also answer 204.",
		Tags:          []string{"URLs"},
		DefaultStatus: http.StatusNoContent,
	}, urlHandler.DeleteShortURL)

	huma.Register(api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/{code}/stats",
		Summary:     "Short URL statistics",
		Description: "Deactivated and expired codes answer 404 like unknown ones.",
		Tags:        []string{"URLs"},
	}, urlHandler.GetStats)
}
