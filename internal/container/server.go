package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const shutdownGrace = 30 * time.Second

// Server owns the HTTP listener. It depends on every request-path service, so
// the injector shuts it down before any of them.
type Server struct {
	http   *http.Server
	logger *zap.Logger
}

// ServerPackage provides the traced HTTP server.
func ServerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Server, error) {
		opts := do.MustInvoke[*Options](i)
		router := do.MustInvoke[*chi.Mux](i)

		// Building the API registers its routes on router.
		_ = do.MustInvoke[huma.API](i)

		// Invoked before the server so it is shut down after it.
		_ = do.MustInvoke[*Tracing](i)

		return &Server{
			http: &http.Server{
				Addr:              fmt.Sprintf(":%d", opts.Port),
				Handler:           otelhttp.NewHandler(router, "redirect-engine"),
				ReadHeaderTimeout: 10 * time.Second,
			},
			logger: do.MustInvoke[*zap.Logger](i),
		}, nil
	})
}

func (s *Server) Addr() string {
	return s.http.Addr
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", zap.String("addr", s.http.Addr))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	return s.http.Shutdown(ctx)
}
