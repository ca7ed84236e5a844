package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

// Server wraps http.Server with the timeouts and graceful shutdown the api
// binary uses.
type Server struct {
	srv  *http.Server
	logg *logger.Logger
}

func NewServer(port string, handler http.Handler, logg *logger.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logg: logg,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to grace.
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if s.logg != nil {
		s.logg.Info(shutdownCtx, "api.shutdown")
	}
	return s.srv.Shutdown(shutdownCtx)
}
