package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/aegis-swing/pkg/config"
	"github.com/wonny/aegis-swing/pkg/logger"
)

const defaultShutdownTimeout = 30 * time.Second

// Server serves the HTTP API until its context ends
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	http     *http.Server
	drainFor time.Duration
	logger   *logger.Logger
}

// New creates the API server; timeouts come from HTTP_* settings
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	drain := cfg.HTTP.ShutdownTimeout
	if drain <= 0 {
		drain = defaultShutdownTimeout
	}
	return &Server{
		http: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
			IdleTimeout:  cfg.HTTP.IdleTimeout,
		},
		drainFor: drain,
		logger:   log.WithField("module", "api"),
	}
}

// Run listens until ctx is done, then drains in-flight requests.
// 리슨 실패는 즉시 에러로 반환
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()
	s.logger.WithField("addr", s.http.Addr).Info("API server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), s.drainFor)
	defer cancel()
	if err := s.http.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	s.logger.Info("API server stopped")
	return nil
}
