package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/arixa/arixa/internal/protocol"
)

// Server exposes an App over HTTP and over the line stream.
type Server struct {
	app    *App
	http   *http.Server
	stream *protocol.StreamServer
}

func New(app *App) *Server {
	s := &Server{app: app}
	// chat requests run the whole conversation loop
	writeTimeout := time.Duration(app.Config.AgentTimeout+30) * time.Second
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.Config.Host, app.Config.Port),
		Handler:      s.setupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}
	if app.Config.StreamAddr != "" {
		s.stream = protocol.NewStreamServer(app.Dispatcher, app.Executor.WorkingDir())
	}
	return s
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled or a listener fails, then shuts both
// servers down and closes the app.
func (s *Server) Run(ctx context.Context) error {
	defer s.app.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", s.http.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})

	if s.stream != nil {
		g.Go(func() error {
			if err := s.stream.ListenAndServe(gctx, s.app.Config.StreamAddr); err != nil {
				return fmt.Errorf("stream server: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
