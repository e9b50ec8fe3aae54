package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgnsrekt/lumina-voice/internal/clips"
	"github.com/dgnsrekt/lumina-voice/internal/config"
	"github.com/dgnsrekt/lumina-voice/internal/playback"
	"github.com/dgnsrekt/lumina-voice/internal/queue"
)

// Player is the playback surface the API drives.
type Player interface {
	Play(messageID string) (playback.Session, error)
	Stop() playback.Session
	Session() playback.Session
}

// Server handles HTTP API requests.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	server *http.Server
	queue  *queue.Queue
	clips  *clips.Store
	player Player
}

// New creates a new API server. Any of q, store and player may be nil, in
// which case the routes that need them report the service as unavailable.
func New(cfg *config.Config, logger *slog.Logger, q *queue.Queue, store *clips.Store, player Player) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		queue:  q,
		clips:  store,
		player: player,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)
	mux.HandleFunc("POST /v1/speak", s.withAuth(s.handleSpeak))
	mux.HandleFunc("POST /v1/render", s.withAuth(s.handleRender))
	mux.HandleFunc("GET /v1/messages/{id}/audio", s.handleMessageAudio)
	mux.HandleFunc("GET "+clips.HandlePrefix+"{id}", s.handleClip)
	mux.HandleFunc("GET /v1/playback", s.handlePlaybackState)
	mux.HandleFunc("POST /v1/playback/play", s.withAuth(s.handlePlay))
	mux.HandleFunc("POST /v1/playback/stop", s.withAuth(s.handleStop))

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
