package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexmoe/vidbee-server/internal/config"
	"github.com/nexmoe/vidbee-server/internal/queue"
)

const (
	mutationRPS   = 5
	mutationBurst = 10

	shutdownGrace = 10 * time.Second
)

// Server ties the queue manager, the push hub, and the gin router together.
type Server struct {
	cfg     *config.Config
	manager *queue.Manager
	hub     *Hub
	logger  *zap.Logger
	engine  *gin.Engine
}

func New(cfg *config.Config, manager *queue.Manager, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:     cfg,
		manager: manager,
		hub:     NewHub(),
		logger:  logger,
		engine:  gin.New(),
	}
	s.routes()
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.Use(gin.Recovery(), RequestLogger(s.logger))

	limited := NewRateLimiter(mutationRPS, mutationBurst).Middleware()

	api := s.engine.Group("/api")
	{
		api.POST("/downloads", limited, s.createDownload)
		api.GET("/downloads", s.listDownloads)
		api.DELETE("/downloads/:id", limited, s.cancelDownload)

		api.GET("/history", s.listHistory)
		api.DELETE("/history", limited, s.removeHistoryItems)
		api.DELETE("/history/playlist/:gid", limited, s.removeHistoryByPlaylist)

		api.GET("/status", s.getStatus)
		api.GET("/video-info", s.getVideoInfo)
		api.GET("/playlist-info", s.getPlaylistInfo)
		api.POST("/playlists", limited, s.startPlaylistDownload)

		api.GET("/events", s.serveSSE)
		api.GET("/ws", s.serveWS)
	}
}

// Run starts the push hub and the HTTP listener, blocking until ctx is
// cancelled, then drains connections within the shutdown grace period.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)
	unsubscribe := s.manager.Subscribe(&eventBridge{hub: s.hub, logger: s.logger})
	defer unsubscribe()

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
