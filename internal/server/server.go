// Package server exposes the competition over HTTP and websocket.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"arbiter/internal/auth"
	"arbiter/internal/clock"
	"arbiter/internal/events"
	"arbiter/internal/history"
	"arbiter/internal/judge"
	"arbiter/internal/packet"
	"arbiter/internal/status"
	"arbiter/internal/ws"
	"arbiter/pkg/utils/logger"
)

// Config holds the HTTP listener settings.
type Config struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	Debug           bool   `yaml:"debug"`
}

// Server wires the judge pipeline, stores and event bus behind gin routes.
type Server struct {
	cfg      Config
	pkt      *packet.Packet
	pipeline *judge.Pipeline
	registry *judge.Registry
	history  *history.Store
	status   *status.Repository
	clk      *clock.Clock
	auth     *auth.Service
	hub      *ws.Hub
	bus      *events.Dispatcher
	upgrader websocket.Upgrader
	httpSrv  *http.Server

	bannedMu sync.RWMutex
	banned   map[string]bool
}

func New(cfg Config, pkt *packet.Packet, pipeline *judge.Pipeline, registry *judge.Registry,
	hist *history.Store, stat *status.Repository, clk *clock.Clock,
	authSvc *auth.Service, hub *ws.Hub, bus *events.Dispatcher) *Server {

	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	return &Server{
		cfg:      cfg,
		pkt:      pkt,
		pipeline: pipeline,
		registry: registry,
		history:  hist,
		status:   stat,
		clk:      clk,
		auth:     authSvc,
		hub:      hub,
		bus:      bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		banned: make(map[string]bool),
	}
}

func (s *Server) router() *gin.Engine {
	if !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID())

	r.GET("/healthz", s.handleHealth)
	r.POST("/api/v1/login", s.handleLogin)

	api := r.Group("/api/v1", s.authRequired())
	{
		api.GET("/competition", s.handleCompetition)
		api.GET("/clock", s.handleClock)
		api.GET("/problems", s.handleProblems)
		api.GET("/problems/:id", s.handleProblem)
		api.GET("/languages", s.handleLanguages)

		api.POST("/submissions", s.handleSubmit)
		api.GET("/submissions", s.handleListSubmissions)
		api.GET("/submissions/:id", s.handleGetSubmission)
		api.DELETE("/submissions/:id", s.handleCancelSubmission)
		api.GET("/submissions/:id/status", s.handleSubmissionStatus)

		api.GET("/leaderboard", s.handleLeaderboard)
		api.POST("/check-in", s.handleCheckIn)
		api.GET("/ws", s.handleWebsocket)
	}

	admin := r.Group("/api/v1/admin", s.authRequired(), s.adminRequired())
	{
		admin.POST("/clock/start", s.handleClockStart)
		admin.POST("/clock/pause", s.handleClockPause)
		admin.POST("/clock/unpause", s.handleClockUnpause)
		admin.POST("/announcements", s.handleAnnounce)
		admin.POST("/kick/:username", s.handleKick)
		admin.POST("/ban/:username", s.handleBan)
		admin.GET("/registry", s.handleRegistry)
	}
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server listening", zap.String("addr", s.cfg.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) banUser(username string) {
	s.bannedMu.Lock()
	defer s.bannedMu.Unlock()
	s.banned[username] = true
}

func (s *Server) isBanned(username string) bool {
	s.bannedMu.RLock()
	defer s.bannedMu.RUnlock()
	return s.banned[username]
}

func (s *Server) claims(c *gin.Context) (auth.Claims, bool) {
	val, ok := c.Get(ctxClaimsKey)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := val.(auth.Claims)
	return claims, ok
}
