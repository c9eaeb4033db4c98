// Package api exposes the operations HTTP surface: engine commands, audit
// history queries, the live audit websocket, health and metrics.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tradecore/internal/auditlog"
	"tradecore/internal/auditws"
	"tradecore/internal/events"
)

// Server wires HTTP endpoints around the engine feed and audit stores.
type Server struct {
	Router    *gin.Engine
	Log       *zap.Logger
	Journal   *auditlog.Journal
	Hub       *auditws.Hub
	Commands  chan<- events.Event
	Registry  *prometheus.Registry
	JWTSecret string

	started time.Time
	http    *http.Server
}

// Config carries the server's collaborators and settings.
type Config struct {
	Log       *zap.Logger
	Journal   *auditlog.Journal
	Hub       *auditws.Hub
	Commands  chan<- events.Event
	Registry  *prometheus.Registry
	JWTSecret string
	RateLimit float64
	RateBurst int
}

// NewServer builds the router and registers all routes.
func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(log))
	r.Use(RateLimitMiddleware(log, cfg.RateLimit, cfg.RateBurst))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Log:       log,
		Journal:   cfg.Journal,
		Hub:       cfg.Hub,
		Commands:  cfg.Commands,
		Registry:  cfg.Registry,
		JWTSecret: cfg.JWTSecret,
		started:   time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/status", s.status)
	s.Router.GET("/ws", s.websocket)

	if s.Registry != nil {
		s.Router.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}),
		))
	}

	api := s.Router.Group("/api")
	{
		api.GET("/audit/events", s.getAuditEvents)
		api.GET("/audit/head", s.getAuditHead)

		// Engine commands change live behaviour and require auth when a
		// secret is configured.
		commands := api.Group("/commands")
		if s.JWTSecret != "" {
			commands.Use(AuthMiddleware(s.JWTSecret))
		}
		{
			commands.POST("/disable", s.command(events.CommandDisable))
			commands.POST("/enable", s.command(events.CommandEnable))
			commands.POST("/resync", s.command(events.CommandReSyncState))
			commands.POST("/terminate", s.command(events.CommandTerminate))
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// status reports process uptime, audit stream consumers, and the journal's
// current head.
func (s *Server) status(c *gin.Context) {
	resp := gin.H{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	if s.Hub != nil {
		resp["audit_subscribers"] = s.Hub.Subscribers()
	}
	if s.Journal != nil {
		ctx := c.Request.Context()
		if last, err := s.Journal.LastID(ctx); err == nil {
			resp["audit_last_id"] = last
		}
		if snapshot, err := s.Journal.LatestSnapshotID(ctx); err == nil {
			resp["audit_snapshot_id"] = snapshot
		}
	}
	c.JSON(http.StatusOK, resp)
}

// getAuditEvents serves persisted audit rows after the given id.
func (s *Server) getAuditEvents(c *gin.Context) {
	if s.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit journal disabled"})
		return
	}

	since, err := strconv.ParseUint(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since parameter"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
		return
	}

	records, err := s.Journal.EventsSince(c.Request.Context(), since, limit)
	if err != nil {
		s.Log.Error("audit events query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": records})
}

// getAuditHead reports the latest persisted id and latest snapshot id, the
// two values a replaying client needs to start.
func (s *Server) getAuditHead(c *gin.Context) {
	if s.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit journal disabled"})
		return
	}

	ctx := c.Request.Context()
	last, err := s.Journal.LastID(ctx)
	if err != nil {
		s.Log.Error("audit head query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	snapshot, err := s.Journal.LatestSnapshotID(ctx)
	if err != nil {
		s.Log.Error("audit snapshot query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"last_id":     last,
		"snapshot_id": snapshot,
	})
}

// command returns a handler that injects one engine command into the feed.
func (s *Server) command(cmd events.Command) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Commands == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine feed unavailable"})
			return
		}

		select {
		case s.Commands <- events.FromCommand(cmd):
			s.Log.Info("engine command accepted", zap.Stringer("command", cmd))
			c.JSON(http.StatusAccepted, gin.H{"command": cmd.String()})
		case <-time.After(2 * time.Second):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine feed saturated"})
		}
	}
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
