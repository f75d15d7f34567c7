package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vault-trading-bot/internal/reconciler"
	"vault-trading-bot/internal/signal"
	"vault-trading-bot/internal/subscription"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// SignalStore persists emitted signals for later review. Optional.
type SignalStore interface {
	SaveSignal(ctx context.Context, sig *signal.UnifiedSignal) error
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	AllowOrigins   []string
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	signals     *signal.Service
	recon       *reconciler.Reconciler
	gate        *subscription.Gate
	store       SignalStore
	config      ServerConfig
	rateLimiter *RateLimiter
	hub         *WSHub
	logger      zerolog.Logger
}

// NewServer creates a new API server. store may be nil when signal history
// persistence is disabled.
func NewServer(
	config ServerConfig,
	signals *signal.Service,
	recon *reconciler.Reconciler,
	gate *subscription.Gate,
	store SignalStore,
	logger zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8088"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		signals:     signals,
		recon:       recon,
		gate:        gate,
		store:       store,
		config:      config,
		rateLimiter: NewRateLimiter(120, time.Minute),
		hub:         NewWSHub(logger),
		logger:      logger.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()
	return server
}

// requestIDMiddleware tags every request with an ID so responses can be
// matched to log lines.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// rateLimitMiddleware limits requests per endpoint. Endpoints that only read
// internal state skip the limiter; only candle-fetching paths can hit the
// upstream exchange.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	noRateLimitPaths := map[string]bool{
		"/health":         true,
		"/api/position":   true,
		"/api/permission": true,
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if noRateLimitPaths[path] {
			c.Next()
			return
		}
		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "Rate limit exceeded",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	{
		api.GET("/signal", s.handleSignal)
		api.GET("/timeframe", s.handleTimeframe)
		api.GET("/position", s.handlePosition)
		api.GET("/positions", s.handlePositions)
		api.GET("/permission", s.handlePermission)
	}

	s.router.GET("/ws/positions", s.handlePositionsWS)
}

// Start runs the HTTP server and the websocket hub. It blocks until the
// server stops.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	if s.recon != nil {
		go s.streamReports(ctx)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// streamReports forwards reconciliation reports to websocket clients.
func (s *Server) streamReports(ctx context.Context) {
	reports := s.recon.Subscribe()
	defer s.recon.Unsubscribe(reports)
	for {
		select {
		case <-ctx.Done():
			return
		case report, ok := <-reports:
			if !ok {
				return
			}
			s.hub.BroadcastReport(report)
		}
	}
}
