// Package api exposes the bot over HTTP: health and metrics probes, a
// small authenticated control surface, and a WebSocket event stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gmo-trading-bot/config"
	"gmo-trading-bot/internal/auth"
	"gmo-trading-bot/internal/bot"
	"gmo-trading-bot/internal/database"
	"gmo-trading-bot/internal/events"
	"gmo-trading-bot/internal/gmo"
	"gmo-trading-bot/internal/metrics"
	"gmo-trading-bot/internal/performance"
	"gmo-trading-bot/internal/strategy"
)

// BotAPI is the control surface the HTTP layer drives.
type BotAPI interface {
	Start() error
	Stop()
	IsRunning() bool
	Status() bot.EngineStatus
	LastDecision() *strategy.TradeDecision
	CloseAll(ctx context.Context) error
}

var _ BotAPI = (*bot.Engine)(nil)

// RateLimiter implements a simple sliding-window rate limiter keyed by
// client IP. Login attempts are the only rate-limited route.
type RateLimiter struct {
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	mu       sync.Mutex
}

// NewRateLimiter creates a rate limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow reports whether the key may make another request now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	kept := rl.requests[key][:0]
	for _, ts := range rl.requests[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= rl.limit {
		rl.requests[key] = kept
		return false
	}

	rl.requests[key] = append(kept, now)
	return true
}

// Deps carries the server collaborators. Repo may be nil when the
// database is disabled.
type Deps struct {
	Engine  BotAPI
	Client  gmo.ExchangeClient
	Tracker *performance.Tracker
	Repo    *database.Repository
	Bus     *events.EventBus
	Metrics *metrics.Metrics
	Config  *config.Config
	Logger  zerolog.Logger
}

// Server is the HTTP front of the bot.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	engine     BotAPI
	client     gmo.ExchangeClient
	tracker    *performance.Tracker
	repo       *database.Repository
	bus        *events.EventBus
	metrics    *metrics.Metrics
	hub        *WSHub
	jwt        *auth.JWTManager
	loginLimit *RateLimiter
	cfg        config.ServerConfig
	authCfg    config.AuthConfig
	fullCfg    *config.Config
	symbol     string
	log        zerolog.Logger
}

// NewServer creates the HTTP server and wires all routes.
func NewServer(cfg config.ServerConfig, authCfg config.AuthConfig, symbol string, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     splitOrigins(cfg.AllowedOrigins),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:     router,
		engine:     deps.Engine,
		client:     deps.Client,
		tracker:    deps.Tracker,
		repo:       deps.Repo,
		bus:        deps.Bus,
		metrics:    deps.Metrics,
		hub:        NewWSHub(deps.Logger),
		jwt:        auth.NewJWTManager(authCfg.JWTSecret, authCfg.AccessTokenDuration),
		loginLimit: NewRateLimiter(5, time.Minute),
		cfg:        cfg,
		authCfg:    authCfg,
		fullCfg:    deps.Config,
		symbol:     symbol,
		log:        deps.Logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	return s
}

func splitOrigins(origins string) []string {
	if origins == "" {
		return []string{"*"}
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	v1.POST("/login", s.rateLimitMiddleware(s.loginLimit), s.handleLogin)

	protected := v1.Group("")
	if s.authCfg.Enabled {
		protected.Use(auth.Middleware(s.jwt))
	}
	protected.GET("/status", s.handleStatus)
	protected.GET("/decision", s.handleDecision)
	protected.GET("/positions", s.handlePositions)
	protected.GET("/performance", s.handlePerformance)
	protected.GET("/trades", s.handleTrades)
	protected.GET("/config", s.handleConfig)
	protected.POST("/bot/start", s.handleBotStart)
	protected.POST("/bot/stop", s.handleBotStop)
	protected.POST("/positions/close-all", s.handleCloseAll)

	s.router.GET("/ws", s.handleWebSocket)
}

func (s *Server) rateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, try again later",
			})
			return
		}
		c.Next()
	}
}

// Start runs the WebSocket hub and the HTTP server. It blocks until the
// server stops.
func (s *Server) Start() error {
	go s.hub.Run()
	if s.bus != nil {
		s.bus.SubscribeAll(func(event events.Event) {
			s.hub.BroadcastEvent(event)
		})
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth reports process liveness plus dependency health. The
// database check is skipped when persistence is disabled.
func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":     "healthy",
		"running":    s.engine.IsRunning(),
		"ws_clients": s.hub.ClientCount(),
		"timestamp":  time.Now().UTC(),
	}

	if s.repo != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.repo.HealthCheck(ctx); err != nil {
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "ok"
	}

	c.JSON(http.StatusOK, resp)
}
