package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gmo-trading-bot/config"
	"gmo-trading-bot/internal/auth"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleLogin exchanges operator credentials for a bearer token.
func (s *Server) handleLogin(c *gin.Context) {
	if !s.authCfg.Enabled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authentication is disabled"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	if req.Username != s.authCfg.Username {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   auth.ErrInvalidCredentials.Code,
			"message": auth.ErrInvalidCredentials.Message,
		})
		return
	}
	if err := auth.CheckPassword(s.authCfg.PasswordHash, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   auth.ErrInvalidCredentials.Code,
			"message": auth.ErrInvalidCredentials.Message,
		})
		return
	}

	token, err := s.jwt.GenerateAccessToken(req.Username)
	if err != nil {
		s.log.Error().Err(err).Msg("token generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": s.jwt.GetAccessTokenDuration(),
	})
}

// handleStatus returns the engine's point-in-time status.
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

// handleDecision returns the most recent trade decision.
func (s *Server) handleDecision(c *gin.Context) {
	decision := s.engine.LastDecision()
	if decision == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no decision yet"})
		return
	}
	c.JSON(http.StatusOK, decision)
}

// handlePositions lists the open positions on the exchange.
func (s *Server) handlePositions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	positions, err := s.client.OpenPositions(ctx, s.symbol)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch positions")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch positions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":    s.symbol,
		"count":     len(positions),
		"positions": positions,
	})
}

// handlePerformance returns session statistics, plus the persisted
// all-time summary when the database is enabled.
func (s *Server) handlePerformance(c *gin.Context) {
	resp := gin.H{"session": s.tracker.Stats()}

	if s.repo != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if summary, err := s.repo.Summary(ctx); err == nil {
			resp["all_time"] = summary
		} else {
			s.log.Warn().Err(err).Msg("failed to load trade summary")
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handleTrades lists recent closed trades, preferring the database when
// it is enabled so history survives restarts.
func (s *Server) handleTrades(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	if s.repo != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		rows, err := s.repo.RecentTrades(ctx, limit)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to load trades")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trades"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(rows), "trades": rows})
		return
	}

	records := s.tracker.Recent(limit)
	c.JSON(http.StatusOK, gin.H{"count": len(records), "trades": records})
}

// handleConfig returns the running configuration with every credential
// blanked out, so operators can confirm what the bot is trading with.
func (s *Server) handleConfig(c *gin.Context) {
	if s.fullCfg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "configuration not available"})
		return
	}
	c.JSON(http.StatusOK, redactConfig(*s.fullCfg))
}

// redactConfig blanks secrets on a copy. The strategy parameter map is
// shared with the original but never written here.
func redactConfig(cfg config.Config) config.Config {
	cfg.ExchangeConfig.APIKey = ""
	cfg.ExchangeConfig.APISecret = ""
	cfg.AuthConfig.JWTSecret = ""
	cfg.AuthConfig.PasswordHash = ""
	cfg.VaultConfig.Token = ""
	cfg.RedisConfig.Password = ""
	cfg.DatabaseConfig.URL = ""
	cfg.NotificationConfig.WebhookURL = ""
	return cfg
}

// handleBotStart starts the decision loop.
func (s *Server) handleBotStart(c *gin.Context) {
	if err := s.engine.Start(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "bot started"})
}

// handleBotStop stops the decision loop after the current cycle.
func (s *Server) handleBotStop(c *gin.Context) {
	s.engine.Stop()
	c.JSON(http.StatusOK, gin.H{"message": "bot stopped"})
}

// handleCloseAll closes every open position at market.
func (s *Server) handleCloseAll(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := s.engine.CloseAll(ctx); err != nil {
		s.log.Error().Err(err).Msg("close-all failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all positions closed"})
}
