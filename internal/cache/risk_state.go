// Package cache provides Redis-backed persistence for the bot's risk
// state: per-position stop/target levels and the last-trade memory.
// When Redis is unavailable it falls back to an in-memory map so the
// trading loop keeps running; state then simply does not survive a
// restart.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gmo-trading-bot/internal/bot"
	"gmo-trading-bot/internal/risk"
)

const (
	// levelsKeyPrefix stores the levels for one position.
	// Format: gmobot:levels:{positionID}
	levelsKeyPrefix = "gmobot:levels"

	// lastTradeKey stores the gatekeeper memory.
	lastTradeKey = "gmobot:lasttrade"

	// riskStateTTL keeps stale keys from accumulating when positions
	// are closed outside the bot.
	riskStateTTL = 7 * 24 * time.Hour

	// opTimeout bounds each Redis call so the decision loop never
	// stalls on a dead connection.
	opTimeout = 2 * time.Second
)

// RiskStateStore implements the engine's level store and the
// gatekeeper's memory store on top of Redis.
type RiskStateStore struct {
	client *redis.Client
	log    zerolog.Logger

	mu        sync.RWMutex
	levels    map[int64]risk.Levels
	lastTrade bot.LastTradeMemory
	hasTrade  bool

	redisAvailable atomic.Bool
}

var (
	_ bot.LevelStore  = (*RiskStateStore)(nil)
	_ bot.MemoryStore = (*RiskStateStore)(nil)
)

// NewRiskStateStore creates a store. A nil client means memory-only mode.
func NewRiskStateStore(client *redis.Client, log zerolog.Logger) *RiskStateStore {
	s := &RiskStateStore{
		client: client,
		log:    log.With().Str("component", "risk_state").Logger(),
		levels: make(map[int64]risk.Levels),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			s.log.Warn().Err(err).Msg("redis unavailable at startup, using in-memory state")
			s.redisAvailable.Store(false)
		} else {
			s.log.Info().Msg("redis connected")
			s.redisAvailable.Store(true)
		}
	} else {
		s.log.Info().Msg("no redis client, risk state is in-memory only")
		s.redisAvailable.Store(false)
	}

	return s
}

func levelsKey(positionID int64) string {
	return fmt.Sprintf("%s:%d", levelsKeyPrefix, positionID)
}

// SaveLevels stores the levels for one position. The in-memory map is
// always updated; a Redis failure downgrades to memory-only mode
// without surfacing an error.
func (s *RiskStateStore) SaveLevels(positionID int64, lv risk.Levels) error {
	s.mu.Lock()
	s.levels[positionID] = lv
	s.mu.Unlock()

	if s.client == nil || !s.redisAvailable.Load() {
		return nil
	}

	data, err := json.Marshal(lv)
	if err != nil {
		return fmt.Errorf("marshal levels: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.client.Set(ctx, levelsKey(positionID), data, riskStateTTL).Err(); err != nil {
		s.log.Warn().Err(err).Int64("position_id", positionID).Msg("redis save failed, falling back to memory")
		s.redisAvailable.Store(false)
	}
	return nil
}

// LoadLevels returns the stored levels for a position, if any.
func (s *RiskStateStore) LoadLevels(positionID int64) (risk.Levels, bool) {
	if s.client != nil && s.redisAvailable.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		data, err := s.client.Get(ctx, levelsKey(positionID)).Result()
		switch {
		case err == redis.Nil:
			return s.levelsFromMemory(positionID)
		case err != nil:
			s.log.Warn().Err(err).Msg("redis read failed, falling back to memory")
			s.redisAvailable.Store(false)
			return s.levelsFromMemory(positionID)
		}

		var lv risk.Levels
		if err := json.Unmarshal([]byte(data), &lv); err != nil {
			s.log.Warn().Err(err).Int64("position_id", positionID).Msg("corrupt levels entry ignored")
			return s.levelsFromMemory(positionID)
		}
		s.mu.Lock()
		s.levels[positionID] = lv
		s.mu.Unlock()
		return lv, true
	}

	return s.levelsFromMemory(positionID)
}

// DeleteLevels clears the levels for a closed position.
func (s *RiskStateStore) DeleteLevels(positionID int64) error {
	s.mu.Lock()
	delete(s.levels, positionID)
	s.mu.Unlock()

	if s.client == nil || !s.redisAvailable.Load() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.client.Del(ctx, levelsKey(positionID)).Err(); err != nil {
		s.log.Warn().Err(err).Int64("position_id", positionID).Msg("redis delete failed")
		s.redisAvailable.Store(false)
	}
	return nil
}

func (s *RiskStateStore) levelsFromMemory(positionID int64) (risk.Levels, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lv, ok := s.levels[positionID]
	return lv, ok
}

// SaveLastTrade persists the gatekeeper memory.
func (s *RiskStateStore) SaveLastTrade(mem bot.LastTradeMemory) error {
	s.mu.Lock()
	s.lastTrade = mem
	s.hasTrade = true
	s.mu.Unlock()

	if s.client == nil || !s.redisAvailable.Load() {
		return nil
	}

	data, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("marshal last trade: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.client.Set(ctx, lastTradeKey, data, riskStateTTL).Err(); err != nil {
		s.log.Warn().Err(err).Msg("redis save failed, falling back to memory")
		s.redisAvailable.Store(false)
	}
	return nil
}

// LoadLastTrade restores the gatekeeper memory. The second return is
// false when no memory has ever been saved.
func (s *RiskStateStore) LoadLastTrade() (bot.LastTradeMemory, bool, error) {
	if s.client != nil && s.redisAvailable.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		data, err := s.client.Get(ctx, lastTradeKey).Result()
		switch {
		case err == redis.Nil:
			return s.lastTradeFromMemory()
		case err != nil:
			s.log.Warn().Err(err).Msg("redis read failed, falling back to memory")
			s.redisAvailable.Store(false)
			return s.lastTradeFromMemory()
		}

		var mem bot.LastTradeMemory
		if err := json.Unmarshal([]byte(data), &mem); err != nil {
			return bot.LastTradeMemory{}, false, fmt.Errorf("unmarshal last trade: %w", err)
		}
		s.mu.Lock()
		s.lastTrade = mem
		s.hasTrade = true
		s.mu.Unlock()
		return mem, true, nil
	}

	return s.lastTradeFromMemory()
}

func (s *RiskStateStore) lastTradeFromMemory() (bot.LastTradeMemory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTrade, s.hasTrade, nil
}
