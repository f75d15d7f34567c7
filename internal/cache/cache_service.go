// Package cache provides Redis-based caching with graceful degradation.
// When Redis is unavailable, operations return errors that callers handle by
// falling back to a fresh computation or database query.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config holds Redis connection settings.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// Service wraps a Redis client behind a small circuit breaker. After a few
// consecutive failures it stops hitting Redis for a backoff window so a dead
// cache cannot add latency to every request.
type Service struct {
	client *redis.Client
	logger zerolog.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures     int
	recoveryBackoff time.Duration
}

// ErrUnavailable is returned when the cache is skipped due to an open
// circuit. Callers treat it like a miss.
var ErrUnavailable = fmt.Errorf("cache unavailable")

// NewService connects to Redis. A failed initial connection is not fatal:
// the service starts degraded and recovers when Redis comes back.
func NewService(cfg Config, logger zerolog.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	s := &Service{
		client:          client,
		logger:          logger.With().Str("component", "cache").Logger(),
		maxFailures:     3,
		recoveryBackoff: 5 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("initial Redis connection failed, starting degraded")
		return s, nil
	}

	s.healthy = true
	s.lastCheck = time.Now()
	s.logger.Info().Str("address", cfg.Address).Msg("connected to Redis")
	return s, nil
}

// Get fetches a key. A miss returns (nil, nil); an open circuit returns
// ErrUnavailable.
func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.available() {
		return nil, ErrUnavailable
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		s.recordSuccess()
		return nil, nil
	}
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}
	s.recordSuccess()
	return data, nil
}

// Set stores a key with a TTL.
func (s *Service) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if !s.available() {
		return ErrUnavailable
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.recordFailure(err)
		return err
	}
	s.recordSuccess()
	return nil
}

// Delete removes a key. Missing keys are not an error.
func (s *Service) Delete(ctx context.Context, key string) error {
	if !s.available() {
		return ErrUnavailable
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.recordFailure(err)
		return err
	}
	s.recordSuccess()
	return nil
}

// Healthy reports whether the circuit is closed.
func (s *Service) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

// Close shuts down the Redis client.
func (s *Service) Close() error {
	return s.client.Close()
}

// available reports whether a Redis call should be attempted. While the
// circuit is open, one probe per backoff window is let through.
func (s *Service) available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.healthy {
		return true
	}
	if time.Since(s.lastCheck) >= s.recoveryBackoff {
		s.lastCheck = time.Now()
		return true
	}
	return false
}

func (s *Service) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.healthy {
		s.logger.Info().Msg("Redis connection recovered")
	}
	s.healthy = true
	s.failureCount = 0
}

func (s *Service) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureCount++
	if s.failureCount >= s.maxFailures && s.healthy {
		s.healthy = false
		s.lastCheck = time.Now()
		s.logger.Warn().Err(err).Int("failures", s.failureCount).Msg("Redis circuit opened, degrading to direct computation")
	}
}
