package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log := logger.With().Str("component", "database").Logger()
	log.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool, logger: log}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id SERIAL PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			wallet_address VARCHAR(42) NOT NULL UNIQUE,
			plan_tier VARCHAR(16) NOT NULL DEFAULT 'free',
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			daily_trades_used INT NOT NULL DEFAULT 0,
			daily_trades_reset_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			total_trades_used INT NOT NULL DEFAULT 0,
			end_date TIMESTAMPTZ,
			timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_wallet ON subscriptions(LOWER(wallet_address))`,
		`CREATE TABLE IF NOT EXISTS signal_history (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			direction VARCHAR(8) NOT NULL,
			confidence DECIMAL(6, 2) NOT NULL,
			trend_alignment DECIMAL(6, 2) NOT NULL,
			pattern_strength DECIMAL(6, 2) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			take_profit DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signal_history_symbol ON signal_history(symbol, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS position_events (
			id SERIAL PRIMARY KEY,
			wallet_address VARCHAR(42) NOT NULL,
			index_token VARCHAR(42) NOT NULL,
			state VARCHAR(16) NOT NULL,
			recoverable BOOLEAN NOT NULL DEFAULT FALSE,
			recommended_action VARCHAR(32),
			pnl DECIMAL(20, 8),
			mark_price DECIMAL(20, 8),
			checked_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_position_events_wallet ON position_events(wallet_address, checked_at DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Msg("database migrations completed")
	return nil
}
