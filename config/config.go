package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig       ServerConfig       `json:"server"`
	LoggingConfig      LoggingConfig      `json:"logging"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	MarketConfig       MarketConfig       `json:"market"`
	SignalConfig       SignalConfig       `json:"signal"`
	ChainConfig        ChainConfig        `json:"chain"`
	SubscriptionConfig SubscriptionConfig `json:"subscription"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int      `json:"port"`
	Host           string   `json:"host"`
	ProductionMode bool     `json:"production_mode"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `json:"level"`  // trace, debug, info, warn, error
	Pretty bool   `json:"pretty"` // console output instead of JSON
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for signal caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// MarketConfig holds candle feed settings. Klines are public data, the API
// keys are only needed for higher rate limits.
type MarketConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	BaseURL   string `json:"base_url"`
	TestNet   bool   `json:"testnet"`
}

// SignalConfig holds multi-timeframe signal engine settings
type SignalConfig struct {
	Timeframes          []string           `json:"timeframes"`
	TrendWeights        map[string]float64 `json:"trend_weights"`
	EntryWeights        map[string]float64 `json:"entry_weights"`
	ConfidenceThreshold float64            `json:"confidence_threshold"`
	TakeProfitPercent   float64            `json:"take_profit_percent"`
	StopLossPercent     float64            `json:"stop_loss_percent"`
	TimeframeTimeoutSec int                `json:"timeframe_timeout_sec"`
}

// TrackedPosition names one wallet/token pair the reconciler polls.
type TrackedPosition struct {
	Wallet          string `json:"wallet"`
	IndexToken      string `json:"index_token"`
	CollateralToken string `json:"collateral_token"`
}

// ChainConfig holds on-chain reader and reconciler settings
type ChainConfig struct {
	Enabled         bool              `json:"enabled"`
	RPCURL          string            `json:"rpc_url"`
	VaultAddress    string            `json:"vault_address"`
	ExchangeAddress string            `json:"exchange_address"`
	CallTimeoutSec  int               `json:"call_timeout_sec"`
	PollIntervalSec int               `json:"poll_interval_sec"`
	GhostTimeoutMin int               `json:"ghost_timeout_min"`
	Positions       []TrackedPosition `json:"positions"`
}

// SubscriptionConfig holds permission gate limit overrides. Zero values
// keep the built-in tier table.
type SubscriptionConfig struct {
	FreeLifetimeLimit int            `json:"free_lifetime_limit"`
	DailyTradeLimits  map[string]int `json:"daily_trade_limits"` // per tier, -1 = unlimited
}

func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides; these take
// precedence over the config file.
func applyEnvOverrides(cfg *Config) {
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("PRODUCTION_MODE", boolStr(cfg.ServerConfig.ProductionMode)) == "true"

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Pretty = getEnvOrDefault("LOG_PRETTY", boolStr(cfg.LoggingConfig.Pretty)) == "true"

	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)
	if os.Getenv("DB_HOST") != "" {
		cfg.DatabaseConfig.Enabled = true
	}

	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	if os.Getenv("REDIS_ADDRESS") != "" {
		cfg.RedisConfig.Enabled = true
	}

	cfg.MarketConfig.APIKey = getEnvOrDefault("BINANCE_API_KEY", cfg.MarketConfig.APIKey)
	cfg.MarketConfig.SecretKey = getEnvOrDefault("BINANCE_SECRET_KEY", cfg.MarketConfig.SecretKey)
	cfg.MarketConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.MarketConfig.BaseURL)
	cfg.MarketConfig.TestNet = getEnvOrDefault("BINANCE_TESTNET", boolStr(cfg.MarketConfig.TestNet)) == "true"

	cfg.ChainConfig.RPCURL = getEnvOrDefault("CHAIN_RPC_URL", cfg.ChainConfig.RPCURL)
	cfg.ChainConfig.VaultAddress = getEnvOrDefault("CHAIN_VAULT_ADDRESS", cfg.ChainConfig.VaultAddress)
	cfg.ChainConfig.ExchangeAddress = getEnvOrDefault("CHAIN_EXCHANGE_ADDRESS", cfg.ChainConfig.ExchangeAddress)
	if os.Getenv("CHAIN_RPC_URL") != "" {
		cfg.ChainConfig.Enabled = true
	}
}

func applyDefaults(cfg *Config) {
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
	if cfg.RedisConfig.PoolSize == 0 {
		cfg.RedisConfig.PoolSize = 10
	}
	if len(cfg.SignalConfig.Timeframes) == 0 {
		cfg.SignalConfig.Timeframes = []string{"15m", "1h", "4h", "1d"}
		cfg.SignalConfig.TrendWeights = map[string]float64{"15m": 0.1, "1h": 0.2, "4h": 0.3, "1d": 0.4}
		cfg.SignalConfig.EntryWeights = map[string]float64{"15m": 0.4, "1h": 0.3, "4h": 0.2, "1d": 0.1}
	}
	if cfg.SignalConfig.ConfidenceThreshold == 0 {
		cfg.SignalConfig.ConfidenceThreshold = 40
	}
	if cfg.SignalConfig.TakeProfitPercent == 0 {
		cfg.SignalConfig.TakeProfitPercent = 3.0
	}
	if cfg.SignalConfig.StopLossPercent == 0 {
		cfg.SignalConfig.StopLossPercent = 1.5
	}
	if cfg.SignalConfig.TimeframeTimeoutSec == 0 {
		cfg.SignalConfig.TimeframeTimeoutSec = 10
	}
	if cfg.ChainConfig.CallTimeoutSec == 0 {
		cfg.ChainConfig.CallTimeoutSec = 15
	}
	if cfg.ChainConfig.PollIntervalSec == 0 {
		cfg.ChainConfig.PollIntervalSec = 30
	}
	if cfg.ChainConfig.GhostTimeoutMin == 0 {
		cfg.ChainConfig.GhostTimeoutMin = 120
	}
}

// Validate fails fast on malformed configuration so a bad deployment dies
// at startup instead of per-request.
func (c *Config) Validate() error {
	if c.ServerConfig.Port <= 0 || c.ServerConfig.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.ServerConfig.Port)
	}
	if len(c.SignalConfig.Timeframes) == 0 {
		return fmt.Errorf("signal config needs at least one timeframe")
	}
	if c.SignalConfig.ConfidenceThreshold < 0 || c.SignalConfig.ConfidenceThreshold > 100 {
		return fmt.Errorf("confidence threshold %.1f outside [0,100]", c.SignalConfig.ConfidenceThreshold)
	}
	if err := weightsSumToOne("trend", c.SignalConfig.Timeframes, c.SignalConfig.TrendWeights); err != nil {
		return err
	}
	if err := weightsSumToOne("entry", c.SignalConfig.Timeframes, c.SignalConfig.EntryWeights); err != nil {
		return err
	}
	if c.ChainConfig.PollIntervalSec <= 0 {
		return fmt.Errorf("poll interval must be positive, got %d", c.ChainConfig.PollIntervalSec)
	}
	if c.ChainConfig.GhostTimeoutMin <= 0 {
		return fmt.Errorf("ghost timeout must be positive, got %d", c.ChainConfig.GhostTimeoutMin)
	}
	if c.SubscriptionConfig.FreeLifetimeLimit < 0 {
		return fmt.Errorf("free lifetime limit must not be negative, got %d", c.SubscriptionConfig.FreeLifetimeLimit)
	}
	for tier, limit := range c.SubscriptionConfig.DailyTradeLimits {
		if limit < -1 {
			return fmt.Errorf("daily trade limit for tier %q must be -1 or higher, got %d", tier, limit)
		}
	}
	return nil
}

func weightsSumToOne(name string, timeframes []string, weights map[string]float64) error {
	sum := 0.0
	for _, tf := range timeframes {
		w, ok := weights[tf]
		if !ok {
			return fmt.Errorf("%s weights missing timeframe %q", name, tf)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("%s weights sum to %.4f, want 1.0", name, sum)
	}
	return nil
}

// PollInterval returns the reconciler poll interval as a duration.
func (c *ChainConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// GhostTimeout returns the ghost recovery timeout as a duration.
func (c *ChainConfig) GhostTimeout() time.Duration {
	return time.Duration(c.GhostTimeoutMin) * time.Minute
}

// CallTimeout returns the per-RPC-call timeout as a duration.
func (c *ChainConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func boolStr(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
