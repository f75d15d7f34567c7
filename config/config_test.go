package config

import (
	"strings"
	"testing"
)

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.ServerConfig.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.ServerConfig.Port)
	}
	if len(cfg.SignalConfig.Timeframes) != 4 {
		t.Errorf("default timeframes = %v", cfg.SignalConfig.Timeframes)
	}
}

func TestValidateRejectsBadTrendWeights(t *testing.T) {
	cfg := defaultConfig()
	cfg.SignalConfig.TrendWeights["1d"] = 0.5 // sums to 1.1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("weights summing to 1.1 accepted")
	}
	if !strings.Contains(err.Error(), "trend weights") {
		t.Errorf("error %q does not name the trend weights", err)
	}
}

func TestValidateRejectsMissingWeight(t *testing.T) {
	cfg := defaultConfig()
	delete(cfg.SignalConfig.EntryWeights, "4h")

	if cfg.Validate() == nil {
		t.Fatal("missing entry weight accepted")
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := defaultConfig()
	cfg.ServerConfig.Port = -1

	if cfg.Validate() == nil {
		t.Fatal("negative port accepted")
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := defaultConfig()
	cfg.SignalConfig.ConfidenceThreshold = 150

	if cfg.Validate() == nil {
		t.Fatal("threshold above 100 accepted")
	}
}

func TestValidateRejectsBadSubscriptionLimits(t *testing.T) {
	cfg := defaultConfig()
	cfg.SubscriptionConfig.FreeLifetimeLimit = -1
	if cfg.Validate() == nil {
		t.Fatal("negative free lifetime limit accepted")
	}

	cfg = defaultConfig()
	cfg.SubscriptionConfig.DailyTradeLimits = map[string]int{"starter": -2}
	if cfg.Validate() == nil {
		t.Fatal("daily limit below -1 accepted")
	}

	cfg = defaultConfig()
	cfg.SubscriptionConfig.DailyTradeLimits = map[string]int{"elite": -1, "starter": 3}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid daily limits rejected: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CHAIN_RPC_URL", "https://arb1.example.org/rpc")

	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if cfg.ServerConfig.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.ServerConfig.Port)
	}
	if cfg.LoggingConfig.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LoggingConfig.Level)
	}
	if !cfg.ChainConfig.Enabled {
		t.Error("setting CHAIN_RPC_URL did not enable the chain reader")
	}
}
