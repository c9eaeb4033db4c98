// Package config loads the engine configuration: a YAML file describing the
// instrument universe, starting balances, and process settings, with a few
// environment overrides applied on top (a local .env file is honoured).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`

	Server struct {
		Addr      string  `yaml:"addr"`
		JWTSecret string  `yaml:"jwt_secret"`
		RateLimit float64 `yaml:"rate_limit"`
		RateBurst int     `yaml:"rate_burst"`
	} `yaml:"server"`

	Audit struct {
		JournalPath   string `yaml:"journal_path"`
		Buffer        int    `yaml:"buffer"`
		BatchSize     int    `yaml:"batch_size"`
		FlushInterval int    `yaml:"flush_interval_ms"`
	} `yaml:"audit"`

	Engine struct {
		Portfolio       string `yaml:"portfolio"`
		FeedBuffer      int    `yaml:"feed_buffer"`
		ExecutionBuffer int    `yaml:"execution_buffer"`
	} `yaml:"engine"`

	Strategy struct {
		Kind     string  `yaml:"kind"` // noop|cross
		Short    int     `yaml:"short"`
		Long     int     `yaml:"long"`
		Quantity float64 `yaml:"quantity"`
	} `yaml:"strategy"`

	Exchanges   []Exchange       `yaml:"exchanges"`
	Instruments []InstrumentSpec `yaml:"instruments"`
}

// Exchange configures one venue and its starting balances.
type Exchange struct {
	Name   string  `yaml:"name"`
	Assets []Asset `yaml:"assets"`
}

// Asset configures one asset held on an exchange.
type Asset struct {
	ID           uint64  `yaml:"id"`
	Name         string  `yaml:"name"`
	NameExchange string  `yaml:"name_exchange"`
	Kind         string  `yaml:"kind"` // crypto|fiat
	Total        float64 `yaml:"total"`
	Free         float64 `yaml:"free"`
}

// InstrumentSpec configures one tradable instrument and its trading rules.
type InstrumentSpec struct {
	ID            uint64  `yaml:"id"`
	Exchange      string  `yaml:"exchange"`
	NameExchange  string  `yaml:"name_exchange"`
	Kind          string  `yaml:"kind"` // spot|perpetual|future
	PriceMin      float64 `yaml:"price_min"`
	TickSize      float64 `yaml:"tick_size"`
	QuantityMin   float64 `yaml:"quantity_min"`
	QuantityInc   float64 `yaml:"quantity_increment"`
	QuantityUnit  string  `yaml:"quantity_unit"`  // asset|contract|quote
	QuantityAsset uint64  `yaml:"quantity_asset"` // asset id when unit is asset
	NotionalMin   float64 `yaml:"notional_min"`
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Log.Level = "info"
	cfg.Server.Addr = ":8085"
	cfg.Server.RateLimit = 20
	cfg.Server.RateBurst = 50
	cfg.Audit.JournalPath = "data/audit.db"
	cfg.Audit.Buffer = 1024
	cfg.Audit.BatchSize = 50
	cfg.Audit.FlushInterval = 500
	cfg.Engine.Portfolio = "default"
	cfg.Engine.FeedBuffer = 1024
	cfg.Engine.ExecutionBuffer = 256
	cfg.Strategy.Kind = "noop"
	cfg.Strategy.Short = 7
	cfg.Strategy.Long = 25
	cfg.Strategy.Quantity = 0.01
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("AUDIT_JOURNAL_PATH"); v != "" {
		cfg.Audit.JournalPath = v
	}
	if v := os.Getenv("AUDIT_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Audit.Buffer = n
		}
	}
}

func validate(cfg *Config) error {
	exchanges := make(map[string]bool, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		if ex.Name == "" {
			return fmt.Errorf("exchange with empty name")
		}
		exchanges[ex.Name] = true
	}

	seenInstruments := make(map[uint64]bool, len(cfg.Instruments))
	for _, in := range cfg.Instruments {
		if seenInstruments[in.ID] {
			return fmt.Errorf("duplicate instrument id %d", in.ID)
		}
		seenInstruments[in.ID] = true
		if !exchanges[in.Exchange] {
			return fmt.Errorf("instrument %d references unconfigured exchange %q", in.ID, in.Exchange)
		}
	}

	switch cfg.Strategy.Kind {
	case "", "noop", "cross":
	default:
		return fmt.Errorf("unknown strategy kind %q", cfg.Strategy.Kind)
	}
	return nil
}
