// Package config exposes strongly typed application settings loaded once at startup from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks settings that must prevent the pipeline from being constructed.
var ErrConfiguration = errors.New("configuration error")

// App captures process-wide runtime settings.
type App struct {
	Title       string `yaml:"title" default:"ElizaOS Trading Bot"`
	Network     string `yaml:"network" default:"ethereum"`
	LogLevel    string `yaml:"log_level" default:"info"`
	LogFormat   string `yaml:"log_format" default:"json" validate:"oneof=json console"`
	MetricsAddr string `yaml:"metrics_addr"`
	JournalPath string `yaml:"journal_path"`
}

// Chain holds the signing identity and RPC endpoint of the execution network.
type Chain struct {
	RPCURL        string `yaml:"rpc_url" validate:"required,notplaceholder"`
	PrivateKey    string `yaml:"private_key" validate:"required,notplaceholder"`
	PublicAddress string `yaml:"public_address" validate:"required,notplaceholder,eth_addr"`
	ChainID       int64  `yaml:"chain_id" default:"1" validate:"gt=0"`
}

// Relay configures private bundle submission.
type Relay struct {
	Endpoint     string  `yaml:"endpoint" default:"https://relay.flashbots.net" validate:"required,url"`
	PriorityGwei float64 `yaml:"priority_gwei" default:"5" validate:"gte=0,lte=10000"`
}

// Bot describes the external bot controller that receives forwarded signals.
type Bot struct {
	Strategy   string `yaml:"strategy" default:"basic_arbitrage"`
	Path       string `yaml:"path"`
	GatewayURL string `yaml:"gateway_url" validate:"omitempty,url"`
}

// Exchange describes the upstream market data connector.
type Exchange struct {
	ID      string `yaml:"id" default:"binance" validate:"oneof=binance stub"`
	APIKey  string `yaml:"api_key"`
	Secret  string `yaml:"secret"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

// Agent configures the optional reasoning engine; an empty URL selects the heuristic backend.
type Agent struct {
	URL         string `yaml:"url" validate:"omitempty,url"`
	Transport   string `yaml:"transport" default:"http" validate:"oneof=http websocket"`
	TimeoutSecs int    `yaml:"timeout_secs" default:"30" validate:"gte=0"`
	Prompt      string `yaml:"prompt" default:"You are an on-chain trading agent. Produce high-confidence, risk-aware trade signals."`
}

// Market selects what each cycle fetches.
type Market struct {
	Symbol      string `yaml:"symbol" default:"ETH/USDT" validate:"required"`
	Timeframe   string `yaml:"timeframe" default:"5m" validate:"required"`
	CandleLimit int    `yaml:"candle_limit" default:"60" validate:"gt=0"`
	BookDepth   int    `yaml:"book_depth" default:"10" validate:"gte=0"`
}

// Routing holds the caller's opt-ins for signal forwarding and bundle staging.
type Routing struct {
	ForwardToBot       bool    `yaml:"forward_to_bot" default:"true"`
	StageBundles       bool    `yaml:"stage_bundles" default:"true"`
	MinStageConfidence float64 `yaml:"min_stage_confidence" validate:"gte=0,lte=1"`
}

// Config collects every configuration leaf.
type Config struct {
	App      App      `yaml:"app"`
	Chain    Chain    `yaml:"chain"`
	Relay    Relay    `yaml:"relay"`
	Bot      Bot      `yaml:"bot"`
	Exchange Exchange `yaml:"exchange"`
	Agent    Agent    `yaml:"agent"`
	Market   Market   `yaml:"market"`
	Routing  Routing  `yaml:"routing"`
}

// Load applies defaults, then the YAML file at path (if non-empty), then environment overrides, and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: defaults: %v", ErrConfiguration, err)
	}

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: open config: %v", ErrConfiguration, err)
		}
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("%w: decode yaml: %v", ErrConfiguration, err)
		}
	}

	_ = godotenv.Load() // best-effort
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

type envBinding struct {
	key string
	set func(*Config, string) error
}

var envBindings = []envBinding{
	{"RPC_URL", func(c *Config, v string) error { c.Chain.RPCURL = v; return nil }},
	{"PRIVATE_KEY", func(c *Config, v string) error { c.Chain.PrivateKey = v; return nil }},
	{"PUBLIC_ADDRESS", func(c *Config, v string) error { c.Chain.PublicAddress = v; return nil }},
	{"CHAIN_ID", func(c *Config, v string) error {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.Chain.ChainID = id
		return nil
	}},
	{"FLASHBOTS_RELAY", func(c *Config, v string) error { c.Relay.Endpoint = v; return nil }},
	{"FLASHBOTS_BLOCK_PRIORITY_GWEI", func(c *Config, v string) error {
		gwei, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		if math.IsInf(gwei, 0) || math.IsNaN(gwei) {
			return fmt.Errorf("non-finite value %q", v)
		}
		c.Relay.PriorityGwei = gwei
		return nil
	}},
	{"HUMMINGBOT_PATH", func(c *Config, v string) error { c.Bot.Path = v; return nil }},
	{"HUMMINGBOT_GATEWAY", func(c *Config, v string) error { c.Bot.GatewayURL = strings.TrimSuffix(v, "/"); return nil }},
	{"HUMMINGBOT_STRATEGY", func(c *Config, v string) error { c.Bot.Strategy = v; return nil }},
	{"EXCHANGE_ID", func(c *Config, v string) error { c.Exchange.ID = strings.ToLower(v); return nil }},
	{"EXCHANGE_API_KEY", func(c *Config, v string) error { c.Exchange.APIKey = v; return nil }},
	{"EXCHANGE_SECRET", func(c *Config, v string) error { c.Exchange.Secret = v; return nil }},
	{"AGENT_URL", func(c *Config, v string) error { c.Agent.URL = v; return nil }},
	{"APP_TITLE", func(c *Config, v string) error { c.App.Title = v; return nil }},
	{"NETWORK_NAME", func(c *Config, v string) error { c.App.Network = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.App.LogLevel = v; return nil }},
	{"METRICS_ADDR", func(c *Config, v string) error { c.App.MetricsAddr = v; return nil }},
	{"SYMBOL", func(c *Config, v string) error { c.Market.Symbol = v; return nil }},
}

func applyEnv(cfg *Config) error {
	for _, b := range envBindings {
		v, ok := os.LookupEnv(b.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := b.set(cfg, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrConfiguration, b.key, err)
		}
	}
	return nil
}
