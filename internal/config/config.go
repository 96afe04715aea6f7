// Package config loads the YAML bootstrap configuration for every tunable
// component exposes, mirroring configs.LoadConfig's shape: one entry point
// reading a YAML file into a flat Config, plus To*Config() translation
// methods that build the typed config structs each constructor accepts.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the entire configuration structure read from config.yml.
type Config struct {
	Feed       FeedYAMLData        `yaml:"feed"`
	Providers  []ProviderYAMLData  `yaml:"providers"`
	Routers    []RouterYAMLData    `yaml:"routers"`
	CurvePools []CurvePoolYAMLData `yaml:"curvePools"`
	Simulation SimulationYAMLData  `yaml:"simulation"`
	Experiment ExperimentYAMLData  `yaml:"experiment"`
}

// RouterYAMLData registers one known router address for the C2 decoder
// registry's chain-keyed router table (spec §4.2).
type RouterYAMLData struct {
	Chain    uint64 `yaml:"chain"`
	Address  string `yaml:"address"`
	Protocol string `yaml:"protocol"` // uniswapV2 | uniswapV3 | curve | oneInch
}

// CurvePoolYAMLData registers one (pool, coin index) -> token address
// mapping the Curve decoder needs to resolve swap legs (spec §4.2).
type CurvePoolYAMLData struct {
	Chain uint64 `yaml:"chain"`
	Pool  string `yaml:"pool"`
	Index int64  `yaml:"index"`
	Token string `yaml:"token"`
}

// FeedYAMLData configures the C1 feed client.
type FeedYAMLData struct {
	Endpoint         string   `yaml:"endpoint"`
	AuthHeader       string   `yaml:"authHeader"`
	Chains           []uint64 `yaml:"chains"`
	RouterAllowlist  []string `yaml:"routerAllowlist"`
	BackoffBaseMs    int      `yaml:"backoffBaseMs"`
	BackoffMult      float64  `yaml:"backoffMultiplier"`
	MaxReconnects    int      `yaml:"maxReconnectAttempts"`
}

// ProviderYAMLData configures one C4 simulation provider instance.
type ProviderYAMLData struct {
	Kind        string `yaml:"kind"` // remote-rich | remote-rpc | local-rpc | solana
	Name        string `yaml:"name"`
	Endpoint    string `yaml:"endpoint"`
	FallbackURL string `yaml:"fallbackEndpoint"` // solana secondary RPC
	TimeoutMs   int    `yaml:"timeoutMs"`
	Priority    int    `yaml:"priority"` // 0-based; -1 = unset
	Enabled     bool   `yaml:"enabled"`
}

// SimulationYAMLData configures the C5 simulation service.
type SimulationYAMLData struct {
	NoSimulationThreshold    float64 `yaml:"noSimulationThreshold"`
	LightSimulationThreshold float64 `yaml:"lightSimulationThreshold"`
	TimeCriticalThresholdMs  int64   `yaml:"timeCriticalThresholdMs"`
	BypassForTimeCritical    bool    `yaml:"bypassForTimeCritical"`
	CacheTTLSeconds          int     `yaml:"cacheTtlSeconds"`
	CacheMaxEntries          int     `yaml:"cacheMaxEntries"`
	FallbackEnabled          bool    `yaml:"fallbackEnabled"`
}

// ExperimentYAMLData configures the C6 A/B testing framework.
type ExperimentYAMLData struct {
	Enabled               bool   `yaml:"enabled"`
	RefreshIntervalSec    int    `yaml:"refreshIntervalSec"`
	StoreDSN              string `yaml:"storeDsn"`
	KeyPrefix             string `yaml:"keyPrefix"`
	DefaultMinSampleSize  int64  `yaml:"defaultMinSampleSize"`
}

// LoadConfig reads and parses a YAML config file, mirroring
// configs.LoadConfig's error-wrapping style exactly.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return &cfg, nil
}

// FeedConfig is the typed config the feed client constructor accepts.
type FeedConfig struct {
	Endpoint        string
	AuthHeader      string
	Chains          []uint64
	RouterAllowlist []string
	BackoffBase     time.Duration
	BackoffMult     float64
	MaxReconnects   int
}

// ToFeedConfig translates the YAML section into FeedConfig.
func (c *Config) ToFeedConfig() *FeedConfig {
	return &FeedConfig{
		Endpoint:        c.Feed.Endpoint,
		AuthHeader:      c.Feed.AuthHeader,
		Chains:          c.Feed.Chains,
		RouterAllowlist: c.Feed.RouterAllowlist,
		BackoffBase:     time.Duration(c.Feed.BackoffBaseMs) * time.Millisecond,
		BackoffMult:     c.Feed.BackoffMult,
		MaxReconnects:   c.Feed.MaxReconnects,
	}
}

// SimulationConfig is the typed config the C5 service constructor accepts.
type SimulationConfig struct {
	NoSimulationThreshold    float64
	LightSimulationThreshold float64
	TimeCriticalThresholdMs  int64
	BypassForTimeCritical    bool
	CacheTTL                 time.Duration
	CacheMaxEntries          int
	FallbackEnabled          bool
}

// ToSimulationConfig translates the YAML section into SimulationConfig,
// applying spec-mandated defaults (§4.4) when the field is left at zero.
func (c *Config) ToSimulationConfig() *SimulationConfig {
	sc := &SimulationConfig{
		NoSimulationThreshold:    c.Simulation.NoSimulationThreshold,
		LightSimulationThreshold: c.Simulation.LightSimulationThreshold,
		TimeCriticalThresholdMs:  c.Simulation.TimeCriticalThresholdMs,
		BypassForTimeCritical:    c.Simulation.BypassForTimeCritical,
		CacheTTL:                 time.Duration(c.Simulation.CacheTTLSeconds) * time.Second,
		CacheMaxEntries:          c.Simulation.CacheMaxEntries,
		FallbackEnabled:          c.Simulation.FallbackEnabled,
	}
	if sc.NoSimulationThreshold == 0 {
		sc.NoSimulationThreshold = 50
	}
	if sc.LightSimulationThreshold == 0 {
		sc.LightSimulationThreshold = 500
	}
	if sc.TimeCriticalThresholdMs == 0 {
		sc.TimeCriticalThresholdMs = 2000
	}
	if sc.CacheMaxEntries == 0 {
		sc.CacheMaxEntries = 500
	}
	return sc
}

// ExperimentConfig is the typed config the C6 framework constructor
// accepts.
type ExperimentConfig struct {
	Enabled              bool
	RefreshInterval      time.Duration
	StoreDSN             string
	KeyPrefix            string
	DefaultMinSampleSize int64
}

// ToExperimentConfig translates the YAML section into ExperimentConfig.
func (c *Config) ToExperimentConfig() *ExperimentConfig {
	ec := &ExperimentConfig{
		Enabled:              c.Experiment.Enabled,
		RefreshInterval:      time.Duration(c.Experiment.RefreshIntervalSec) * time.Second,
		StoreDSN:             c.Experiment.StoreDSN,
		KeyPrefix:            c.Experiment.KeyPrefix,
		DefaultMinSampleSize: c.Experiment.DefaultMinSampleSize,
	}
	if ec.RefreshInterval == 0 {
		ec.RefreshInterval = 60 * time.Second
	}
	if ec.DefaultMinSampleSize == 0 {
		ec.DefaultMinSampleSize = 100
	}
	return ec
}
