// Package config holds all vagus configuration, loaded from vagus.yaml
// with defaults filled for anything the file omits.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all vagus configuration.
type Config struct {
	// Core paths, relative to the workspace unless absolute.
	StatePath   string `yaml:"state_path"`   // drive registry JSON document
	JournalPath string `yaml:"journal_path"` // sqlite activity journal + spend ledger
	SpoolDir    string `yaml:"spool_dir"`    // engagement request spool

	// Tick loop
	TickInterval string `yaml:"tick_interval"` // default 15m
	RearmPeriod  string `yaml:"rearm_period"`  // thwarting cycle length, default 4h

	// Mode controller
	Mode           string      `yaml:"mode"`            // "auto" or "choice"
	CooldownWindow string      `yaml:"cooldown_window"` // default 30m
	QuietHours     QuietConfig `yaml:"quiet_hours"`

	// Aspect manager
	Aspects AspectConfig `yaml:"aspects"`

	// Embedding backend for discovery similarity
	Embedding EmbeddingConfig `yaml:"embedding"`
}

// QuietConfig is the time-of-day window that suppresses autonomous
// spawning. Start/End are "HH:MM"; a window wrapping midnight is fine.
type QuietConfig struct {
	Enabled bool   `yaml:"enabled"`
	Start   string `yaml:"start"` // default "23:00"
	End     string `yaml:"end"`   // default "07:00"
}

// AspectConfig tunes discovery, consolidation and budget gating.
type AspectConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"` // pending-review routing
	DailyBudget         float64 `yaml:"daily_budget"`         // reactivation spend limit per day
	ActivationCost      float64 `yaml:"activation_cost"`      // assumed cost of one activation
}

// EmbeddingConfig selects the similarity backend.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "ollama", "genai" or "hash"
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		StatePath:      ".vagus/drives.json",
		JournalPath:    ".vagus/journal.db",
		SpoolDir:       ".vagus/spool",
		TickInterval:   "15m",
		RearmPeriod:    "4h",
		Mode:           "choice",
		CooldownWindow: "30m",
		QuietHours: QuietConfig{
			Enabled: true,
			Start:   "23:00",
			End:     "07:00",
		},
		Aspects: AspectConfig{
			SimilarityThreshold: 0.70,
			DailyBudget:         50.0,
			ActivationCost:      2.50,
		},
		Embedding: EmbeddingConfig{
			Provider:       "hash",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},
	}
}

// Load reads configuration from path. A missing file yields the
// defaults; a present file is merged over them so partial configs work.
// Environment variables override file values for secrets and endpoints.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VAGUS_OLLAMA_ENDPOINT"); v != "" {
		cfg.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Embedding.GenAIAPIKey = v
	}
	if v := os.Getenv("VAGUS_STATE_PATH"); v != "" {
		cfg.StatePath = v
	}
}

// =============================================================================
// PARSED ACCESSORS
// =============================================================================
// Durations live as strings in YAML; accessors fall back to the default
// when the string is missing or unparseable.

// TickIntervalDuration returns the tick interval, default 15m.
func (c *Config) TickIntervalDuration() time.Duration {
	return parseDuration(c.TickInterval, 15*time.Minute)
}

// RearmPeriodDuration returns the thwarting rearm period, default 4h.
func (c *Config) RearmPeriodDuration() time.Duration {
	return parseDuration(c.RearmPeriod, 4*time.Hour)
}

// CooldownDuration returns the cross-drive cooldown window, default 30m.
func (c *Config) CooldownDuration() time.Duration {
	return parseDuration(c.CooldownWindow, 30*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// QuietWindow parses the quiet-hours bounds into minutes since
// midnight. Returns ok=false when quiet hours are disabled or the
// bounds do not parse.
func (c *Config) QuietWindow() (startMin, endMin int, ok bool) {
	if !c.QuietHours.Enabled {
		return 0, 0, false
	}
	start, err1 := parseClock(c.QuietHours.Start)
	end, err2 := parseClock(c.QuietHours.End)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return start, end, true
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
