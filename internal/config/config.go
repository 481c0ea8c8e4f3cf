// Package config loads and validates YAML run configurations. A config is
// pure data: it holds everything a simulation run needs and nothing about how
// to execute it. All validation happens at load time so a malformed config
// can never reach the engine.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"token-replay-lab/internal/domain"
)

// Entry mode constants.
const (
	EntryFirstCandle = "first_candle"
	EntryAtTimestamp = "at_timestamp"
)

// Config validation errors.
var (
	ErrNoToken         = errors.New("config must set token or tokens")
	ErrTokenConflict   = errors.New("config must set token or tokens, not both")
	ErrEntryQuantity   = errors.New("entry_quantity must be positive")
	ErrUnknownEntry    = errors.New("unknown entry mode")
	ErrEntryTimestamp  = errors.New("at_timestamp entry requires timestamp_ms")
	ErrMissingExitPlan = errors.New("config must set exit_plan")
)

// EntryConfig controls when the run opens its position. The zero value means
// entry at the first candle.
type EntryConfig struct {
	Mode        string `yaml:"mode"`
	TimestampMs int64  `yaml:"timestamp_ms"`
}

func (e *EntryConfig) validate() error {
	switch e.Mode {
	case "", EntryFirstCandle:
		return nil
	case EntryAtTimestamp:
		if e.TimestampMs <= 0 {
			return fmt.Errorf("%w: timestamp_ms=%d", ErrEntryTimestamp, e.TimestampMs)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEntry, e.Mode)
	}
}

// RunConfig is one simulation run configuration. Token runs a single token;
// Tokens runs a sequential batch. Exactly one of the two must be set.
type RunConfig struct {
	Token  string   `yaml:"token"`
	Tokens []string `yaml:"tokens"`

	Resolution    string      `yaml:"resolution"`
	Seed          int64       `yaml:"seed"`
	EntryQuantity float64     `yaml:"entry_quantity"`
	Entry         EntryConfig `yaml:"entry"`
	SkipFrames    bool        `yaml:"skip_frames"`

	ExitPlan       *domain.ExitPlan             `yaml:"exit_plan"`
	ExecutionModel *domain.ExecutionModelConfig `yaml:"execution_model"`
}

// Load reads and validates a run config from a YAML file.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a run config. Unknown YAML fields are errors:
// a typoed key must fail loudly, not silently fall back to a default.
func Parse(data []byte) (*RunConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg RunConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the full config shape. Errors name the offending field.
func (c *RunConfig) Validate() error {
	if c.Token == "" && len(c.Tokens) == 0 {
		return ErrNoToken
	}
	if c.Token != "" && len(c.Tokens) > 0 {
		return ErrTokenConflict
	}
	for _, token := range c.TokenList() {
		if err := domain.ValidateTokenMint(token); err != nil {
			return err
		}
	}

	if _, err := domain.ParseResolution(c.Resolution); err != nil {
		return err
	}
	if c.EntryQuantity <= 0 {
		return fmt.Errorf("%w: %v", ErrEntryQuantity, c.EntryQuantity)
	}
	if err := c.Entry.validate(); err != nil {
		return err
	}

	if c.ExitPlan == nil {
		return ErrMissingExitPlan
	}
	if err := c.ExitPlan.Validate(); err != nil {
		return err
	}

	if c.ExecutionModel != nil {
		if err := c.ExecutionModel.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TokenList returns the tokens this config covers, single or batch.
func (c *RunConfig) TokenList() []string {
	if c.Token != "" {
		return []string{c.Token}
	}
	return c.Tokens
}

// ParsedResolution returns the validated resolution. Call after Validate.
func (c *RunConfig) ParsedResolution() domain.Resolution {
	r, _ := domain.ParseResolution(c.Resolution)
	return r
}
