// Package config loads the pipeline configuration. Window geometry, tail
// policy and the random seed are deliberately required rather than
// defaulted: each one materially affects class balance, leakage risk or
// reproducibility, so a silent default would be a footgun.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/tcassar-diss/scwin/encode"
	"github.com/tcassar-diss/scwin/window"
)

var ErrInvalid = errors.New("config invalid")

const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
	FormatBoth   = "both"
)

type Config struct {
	Inputs       []string `mapstructure:"inputs"`
	LabelTable   string   `mapstructure:"labelTable"`
	OutDir       string   `mapstructure:"outDir"`
	Format       string   `mapstructure:"format"`
	WindowSize   int      `mapstructure:"windowSize"`
	Stride       int      `mapstructure:"stride"`
	TailPolicy   string   `mapstructure:"tailPolicy"`
	Encoding     string   `mapstructure:"encoding"`
	Normalize    bool     `mapstructure:"normalize"`
	SplitRatio   float64  `mapstructure:"splitRatio"`
	RandomSeed   int64    `mapstructure:"randomSeed"`
	Tolerance    float64  `mapstructure:"tolerance"`
	DedupEpsilon float64  `mapstructure:"dedupEpsilon"`
	Workers      int      `mapstructure:"workers"`
}

// Load reads configuration from a YAML file, with SCWIN_-prefixed
// environment variables taking precedence.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("format", FormatCSV)
	v.SetDefault("outDir", "out")
	v.SetDefault("tolerance", 0.1)
	v.SetDefault("dedupEpsilon", 0.0)
	v.SetDefault("workers", 8)

	v.SetEnvPrefix("SCWIN")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return fmt.Errorf("%w: at least one input trace file is required", ErrInvalid)
	}

	if c.LabelTable == "" {
		return fmt.Errorf("%w: labelTable is required", ErrInvalid)
	}

	if err := c.Window().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	switch encode.Encoding(c.Encoding) {
	case encode.TokenSequence, encode.FrequencyVector:
	default:
		return fmt.Errorf("%w: encoding must be %q or %q, got %q",
			ErrInvalid, encode.TokenSequence, encode.FrequencyVector, c.Encoding)
	}

	if c.SplitRatio <= 0 || c.SplitRatio >= 1 {
		return fmt.Errorf("%w: splitRatio must be in (0, 1), got %v", ErrInvalid, c.SplitRatio)
	}

	switch c.Format {
	case FormatCSV, FormatSQLite, FormatBoth:
	default:
		return fmt.Errorf("%w: format must be %q, %q or %q, got %q",
			ErrInvalid, FormatCSV, FormatSQLite, FormatBoth, c.Format)
	}

	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be > 0, got %d", ErrInvalid, c.Workers)
	}

	if c.DedupEpsilon < 0 {
		return fmt.Errorf("%w: dedupEpsilon must be >= 0, got %v", ErrInvalid, c.DedupEpsilon)
	}

	return nil
}

// Window returns the segmenter configuration.
func (c *Config) Window() window.Config {
	return window.Config{
		Size:   c.WindowSize,
		Stride: c.Stride,
		Tail:   window.TailPolicy(c.TailPolicy),
	}
}

// Echo flattens the effective configuration for the run manifest.
func (c *Config) Echo() map[string]any {
	return map[string]any{
		"inputs":       c.Inputs,
		"labelTable":   c.LabelTable,
		"outDir":       c.OutDir,
		"format":       c.Format,
		"windowSize":   c.WindowSize,
		"stride":       c.Stride,
		"tailPolicy":   c.TailPolicy,
		"encoding":     c.Encoding,
		"normalize":    c.Normalize,
		"splitRatio":   c.SplitRatio,
		"randomSeed":   c.RandomSeed,
		"tolerance":    c.Tolerance,
		"dedupEpsilon": c.DedupEpsilon,
		"workers":      c.Workers,
	}
}
