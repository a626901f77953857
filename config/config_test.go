package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcassar-diss/scwin/config"
	"github.com/tcassar-diss/scwin/window"
)

func TestLoad(t *testing.T) {
	cfg, err := config.Load(filepath.Join("testdata", "config.yaml"))
	require.NoError(t, err, "failed to load config")

	require.Len(t, cfg.Inputs, 2)
	require.Equal(t, "labels.yaml", cfg.LabelTable)
	require.Equal(t, config.FormatBoth, cfg.Format)
	require.Equal(t, 250, cfg.WindowSize)
	require.Equal(t, 250, cfg.Stride)
	require.Equal(t, "drop", cfg.TailPolicy)
	require.Equal(t, "token_sequence", cfg.Encoding)
	require.Equal(t, 0.7, cfg.SplitRatio)
	require.Equal(t, int64(42), cfg.RandomSeed)
	require.Equal(t, 0.0005, cfg.DedupEpsilon)
	require.Equal(t, 4, cfg.Workers)

	require.Equal(t, window.Config{Size: 250, Stride: 250, Tail: window.TailDrop}, cfg.Window())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)
}

func validConfig() config.Config {
	return config.Config{
		Inputs:     []string{"a.csv"},
		LabelTable: "labels.yaml",
		Format:     config.FormatCSV,
		WindowSize: 10,
		Stride:     10,
		TailPolicy: "pad",
		Encoding:   "frequency_vector",
		SplitRatio: 0.7,
		Tolerance:  0.1,
		Workers:    2,
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "no inputs", mutate: func(c *config.Config) { c.Inputs = nil }},
		{name: "no label table", mutate: func(c *config.Config) { c.LabelTable = "" }},
		{name: "zero window size", mutate: func(c *config.Config) { c.WindowSize = 0 }},
		{name: "zero stride", mutate: func(c *config.Config) { c.Stride = 0 }},
		{name: "bad tail policy", mutate: func(c *config.Config) { c.TailPolicy = "truncate" }},
		{name: "bad encoding", mutate: func(c *config.Config) { c.Encoding = "one_hot" }},
		{name: "ratio zero", mutate: func(c *config.Config) { c.SplitRatio = 0 }},
		{name: "ratio one", mutate: func(c *config.Config) { c.SplitRatio = 1 }},
		{name: "bad format", mutate: func(c *config.Config) { c.Format = "parquet" }},
		{name: "zero workers", mutate: func(c *config.Config) { c.Workers = 0 }},
		{name: "negative epsilon", mutate: func(c *config.Config) { c.DedupEpsilon = -1 }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := validConfig()
			c.mutate(&cfg)

			require.ErrorIs(t, cfg.Validate(), config.ErrInvalid)
		})
	}

	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}
