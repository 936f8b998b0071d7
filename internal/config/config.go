// Package config loads the YAML configuration of blockexec.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the root of the configuration file.
type Config struct {
	// MemoryLimit is the block budget, e.g. "64MiB". Empty or "0" means
	// unlimited.
	MemoryLimit  string        `yaml:"memory_limit"`
	BatchSize    int           `yaml:"batch_size"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Workers      int           `yaml:"workers"`
	Logging      Logging       `yaml:"logging"`
	Server       Server        `yaml:"server"`
	Pipelines    []Pipeline    `yaml:"pipelines"`
}

type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

// Pipeline describes one query: its sources, unioned in order when there
// are several, followed by a chain of operators.
type Pipeline struct {
	Name      string     `yaml:"name"`
	Sources   []Source   `yaml:"sources"`
	Operators []Operator `yaml:"operators"`
}

// Source kinds.
const (
	SourceValues = "values"
	SourceRemote = "remote"
)

// Source is a leaf of a pipeline. A remote source streams its rows through
// encoded frames using Codec.
type Source struct {
	Type      string  `yaml:"type"`
	Rows      [][]any `yaml:"rows"`
	WaitPolls int     `yaml:"wait_polls"`
	Codec     string  `yaml:"codec"`
	// FrameRows is the number of rows per frame of a remote source.
	FrameRows int `yaml:"frame_rows"`
}

// Operator kinds.
const (
	OpID          = "id"
	OpCalculation = "calculation"
	OpFilter      = "filter"
	OpLimit       = "limit"
	OpSort        = "sort"
	OpCount       = "count"
	OpEnumerate   = "enumerate"
	OpNoResults   = "no_results"
)

// Operator is one step of the chain. Only the fields of its kind are read.
type Operator struct {
	Type string `yaml:"type"`

	// calculation: Func applied to Register and Value into a new register.
	Func  string `yaml:"func"`
	Value any    `yaml:"value"`

	// calculation, filter, enumerate
	Register int `yaml:"register"`

	// limit
	Offset    int64 `yaml:"offset"`
	Limit     int64 `yaml:"limit"`
	FullCount bool  `yaml:"full_count"`

	// sort
	Keys []SortKey `yaml:"keys"`
}

type SortKey struct {
	Register   int  `yaml:"register"`
	Descending bool `yaml:"descending"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		BatchSize:    1000,
		PollInterval: time.Millisecond,
		Logging:      Logging{Level: "info"},
		Server:       Server{Addr: ":8123"},
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MemoryLimitBytes returns the parsed budget, 0 for unlimited.
func (c *Config) MemoryLimitBytes() (int64, error) {
	if c.MemoryLimit == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.MemoryLimit)
	if err != nil {
		return 0, errors.Wrapf(err, "memory_limit %q", c.MemoryLimit)
	}
	return int64(n), nil
}

// Pipeline returns the pipeline called name.
func (c *Config) Pipeline(name string) (Pipeline, bool) {
	for _, p := range c.Pipelines {
		if p.Name == name {
			return p, true
		}
	}
	return Pipeline{}, false
}

// Validate checks values that do not depend on register planning.
func (c *Config) Validate() error {
	if _, err := c.MemoryLimitBytes(); err != nil {
		return err
	}
	if c.BatchSize <= 0 {
		return errors.Newf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.PollInterval < 0 {
		return errors.Newf("poll_interval must not be negative, got %s", c.PollInterval)
	}
	seen := make(map[string]bool, len(c.Pipelines))
	for _, p := range c.Pipelines {
		if p.Name == "" {
			return errors.New("pipeline without name")
		}
		if seen[p.Name] {
			return errors.Newf("duplicate pipeline %q", p.Name)
		}
		seen[p.Name] = true
		if err := p.validate(); err != nil {
			return errors.Wrapf(err, "pipeline %q", p.Name)
		}
	}
	return nil
}

func (p Pipeline) validate() error {
	if len(p.Sources) == 0 {
		return errors.New("no sources")
	}
	for i, s := range p.Sources {
		switch s.Type {
		case SourceValues, SourceRemote:
		default:
			return errors.Newf("source %d: unknown type %q", i, s.Type)
		}
		if s.WaitPolls < 0 || s.FrameRows < 0 {
			return errors.Newf("source %d: negative wait_polls or frame_rows", i)
		}
	}
	for i, op := range p.Operators {
		switch op.Type {
		case OpID, OpCalculation, OpFilter, OpSort, OpCount, OpEnumerate, OpNoResults:
		case OpLimit:
			if op.Offset < 0 || op.Limit < 0 {
				return errors.Newf("operator %d: negative offset or limit", i)
			}
		default:
			return errors.Newf("operator %d: unknown type %q", i, op.Type)
		}
	}
	return nil
}
