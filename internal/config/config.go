// Package config defines the boundfit configuration bundle and loads
// it from a .boundfit.yaml file layered over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working
// directory when no explicit path is given.
const DefaultFileName = ".boundfit.yaml"

// Config is the complete boundfit configuration. A Config is built
// once per run and passed by value; nothing mutates it afterwards.
type Config struct {
	Sampling  SamplingConfig  `yaml:"sampling"`
	Execution ExecutionConfig `yaml:"execution"`
	Scan      ScanConfig      `yaml:"scan"`
}

// SamplingConfig holds the options that drive the sampling and
// convergence protocol.
type SamplingConfig struct {
	// DefaultIterations is the size of the first batch.
	DefaultIterations int `yaml:"default_iterations"`

	// SubsequentIterations is the size of every later batch.
	SubsequentIterations int `yaml:"subsequent_iterations"`

	// MaxIterations is the hard ceiling on executed invocations per
	// assertion.
	MaxIterations int `yaml:"max_iterations"`

	// ThreadCount bounds the number of concurrent invocations.
	ThreadCount int `yaml:"thread_count"`

	// ProbabilityOfFailure is the target failure rate. A block is only
	// fitted once at least one failure-rate worth of observations has
	// been collected.
	ProbabilityOfFailure float64 `yaml:"probability_of_failure"`

	// BoundsDelta is the relative change, in percent, below which two
	// consecutive estimates are considered stable.
	BoundsDelta float64 `yaml:"bounds_delta"`

	// UseBoxCox applies a Box-Cox power transform before fitting.
	UseBoxCox bool `yaml:"use_boxcox"`

	// BoundsMaxPercentile is the percentile of the fitted tail model
	// reported as the bound.
	BoundsMaxPercentile float64 `yaml:"bounds_max_percentile"`

	// MinTailValues is the minimum number of parsed values before a
	// fit is attempted.
	MinTailValues int `yaml:"min_tail_values"`
}

// ExecutionConfig describes how test invocations are executed.
type ExecutionConfig struct {
	// Timeout bounds every single test invocation.
	Timeout time.Duration `yaml:"timeout"`

	// Toolchain selects the Go toolchain (GOTOOLCHAIN) used to build
	// and run the instrumented test. Empty means the ambient one.
	Toolchain string `yaml:"toolchain"`

	// Tags are build tags passed to the test build.
	Tags []string `yaml:"tags"`

	// Imports are the packages the injected logging statement needs.
	Imports []string `yaml:"imports"`

	// Emitter is the format of the injected call. It receives the
	// quoted log tag and the source of both operands.
	Emitter string `yaml:"emitter"`

	// LogTag prefixes every emitted sample line.
	LogTag string `yaml:"log_tag"`
}

// ScanConfig holds include/exclude glob patterns for test files.
type ScanConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Sampling: SamplingConfig{
			DefaultIterations:    50,
			SubsequentIterations: 50,
			MaxIterations:        1000,
			ThreadCount:          1,
			ProbabilityOfFailure: 0.01,
			BoundsDelta:          1,
			UseBoxCox:            false,
			BoundsMaxPercentile:  0.9999,
			MinTailValues:        50,
		},
		Execution: ExecutionConfig{
			Timeout: 500 * time.Second,
			Imports: []string{"fmt"},
			Emitter: "fmt.Println(%q, %s, %s)",
			LogTag:  "log>>>",
		},
		Scan: ScanConfig{
			Exclude: []string{"vendor/**", "testdata/**"},
		},
	}
}

// Load reads the YAML file at path and layers it over the defaults.
// An empty path returns the defaults. A missing file at an explicit
// path is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// MinFitValues is the smallest number of parsed values a block needs
// before it is fitted: at least MinTailValues, and at least one
// expected failure at ProbabilityOfFailure. Under the defaults this
// is 100, so the first batch of 50 is never fitted.
func (s SamplingConfig) MinFitValues() int {
	n := s.MinTailValues
	if s.ProbabilityOfFailure > 0 {
		n = max(n, int(math.Ceil(1/s.ProbabilityOfFailure-1e-9)))
	}
	return n
}

// Marshal renders cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate rejects inconsistent configurations.
func (c *Config) Validate() error {
	s := c.Sampling
	var errs []error
	if s.DefaultIterations < 1 {
		errs = append(errs, fmt.Errorf("invalid default_iterations %d: must be >= 1", s.DefaultIterations))
	}
	if s.SubsequentIterations < 1 {
		errs = append(errs, fmt.Errorf("invalid subsequent_iterations %d: must be >= 1", s.SubsequentIterations))
	}
	if s.MaxIterations < s.DefaultIterations {
		errs = append(errs, fmt.Errorf("invalid max_iterations %d: must be >= default_iterations (%d)",
			s.MaxIterations, s.DefaultIterations))
	}
	if s.ThreadCount < 1 {
		errs = append(errs, fmt.Errorf("invalid thread_count %d: must be >= 1", s.ThreadCount))
	}
	if s.ProbabilityOfFailure <= 0 || s.ProbabilityOfFailure >= 1 {
		errs = append(errs, fmt.Errorf("invalid probability_of_failure %g: must be in (0, 1)", s.ProbabilityOfFailure))
	}
	if s.BoundsDelta < 0 {
		errs = append(errs, fmt.Errorf("invalid bounds_delta %g: must be >= 0", s.BoundsDelta))
	}
	if s.BoundsMaxPercentile <= 0 || s.BoundsMaxPercentile >= 1 {
		errs = append(errs, fmt.Errorf("invalid bounds_max_percentile %g: must be in (0, 1)", s.BoundsMaxPercentile))
	}
	if s.MinTailValues < 2 {
		errs = append(errs, fmt.Errorf("invalid min_tail_values %d: must be >= 2", s.MinTailValues))
	}
	if c.Execution.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid timeout %s: must be positive", c.Execution.Timeout))
	}
	if c.Execution.LogTag == "" {
		errs = append(errs, errors.New("log_tag must not be empty"))
	}
	return errors.Join(errs...)
}
