// Package config handles application configuration loading and management.
package config

import (
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can use "10s" syntax.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Config holds all pakview settings.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PipelineConfig holds image load pipeline settings.
type PipelineConfig struct {
	// MaxConcurrentLoads bounds concurrent decode work across all archives.
	// 0 selects half the processor count, minimum 1.
	MaxConcurrentLoads int `yaml:"max_concurrent_loads"`
	// MaxHandlesPerArchive bounds open read handles per archive file.
	// 0 selects half the processor count, clamped to [1, NumCPU].
	MaxHandlesPerArchive int      `yaml:"max_handles_per_archive"`
	ProbeBudgetBytes     int      `yaml:"probe_budget_bytes"`
	HandleTimeout        Duration `yaml:"handle_timeout"`
	ReleaseTimeout       Duration `yaml:"release_timeout"`
}

// CacheConfig holds decoded-image disk cache settings.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"` // empty = <config dir>/cache
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			MaxConcurrentLoads:   0, // resolved from NumCPU at pipeline construction
			MaxHandlesPerArchive: 0,
			ProbeBudgetBytes:     64 * 1024,
			HandleTimeout:        Duration(10 * time.Second),
			ReleaseTimeout:       Duration(10 * time.Second),
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     "",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// DefaultConcurrency resolves a zero concurrency setting against the
// processor count: half the processors, minimum one.
func DefaultConcurrency() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}
