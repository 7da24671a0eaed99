package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagLoads    = flag.Int("loads", 0, "Max concurrent image loads")
	flagHandles  = flag.Int("handles", 0, "Max open handles per archive")
	flagCacheDir = flag.String("cache-dir", "", "Decoded-image cache directory")
	flagNoCache  = flag.Bool("no-cache", false, "Disable the decoded-image disk cache")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLoads > 0 {
		cfg.Pipeline.MaxConcurrentLoads = *flagLoads
	}
	if *flagHandles > 0 {
		cfg.Pipeline.MaxHandlesPerArchive = *flagHandles
	}
	if *flagCacheDir != "" {
		cfg.Cache.Dir = *flagCacheDir
	}
	if *flagNoCache {
		cfg.Cache.Enabled = false
	}
}
