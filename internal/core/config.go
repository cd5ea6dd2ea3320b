// internal/core/config.go
// Configuration management using Koanf

package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/portsweep/portsweep/internal/scanner"
	"github.com/portsweep/portsweep/pkg/cidr"
)

// Config represents the complete application configuration
type Config struct {
	Scan   ScanConfig   `koanf:"scan"`
	Output OutputConfig `koanf:"output"`
	Log    LogConfig    `koanf:"log"`
}

// ScanConfig contains scan run settings
type ScanConfig struct {
	Targets         []string      `koanf:"targets"`  // CIDR blocks or single addresses
	Excludes        []string      `koanf:"excludes"` // single addresses, exact match
	Ports           string        `koanf:"ports"`    // "1-100" or "22"
	ConcurrentScans int           `koanf:"concurrent_scans"`
	AdaptiveTiming  bool          `koanf:"adaptive_timing"`
	Timeout         time.Duration `koanf:"timeout"`
	Rate            int           `koanf:"rate"` // probes per second, 0 = unlimited
}

// OutputConfig contains output settings
type OutputConfig struct {
	JSON string `koanf:"json"` // file path, "-" for stdout, empty = text summary
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, console
}

// Load builds the configuration: defaults, then the optional YAML file,
// then PORTSWEEP_* environment variables. CLI flag overrides are applied
// by the caller afterwards.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"scan.ports":            "1-100",
		"scan.concurrent_scans": 100,
		"scan.adaptive_timing":  false,
		"scan.timeout":          "1s",
		"scan.rate":             0,
		"log.level":             "info",
		"log.format":            "console",
	}
	if err := k.Load(confmap.Provider(defaults, ""), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// PORTSWEEP_SCAN_PORTS=1-1024, PORTSWEEP_LOG_LEVEL=debug, etc.
	envProvider := env.Provider("PORTSWEEP_", ".", envKeyToPath)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// envKeyToPath maps PORTSWEEP_SCAN_CONCURRENT_SCANS to scan.concurrent_scans.
func envKeyToPath(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "PORTSWEEP_"))
	// Only the section separator becomes a dot; the rest stay underscores.
	for _, section := range []string{"scan_", "output_", "log_"} {
		if rest, ok := strings.CutPrefix(s, section); ok && rest != "" {
			return strings.TrimSuffix(section, "_") + "." + rest
		}
	}
	return s
}

// Validate checks the loaded configuration before any scanning starts.
func (c *Config) Validate() error {
	if len(c.Scan.Targets) == 0 {
		return fmt.Errorf("no scan targets specified")
	}
	if _, err := cidr.Parse(c.Scan.Targets); err != nil {
		return fmt.Errorf("unable to parse target address(es): %w", err)
	}
	if _, err := cidr.ParseAddrs(c.Scan.Excludes); err != nil {
		return fmt.Errorf("unable to parse addresses to exclude: %w", err)
	}
	if _, err := scanner.ParsePortRange(c.Scan.Ports); err != nil {
		return fmt.Errorf("unable to parse port range: %w", err)
	}
	if c.Scan.ConcurrentScans < 1 || c.Scan.ConcurrentScans > 100000 {
		return fmt.Errorf("invalid concurrent scans: %d (must be between 1 and 100000)", c.Scan.ConcurrentScans)
	}
	if c.Scan.Timeout < time.Millisecond || c.Scan.Timeout > 5*time.Minute {
		return fmt.Errorf("invalid timeout: %v (must be between 1ms and 5m)", c.Scan.Timeout)
	}
	if c.Scan.Rate < 0 {
		return fmt.Errorf("invalid rate: %d (must not be negative)", c.Scan.Rate)
	}
	return nil
}

// Parameters derives the immutable engine parameters for one run.
func (c *Config) Parameters() scanner.ScanParameters {
	return scanner.ScanParameters{
		ConcurrentScans:      c.Scan.ConcurrentScans,
		EnableAdaptiveTiming: c.Scan.AdaptiveTiming,
		WaitTimeout:          c.Scan.Timeout,
	}
}
