package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/achilleasa/rtcore/log"
	"github.com/achilleasa/rtcore/rtcore"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidWidth   = errors.New("cmd: packet width must be one of 1, 4, 8 or 16")
	ErrInvalidThreads = errors.New("cmd: commit thread count must be positive")
	ErrInvalidGrid    = errors.New("cmd: grid size must be positive")
	ErrInvalidLevel   = errors.New("cmd: unknown log level")
)

// Config holds the settings shared by the CLI commands. It is read from a
// YAML file; RTCORE_CONFIG names the file when no path is given.
type Config struct {
	// One of debug, info, notice, warning or error. The -v and -vv flags
	// take precedence.
	LogLevel string `yaml:"log_level"`

	Device   DeviceConfig   `yaml:"device"`
	Selftest SelftestConfig `yaml:"selftest"`
}

// DeviceConfig is translated into a device configuration string.
type DeviceConfig struct {
	Threads   int    `yaml:"threads"`
	Verbose   int    `yaml:"verbose"`
	ISA       string `yaml:"isa"`
	Stats     bool   `yaml:"stats"`
	CacheSize int64  `yaml:"tessellation_cache_size"`
}

type SelftestConfig struct {
	// Number of goroutines joining the collective commit.
	CommitThreads int `yaml:"commit_threads"`

	// Packet width used for queries.
	Width int `yaml:"width"`

	// The test mesh is a Grid x Grid lattice of quads.
	Grid int `yaml:"grid"`
}

func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Stats: true,
		},
		Selftest: SelftestConfig{
			CommitThreads: 4,
			Width:         4,
			Grid:          32,
		},
	}
}

// LoadConfig reads the configuration at path, falling back to RTCORE_CONFIG
// and then to the defaults when neither names a file.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv("RTCORE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RTCORE_ISA"); v != "" {
		cfg.Device.ISA = v
	}
	if v := os.Getenv("RTCORE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks the log level and the selftest settings. Device settings
// are checked by the device itself.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLevel, c.LogLevel)
	}
	switch rtcore.Width(c.Selftest.Width) {
	case rtcore.W1, rtcore.W4, rtcore.W8, rtcore.W16:
	default:
		return ErrInvalidWidth
	}
	if c.Selftest.CommitThreads <= 0 {
		return ErrInvalidThreads
	}
	if c.Selftest.Grid <= 0 {
		return ErrInvalidGrid
	}
	return nil
}

// Level returns the configured log level, Notice when unset.
func (c *Config) Level() log.Level {
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

// DeviceString renders the device section as a configuration string.
func (c DeviceConfig) DeviceString() string {
	var fields []string
	if c.Threads > 0 {
		fields = append(fields, "threads="+strconv.Itoa(c.Threads))
	}
	if c.Verbose > 0 {
		fields = append(fields, "verbose="+strconv.Itoa(c.Verbose))
	}
	if c.ISA != "" {
		fields = append(fields, "isa="+c.ISA)
	}
	if c.Stats {
		fields = append(fields, "stats=1")
	}
	if c.CacheSize > 0 {
		fields = append(fields, "tessellation_cache_size="+strconv.FormatInt(c.CacheSize, 10))
	}
	return strings.Join(fields, ",")
}
