package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the glucolink CLI.
//
// Fields:
//   - Region: account region slug ("eu", "us", ...). Empty means the global
//     endpoint, used until the first login redirect pins a region.
//   - TargetLow/TargetHigh: glucose target range in mg/dL, used by analytics.
//   - Product/ClientVersion: identification headers the upstream API requires
//     on every request.
//   - SensorLifetime: wear duration after which a sensor is considered expired.
//   - DataDir: directory holding config.json and the encrypted stores.
//
// Secrets never live here; they belong to the encrypted stores.
type Config struct {
	Region         string
	TargetLow      float64
	TargetHigh     float64
	Product        string
	ClientVersion  string
	SensorLifetime time.Duration
	DataDir        string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.Region = ""
	c.TargetLow = 70
	c.TargetHigh = 180
	c.Product = "llu.android"
	c.ClientVersion = "4.12.0"
	c.SensorLifetime = 14 * 24 * time.Hour
	c.DataDir = defaultDataDir()
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones. The data dir flag is applied before the JSON
// stage because it decides where the default config file lives.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	if d := dataDirFromFlags(); d != "" {
		cfg.DataDir = d
	}
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

// ConfigFile returns the path of the persisted config inside DataDir.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "config.json")
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".glucolink"
	}
	return filepath.Join(base, "glucolink")
}

// ValidRegion reports whether s is usable as a region slug: empty (global
// endpoint) or a short lowercase alphanumeric token like "eu" or "eu2".
func ValidRegion(s string) bool {
	if len(s) > 8 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
