package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/glucolink/internal/filex"
	"github.com/dmitrijs2005/glucolink/internal/flagx"
	"github.com/dmitrijs2005/glucolink/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON marshalling. It relies on
// timex.Duration so the config file can specify the sensor lifetime either
// as a string like "336h" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	Region         string         `json:"region"`
	TargetLow      float64        `json:"target_low"`
	TargetHigh     float64        `json:"target_high"`
	Product        string         `json:"product"`
	ClientVersion  string         `json:"client_version"`
	SensorLifetime timex.Duration `json:"sensor_lifetime"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. Otherwise DataDir/config.json, skipped silently when absent.
//
// Behavior:
//   - Reads and unmarshals the JSON into JsonConfig.
//   - Copies set fields into the provided Config; zero-valued fields keep
//     their earlier value, so a hand-trimmed file cannot wipe the defaults.
//   - Panics on read or unmarshal errors (caller should recover if desired).
//
// Intended usage is: defaults -> parseJson -> parseFlags, where later stages
// override earlier ones.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		jsonConfigFile = cfg.ConfigFile()
		if _, err := os.Stat(jsonConfigFile); errors.Is(err, os.ErrNotExist) {
			return
		}
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.Region != "" {
		cfg.Region = jc.Region
	}
	if jc.TargetLow != 0 {
		cfg.TargetLow = jc.TargetLow
	}
	if jc.TargetHigh != 0 {
		cfg.TargetHigh = jc.TargetHigh
	}
	if jc.Product != "" {
		cfg.Product = jc.Product
	}
	if jc.ClientVersion != "" {
		cfg.ClientVersion = jc.ClientVersion
	}
	if jc.SensorLifetime.Duration != 0 {
		cfg.SensorLifetime = time.Duration(jc.SensorLifetime.Duration)
	}
}

// Save persists the non-secret settings to DataDir/config.json atomically.
// Called after configure and after a login redirect pins a new region.
func (c *Config) Save() error {
	jc := JsonConfig{
		Region:         c.Region,
		TargetLow:      c.TargetLow,
		TargetHigh:     c.TargetHigh,
		Product:        c.Product,
		ClientVersion:  c.ClientVersion,
		SensorLifetime: timex.Duration{Duration: c.SensorLifetime},
	}

	data, err := json.MarshalIndent(jc, "", "  ")
	if err != nil {
		return fmt.Errorf("config save: %w", err)
	}

	if err := filex.EnsureDir(c.DataDir); err != nil {
		return fmt.Errorf("config save: %w", err)
	}
	if err := filex.AtomicWrite(c.ConfigFile(), data, 0o600); err != nil {
		return fmt.Errorf("config save: %w", err)
	}
	return nil
}
