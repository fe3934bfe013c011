// Package config handles optional qtrack.yaml overlay loading for the CLI.
// Environment variables remain the primary configuration source
// (github.com/justapithecus/qtrack/config); this file only lets a project
// pin defaults for the flags the CLI otherwise reads from the environment.
package config

import (
	"fmt"
	"time"
)

// Config represents a qtrack.yaml file. Every field is optional. `qtrack run`
// applies each non-zero server, batch, and spool value on top of the
// environment configuration, replacing the environment's value; zero fields
// leave the environment's value in place. Project is decoded but not applied
// by `qtrack run`, which takes the project from --project only.
type Config struct {
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key"`
	Project   string `yaml:"project"`

	Batch BatchConfig `yaml:"batch"`
	Spool SpoolConfig `yaml:"spool"`
}

// BatchConfig holds batching defaults from the config file.
type BatchConfig struct {
	Size     int      `yaml:"size"`
	MaxBytes int64    `yaml:"max_bytes"`
	Timeout  Duration `yaml:"timeout"`
}

// SpoolConfig holds spool defaults from the config file.
type SpoolConfig struct {
	Dir            string `yaml:"dir"`
	MaxSize        int64  `yaml:"max_size"`
	RetentionHours int    `yaml:"retention_hours"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m"),
// the same overlay convenience the teacher's cli/config.Duration provides.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "1m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
