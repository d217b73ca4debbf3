// Package config holds runtime configuration for the checkers server and
// client. Values resolve defaults first, then an optional YAML file, then
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// ListenAddr is the HTTP/websocket bind address of the server.
	ListenAddr string
	// ProbeAddr enables the UDP latency probe when non-empty.
	ProbeAddr string
	// RedisURL enables the Redis result archive when non-empty.
	RedisURL string

	HeartbeatInterval    time.Duration
	MissedHeartbeatLimit int
	WriteTimeout         time.Duration
}

// fileConfig is the YAML shape; durations are strings like "500ms".
type fileConfig struct {
	ListenAddr           string `yaml:"listen_addr"`
	ProbeAddr            string `yaml:"probe_addr"`
	RedisURL             string `yaml:"redis_url"`
	HeartbeatInterval    string `yaml:"heartbeat_interval"`
	MissedHeartbeatLimit int    `yaml:"missed_heartbeat_limit"`
	WriteTimeout         string `yaml:"write_timeout"`
}

func defaults() *Config {
	return &Config{
		ListenAddr:           ":8080",
		HeartbeatInterval:    2 * time.Second,
		MissedHeartbeatLimit: 3,
		WriteTimeout:         5 * time.Second,
	}
}

// Load resolves the configuration. path may be empty; a missing file at an
// explicit path is an error, env overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		if err := cfg.applyFile(&fc); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("heartbeat_interval must be positive")
	}
	if cfg.MissedHeartbeatLimit <= 0 {
		return nil, fmt.Errorf("missed_heartbeat_limit must be positive")
	}
	return cfg, nil
}

func (c *Config) applyFile(fc *fileConfig) error {
	if fc.ListenAddr != "" {
		c.ListenAddr = fc.ListenAddr
	}
	if fc.ProbeAddr != "" {
		c.ProbeAddr = fc.ProbeAddr
	}
	if fc.RedisURL != "" {
		c.RedisURL = fc.RedisURL
	}
	if fc.MissedHeartbeatLimit > 0 {
		c.MissedHeartbeatLimit = fc.MissedHeartbeatLimit
	}
	if fc.HeartbeatInterval != "" {
		d, err := time.ParseDuration(fc.HeartbeatInterval)
		if err != nil {
			return fmt.Errorf("heartbeat_interval: %w", err)
		}
		c.HeartbeatInterval = d
	}
	if fc.WriteTimeout != "" {
		d, err := time.ParseDuration(fc.WriteTimeout)
		if err != nil {
			return fmt.Errorf("write_timeout: %w", err)
		}
		c.WriteTimeout = d
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("CHECKERS_LISTEN_ADDR")); v != "" {
		c.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("CHECKERS_PROBE_ADDR")); v != "" {
		c.ProbeAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		c.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CHECKERS_HEARTBEAT_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CHECKERS_HEARTBEAT_INTERVAL: %w", err)
		}
		c.HeartbeatInterval = d
	}
	if v := strings.TrimSpace(os.Getenv("CHECKERS_MISSED_HEARTBEATS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MissedHeartbeatLimit = n
		}
	}
	return nil
}
