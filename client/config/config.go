// Copyright (C) 2026 talentwire.io <dev@talentwire.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/talentwire/chatsync/client/models"
)

// Config is the full daemon configuration. Values are read from an
// optional YAML file, then overridden by CHATSYNC_* environment
// variables.
type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
	} `yaml:"server"`

	Backend struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
	} `yaml:"backend"`

	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Identity struct {
		Self     string `yaml:"self"`
		PeerRole string `yaml:"peer_role"`
	} `yaml:"identity"`

	API struct {
		Token          string   `yaml:"token"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"api"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Load reads path (when non-empty), applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if cfg.Identity.Self == "" {
		return nil, fmt.Errorf("identity.self is required (or set CHATSYNC_SELF)")
	}
	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("backend.base_url is required (or set CHATSYNC_BACKEND_URL)")
	}
	if cfg.Identity.PeerRole != string(models.RoleApplicant) && cfg.Identity.PeerRole != string(models.RoleEmployer) {
		return nil, fmt.Errorf("identity.peer_role must be %q or %q", models.RoleApplicant, models.RoleEmployer)
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Address, "CHATSYNC_ADDRESS")
	setInt(&cfg.Server.Port, "CHATSYNC_PORT")
	setString(&cfg.Backend.BaseURL, "CHATSYNC_BACKEND_URL")
	setString(&cfg.Backend.Token, "CHATSYNC_BACKEND_TOKEN")
	setString(&cfg.NATS.URL, "CHATSYNC_NATS_URL")
	setString(&cfg.Redis.Addr, "CHATSYNC_REDIS_ADDR")
	setString(&cfg.Redis.Password, "CHATSYNC_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CHATSYNC_REDIS_DB")
	setString(&cfg.Identity.Self, "CHATSYNC_SELF")
	setString(&cfg.Identity.PeerRole, "CHATSYNC_PEER_ROLE")
	setString(&cfg.API.Token, "CHATSYNC_API_TOKEN")
	setString(&cfg.Logging.Level, "CHATSYNC_LOG_LEVEL")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Identity.PeerRole == "" {
		cfg.Identity.PeerRole = string(models.RoleEmployer)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// ListenAddr is the host:port the local API binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// PeerRole returns the configured role as a typed value.
func (c *Config) PeerRole() models.Role {
	return models.Role(c.Identity.PeerRole)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
