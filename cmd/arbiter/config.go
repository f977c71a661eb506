package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"arbiter/internal/auth"
	"arbiter/internal/history"
	"arbiter/internal/judge"
	"arbiter/internal/mq"
	"arbiter/internal/sandbox/engine"
	"arbiter/internal/sandbox/runner"
	"arbiter/internal/sandbox/security"
	"arbiter/internal/server"
	"arbiter/internal/status"
	"arbiter/internal/storage"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/utils/logger"
)

// Config is the full server configuration, one YAML file.
type Config struct {
	Logger  logger.Config  `yaml:"logger"`
	Server  server.Config  `yaml:"server"`
	Engine  engine.Config  `yaml:"engine"`
	Runner  runner.Config  `yaml:"runner"`
	Judge   judge.Config   `yaml:"judge"`
	History history.Config `yaml:"history"`
	Status  status.Config  `yaml:"status"`
	Auth    auth.Config    `yaml:"auth"`

	Packet PacketSource `yaml:"packet"`

	Profiles map[string]security.IsolationProfile `yaml:"profiles"`

	Kafka struct {
		Enabled bool `yaml:"enabled"`
		mq.Config   `yaml:",inline"`
	} `yaml:"kafka"`

	Storage struct {
		Enabled        bool `yaml:"enabled"`
		storage.Config `yaml:",inline"`
	} `yaml:"storage"`
}

// PacketSource names where the competition packet comes from: a local YAML
// file, or an archive key in object storage.
type PacketSource struct {
	Path      string `yaml:"path"`
	ObjectKey string `yaml:"object_key"`
	CacheDir  string `yaml:"cache_dir"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "read config file failed")
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "decode config file failed")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Packet.Path == "" && c.Packet.ObjectKey == "" {
		return appErr.ValidationError("packet", "either path or object_key is required")
	}
	if c.Packet.ObjectKey != "" && !c.Storage.Enabled {
		return appErr.ValidationError("storage", "must be enabled to fetch packet by object_key")
	}
	if c.Auth.Secret == "" {
		return appErr.ValidationError("auth.secret", "required")
	}
	if c.History.DSN == "" {
		return appErr.ValidationError("history.dsn", "required")
	}
	if c.Status.Addr == "" {
		return appErr.ValidationError("status.addr", "required")
	}
	return nil
}
