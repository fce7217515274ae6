// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package config loads topology monitoring settings from a TOML file.
//
// A file looks like:
//
//	uri = "mongodb://a:27017,b:27017/?replicaSet=rs0"
//	heartbeat_interval = "5s"
//	server_selection_timeout = "10s"
//
//	[logging]
//	level = "debug"
//	format = "json"
//
//	[metrics]
//	addr = ":9216"
//
// Durations are Go duration strings. Settings in the file take precedence
// over the same settings in the uri.
package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ikmak/mongo-topology/connstring"
	"github.com/ikmak/mongo-topology/description"
	"github.com/ikmak/mongo-topology/readpref"
	"github.com/ikmak/mongo-topology/topology"
)

// DefaultMetricsPath is the path metrics are served on when none is set.
const DefaultMetricsPath = "/metrics"

// Config is the content of a configuration file.
type Config struct {
	URI        string   `toml:"uri"`
	Hosts      []string `toml:"hosts"`
	ReplicaSet string   `toml:"replica_set"`
	Direct     bool     `toml:"direct"`
	AppName    string   `toml:"app_name"`

	HeartbeatInterval      string `toml:"heartbeat_interval"`
	MinHeartbeatInterval   string `toml:"min_heartbeat_interval"`
	HeartbeatTimeout       string `toml:"heartbeat_timeout"`
	ServerSelectionTimeout string `toml:"server_selection_timeout"`
	LocalThreshold         string `toml:"local_threshold"`
	ConnectTimeout         string `toml:"connect_timeout"`

	ReadPreference string `toml:"read_preference"`

	Logging Logging `toml:"logging"`
	Metrics Metrics `toml:"metrics"`
}

// Logging configures the log output.
type Logging struct {
	// Level is one of "off", "info" or "debug".
	Level string `toml:"level"`
	// Format is either "text" or "json".
	Format string `toml:"format"`
}

// Metrics configures the Prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `toml:"addr"`
	Path string `toml:"path"`
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "in %s", path)
	}
	return cfg, nil
}

// Parse parses the TOML document in data.
func Parse(data []byte) (*Config, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}

	cfg := &Config{}
	if err := tree.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if cfg.Metrics.Addr != "" && cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	return cfg, cfg.validate()
}

func (cfg *Config) validate() error {
	if cfg.URI != "" {
		if _, err := connstring.Parse(cfg.URI); err != nil {
			return err
		}
	}
	for name, value := range cfg.durations() {
		if _, err := parseDuration(name, value); err != nil {
			return err
		}
	}
	if cfg.ReadPreference != "" {
		if _, err := readpref.ModeFromString(cfg.ReadPreference); err != nil {
			return errors.Wrap(err, "read_preference")
		}
	}
	if _, err := cfg.Logging.level(); err != nil {
		return err
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		return errors.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format)
	}
	return nil
}

func (cfg *Config) durations() map[string]string {
	return map[string]string{
		"heartbeat_interval":       cfg.HeartbeatInterval,
		"min_heartbeat_interval":   cfg.MinHeartbeatInterval,
		"heartbeat_timeout":        cfg.HeartbeatTimeout,
		"server_selection_timeout": cfg.ServerSelectionTimeout,
		"local_threshold":          cfg.LocalThreshold,
		"connect_timeout":          cfg.ConnectTimeout,
	}
}

// TopologyOptions converts the configuration into topology options. The uri
// is applied first so the other settings override it.
func (cfg *Config) TopologyOptions() ([]topology.Option, error) {
	var opts []topology.Option

	if cfg.URI != "" {
		cs, err := connstring.Parse(cfg.URI)
		if err != nil {
			return nil, err
		}
		opts = append(opts, topology.WithConnString(cs))
	}
	if len(cfg.Hosts) > 0 {
		opts = append(opts, topology.WithSeedList(cfg.Hosts...))
	}
	if cfg.ReplicaSet != "" {
		opts = append(opts, topology.WithReplicaSetName(cfg.ReplicaSet))
	}
	if cfg.Direct {
		opts = append(opts, topology.WithMode(description.ConnectionModeSingle))
	}
	if cfg.AppName != "" {
		opts = append(opts, topology.WithAppName(cfg.AppName))
	}

	durationOpts := []struct {
		name  string
		value string
		opt   func(time.Duration) topology.Option
	}{
		{"heartbeat_interval", cfg.HeartbeatInterval, topology.WithHeartbeatInterval},
		{"min_heartbeat_interval", cfg.MinHeartbeatInterval, topology.WithMinHeartbeatInterval},
		{"heartbeat_timeout", cfg.HeartbeatTimeout, topology.WithHeartbeatTimeout},
		{"server_selection_timeout", cfg.ServerSelectionTimeout, topology.WithServerSelectionTimeout},
		{"local_threshold", cfg.LocalThreshold, topology.WithLocalThreshold},
		{"connect_timeout", cfg.ConnectTimeout, topology.WithConnectTimeout},
	}
	for _, d := range durationOpts {
		if d.value == "" {
			continue
		}
		v, err := parseDuration(d.name, d.value)
		if err != nil {
			return nil, err
		}
		opts = append(opts, d.opt(v))
	}

	if cfg.ReadPreference != "" {
		mode, err := readpref.ModeFromString(cfg.ReadPreference)
		if err != nil {
			return nil, errors.Wrap(err, "read_preference")
		}
		rp, err := readpref.New(mode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, topology.WithReadPreference(rp))
	}

	return opts, nil
}

// level returns the configured log level. Off when unset.
func (l Logging) level() (topology.LogLevel, error) {
	switch strings.ToLower(l.Level) {
	case "", "off":
		return topology.LogLevelOff, nil
	case "info":
		return topology.LogLevelInfo, nil
	case "debug", "trace":
		return topology.LogLevelDebug, nil
	}
	return topology.LogLevelOff, errors.Errorf("logging.level must be off, info or debug, got %q", l.Level)
}

// Logger builds a logrus logger writing to out in the configured format, and
// returns the level to pass to topology.WithLogSink.
func (l Logging) Logger(out io.Writer) (*logrus.Logger, topology.LogLevel, error) {
	level, err := l.level()
	if err != nil {
		return nil, topology.LogLevelOff, err
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(logrus.InfoLevel)
	if level == topology.LogLevelDebug {
		log.SetLevel(logrus.DebugLevel)
	}
	if strings.EqualFold(l.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log, level, nil
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", name)
	}
	return d, nil
}
