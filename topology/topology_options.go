// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ikmak/mongo-topology/connection"
	"github.com/ikmak/mongo-topology/connection/mongoconn"
	"github.com/ikmak/mongo-topology/connstring"
	"github.com/ikmak/mongo-topology/description"
	"github.com/ikmak/mongo-topology/event"
	"github.com/ikmak/mongo-topology/internal/logger"
	"github.com/ikmak/mongo-topology/readpref"
)

const (
	defaultHeartbeatInterval      = 10 * time.Second
	defaultMinHeartbeatInterval   = 500 * time.Millisecond
	defaultHeartbeatTimeout       = 10 * time.Second
	defaultServerSelectionTimeout = 30 * time.Second
	defaultLocalThreshold         = 15 * time.Millisecond
	defaultConnectTimeout         = 30 * time.Second
	defaultSeed                   = "localhost:27017"
)

// LogSink receives the topology's log messages. It matches the Info method of
// a logr.LogSink.
type LogSink = logger.LogSink

// LogLevel is the severity threshold of the topology's log messages.
type LogLevel = logger.Level

// Log levels accepted by WithLogSink.
const (
	LogLevelOff   = logger.OffLevel
	LogLevelInfo  = logger.InfoLevel
	LogLevelDebug = logger.DebugLevel
)

// Option configures a Topology.
type Option func(*config) error

type config struct {
	mode           description.ConnectionMode
	replicaSetName string
	seedList       []string
	appName        string
	connectTimeout time.Duration

	serverSelectionTimeout time.Duration
	localThreshold         time.Duration
	heartbeatInterval      time.Duration
	minHeartbeatInterval   time.Duration
	heartbeatTimeout       time.Duration

	readPref      *readpref.ReadPref
	dialer        connection.Dialer
	serverMonitor *event.ServerMonitor

	logSink         logger.LogSink
	componentLevels map[logger.Component]logger.Level
	logger          *logger.Logger
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		connectTimeout:         defaultConnectTimeout,
		serverSelectionTimeout: defaultServerSelectionTimeout,
		localThreshold:         defaultLocalThreshold,
		heartbeatInterval:      defaultHeartbeatInterval,
		minHeartbeatInterval:   defaultMinHeartbeatInterval,
		heartbeatTimeout:       defaultHeartbeatTimeout,
		readPref:               readpref.Primary(),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.seedList) == 0 {
		cfg.seedList = []string{defaultSeed}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.dialer == nil {
		cfg.dialer = mongoconn.NewDialer(cfg.appName, cfg.connectTimeout)
	}

	cfg.logger = logger.New(cfg.logSink, cfg.componentLevels)

	return cfg, nil
}

func (cfg *config) validate() error {
	if cfg.mode == description.ConnectionModeSingle && len(cfg.seedList) != 1 {
		return errors.Errorf("a direct connection requires exactly one host, got %d", len(cfg.seedList))
	}
	if cfg.heartbeatInterval <= 0 {
		return errors.Errorf("heartbeat interval must be positive, got %s", cfg.heartbeatInterval)
	}
	if cfg.minHeartbeatInterval <= 0 {
		return errors.Errorf("minimum heartbeat interval must be positive, got %s", cfg.minHeartbeatInterval)
	}
	if cfg.minHeartbeatInterval > cfg.heartbeatInterval {
		return errors.Errorf("minimum heartbeat interval (%s) must not exceed the heartbeat interval (%s)",
			cfg.minHeartbeatInterval, cfg.heartbeatInterval)
	}
	if cfg.heartbeatTimeout <= 0 {
		return errors.Errorf("heartbeat timeout must be positive, got %s", cfg.heartbeatTimeout)
	}
	if cfg.serverSelectionTimeout < 0 {
		return errors.Errorf("server selection timeout must not be negative, got %s", cfg.serverSelectionTimeout)
	}
	if cfg.localThreshold < 0 {
		return errors.Errorf("local threshold must not be negative, got %s", cfg.localThreshold)
	}
	return errors.Wrap(cfg.readPref.Validate(), "invalid read preference")
}

// WithConnString configures the topology from a parsed connection string.
// Options that are not present in the connection string keep their values.
func WithConnString(cs connstring.ConnString) Option {
	return func(cfg *config) error {
		cfg.seedList = append([]string(nil), cs.Hosts...)
		if cs.ReplicaSet != "" {
			cfg.replicaSetName = cs.ReplicaSet
		}
		if cs.DirectConnectionSet && cs.DirectConnection {
			cfg.mode = description.ConnectionModeSingle
		}
		if cs.AppName != "" {
			cfg.appName = cs.AppName
		}
		if cs.ConnectTimeoutSet {
			cfg.connectTimeout = cs.ConnectTimeout
		}
		if cs.HeartbeatIntervalSet {
			cfg.heartbeatInterval = cs.HeartbeatInterval
		}
		if cs.LocalThresholdSet {
			cfg.localThreshold = cs.LocalThreshold
		}
		if cs.ServerSelectionTimeoutSet {
			cfg.serverSelectionTimeout = cs.ServerSelectionTimeout
		}

		rp, err := cs.ReadPref()
		if err != nil {
			return err
		}
		if rp != nil {
			cfg.readPref = rp
		}
		return nil
	}
}

// WithMode configures the topology's connection mode.
func WithMode(mode description.ConnectionMode) Option {
	return func(cfg *config) error {
		cfg.mode = mode
		return nil
	}
}

// WithReplicaSetName configures the replica set name that every member must
// report.
func WithReplicaSetName(name string) Option {
	return func(cfg *config) error {
		cfg.replicaSetName = name
		return nil
	}
}

// WithSeedList configures the addresses monitored when the topology connects.
func WithSeedList(seeds ...string) Option {
	return func(cfg *config) error {
		cfg.seedList = seeds
		return nil
	}
}

// WithAppName configures the application name sent by the default dialer.
func WithAppName(name string) Option {
	return func(cfg *config) error {
		cfg.appName = name
		return nil
	}
}

// WithConnectTimeout configures the connect timeout of the default dialer.
func WithConnectTimeout(d time.Duration) Option {
	return func(cfg *config) error {
		cfg.connectTimeout = d
		return nil
	}
}

// WithServerSelectionTimeout configures how long server selection waits for a
// suitable server. Zero means wait until the context is done.
func WithServerSelectionTimeout(d time.Duration) Option {
	return func(cfg *config) error {
		cfg.serverSelectionTimeout = d
		return nil
	}
}

// WithLocalThreshold configures the width of the latency window.
func WithLocalThreshold(d time.Duration) Option {
	return func(cfg *config) error {
		cfg.localThreshold = d
		return nil
	}
}

// WithHeartbeatInterval configures the steady state interval between
// heartbeats.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(cfg *config) error {
		cfg.heartbeatInterval = d
		return nil
	}
}

// WithMinHeartbeatInterval configures the minimum time between two heartbeats
// to the same server, including requested immediate checks.
func WithMinHeartbeatInterval(d time.Duration) Option {
	return func(cfg *config) error {
		cfg.minHeartbeatInterval = d
		return nil
	}
}

// WithHeartbeatTimeout configures how long a single heartbeat may take.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(cfg *config) error {
		cfg.heartbeatTimeout = d
		return nil
	}
}

// WithReadPreference configures the read preference used by
// SelectServerByReadPref when it is given a nil read preference.
func WithReadPreference(rp *readpref.ReadPref) Option {
	return func(cfg *config) error {
		if rp == nil {
			return errors.New("read preference must not be nil")
		}
		cfg.readPref = rp
		return nil
	}
}

// WithDialer configures the dialer used for monitoring connections.
func WithDialer(dialer connection.Dialer) Option {
	return func(cfg *config) error {
		cfg.dialer = dialer
		return nil
	}
}

// WithServerMonitor configures the event monitor. Its callbacks may be called
// concurrently from different servers' goroutines.
func WithServerMonitor(monitor *event.ServerMonitor) Option {
	return func(cfg *config) error {
		cfg.serverMonitor = monitor
		return nil
	}
}

// WithLogSink configures the sink and the level of the topology's logs. The
// MONGODB_LOG_* environment variables are overridden by level.
func WithLogSink(sink LogSink, level LogLevel) Option {
	return func(cfg *config) error {
		cfg.logSink = sink
		cfg.componentLevels = map[logger.Component]logger.Level{logger.ComponentAll: level}
		return nil
	}
}
