// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikmak/mongo-topology/connection/mongoconn"
	"github.com/ikmak/mongo-topology/connstring"
	"github.com/ikmak/mongo-topology/description"
	"github.com/ikmak/mongo-topology/internal/logger"
	"github.com/ikmak/mongo-topology/readpref"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := newConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:27017"}, cfg.seedList)
	assert.Equal(t, description.ConnectionModeMultiple, cfg.mode)
	assert.Equal(t, 10*time.Second, cfg.heartbeatInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.minHeartbeatInterval)
	assert.Equal(t, 30*time.Second, cfg.serverSelectionTimeout)
	assert.Equal(t, 15*time.Millisecond, cfg.localThreshold)
	assert.Equal(t, readpref.PrimaryMode, cfg.readPref.Mode())
	assert.IsType(t, &mongoconn.Dialer{}, cfg.dialer)
	assert.NotNil(t, cfg.logger)
}

func TestNewConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"zero heartbeat interval", []Option{WithHeartbeatInterval(0)}},
		{"zero min heartbeat interval", []Option{WithMinHeartbeatInterval(0)}},
		{"min above heartbeat interval", []Option{WithHeartbeatInterval(time.Second), WithMinHeartbeatInterval(2 * time.Second)}},
		{"zero heartbeat timeout", []Option{WithHeartbeatTimeout(0)}},
		{"negative selection timeout", []Option{WithServerSelectionTimeout(-time.Second)}},
		{"negative local threshold", []Option{WithLocalThreshold(-time.Millisecond)}},
		{"single mode with two hosts", []Option{WithMode(description.ConnectionModeSingle), WithSeedList("a", "b")}},
		{"nil read preference", []Option{WithReadPreference(nil)}},
		{"invalid read preference", []Option{WithReadPreference(readpref.Secondary(readpref.WithMaxStaleness(time.Second)))}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := newConfig(test.opts...)
			assert.Error(t, err)
		})
	}
}

func TestWithConnString(t *testing.T) {
	cs, err := connstring.Parse("mongodb://a:27017,b:27018/?replicaSet=rs0&heartbeatFrequencyMS=2000" +
		"&serverSelectionTimeoutMS=1000&localThresholdMS=25&connectTimeoutMS=3000&appName=watcher" +
		"&readPreference=secondary&readPreferenceTags=dc:ny")
	require.NoError(t, err)

	cfg, err := newConfig(WithConnString(cs))
	require.NoError(t, err)

	assert.Equal(t, []string{"a:27017", "b:27018"}, cfg.seedList)
	assert.Equal(t, "rs0", cfg.replicaSetName)
	assert.Equal(t, 2*time.Second, cfg.heartbeatInterval)
	assert.Equal(t, time.Second, cfg.serverSelectionTimeout)
	assert.Equal(t, 25*time.Millisecond, cfg.localThreshold)
	assert.Equal(t, 3*time.Second, cfg.connectTimeout)
	assert.Equal(t, "watcher", cfg.appName)
	assert.Equal(t, readpref.SecondaryMode, cfg.readPref.Mode())
	require.Len(t, cfg.readPref.TagSets(), 1)

	dialer, ok := cfg.dialer.(*mongoconn.Dialer)
	require.True(t, ok)
	assert.Equal(t, "watcher", dialer.AppName)
	assert.Equal(t, 3*time.Second, dialer.ConnectTimeout)
}

func TestWithConnStringDirect(t *testing.T) {
	cs, err := connstring.Parse("mongodb://a/?directConnection=true")
	require.NoError(t, err)

	cfg, err := newConfig(WithConnString(cs))
	require.NoError(t, err)
	assert.Equal(t, description.ConnectionModeSingle, cfg.mode)
}

func TestWithConnStringKeepsUnsetOptions(t *testing.T) {
	cs, err := connstring.Parse("mongodb://a")
	require.NoError(t, err)

	cfg, err := newConfig(WithHeartbeatInterval(time.Minute), WithConnString(cs))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.heartbeatInterval)
	assert.Equal(t, readpref.PrimaryMode, cfg.readPref.Mode())
}

func TestWithLogSink(t *testing.T) {
	sink := &recordingSink{}
	cfg, err := newConfig(WithLogSink(sink, LogLevelInfo))
	require.NoError(t, err)

	assert.True(t, cfg.logger.LevelComponentEnabled(logger.InfoLevel, logger.ComponentTopology))
	assert.True(t, cfg.logger.LevelComponentEnabled(logger.InfoLevel, logger.ComponentServerSelection))
	assert.False(t, cfg.logger.LevelComponentEnabled(logger.DebugLevel, logger.ComponentTopology))
	assert.Equal(t, sink, cfg.logger.Sink)
}
