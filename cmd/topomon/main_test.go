// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikmak/mongo-topology/description"
	"github.com/ikmak/mongo-topology/readpref"
	"github.com/ikmak/mongo-topology/tag"
)

func TestBuildReadPref(t *testing.T) {
	rp, err := buildReadPref("secondaryPreferred", []string{"dc:ny,rack:1", ""}, 2*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, readpref.SecondaryPreferredMode, rp.Mode())
	require.Len(t, rp.TagSets(), 2)
	assert.Equal(t, tag.Set{{Name: "dc", Value: "ny"}, {Name: "rack", Value: "1"}}, rp.TagSets()[0])
	assert.Empty(t, rp.TagSets()[1])
	ms, ok := rp.MaxStaleness()
	assert.True(t, ok)
	assert.Equal(t, 2*time.Minute, ms)

	_, err = buildReadPref("closest", nil, 0)
	assert.Error(t, err)
	_, err = buildReadPref("primary", []string{"dc:ny"}, 0)
	assert.Error(t, err)
	_, err = buildReadPref("nearest", []string{"dc"}, 0)
	assert.Error(t, err)
}

func TestPrintTopology(t *testing.T) {
	desc := description.Topology{
		Kind:    description.TopologyKindReplicaSetWithPrimary,
		SetName: "rs0",
		Servers: []description.Server{
			{
				Addr:          "a:27017",
				Kind:          description.ServerKindRSPrimary,
				State:         description.ServerStateConnected,
				SetName:       "rs0",
				AverageRTT:    2 * time.Millisecond,
				AverageRTTSet: true,
				Tags:          tag.Set{{Name: "dc", Value: "ny"}},
			},
			{
				Addr:      "b:27017",
				State:     description.ServerStateUnknown,
				LastError: errors.New("connection refused"),
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printTopology(&buf, desc, false))

	out := buf.String()
	assert.Contains(t, out, `"kind": "ReplicaSetWithPrimary"`)
	assert.Contains(t, out, `"address": "a:27017"`)
	assert.Contains(t, out, `"averageRTTMS": 2`)
	assert.Contains(t, out, `"dc": "ny"`)
	assert.Contains(t, out, `"error": "connection refused"`)
	assert.NotContains(t, out, `"primary"`)
}

func TestReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topomon.toml")
	require.NoError(t, os.WriteFile(path, []byte("hosts = [\"c:27017\"]\n[logging]\nlevel = \"info\"\n"), 0o600))

	viper.Set("config", path)
	viper.Set("uri", "mongodb://a,b/?replicaSet=rs0")
	viper.Set("metrics-addr", ":9216")
	t.Cleanup(func() {
		viper.Set("config", "")
		viper.Set("uri", "")
		viper.Set("metrics-addr", "")
	})

	cfg, err := readConfig()
	require.NoError(t, err)

	assert.Equal(t, "mongodb://a,b/?replicaSet=rs0", cfg.URI)
	assert.Empty(t, cfg.Hosts, "the uri flag replaces the hosts of the file")
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":9216", cfg.Metrics.Addr)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}
