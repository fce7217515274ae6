// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ikmak/mongo-topology/address"
	"github.com/ikmak/mongo-topology/result"
	"github.com/ikmak/mongo-topology/tag"
)

func TestNewServer_kinds(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		hello result.Hello
		kind  ServerKind
	}{
		{"standalone", result.Hello{OK: 1, IsWritablePrimary: true}, ServerKindStandalone},
		{"mongos", result.Hello{OK: 1, IsMaster: true, Msg: "isdbgrid"}, ServerKindMongos},
		{"primary", result.Hello{OK: 1, IsWritablePrimary: true, SetName: "rs0"}, ServerKindRSPrimary},
		{"legacy primary", result.Hello{OK: 1, IsMaster: true, SetName: "rs0"}, ServerKindRSPrimary},
		{"secondary", result.Hello{OK: 1, Secondary: true, SetName: "rs0"}, ServerKindRSSecondary},
		{"hidden", result.Hello{OK: 1, Secondary: true, Hidden: true, SetName: "rs0"}, ServerKindRSMember},
		{"arbiter", result.Hello{OK: 1, ArbiterOnly: true, SetName: "rs0"}, ServerKindRSArbiter},
		{"other", result.Hello{OK: 1, SetName: "rs0"}, ServerKindRSMember},
		{"ghost", result.Hello{OK: 1, IsReplicaSet: true}, ServerKindRSGhost},
		{"not ok", result.Hello{OK: 0, IsWritablePrimary: true, SetName: "rs0"}, ServerKindUnknown},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			desc := NewServer("a:27017", tc.hello)
			require.Equal(t, tc.kind, desc.Kind)
			require.Equal(t, tc.hello.Succeeded(), desc.OK)
			if desc.OK {
				require.Equal(t, ServerStateConnected, desc.State)
				require.NoError(t, desc.LastError)
			} else {
				require.Equal(t, ServerStateUnknown, desc.State)
				require.Error(t, desc.LastError)
			}
		})
	}
}

func TestNewServer_fields(t *testing.T) {
	t.Parallel()

	electionID := primitive.NewObjectID()
	lastWrite := time.Date(2017, 2, 11, 14, 0, 0, 0, time.UTC)

	desc := NewServer("a:27017", result.Hello{
		OK:             1,
		Secondary:      true,
		SetName:        "rs0",
		SetVersion:     3,
		ElectionID:     electionID,
		Hosts:          []string{"A:27017", "b"},
		Passives:       []string{"c:27019"},
		Arbiters:       []string{"d:27020"},
		Me:             "a:27017",
		Tags:           map[string]string{"dc": "ny"},
		LastWrite:      &result.LastWrite{LastWriteDate: lastWrite},
		MinWireVersion: 0,
		MaxWireVersion: 21,
	})

	require.Equal(t, []address.Address{"a:27017", "b:27017", "c:27019", "d:27020"}, desc.Members)
	require.Equal(t, address.Address("a:27017"), desc.CanonicalAddr)
	require.Equal(t, tag.Set{{Name: "dc", Value: "ny"}}, desc.Tags)
	require.Equal(t, lastWrite, desc.LastWriteTime)
	require.Equal(t, uint32(3), desc.SetVersion)
	require.Equal(t, electionID, desc.ElectionID)
	require.Equal(t, &VersionRange{Min: 0, Max: 21}, desc.WireVersion)
	require.False(t, desc.LastUpdateTime.IsZero())
}

func TestNewServerFromError(t *testing.T) {
	t.Parallel()

	err := errors.New("connection refused")
	desc := NewServerFromError("a:27017", err)

	require.Equal(t, address.Address("a:27017"), desc.Addr)
	require.Equal(t, ServerStateUnknown, desc.State)
	require.Equal(t, ServerKindUnknown, desc.Kind)
	require.False(t, desc.OK)
	require.Equal(t, err, desc.LastError)
	require.False(t, desc.Selectable())
}

func TestServer_SetAverageRTT(t *testing.T) {
	t.Parallel()

	desc := Server{Addr: "a:27017"}
	withRTT := desc.SetAverageRTT(5 * time.Millisecond)

	require.False(t, desc.AverageRTTSet)
	require.True(t, withRTT.AverageRTTSet)
	require.Equal(t, 5*time.Millisecond, withRTT.AverageRTT)
	require.False(t, withRTT.SetAverageRTT(UnsetRTT).AverageRTTSet)
}

func TestServer_Equal(t *testing.T) {
	t.Parallel()

	a := Server{Addr: "a:27017", Kind: ServerKindRSSecondary, State: ServerStateConnected, Tags: tag.Set{{Name: "dc", Value: "ny"}}}
	b := a
	b.AverageRTT = time.Second
	b.AverageRTTSet = true

	assert.True(t, a.Equal(b), "RTT changes are not description changes")

	c := a
	c.Kind = ServerKindRSPrimary
	assert.False(t, a.Equal(c))

	d := a
	d.LastError = errors.New("boom")
	assert.False(t, a.Equal(d))

	e := a
	e.Members = []address.Address{"b:27017"}
	assert.False(t, a.Equal(e))
}

func TestTopology_Server(t *testing.T) {
	t.Parallel()

	topo := Topology{Servers: []Server{{Addr: "a:27017"}, {Addr: "b:27017", Kind: ServerKindRSPrimary}}}

	s, ok := topo.Server("b:27017")
	require.True(t, ok)
	require.Equal(t, ServerKindRSPrimary, s.Kind)

	_, ok = topo.Server("c:27017")
	require.False(t, ok)
}

func TestDiffTopology(t *testing.T) {
	t.Parallel()

	old := Topology{Servers: []Server{{Addr: "a:27017"}, {Addr: "b:27017"}, {Addr: "c:27017"}}}
	new := Topology{Servers: []Server{{Addr: "b:27017"}, {Addr: "d:27017"}, {Addr: "c:27017", Kind: ServerKindRSSecondary}}}

	diff := DiffTopology(old, new)

	require.Equal(t, []Server{{Addr: "d:27017"}}, diff.Added)
	require.Equal(t, []Server{{Addr: "a:27017"}}, diff.Removed)

	empty := DiffTopology(new, new)
	require.Empty(t, empty.Added)
	require.Empty(t, empty.Removed)
}

func TestTopology_String(t *testing.T) {
	t.Parallel()

	topo := Topology{
		Kind: TopologyKindReplicaSetWithPrimary,
		Servers: []Server{
			{Addr: "a:27017", Kind: ServerKindRSPrimary, State: ServerStateConnected},
		},
	}

	require.Equal(t,
		"Type: ReplicaSetWithPrimary, Mode: Multiple, Servers: [{ Addr: a:27017, Type: RSPrimary, State: Connected }]",
		topo.String())
	require.True(t, topo.Kind.IsReplicaSet())
	require.False(t, TopologyKindSharded.IsReplicaSet())
	require.True(t, ServerKindRSArbiter.IsReplicaSetMember())
	require.False(t, ServerKindMongos.IsReplicaSetMember())
}
