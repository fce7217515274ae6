// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ikmak/mongo-topology/address"
	"github.com/ikmak/mongo-topology/description"
)

var (
	errStalePrimary     = errors.New("was a primary, but its set version or election id is stale")
	errDisplacedPrimary = errors.New("was a primary, but a new primary was discovered")
	errSetNameMismatch  = errors.New("replica set name does not match the topology")
)

// fsm folds server descriptions into a topology description. It is only ever
// used from the topology's processing goroutine.
type fsm struct {
	description.Topology

	heartbeatInterval time.Duration
	maxElectionID     primitive.ObjectID
	maxSetVersion     uint32
}

func newFSM(mode description.ConnectionMode, setName string, seeds []address.Address, heartbeatInterval time.Duration) *fsm {
	f := &fsm{
		Topology: description.Topology{
			Mode:    mode,
			SetName: setName,
		},
		heartbeatInterval: heartbeatInterval,
	}

	switch {
	case mode == description.ConnectionModeSingle:
		f.Kind = description.TopologyKindSingle
	case setName != "":
		f.Kind = description.TopologyKindReplicaSetNoPrimary
	}

	for _, seed := range seeds {
		if _, ok := f.findServer(seed); !ok {
			f.addServer(seed)
		}
	}

	return f
}

// apply folds s into the topology and returns the new topology description
// and the server description as it was recorded. The boolean is false when s
// is for an address that is no longer part of the topology.
func (f *fsm) apply(s description.Server) (description.Topology, description.Server, bool) {
	newServers := make([]description.Server, len(f.Servers))
	copy(newServers, f.Servers)

	f.Topology = description.Topology{
		Kind:    f.Kind,
		Mode:    f.Mode,
		SetName: f.SetName,
		Servers: newServers,
	}

	if _, ok := f.findServer(s.Addr); !ok {
		return f.Topology, s, false
	}

	switch f.Kind {
	case description.TopologyKindSingle:
		f.applyToSingle(s)
	case description.TopologyKindUnknown:
		f.applyToUnknown(s)
	case description.TopologyKindSharded:
		f.applyToSharded(s)
	case description.TopologyKindReplicaSetNoPrimary:
		f.applyToReplicaSetNoPrimary(s)
	case description.TopologyKindReplicaSetWithPrimary:
		f.applyToReplicaSetWithPrimary(s)
	}

	recorded, ok := f.Server(s.Addr)
	if !ok {
		recorded = s
	}
	return f.Topology, recorded, true
}

func (f *fsm) applyToReplicaSetNoPrimary(s description.Server) {
	switch s.Kind {
	case description.ServerKindStandalone, description.ServerKindMongos:
		f.removeServerByAddr(s.Addr)
	case description.ServerKindRSPrimary:
		f.updateRSFromPrimary(s)
	case description.ServerKindRSSecondary, description.ServerKindRSArbiter, description.ServerKindRSMember:
		f.updateRSWithoutPrimary(s)
	case description.ServerKindUnknown, description.ServerKindRSGhost:
		f.replaceServer(s)
	}
}

func (f *fsm) applyToReplicaSetWithPrimary(s description.Server) {
	switch s.Kind {
	case description.ServerKindStandalone, description.ServerKindMongos:
		f.removeServerByAddr(s.Addr)
		f.checkIfHasPrimary()
	case description.ServerKindRSPrimary:
		f.updateRSFromPrimary(s)
	case description.ServerKindRSSecondary, description.ServerKindRSArbiter, description.ServerKindRSMember:
		f.updateRSWithPrimaryFromMember(s)
	case description.ServerKindUnknown, description.ServerKindRSGhost:
		f.replaceServer(s)
		f.checkIfHasPrimary()
	}
}

func (f *fsm) applyToSharded(s description.Server) {
	switch s.Kind {
	case description.ServerKindMongos, description.ServerKindUnknown:
		f.replaceServer(s)
	case description.ServerKindStandalone, description.ServerKindRSPrimary, description.ServerKindRSSecondary,
		description.ServerKindRSArbiter, description.ServerKindRSMember, description.ServerKindRSGhost:
		f.removeServerByAddr(s.Addr)
	}
}

// applyToSingle records s whatever its kind. A configured set name that the
// server does not report turns the description into an Unknown one.
func (f *fsm) applyToSingle(s description.Server) {
	if s.Kind != description.ServerKindUnknown && f.SetName != "" && f.SetName != s.SetName {
		f.replaceServer(f.unknownServer(s.Addr, errSetNameMismatch))
		return
	}
	f.replaceServer(s)
}

func (f *fsm) applyToUnknown(s description.Server) {
	switch s.Kind {
	case description.ServerKindMongos:
		f.setKind(description.TopologyKindSharded)
		f.replaceServer(s)
	case description.ServerKindRSPrimary:
		f.updateRSFromPrimary(s)
	case description.ServerKindRSSecondary, description.ServerKindRSArbiter, description.ServerKindRSMember:
		f.setKind(description.TopologyKindReplicaSetNoPrimary)
		f.updateRSWithoutPrimary(s)
	case description.ServerKindStandalone:
		f.updateUnknownWithStandalone(s)
	case description.ServerKindUnknown, description.ServerKindRSGhost:
		f.replaceServer(s)
	}
}

func (f *fsm) checkIfHasPrimary() {
	if _, ok := f.findPrimary(); ok {
		f.setKind(description.TopologyKindReplicaSetWithPrimary)
	} else {
		f.setKind(description.TopologyKindReplicaSetNoPrimary)
	}
}

// isStale reports whether (setVersion, electionID) of s is older than the
// newest pair seen from any primary.
func (f *fsm) isStale(s description.Server) bool {
	if s.SetVersion != f.maxSetVersion {
		return s.SetVersion < f.maxSetVersion
	}
	return bytes.Compare(s.ElectionID[:], f.maxElectionID[:]) < 0
}

func (f *fsm) updateRSFromPrimary(s description.Server) {
	if f.SetName == "" {
		f.SetName = s.SetName
	} else if f.SetName != s.SetName {
		f.replaceServer(f.unknownServer(s.Addr, errSetNameMismatch))
		f.checkIfHasPrimary()
		return
	}

	if s.SetVersion != 0 && !s.ElectionID.IsZero() {
		if f.isStale(s) {
			f.replaceServer(f.unknownServer(s.Addr, errStalePrimary))
			f.checkIfHasPrimary()
			return
		}

		f.maxElectionID = s.ElectionID
	}

	if s.SetVersion > f.maxSetVersion {
		f.maxSetVersion = s.SetVersion
	}

	if j, ok := f.findPrimary(); ok && f.Servers[j].Addr != s.Addr {
		f.setServer(j, f.unknownServer(f.Servers[j].Addr, errDisplacedPrimary))
	}

	f.replaceServer(s)

	for j := len(f.Servers) - 1; j >= 0; j-- {
		found := false
		for _, member := range s.Members {
			if member == f.Servers[j].Addr {
				found = true
				break
			}
		}
		if !found {
			f.removeServer(j)
		}
	}

	for _, member := range s.Members {
		if _, ok := f.findServer(member); !ok {
			f.addServer(member)
		}
	}

	f.checkIfHasPrimary()
}

func (f *fsm) updateRSWithPrimaryFromMember(s description.Server) {
	if f.SetName != s.SetName {
		f.replaceServer(f.unknownServer(s.Addr, errSetNameMismatch))
		f.checkIfHasPrimary()
		return
	}

	if s.Addr != s.CanonicalAddr {
		f.removeServerByAddr(s.Addr)
		f.checkIfHasPrimary()
		return
	}

	f.replaceServer(s)

	if _, ok := f.findPrimary(); !ok {
		f.setKind(description.TopologyKindReplicaSetNoPrimary)
	}
}

func (f *fsm) updateRSWithoutPrimary(s description.Server) {
	if f.SetName == "" {
		f.SetName = s.SetName
	} else if f.SetName != s.SetName {
		f.replaceServer(f.unknownServer(s.Addr, errSetNameMismatch))
		return
	}

	for _, member := range s.Members {
		if _, ok := f.findServer(member); !ok {
			f.addServer(member)
		}
	}

	if s.Addr != s.CanonicalAddr {
		f.removeServerByAddr(s.Addr)
		return
	}

	f.replaceServer(s)
}

func (f *fsm) updateUnknownWithStandalone(s description.Server) {
	if len(f.Servers) > 1 {
		f.removeServerByAddr(s.Addr)
		return
	}

	f.setKind(description.TopologyKindSingle)
	f.replaceServer(s)
}

func (f *fsm) unknownServer(addr address.Address, err error) description.Server {
	desc := description.NewServerFromError(addr, err)
	desc.HeartbeatInterval = f.heartbeatInterval
	return desc
}

func (f *fsm) addServer(addr address.Address) {
	f.Servers = append(f.Servers, description.Server{
		Addr:              addr.Canonicalize(),
		CanonicalAddr:     addr.Canonicalize(),
		HeartbeatInterval: f.heartbeatInterval,
	})
}

func (f *fsm) findPrimary() (int, bool) {
	for i, s := range f.Servers {
		if s.Kind == description.ServerKindRSPrimary {
			return i, true
		}
	}

	return 0, false
}

func (f *fsm) findServer(addr address.Address) (int, bool) {
	canon := addr.Canonicalize()
	for i, s := range f.Servers {
		if canon == s.Addr {
			return i, true
		}
	}

	return 0, false
}

func (f *fsm) removeServer(i int) {
	f.Servers = append(f.Servers[:i], f.Servers[i+1:]...)
}

func (f *fsm) removeServerByAddr(addr address.Address) {
	if i, ok := f.findServer(addr); ok {
		f.removeServer(i)
	}
}

func (f *fsm) replaceServer(s description.Server) {
	if i, ok := f.findServer(s.Addr); ok {
		f.setServer(i, s)
	}
}

func (f *fsm) setServer(i int, s description.Server) {
	f.Servers[i] = s
}

func (f *fsm) setKind(k description.TopologyKind) {
	f.Kind = k
}
