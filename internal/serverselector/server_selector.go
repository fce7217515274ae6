// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package serverselector contains the pure server selectors used by the
// topology. Every selector only ever narrows its candidate list and never
// returns servers that are not connected.
package serverselector

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/ikmak/mongo-topology/description"
	"github.com/ikmak/mongo-topology/readpref"
	"github.com/ikmak/mongo-topology/tag"
)

// IdleWritePeriod is the interval at which a primary writes a no-op to the oplog
// when idle. It bounds how precisely secondary staleness can be estimated.
const IdleWritePeriod = 10 * time.Second

// Composite combines multiple selectors into a single selector by applying them
// in order to the candidates list.
//
// For example, if the initial candidates list is [s0, s1, s2, s3] and two
// selectors are provided where the first matches s0 and s1 and the second
// matches s1 and s2, the following would occur during server selection:
//
// 1. firstSelector([s0, s1, s2, s3]) -> [s0, s1]
// 2. secondSelector([s0, s1]) -> [s1]
//
// The final list of candidates returned by the composite selector would be
// [s1].
type Composite struct {
	Selectors []description.ServerSelector
}

var _ description.ServerSelector = &Composite{}

// SelectServer combines multiple selectors into a single selector.
func (selector *Composite) SelectServer(
	topo description.Topology,
	candidates []description.Server,
) []description.Server {
	for _, sel := range selector.Selectors {
		if len(candidates) == 0 {
			break
		}
		candidates = sel.SelectServer(topo, candidates)
	}

	return candidates
}

// Latency creates a ServerSelector which selects servers based on their average
// RTT values. Servers whose RTT exceeds the lowest RTT among the candidates by
// more than Latency are dropped.
type Latency struct {
	Latency time.Duration
}

var _ description.ServerSelector = &Latency{}

// SelectServer selects servers based on average RTT.
func (selector *Latency) SelectServer(
	_ description.Topology,
	candidates []description.Server,
) []description.Server {
	candidates = selectConnected(candidates)
	if selector.Latency < 0 {
		return candidates
	}

	switch len(candidates) {
	case 0, 1:
		return candidates
	default:
		min := time.Duration(math.MaxInt64)
		for _, candidate := range candidates {
			if candidate.AverageRTTSet && candidate.AverageRTT < min {
				min = candidate.AverageRTT
			}
		}

		if min == math.MaxInt64 {
			return candidates
		}

		max := min + selector.Latency

		return filter(candidates, func(s description.Server) bool {
			return s.AverageRTTSet && s.AverageRTT <= max
		})
	}
}

// ReadPref selects servers based on the provided read preference.
type ReadPref struct {
	ReadPref *readpref.ReadPref
}

var _ description.ServerSelector = &ReadPref{}

// SelectServer selects servers based on read preference.
func (selector *ReadPref) SelectServer(
	topo description.Topology,
	candidates []description.Server,
) []description.Server {
	candidates = selectConnected(candidates)

	if topo.Mode == description.ConnectionModeSingle {
		return selectSingle(candidates)
	}

	switch {
	case topo.Kind == description.TopologyKindSingle:
		return selectByKind(candidates, description.ServerKindStandalone)
	case topo.Kind.IsReplicaSet():
		return selectForReplicaSet(selector.ReadPref, candidates)
	case topo.Kind == description.TopologyKindSharded:
		return selectByKind(candidates, description.ServerKindMongos)
	}

	return nil
}

// Write selects all the writable servers.
type Write struct{}

var _ description.ServerSelector = &Write{}

// SelectServer selects all writable servers.
func (selector *Write) SelectServer(
	topo description.Topology,
	candidates []description.Server,
) []description.Server {
	candidates = selectConnected(candidates)

	if topo.Mode == description.ConnectionModeSingle {
		return selectSingle(candidates)
	}
	if topo.Kind == description.TopologyKindUnknown {
		return nil
	}

	return filter(candidates, func(s description.Server) bool {
		switch s.Kind {
		case description.ServerKindMongos, description.ServerKindRSPrimary, description.ServerKindStandalone:
			return true
		}
		return false
	})
}

// Func is a function that can be used as a ServerSelector.
type Func func(description.Topology, []description.Server) []description.Server

// SelectServer implements the ServerSelector interface.
func (ssf Func) SelectServer(
	t description.Topology,
	s []description.Server,
) []description.Server {
	return ssf(t, s)
}

// VerifyMaxStaleness checks that the max staleness of rp, if any, can be
// honored by a deployment heartbeating at the rate recorded in topo.
func VerifyMaxStaleness(rp *readpref.ReadPref, topo description.Topology) error {
	maxStaleness, set := rp.MaxStaleness()
	if !set {
		return nil
	}

	if maxStaleness < readpref.MinMaxStaleness {
		return errors.Errorf("max staleness (%s) must be greater than or equal to %s", maxStaleness, readpref.MinMaxStaleness)
	}

	if len(topo.Servers) < 1 {
		return nil
	}

	// all members share the heartbeat interval of the topology.
	s := topo.Servers[0]

	if maxStaleness < s.HeartbeatInterval+IdleWritePeriod {
		return errors.Errorf(
			"max staleness (%s) must be greater than or equal to the heartbeat interval (%s) plus idle write period (%s)",
			maxStaleness, s.HeartbeatInterval, IdleWritePeriod,
		)
	}

	return nil
}

func filter(candidates []description.Server, keep func(description.Server) bool) []description.Server {
	// Record the indices of viable candidates first and then copy only those.
	viableIndexes := make([]int, 0, len(candidates))
	for i, s := range candidates {
		if keep(s) {
			viableIndexes = append(viableIndexes, i)
		}
	}
	if len(viableIndexes) == len(candidates) {
		return candidates
	}
	result := make([]description.Server, len(viableIndexes))
	for i, idx := range viableIndexes {
		result[i] = candidates[idx]
	}
	return result
}

func selectConnected(candidates []description.Server) []description.Server {
	return filter(candidates, description.Server.Selectable)
}

func selectSingle(candidates []description.Server) []description.Server {
	if len(candidates) != 1 {
		return nil
	}
	return candidates
}

func selectByKind(candidates []description.Server, kind description.ServerKind) []description.Server {
	return filter(candidates, func(s description.Server) bool {
		return s.Kind == kind
	})
}

func selectSecondaries(rp *readpref.ReadPref, candidates []description.Server) []description.Server {
	secondaries := selectByKind(candidates, description.ServerKindRSSecondary)
	if len(secondaries) == 0 {
		return secondaries
	}
	maxStaleness, set := rp.MaxStaleness()
	if !set {
		return secondaries
	}

	primaries := selectByKind(candidates, description.ServerKindRSPrimary)
	if len(primaries) == 0 {
		baseTime := secondaries[0].LastWriteTime
		for i := 1; i < len(secondaries); i++ {
			if secondaries[i].LastWriteTime.After(baseTime) {
				baseTime = secondaries[i].LastWriteTime
			}
		}

		return filter(secondaries, func(s description.Server) bool {
			return baseTime.Sub(s.LastWriteTime)+s.HeartbeatInterval <= maxStaleness
		})
	}

	primary := primaries[0]

	return filter(secondaries, func(s description.Server) bool {
		estimatedStaleness := s.LastUpdateTime.Sub(s.LastWriteTime) -
			primary.LastUpdateTime.Sub(primary.LastWriteTime) + s.HeartbeatInterval
		return estimatedStaleness <= maxStaleness
	})
}

func selectByTagSet(candidates []description.Server, tagSets []tag.Set) []description.Server {
	if len(tagSets) == 0 {
		return candidates
	}

	for _, ts := range tagSets {
		// The empty tag set is a subset of every server's tags.
		if len(ts) == 0 {
			return candidates
		}

		var results []description.Server
		for _, s := range candidates {
			if len(s.Tags) > 0 && s.Tags.ContainsAll(ts) {
				results = append(results, s)
			}
		}

		if len(results) > 0 {
			return results
		}
	}

	return []description.Server{}
}

func selectForReplicaSet(rp *readpref.ReadPref, candidates []description.Server) []description.Server {
	switch rp.Mode() {
	case readpref.PrimaryMode:
		return selectByKind(candidates, description.ServerKindRSPrimary)
	case readpref.PrimaryPreferredMode:
		selected := selectByKind(candidates, description.ServerKindRSPrimary)

		if len(selected) == 0 {
			selected = selectSecondaries(rp, candidates)
			return selectByTagSet(selected, rp.TagSets())
		}

		return selected
	case readpref.SecondaryPreferredMode:
		selected := selectSecondaries(rp, candidates)
		selected = selectByTagSet(selected, rp.TagSets())
		if len(selected) > 0 {
			return selected
		}
		return selectByKind(candidates, description.ServerKindRSPrimary)
	case readpref.SecondaryMode:
		selected := selectSecondaries(rp, candidates)
		return selectByTagSet(selected, rp.TagSets())
	case readpref.NearestMode:
		var selected []description.Server
		selected = append(selected, selectByKind(candidates, description.ServerKindRSPrimary)...)
		selected = append(selected, selectSecondaries(rp, candidates)...)
		return selectByTagSet(selected, rp.TagSets())
	}

	return nil
}
