// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

import (
	"fmt"
	"strings"

	"github.com/ikmak/mongo-topology/address"
)

// Topology contains information about a MongoDB cluster. A Topology is replaced,
// never modified, when any of its servers changes.
type Topology struct {
	Servers []Server
	SetName string
	Kind    TopologyKind
	Mode    ConnectionMode
}

// Server returns the server for the given address. Returns false if the server
// could not be found.
func (t Topology) Server(addr address.Address) (Server, bool) {
	for _, server := range t.Servers {
		if server.Addr == addr {
			return server, true
		}
	}
	return Server{}, false
}

// Equal reports whether two topology descriptions hold the same kind, set name
// and server descriptions.
func (t Topology) Equal(other Topology) bool {
	if t.Kind != other.Kind || t.Mode != other.Mode || t.SetName != other.SetName {
		return false
	}
	if len(t.Servers) != len(other.Servers) {
		return false
	}
	for _, s := range t.Servers {
		o, ok := other.Server(s.Addr)
		if !ok || !s.Equal(o) {
			return false
		}
	}
	return true
}

// String implements the Stringer interface.
func (t Topology) String() string {
	var servers []string
	for _, s := range t.Servers {
		servers = append(servers, "{ "+s.String()+" }")
	}
	return fmt.Sprintf("Type: %s, Mode: %s, Servers: [%s]", t.Kind, t.Mode, strings.Join(servers, ", "))
}

// TopologyDiff is the difference between two different topology descriptions.
type TopologyDiff struct {
	Added   []Server
	Removed []Server
}

// DiffTopology compares the two topology descriptions and returns the difference.
func DiffTopology(old, new Topology) TopologyDiff {
	var diff TopologyDiff

	oldServers := make(map[address.Address]bool, len(old.Servers))
	for _, s := range old.Servers {
		oldServers[s.Addr] = true
	}

	for _, s := range new.Servers {
		if oldServers[s.Addr] {
			delete(oldServers, s.Addr)
			continue
		}
		diff.Added = append(diff.Added, s)
	}

	for _, s := range old.Servers {
		if oldServers[s.Addr] {
			diff.Removed = append(diff.Removed, s)
		}
	}

	return diff
}

// ServerSelector is an interface implemented by types that can perform server
// selection given a topology description and a list of candidate servers. A
// selector is pure: it never blocks and an empty result means that no server
// is eligible right now.
type ServerSelector interface {
	SelectServer(Topology, []Server) []Server
}
