// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

// TopologyKind represents a specific topology configuration.
type TopologyKind uint32

// These constants are the available topology configurations.
const (
	TopologyKindUnknown               TopologyKind = 0
	TopologyKindSingle                TopologyKind = 1
	TopologyKindReplicaSet            TopologyKind = 2
	TopologyKindReplicaSetNoPrimary   TopologyKind = 4 + TopologyKindReplicaSet
	TopologyKindReplicaSetWithPrimary TopologyKind = 8 + TopologyKindReplicaSet
	TopologyKindSharded               TopologyKind = 256
)

// String implements the fmt.Stringer interface.
func (kind TopologyKind) String() string {
	switch kind {
	case TopologyKindSingle:
		return "Single"
	case TopologyKindReplicaSet:
		return "ReplicaSet"
	case TopologyKindReplicaSetNoPrimary:
		return "ReplicaSetNoPrimary"
	case TopologyKindReplicaSetWithPrimary:
		return "ReplicaSetWithPrimary"
	case TopologyKindSharded:
		return "Sharded"
	}

	return "Unknown"
}

// IsReplicaSet reports whether the kind is one of the replica set kinds.
func (kind TopologyKind) IsReplicaSet() bool {
	return kind&TopologyKindReplicaSet != 0
}

// ConnectionMode determines whether a topology monitors a single address or
// discovers the whole deployment. It is fixed when the topology is created.
type ConnectionMode uint8

// ConnectionMode constants.
const (
	// ConnectionModeMultiple discovers and monitors every member of the deployment.
	ConnectionModeMultiple ConnectionMode = iota
	// ConnectionModeSingle monitors exactly one address and bypasses role filtering.
	ConnectionModeSingle
)

// String implements the fmt.Stringer interface.
func (mode ConnectionMode) String() string {
	if mode == ConnectionModeSingle {
		return "Single"
	}
	return "Multiple"
}
