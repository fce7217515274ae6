// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

// ServerKind represents the type of a single server, as reported by its last heartbeat.
type ServerKind uint32

// These constants are the possible types of servers.
const (
	ServerKindUnknown     ServerKind = 0
	ServerKindStandalone  ServerKind = 1
	ServerKindRSMember    ServerKind = 2
	ServerKindRSPrimary   ServerKind = 4 + ServerKindRSMember
	ServerKindRSSecondary ServerKind = 8 + ServerKindRSMember
	ServerKindRSArbiter   ServerKind = 16 + ServerKindRSMember
	ServerKindRSGhost     ServerKind = 32 + ServerKindRSMember
	ServerKindMongos      ServerKind = 256
)

// String returns a stringified ServerKind.
func (kind ServerKind) String() string {
	switch kind {
	case ServerKindStandalone:
		return "Standalone"
	case ServerKindRSMember:
		return "RSOther"
	case ServerKindRSPrimary:
		return "RSPrimary"
	case ServerKindRSSecondary:
		return "RSSecondary"
	case ServerKindRSArbiter:
		return "RSArbiter"
	case ServerKindRSGhost:
		return "RSGhost"
	case ServerKindMongos:
		return "Mongos"
	}

	return "Unknown"
}

// IsReplicaSetMember reports whether the kind belongs to a replica set.
func (kind ServerKind) IsReplicaSetMember() bool {
	return kind&ServerKindRSMember != 0
}

// ServerState is the connection state of a monitored server.
type ServerState uint8

// These constants are the possible states of a monitored server.
const (
	// ServerStateConnecting means the server was added and no heartbeat has completed yet.
	ServerStateConnecting ServerState = iota
	// ServerStateConnected means the last heartbeat succeeded.
	ServerStateConnected
	// ServerStateUnknown means the last heartbeat failed or the member was demoted.
	ServerStateUnknown
)

// String returns a stringified ServerState.
func (state ServerState) String() string {
	switch state {
	case ServerStateConnecting:
		return "Connecting"
	case ServerStateConnected:
		return "Connected"
	}
	return "Unknown"
}
