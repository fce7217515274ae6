// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

// Keys shared by the topology log messages.
const (
	KeyAwaited             = "awaited"
	KeyDurationMS          = "durationMS"
	KeyFailure             = "failure"
	KeyMessage             = "message"
	KeyNewDescription      = "newDescription"
	KeyOperation           = "operation"
	KeyPreviousDescription = "previousDescription"
	KeyRemainingTimeMS     = "remainingTimeMS"
	KeyReply               = "reply"
	KeySelector            = "selector"
	KeyServerHost          = "serverHost"
	KeyServerPort          = "serverPort"
	KeyTopologyDescription = "topologyDescription"
	KeyTopologyID          = "topologyId"
)

// Messages logged by the topology.
const (
	ServerSelectionFailed        = "Server selection failed"
	ServerSelectionStarted       = "Server selection started"
	ServerSelectionSucceeded     = "Server selection succeeded"
	ServerSelectionWaiting       = "Waiting for suitable server to become available"
	TopologyClosed               = "Stopped topology monitoring"
	TopologyDescriptionChanged   = "Topology description changed"
	TopologyOpening              = "Starting topology monitoring"
	TopologyServerClosed         = "Stopped server monitoring"
	TopologyServerHeartbeatFail  = "Server heartbeat failed"
	TopologyServerHeartbeatStart = "Server heartbeat started"
	TopologyServerHeartbeatOK    = "Server heartbeat succeeded"
	TopologyServerOpening        = "Starting server monitoring"
)

// KeyValues is a list of alternating keys and values.
type KeyValues []interface{}

// Add adds a key/value pair.
func (kvs *KeyValues) Add(key string, value interface{}) {
	*kvs = append(*kvs, key, value)
}
