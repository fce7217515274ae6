// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package event contains the monitoring events emitted by a topology.
package event

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ikmak/mongo-topology/address"
	"github.com/ikmak/mongo-topology/description"
)

// ServerDescriptionChangedEvent represents a server description change.
type ServerDescriptionChangedEvent struct {
	Address             address.Address
	TopologyID          primitive.ObjectID
	PreviousDescription description.Server
	NewDescription      description.Server
}

// ServerOpeningEvent is an event generated when the server is initialized.
type ServerOpeningEvent struct {
	Address    address.Address
	TopologyID primitive.ObjectID
}

// ServerClosedEvent is an event generated when the server is closed.
type ServerClosedEvent struct {
	Address    address.Address
	TopologyID primitive.ObjectID
}

// TopologyDescriptionChangedEvent represents a topology description change.
type TopologyDescriptionChangedEvent struct {
	TopologyID          primitive.ObjectID
	PreviousDescription description.Topology
	NewDescription      description.Topology
}

// TopologyOpeningEvent is an event generated when the topology is initialized.
type TopologyOpeningEvent struct {
	TopologyID primitive.ObjectID
}

// TopologyClosedEvent is an event generated when the topology is closed.
type TopologyClosedEvent struct {
	TopologyID primitive.ObjectID
}

// ServerHeartbeatStartedEvent is an event generated when the hello command is started.
type ServerHeartbeatStartedEvent struct {
	Address address.Address
}

// ServerHeartbeatSucceededEvent is an event generated when the hello command succeeds.
type ServerHeartbeatSucceededEvent struct {
	Address  address.Address
	Duration time.Duration
	Reply    description.Server
}

// ServerHeartbeatFailedEvent is an event generated when the hello command fails.
type ServerHeartbeatFailedEvent struct {
	Address  address.Address
	Duration time.Duration
	Failure  error
}

// ServerSelectionSucceededEvent is an event generated when a server selection
// picks a server.
type ServerSelectionSucceededEvent struct {
	TopologyID primitive.ObjectID
	Selector   string
	Address    address.Address
	Duration   time.Duration
}

// ServerSelectionFailedEvent is an event generated when a server selection
// times out or is cancelled.
type ServerSelectionFailedEvent struct {
	TopologyID primitive.ObjectID
	Selector   string
	Duration   time.Duration
	Failure    error
}

// ServerMonitor represents a monitor that is triggered for different server events. The topology
// reports changes in its representation of the deployment through this monitor. The topology
// represents the overall deployment, and heartbeats are sent to individual servers to check their
// current status.
type ServerMonitor struct {
	ServerDescriptionChanged   func(*ServerDescriptionChangedEvent)
	ServerOpening              func(*ServerOpeningEvent)
	ServerClosed               func(*ServerClosedEvent)
	TopologyDescriptionChanged func(*TopologyDescriptionChangedEvent)
	TopologyOpening            func(*TopologyOpeningEvent)
	TopologyClosed             func(*TopologyClosedEvent)
	ServerHeartbeatStarted     func(*ServerHeartbeatStartedEvent)
	ServerHeartbeatSucceeded   func(*ServerHeartbeatSucceededEvent)
	ServerHeartbeatFailed      func(*ServerHeartbeatFailedEvent)
	ServerSelectionSucceeded   func(*ServerSelectionSucceededEvent)
	ServerSelectionFailed      func(*ServerSelectionFailedEvent)
}
