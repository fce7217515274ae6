// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package event_test

import (
	"context"
	"log"

	"github.com/ikmak/mongo-topology/event"
	"github.com/ikmak/mongo-topology/topology"
)

// ServerMonitor represents a monitor that is triggered for different events.
func ExampleServerMonitor() {
	monitor := &event.ServerMonitor{
		ServerDescriptionChanged: func(evt *event.ServerDescriptionChangedEvent) {
			log.Printf("server %s: %s -> %s\n",
				evt.Address,
				evt.PreviousDescription.Kind,
				evt.NewDescription.Kind,
			)
		},
		ServerHeartbeatFailed: func(evt *event.ServerHeartbeatFailedEvent) {
			log.Printf("heartbeat to %s failed after %s: %v\n", evt.Address, evt.Duration, evt.Failure)
		},
	}

	topo, err := topology.New(
		topology.WithSeedList("localhost:27017"),
		topology.WithServerMonitor(monitor),
	)
	if err != nil {
		log.Fatal(err)
	}
	if err = topo.Connect(); err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err = topo.Disconnect(context.TODO()); err != nil {
			log.Fatal(err)
		}
	}()
}
