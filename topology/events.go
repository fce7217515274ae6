// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"time"

	"github.com/ikmak/mongo-topology/address"
	"github.com/ikmak/mongo-topology/description"
	"github.com/ikmak/mongo-topology/event"
	"github.com/ikmak/mongo-topology/internal/logger"
)

func (t *Topology) logTopologyMessage(msg string, keysAndValues ...interface{}) {
	if !t.cfg.logger.LevelComponentEnabled(logger.InfoLevel, logger.ComponentTopology) {
		return
	}

	kvs := logger.KeyValues{logger.KeyTopologyID, t.id.Hex()}
	t.cfg.logger.Print(logger.InfoLevel, logger.ComponentTopology, msg, append(kvs, keysAndValues...)...)
}

func (t *Topology) logServerMessage(msg string, addr address.Address) {
	host, port := addr.HostPort()
	t.logTopologyMessage(msg, logger.KeyServerHost, host, logger.KeyServerPort, port)
}

func (t *Topology) logServerSelection(msg string, selector string, keysAndValues ...interface{}) {
	if !t.cfg.logger.LevelComponentEnabled(logger.InfoLevel, logger.ComponentServerSelection) {
		return
	}

	kvs := logger.KeyValues{
		logger.KeyTopologyID, t.id.Hex(),
		logger.KeySelector, selector,
		logger.KeyTopologyDescription, t.Description().String(),
	}
	t.cfg.logger.Print(logger.InfoLevel, logger.ComponentServerSelection, msg, append(kvs, keysAndValues...)...)
}

func (t *Topology) emitServerDescriptionChanged(prev, current description.Server) {
	if t.cfg.serverMonitor == nil || t.cfg.serverMonitor.ServerDescriptionChanged == nil {
		return
	}
	t.cfg.serverMonitor.ServerDescriptionChanged(&event.ServerDescriptionChangedEvent{
		Address:             current.Addr,
		TopologyID:          t.id,
		PreviousDescription: prev,
		NewDescription:      current,
	})
}

func (t *Topology) emitTopologyDescriptionChanged(prev, current description.Topology) {
	t.logTopologyMessage(logger.TopologyDescriptionChanged,
		logger.KeyPreviousDescription, prev.String(),
		logger.KeyNewDescription, current.String(),
	)

	if t.cfg.serverMonitor == nil || t.cfg.serverMonitor.TopologyDescriptionChanged == nil {
		return
	}
	t.cfg.serverMonitor.TopologyDescriptionChanged(&event.TopologyDescriptionChangedEvent{
		TopologyID:          t.id,
		PreviousDescription: prev,
		NewDescription:      current,
	})
}

func (t *Topology) emitServerClosed(addr address.Address) {
	t.logServerMessage(logger.TopologyServerClosed, addr)

	if t.cfg.serverMonitor == nil || t.cfg.serverMonitor.ServerClosed == nil {
		return
	}
	t.cfg.serverMonitor.ServerClosed(&event.ServerClosedEvent{Address: addr, TopologyID: t.id})
}

func (t *Topology) selectionSucceeded(selector string, start time.Time, selected description.Server) {
	duration := time.Since(start)
	host, port := selected.Addr.HostPort()
	t.logServerSelection(logger.ServerSelectionSucceeded, selector,
		logger.KeyServerHost, host,
		logger.KeyServerPort, port,
		logger.KeyDurationMS, duration.Milliseconds(),
	)

	if t.cfg.serverMonitor == nil || t.cfg.serverMonitor.ServerSelectionSucceeded == nil {
		return
	}
	t.cfg.serverMonitor.ServerSelectionSucceeded(&event.ServerSelectionSucceededEvent{
		TopologyID: t.id,
		Selector:   selector,
		Address:    selected.Addr,
		Duration:   duration,
	})
}

// selectionFailed reports err and returns it.
func (t *Topology) selectionFailed(selector string, start time.Time, err error) error {
	duration := time.Since(start)
	t.logServerSelection(logger.ServerSelectionFailed, selector,
		logger.KeyFailure, err.Error(),
		logger.KeyDurationMS, duration.Milliseconds(),
	)

	if t.cfg.serverMonitor != nil && t.cfg.serverMonitor.ServerSelectionFailed != nil {
		t.cfg.serverMonitor.ServerSelectionFailed(&event.ServerSelectionFailedEvent{
			TopologyID: t.id,
			Selector:   selector,
			Duration:   duration,
			Failure:    err,
		})
	}
	return err
}
