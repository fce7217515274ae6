// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package topology contains types that handle the discovery, monitoring, and selection
// of servers. This package is designed to expose enough inner workings of service discovery
// and monitoring to allow low level applications to have fine grained control, while hiding
// most of the detailed implementation of the algorithms.
package topology

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/ikmak/mongo-topology/address"
	"github.com/ikmak/mongo-topology/description"
	"github.com/ikmak/mongo-topology/event"
	"github.com/ikmak/mongo-topology/internal/logger"
	"github.com/ikmak/mongo-topology/internal/serverselector"
	"github.com/ikmak/mongo-topology/readpref"
)

const (
	topologyDisconnected int64 = iota
	topologyDisconnecting
	topologyConnected
	topologyConnecting
	topologyClosed
)

// Topology represents a MongoDB deployment. It owns one Server monitor per
// known address and is the only writer of the published description.
type Topology struct {
	state int64 // atomic

	cfg *config
	id  primitive.ObjectID

	desc atomic.Value // holds a description.Topology
	fsm  *fsm

	changes       chan description.Server
	done          chan struct{}
	processorDone chan struct{}

	serversLock sync.Mutex
	servers     map[address.Address]*Server
	removed     sync.WaitGroup

	subLock             sync.Mutex
	subscribers         map[uint64]chan description.Topology
	currentSubscriberID uint64
	subscriptionsClosed bool
}

// New creates a new topology. Monitoring starts with Connect.
func New(opts ...Option) (*Topology, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	t := &Topology{
		cfg: cfg,
		id:  primitive.NewObjectID(),

		changes:       make(chan description.Server),
		done:          make(chan struct{}),
		processorDone: make(chan struct{}),

		servers:     make(map[address.Address]*Server),
		subscribers: make(map[uint64]chan description.Topology),
	}

	t.fsm = newFSM(cfg.mode, cfg.replicaSetName, address.CanonicalizeAll(cfg.seedList), cfg.heartbeatInterval)
	t.desc.Store(t.fsm.Topology)

	return t, nil
}

// ID returns the identifier carried by this topology's events and logs.
func (t *Topology) ID() primitive.ObjectID {
	return t.id
}

// Connect starts monitoring the seed list.
func (t *Topology) Connect() error {
	if !atomic.CompareAndSwapInt64(&t.state, topologyDisconnected, topologyConnecting) {
		return ErrTopologyConnected
	}

	t.logTopologyMessage(logger.TopologyOpening)
	if t.cfg.serverMonitor != nil && t.cfg.serverMonitor.TopologyOpening != nil {
		t.cfg.serverMonitor.TopologyOpening(&event.TopologyOpeningEvent{TopologyID: t.id})
	}

	initial := t.fsm.Topology
	t.emitTopologyDescriptionChanged(description.Topology{}, initial)

	t.serversLock.Lock()
	for _, s := range initial.Servers {
		t.addServer(s.Addr)
	}
	t.serversLock.Unlock()

	go t.processChanges()

	atomic.StoreInt64(&t.state, topologyConnected)
	return nil
}

// Disconnect stops every server monitor and closes all subscriptions. It
// waits for the monitors to stop or for ctx to be done.
func (t *Topology) Disconnect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt64(&t.state, topologyConnected, topologyDisconnecting) {
		return ErrTopologyClosed
	}

	close(t.done)
	<-t.processorDone

	t.serversLock.Lock()
	servers := t.servers
	t.servers = make(map[address.Address]*Server)
	t.serversLock.Unlock()

	var g errgroup.Group
	for _, s := range servers {
		s := s
		g.Go(func() error {
			err := s.Disconnect(ctx)
			t.emitServerClosed(s.address)
			return errors.Wrapf(err, "stopping monitor for %s", s.address)
		})
	}
	err := g.Wait()

	removed := make(chan struct{})
	go func() {
		t.removed.Wait()
		close(removed)
	}()
	select {
	case <-removed:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}

	t.subLock.Lock()
	for id, ch := range t.subscribers {
		close(ch)
		delete(t.subscribers, id)
	}
	t.subscriptionsClosed = true
	t.subLock.Unlock()

	atomic.StoreInt64(&t.state, topologyClosed)

	t.logTopologyMessage(logger.TopologyClosed)
	if t.cfg.serverMonitor != nil && t.cfg.serverMonitor.TopologyClosed != nil {
		t.cfg.serverMonitor.TopologyClosed(&event.TopologyClosedEvent{TopologyID: t.id})
	}

	return err
}

// Description returns a description of the topology. It never blocks.
func (t *Topology) Description() description.Topology {
	return t.desc.Load().(description.Topology)
}

// Subscribe returns a Subscription on which all updated description.Topologys
// will be sent. The channel of the subscription will have a buffer size of one,
// and will be pre-populated with the current description.Topology.
func (t *Topology) Subscribe() (*Subscription, error) {
	if atomic.LoadInt64(&t.state) != topologyConnected {
		return nil, ErrSubscribeAfterClosed
	}

	ch := make(chan description.Topology, 1)

	t.subLock.Lock()
	defer t.subLock.Unlock()
	if t.subscriptionsClosed {
		return nil, ErrSubscribeAfterClosed
	}
	ch <- t.Description()

	id := t.currentSubscriberID
	t.subscribers[id] = ch
	t.currentSubscriberID++

	return &Subscription{
		C:  ch,
		t:  t,
		id: id,
	}, nil
}

// RequestImmediateCheck will send heartbeats to all the servers in the
// topology right away, instead of waiting for the heartbeat timeout.
func (t *Topology) RequestImmediateCheck() {
	if atomic.LoadInt64(&t.state) != topologyConnected {
		return
	}
	t.serversLock.Lock()
	for _, server := range t.servers {
		server.RequestImmediateCheck()
	}
	t.serversLock.Unlock()
}

// SelectServer selects a server with the given selector. It waits until the
// selector returns at least one server, the server selection timeout elapses
// or ctx is done. The choice between equally suitable servers depends only on
// the description, so an unchanged description always yields the same server.
func (t *Topology) SelectServer(ctx context.Context, ss description.ServerSelector) (description.Server, error) {
	switch atomic.LoadInt64(&t.state) {
	case topologyConnected:
	case topologyDisconnected, topologyConnecting:
		return description.Server{}, ErrTopologyNotConnected
	default:
		return description.Server{}, ErrTopologyClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var timeout <-chan time.Time
	if t.cfg.serverSelectionTimeout > 0 {
		timer := time.NewTimer(t.cfg.serverSelectionTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	sub, err := t.Subscribe()
	if err != nil {
		return description.Server{}, err
	}
	defer func() { _ = sub.Unsubscribe() }()

	start := time.Now()
	selector := selectorString(ss)
	t.logServerSelection(logger.ServerSelectionStarted, selector)

	var current description.Topology
	waiting := false
	for {
		var ok bool
		select {
		case <-ctx.Done():
			return description.Server{}, t.selectionFailed(selector, start, ServerSelectionError{Desc: current, Wrapped: ctx.Err()})
		case <-timeout:
			return description.Server{}, t.selectionFailed(selector, start, ServerSelectionError{Desc: current, Wrapped: ErrServerSelectionTimeout})
		case current, ok = <-sub.C:
			if !ok {
				return description.Server{}, t.selectionFailed(selector, start, ErrTopologyClosed)
			}
		}

		suitable := ss.SelectServer(current, current.Servers)
		if len(suitable) > 0 {
			selected := suitable[selectionIndex(current, len(suitable))]
			t.selectionSucceeded(selector, start, selected)
			return selected, nil
		}

		t.RequestImmediateCheck()
		if !waiting {
			waiting = true
			t.logServerSelection(logger.ServerSelectionWaiting, selector,
				logger.KeyRemainingTimeMS, remainingMS(start, t.cfg.serverSelectionTimeout))
		}
	}
}

// SelectServerByReadPref selects a server that may serve a read with the
// given read preference, inside the latency window. A nil read preference
// means the topology's configured read preference.
func (t *Topology) SelectServerByReadPref(ctx context.Context, rp *readpref.ReadPref) (address.Address, error) {
	if rp == nil {
		rp = t.cfg.readPref
	}
	if err := rp.Validate(); err != nil {
		return "", errors.Wrap(err, "invalid read preference")
	}
	if err := serverselector.VerifyMaxStaleness(rp, t.Description()); err != nil {
		return "", err
	}

	selected, err := t.SelectServer(ctx, &serverselector.Composite{
		Selectors: []description.ServerSelector{
			&serverselector.ReadPref{ReadPref: rp},
			&serverselector.Latency{Latency: t.cfg.localThreshold},
		},
	})
	if err != nil {
		return "", err
	}
	return selected.Addr, nil
}

// SelectWritableServer selects a server that accepts writes.
func (t *Topology) SelectWritableServer(ctx context.Context) (description.Server, error) {
	return t.SelectServer(ctx, &serverselector.Composite{
		Selectors: []description.ServerSelector{
			&serverselector.Write{},
			&serverselector.Latency{Latency: t.cfg.localThreshold},
		},
	})
}

// processChanges is the only writer of the topology description. It applies
// server descriptions in the order they arrive.
func (t *Topology) processChanges() {
	defer close(t.processorDone)

	for {
		select {
		case desc := <-t.changes:
			t.apply(desc)
		case <-t.done:
			return
		}
	}
}

// publishServer is called by the server monitors.
func (t *Topology) publishServer(ctx context.Context, desc description.Server) {
	select {
	case t.changes <- desc:
	case <-ctx.Done():
	case <-t.done:
	}
}

func (t *Topology) apply(desc description.Server) {
	prev := t.fsm.Topology
	prevServer, _ := prev.Server(desc.Addr)

	current, recorded, ok := t.fsm.apply(desc)
	if !ok {
		return
	}

	if !prevServer.Equal(recorded) {
		t.emitServerDescriptionChanged(prevServer, recorded)
	}

	diff := description.DiffTopology(prev, current)
	t.serversLock.Lock()
	for _, removed := range diff.Removed {
		t.removeServer(removed.Addr)
	}
	for _, added := range diff.Added {
		t.addServer(added.Addr)
	}
	t.serversLock.Unlock()

	t.desc.Store(current)

	if !prev.Equal(current) {
		t.emitTopologyDescriptionChanged(prev, current)
	}

	t.subLock.Lock()
	for _, ch := range t.subscribers {
		// drain the channel if it isn't empty
		select {
		case <-ch:
		default:
		}
		ch <- current
	}
	t.subLock.Unlock()
}

// addServer must be called with serversLock held.
func (t *Topology) addServer(addr address.Address) {
	if _, ok := t.servers[addr]; ok {
		return
	}

	s := newServer(addr, t.cfg, t.publishServer)
	t.servers[addr] = s

	t.logServerMessage(logger.TopologyServerOpening, addr)
	if t.cfg.serverMonitor != nil && t.cfg.serverMonitor.ServerOpening != nil {
		t.cfg.serverMonitor.ServerOpening(&event.ServerOpeningEvent{Address: addr, TopologyID: t.id})
	}

	_ = s.Connect()
}

// removeServer must be called with serversLock held. The monitor is stopped in
// the background so a slow heartbeat cannot stall the processing goroutine.
func (t *Topology) removeServer(addr address.Address) {
	s, ok := t.servers[addr]
	if !ok {
		return
	}
	delete(t.servers, addr)

	t.removed.Add(1)
	go func() {
		defer t.removed.Done()
		_ = s.Disconnect(context.Background())
	}()

	t.emitServerClosed(addr)
}

// Subscription is a subscription to updates to the description of the Topology that created this
// Subscription.
type Subscription struct {
	C  <-chan description.Topology
	t  *Topology
	id uint64
}

// Unsubscribe unsubscribes this Subscription from updates and closes the
// subscription channel.
func (s *Subscription) Unsubscribe() error {
	s.t.subLock.Lock()
	defer s.t.subLock.Unlock()
	if s.t.subscriptionsClosed {
		return nil
	}

	ch, ok := s.t.subscribers[s.id]
	if !ok {
		return nil
	}

	close(ch)
	delete(s.t.subscribers, s.id)

	return nil
}

func selectorString(ss description.ServerSelector) string {
	if composite, ok := ss.(*serverselector.Composite); ok {
		for _, sel := range composite.Selectors {
			switch s := sel.(type) {
			case *serverselector.ReadPref:
				return s.ReadPref.String()
			case *serverselector.Write:
				return "write"
			}
		}
	}
	switch s := ss.(type) {
	case *serverselector.ReadPref:
		return s.ReadPref.String()
	case *serverselector.Write:
		return "write"
	}
	return "custom"
}

// selectionIndex picks one of n suitable servers from a hash of desc. The
// description changes with every heartbeat's RTT, which spreads the choice over
// time.
func selectionIndex(desc description.Topology, n int) int {
	return int(xxhash.Sum64String(desc.String()) % uint64(n))
}

func remainingMS(start time.Time, timeout time.Duration) int64 {
	if timeout <= 0 {
		return -1
	}
	return (timeout - time.Since(start)).Milliseconds()
}
