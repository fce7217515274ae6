// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikmak/mongo-topology/address"
	"github.com/ikmak/mongo-topology/description"
	"github.com/ikmak/mongo-topology/event"
	"github.com/ikmak/mongo-topology/internal/topologytest"
	"github.com/ikmak/mongo-topology/result"
)

type publishRecorder struct {
	mu    sync.Mutex
	descs []description.Server
	ch    chan description.Server
}

func newPublishRecorder() *publishRecorder {
	return &publishRecorder{ch: make(chan description.Server, 100)}
}

func (p *publishRecorder) publish(_ context.Context, desc description.Server) {
	p.mu.Lock()
	p.descs = append(p.descs, desc)
	p.mu.Unlock()

	select {
	case p.ch <- desc:
	default:
	}
}

func (p *publishRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.descs)
}

func (p *publishRecorder) next(t *testing.T) description.Server {
	t.Helper()

	select {
	case desc := <-p.ch:
		return desc
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for a published description")
	}
	return description.Server{}
}

func newTestServer(t *testing.T, d *topologytest.Deployment, addr string, opts ...Option) (*Server, *publishRecorder) {
	t.Helper()

	opts = append([]Option{
		WithDialer(d),
		WithSeedList(addr),
		WithHeartbeatInterval(time.Minute),
		WithMinHeartbeatInterval(20 * time.Millisecond),
		WithHeartbeatTimeout(time.Second),
	}, opts...)
	cfg, err := newConfig(opts...)
	require.NoError(t, err)

	rec := newPublishRecorder()
	s := newServer(address.Address(addr).Canonicalize(), cfg, rec.publish)
	t.Cleanup(func() { _ = s.Disconnect(context.Background()) })
	return s, rec
}

func TestServer_Heartbeat(t *testing.T) {
	t.Parallel()

	d := topologytest.NewDeployment()
	d.SetHello("a", topologytest.Standalone())
	s, rec := newTestServer(t, d, "a")

	assert.Equal(t, description.ServerKindUnknown, s.Description().Kind)
	require.NoError(t, s.Connect())
	assert.Equal(t, ErrServerClosed, s.Connect(), "connect twice")

	desc := rec.next(t)
	assert.Equal(t, description.ServerKindStandalone, desc.Kind)
	assert.Equal(t, address.Address("a:27017"), desc.Addr)
	assert.True(t, desc.AverageRTTSet)
	assert.Equal(t, time.Minute, desc.HeartbeatInterval)
	assert.Equal(t, desc, s.Description())
}

func TestServer_FailedHeartbeat(t *testing.T) {
	t.Parallel()

	d := topologytest.NewDeployment()
	d.SetHello("a", topologytest.Standalone())
	s, rec := newTestServer(t, d, "a")
	require.NoError(t, s.Connect())

	desc := rec.next(t)
	require.Equal(t, description.ServerKindStandalone, desc.Kind)
	require.Equal(t, 1, d.OpenConnections())

	d.SetError("a", errors.New("socket closed"))
	s.RequestImmediateCheck()

	desc = rec.next(t)
	assert.Equal(t, description.ServerKindUnknown, desc.Kind)
	require.Error(t, desc.LastError)
	assert.Contains(t, desc.LastError.Error(), "socket closed")
	assert.Equal(t, 0, d.OpenConnections(), "connection dropped after a failure")

	d.SetHello("a", topologytest.Standalone())
	s.RequestImmediateCheck()

	desc = rec.next(t)
	assert.Equal(t, description.ServerKindStandalone, desc.Kind)
	assert.Equal(t, 2, d.Dials("a"), "connection dialed again after a failure")
}

func TestServer_CommandFailureIsHeartbeatFailure(t *testing.T) {
	t.Parallel()

	d := topologytest.NewDeployment()
	d.SetHello("a", result.Hello{OK: 0, Msg: "not authorized"})
	s, rec := newTestServer(t, d, "a")
	require.NoError(t, s.Connect())

	desc := rec.next(t)
	assert.Equal(t, description.ServerKindUnknown, desc.Kind)
	assert.Error(t, desc.LastError)
	assert.Equal(t, 0, d.OpenConnections())
}

func TestServer_ImmediateChecksAreRateLimited(t *testing.T) {
	t.Parallel()

	d := topologytest.NewDeployment()
	d.SetHello("a", topologytest.Standalone())
	s, rec := newTestServer(t, d, "a", WithMinHeartbeatInterval(100*time.Millisecond))
	require.NoError(t, s.Connect())
	rec.next(t)

	start := time.Now()
	for time.Since(start) < 250*time.Millisecond {
		s.RequestImmediateCheck()
		time.Sleep(time.Millisecond)
	}

	checks := d.Checks("a")
	assert.GreaterOrEqual(t, checks, 2)
	assert.LessOrEqual(t, checks, 4, "at most one check per minimum heartbeat interval")
}

func TestServer_HeartbeatInterval(t *testing.T) {
	t.Parallel()

	d := topologytest.NewDeployment()
	d.SetHello("a", topologytest.Standalone())
	s, rec := newTestServer(t, d, "a",
		WithHeartbeatInterval(30*time.Millisecond), WithMinHeartbeatInterval(10*time.Millisecond))
	require.NoError(t, s.Connect())

	assert.Eventually(t, func() bool { return rec.count() >= 3 }, waitFor, tick)
}

func TestServer_HeartbeatTimeout(t *testing.T) {
	t.Parallel()

	d := topologytest.NewDeployment()
	d.Set("a", topologytest.Reply{Hello: topologytest.Standalone(), Delay: time.Second})
	s, rec := newTestServer(t, d, "a", WithHeartbeatTimeout(20*time.Millisecond))
	require.NoError(t, s.Connect())

	desc := rec.next(t)
	assert.Equal(t, description.ServerKindUnknown, desc.Kind)
	assert.True(t, errors.Is(desc.LastError, context.DeadlineExceeded))
}

func TestServer_Disconnect(t *testing.T) {
	t.Parallel()

	d := topologytest.NewDeployment()
	d.SetHello("a", topologytest.Standalone())
	s, rec := newTestServer(t, d, "a")
	require.NoError(t, s.Connect())
	rec.next(t)

	require.NoError(t, s.Disconnect(context.Background()))
	assert.Equal(t, 0, d.OpenConnections())
	assert.Equal(t, ErrServerClosed, s.Disconnect(context.Background()))
	assert.Equal(t, ErrServerClosed, s.Connect())

	published := rec.count()
	s.RequestImmediateCheck()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, published, rec.count())
}

func TestServer_DisconnectBeforeConnect(t *testing.T) {
	t.Parallel()

	d := topologytest.NewDeployment()
	s, _ := newTestServer(t, d, "a")

	require.NoError(t, s.Disconnect(context.Background()))
	assert.Equal(t, 0, d.Dials("a"))
}

func TestServer_HeartbeatEvents(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var started int
	var succeeded []*event.ServerHeartbeatSucceededEvent
	var failed []*event.ServerHeartbeatFailedEvent
	monitor := &event.ServerMonitor{
		ServerHeartbeatStarted: func(*event.ServerHeartbeatStartedEvent) {
			mu.Lock()
			defer mu.Unlock()
			started++
		},
		ServerHeartbeatSucceeded: func(e *event.ServerHeartbeatSucceededEvent) {
			mu.Lock()
			defer mu.Unlock()
			succeeded = append(succeeded, e)
		},
		ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, e)
		},
	}

	d := topologytest.NewDeployment()
	d.SetHello("a", topologytest.Standalone())
	s, rec := newTestServer(t, d, "a", WithServerMonitor(monitor))
	require.NoError(t, s.Connect())
	rec.next(t)

	d.Remove("a")
	s.RequestImmediateCheck()
	rec.next(t)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, started)
	require.Len(t, succeeded, 1)
	assert.Equal(t, address.Address("a:27017"), succeeded[0].Address)
	assert.Equal(t, description.ServerKindStandalone, succeeded[0].Reply.Kind)
	require.Len(t, failed, 1)
	assert.True(t, errors.Is(failed[0].Failure, topologytest.ErrUnreachable))
}
