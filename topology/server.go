// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package topology

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ikmak/mongo-topology/address"
	"github.com/ikmak/mongo-topology/connection"
	"github.com/ikmak/mongo-topology/description"
	"github.com/ikmak/mongo-topology/event"
	"github.com/ikmak/mongo-topology/internal/logger"
)

const (
	serverDisconnected int64 = iota
	serverConnected
	serverClosed
)

// publishFunc hands a finished description to the topology. It must return
// once ctx is done.
type publishFunc func(ctx context.Context, desc description.Server)

// Server monitors a single address. It runs one heartbeat per interval on its
// own goroutine and publishes every outcome as a whole description.
type Server struct {
	cfg     *config
	address address.Address
	publish publishFunc

	state    int64 // atomic
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	checkNow chan struct{}

	desc atomic.Value // description.Server

	// conn and rtt are only used by the monitoring goroutine.
	conn connection.Connection
	rtt  *rttStats
}

func newServer(addr address.Address, cfg *config, publish publishFunc) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:     cfg,
		address: addr,
		publish: publish,

		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		checkNow: make(chan struct{}, 1),

		rtt: newRTTStats(cfg.heartbeatInterval),
	}
	s.desc.Store(description.Server{
		Addr:              addr,
		CanonicalAddr:     addr,
		HeartbeatInterval: cfg.heartbeatInterval,
	})

	return s
}

// Address returns the address this server monitors.
func (s *Server) Address() address.Address {
	return s.address
}

// Connect starts the monitoring goroutine.
func (s *Server) Connect() error {
	if !atomic.CompareAndSwapInt64(&s.state, serverDisconnected, serverConnected) {
		return ErrServerClosed
	}

	go s.update()
	return nil
}

// Disconnect stops the monitoring goroutine and closes the monitoring
// connection. It waits for the goroutine to exit or for ctx to be done.
func (s *Server) Disconnect(ctx context.Context) error {
	prev := atomic.SwapInt64(&s.state, serverClosed)
	if prev == serverClosed {
		return ErrServerClosed
	}

	s.cancel()
	if prev == serverDisconnected {
		return nil
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Description returns the description produced by the last heartbeat.
func (s *Server) Description() description.Server {
	return s.desc.Load().(description.Server)
}

// RequestImmediateCheck asks for a heartbeat before the next interval elapses.
// Checks are still rate limited by the minimum heartbeat interval.
func (s *Server) RequestImmediateCheck() {
	select {
	case s.checkNow <- struct{}{}:
	default:
	}
}

// update performs heartbeats and publishes every description retrieved.
func (s *Server) update() {
	defer close(s.done)
	defer s.closeConn()

	heartbeatTicker := time.NewTicker(s.cfg.heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		lastCheck := time.Now()
		desc := s.check()
		if s.ctx.Err() != nil {
			return
		}
		s.desc.Store(desc)
		s.publish(s.ctx, desc)

		select {
		case <-heartbeatTicker.C:
		case <-s.checkNow:
		case <-s.ctx.Done():
			return
		}

		if wait := s.cfg.minHeartbeatInterval - time.Since(lastCheck); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-s.ctx.Done():
				timer.Stop()
				return
			}
		}
	}
}

// check runs exactly one heartbeat. The monitoring connection is dialed
// lazily, kept across heartbeats and dropped on any error.
func (s *Server) check() description.Server {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.heartbeatTimeout)
	defer cancel()

	s.emitHeartbeatStarted()
	start := time.Now()

	var err error
	if s.conn == nil {
		s.conn, err = s.cfg.dialer.Dial(ctx, s.address)
	}

	var desc description.Server
	if err == nil {
		hello, helloErr := s.conn.Hello(ctx)
		if helloErr != nil {
			err = helloErr
		} else {
			desc = description.NewServer(s.address, hello)
		}
	}
	duration := time.Since(start)

	if err == nil && !desc.OK {
		err = desc.LastError
	}
	if err != nil {
		s.closeConn()
		s.rtt.reset()

		if desc.Addr == "" {
			desc = description.NewServerFromError(s.address, err)
		}
		desc.HeartbeatInterval = s.cfg.heartbeatInterval
		s.emitHeartbeatFailed(duration, err)
		return desc
	}

	s.rtt.addSample(duration)
	desc = desc.SetAverageRTT(s.rtt.averageRTT)
	desc.MinRTT = s.rtt.minRTT
	desc.RTT90 = s.rtt.rtt90
	desc.HeartbeatInterval = s.cfg.heartbeatInterval

	s.emitHeartbeatSucceeded(duration, desc)
	return desc
}

func (s *Server) closeConn() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		s.cfg.logger.Print(logger.DebugLevel, logger.ComponentConnection, "Monitoring connection close failed",
			logger.KeyServerHost, s.address.String(),
			logger.KeyFailure, err.Error(),
		)
	}
	s.conn = nil
}

func (s *Server) emitHeartbeatStarted() {
	s.cfg.logger.Print(logger.DebugLevel, logger.ComponentTopology, logger.TopologyServerHeartbeatStart,
		s.logKeyValues()...)

	if s.cfg.serverMonitor != nil && s.cfg.serverMonitor.ServerHeartbeatStarted != nil {
		s.cfg.serverMonitor.ServerHeartbeatStarted(&event.ServerHeartbeatStartedEvent{Address: s.address})
	}
}

func (s *Server) emitHeartbeatSucceeded(duration time.Duration, desc description.Server) {
	s.cfg.logger.Print(logger.DebugLevel, logger.ComponentTopology, logger.TopologyServerHeartbeatOK,
		append(s.logKeyValues(),
			logger.KeyDurationMS, duration.Milliseconds(),
			logger.KeyReply, desc.String(),
		)...)

	if s.cfg.serverMonitor != nil && s.cfg.serverMonitor.ServerHeartbeatSucceeded != nil {
		s.cfg.serverMonitor.ServerHeartbeatSucceeded(&event.ServerHeartbeatSucceededEvent{
			Address:  s.address,
			Duration: duration,
			Reply:    desc,
		})
	}
}

func (s *Server) emitHeartbeatFailed(duration time.Duration, err error) {
	s.cfg.logger.Print(logger.DebugLevel, logger.ComponentTopology, logger.TopologyServerHeartbeatFail,
		append(s.logKeyValues(),
			logger.KeyDurationMS, duration.Milliseconds(),
			logger.KeyFailure, err.Error(),
		)...)

	if s.cfg.serverMonitor != nil && s.cfg.serverMonitor.ServerHeartbeatFailed != nil {
		s.cfg.serverMonitor.ServerHeartbeatFailed(&event.ServerHeartbeatFailedEvent{
			Address:  s.address,
			Duration: duration,
			Failure:  err,
		})
	}
}

func (s *Server) logKeyValues() logger.KeyValues {
	host, port := s.address.HostPort()
	kvs := logger.KeyValues{}
	kvs.Add(logger.KeyServerHost, host)
	kvs.Add(logger.KeyServerPort, port)
	return kvs
}
