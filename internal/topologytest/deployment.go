// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package topologytest provides a scripted fake deployment that can be used
// as the dialer of a topology in tests. Every test constructs its own
// Deployment; nothing is shared between tests.
package topologytest

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ikmak/mongo-topology/address"
	"github.com/ikmak/mongo-topology/connection"
	"github.com/ikmak/mongo-topology/result"
)

// ErrUnreachable is returned for addresses that have no scripted reply.
var ErrUnreachable = errors.New("server unreachable")

// Reply is the scripted outcome of a heartbeat against one address.
type Reply struct {
	Hello result.Hello
	Err   error
	Delay time.Duration
}

// Deployment is a fake set of servers. Replies can be changed at any time and
// are picked up by the next heartbeat.
type Deployment struct {
	mu      sync.Mutex
	replies map[address.Address]Reply
	checks  map[address.Address]int
	dials   map[address.Address]int
	open    int
}

var _ connection.Dialer = &Deployment{}

// NewDeployment returns an empty deployment in which every address is
// unreachable.
func NewDeployment() *Deployment {
	return &Deployment{
		replies: make(map[address.Address]Reply),
		checks:  make(map[address.Address]int),
		dials:   make(map[address.Address]int),
	}
}

// Set scripts the reply of addr.
func (d *Deployment) Set(addr string, reply Reply) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replies[address.Address(addr).Canonicalize()] = reply
}

// SetHello scripts a successful reply for addr.
func (d *Deployment) SetHello(addr string, hello result.Hello) {
	d.Set(addr, Reply{Hello: hello})
}

// SetError scripts a failing heartbeat for addr.
func (d *Deployment) SetError(addr string, err error) {
	d.Set(addr, Reply{Err: err})
}

// Remove makes addr unreachable.
func (d *Deployment) Remove(addr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.replies, address.Address(addr).Canonicalize())
}

// Checks returns the number of heartbeats run against addr.
func (d *Deployment) Checks(addr string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checks[address.Address(addr).Canonicalize()]
}

// Dials returns the number of connections dialed to addr.
func (d *Deployment) Dials(addr string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[address.Address(addr).Canonicalize()]
}

// OpenConnections returns the number of dialed connections not yet closed.
func (d *Deployment) OpenConnections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Dial implements the connection.Dialer interface.
func (d *Deployment) Dial(ctx context.Context, addr address.Address) (connection.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials[addr]++
	if _, ok := d.replies[addr]; !ok {
		d.checks[addr]++
		return nil, connection.NewError(addr, ErrUnreachable, "unable to dial")
	}
	d.open++
	return &conn{d: d, addr: addr}, nil
}

type conn struct {
	d      *Deployment
	addr   address.Address
	closed bool
}

func (c *conn) Hello(ctx context.Context) (result.Hello, error) {
	c.d.mu.Lock()
	c.d.checks[c.addr]++
	reply, ok := c.d.replies[c.addr]
	c.d.mu.Unlock()

	if !ok {
		return result.Hello{}, connection.NewError(c.addr, ErrUnreachable, "connection reset")
	}

	if reply.Delay > 0 {
		timer := time.NewTimer(reply.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return result.Hello{}, ctx.Err()
		}
	}

	if reply.Err != nil {
		return result.Hello{}, reply.Err
	}
	return reply.Hello, nil
}

func (c *conn) Close() error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.d.open--
	}
	return nil
}

// Standalone returns the reply of a standalone server.
func Standalone() result.Hello {
	return result.Hello{OK: 1, IsWritablePrimary: true, MaxWireVersion: 21}
}

// Mongos returns the reply of a router.
func Mongos() result.Hello {
	return result.Hello{OK: 1, IsWritablePrimary: true, Msg: "isdbgrid", MaxWireVersion: 21}
}

// Primary returns the reply of the primary at me of the replica set setName
// whose members are hosts.
func Primary(setName, me string, hosts ...string) result.Hello {
	return result.Hello{
		OK:                1,
		IsWritablePrimary: true,
		SetName:           setName,
		SetVersion:        1,
		ElectionID:        primitive.NewObjectID(),
		Me:                me,
		Primary:           me,
		Hosts:             hosts,
		MaxWireVersion:    21,
		LastWrite:         &result.LastWrite{LastWriteDate: time.Now().UTC()},
	}
}

// Secondary returns the reply of a secondary at me of the replica set setName.
func Secondary(setName, me string, tags map[string]string, hosts ...string) result.Hello {
	return result.Hello{
		OK:             1,
		Secondary:      true,
		SetName:        setName,
		SetVersion:     1,
		Me:             me,
		Hosts:          hosts,
		Tags:           tags,
		MaxWireVersion: 21,
		LastWrite:      &result.LastWrite{LastWriteDate: time.Now().UTC()},
	}
}
