// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package connection contains the contract between the topology monitors and
// the layer that actually talks to a server. Wire encoding, pooling and socket
// I/O live behind these interfaces; the monitors only ever ask a server
// "are you alive and what is your role".
package connection

import (
	"context"
	"fmt"

	"github.com/ikmak/mongo-topology/address"
	"github.com/ikmak/mongo-topology/result"
)

// Connection is a monitoring connection to a single server.
type Connection interface {
	// Hello runs the heartbeat command and returns the decoded reply.
	Hello(context.Context) (result.Hello, error)
	Close() error
}

// Dialer is used to make monitoring connections.
type Dialer interface {
	Dial(context.Context, address.Address) (Connection, error)
}

// DialerFunc is a type implemented by functions that can be used as a Dialer.
type DialerFunc func(context.Context, address.Address) (Connection, error)

// Dial implements the Dialer interface.
func (df DialerFunc) Dial(ctx context.Context, addr address.Address) (Connection, error) {
	return df(ctx, addr)
}

// Error wraps a failure to dial or talk to a server.
type Error struct {
	Address address.Address
	Wrapped error
	message string
}

// NewError returns an Error for addr with the given message.
func NewError(addr address.Address, err error, message string) Error {
	return Error{Address: addr, Wrapped: err, message: message}
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("connection(%s) %s: %s", e.Address, e.message, e.Wrapped.Error())
	}
	return fmt.Sprintf("connection(%s) %s", e.Address, e.message)
}

// Unwrap returns the underlying error.
func (e Error) Unwrap() error {
	return e.Wrapped
}
