// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package mongoconn implements the monitoring connection contract on top of a
// direct connection made with the released Go driver.
package mongoconn

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ikmak/mongo-topology/address"
	"github.com/ikmak/mongo-topology/connection"
	"github.com/ikmak/mongo-topology/result"
)

// commandNotFound is the server error code returned for unknown commands. Servers
// older than 4.4.2 do not know "hello" and are asked "isMaster" instead.
const commandNotFound = 59

// Dialer dials direct, single-server connections.
type Dialer struct {
	AppName        string
	ConnectTimeout time.Duration
	// Configure, if set, is applied to the client options after the defaults.
	Configure func(*options.ClientOptions)
}

var _ connection.Dialer = &Dialer{}

// NewDialer returns a Dialer with the given application name and connect timeout.
func NewDialer(appName string, connectTimeout time.Duration) *Dialer {
	return &Dialer{AppName: appName, ConnectTimeout: connectTimeout}
}

// Dial implements the connection.Dialer interface.
func (d *Dialer) Dial(ctx context.Context, addr address.Address) (connection.Connection, error) {
	opts := options.Client().
		SetHosts([]string{addr.String()}).
		SetDirect(true).
		SetMaxPoolSize(1)
	if d.AppName != "" {
		opts.SetAppName(d.AppName)
	}
	if d.ConnectTimeout > 0 {
		opts.SetConnectTimeout(d.ConnectTimeout).SetServerSelectionTimeout(d.ConnectTimeout)
	}
	if d.Configure != nil {
		d.Configure(opts)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, connection.NewError(addr, err, "unable to dial")
	}

	return &conn{addr: addr, client: client}, nil
}

type conn struct {
	addr   address.Address
	client *mongo.Client
	legacy bool
}

func (c *conn) Hello(ctx context.Context) (result.Hello, error) {
	var reply result.Hello

	if !c.legacy {
		err := c.runCommand(ctx, "hello", &reply)
		if err == nil {
			return reply, nil
		}

		var cmdErr mongo.CommandError
		if !errors.As(err, &cmdErr) || cmdErr.Code != commandNotFound {
			return result.Hello{}, connection.NewError(c.addr, err, "hello failed")
		}
		c.legacy = true
	}

	if err := c.runCommand(ctx, "isMaster", &reply); err != nil {
		return result.Hello{}, connection.NewError(c.addr, err, "isMaster failed")
	}
	return reply, nil
}

func (c *conn) runCommand(ctx context.Context, name string, reply *result.Hello) error {
	res := c.client.Database("admin").RunCommand(ctx, bson.D{{Key: name, Value: 1}})
	return errors.Wrapf(res.Decode(reply), "running %s", name)
}

func (c *conn) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Wrap(c.client.Disconnect(ctx), "disconnecting monitoring client")
}
