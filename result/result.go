// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package result contains the decoded replies of the administrative commands
// used for monitoring.
package result

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Hello is the result of executing the hello (or legacy isMaster) command.
type Hello struct {
	Arbiters          []string           `bson:"arbiters,omitempty"`
	ArbiterOnly       bool               `bson:"arbiterOnly,omitempty"`
	ElectionID        primitive.ObjectID `bson:"electionId,omitempty"`
	Hidden            bool               `bson:"hidden,omitempty"`
	Hosts             []string           `bson:"hosts,omitempty"`
	IsWritablePrimary bool               `bson:"isWritablePrimary,omitempty"`
	IsMaster          bool               `bson:"ismaster,omitempty"`
	IsReplicaSet      bool               `bson:"isreplicaset,omitempty"`
	LastWrite         *LastWrite         `bson:"lastWrite,omitempty"`
	Me                string             `bson:"me,omitempty"`
	MaxWireVersion    int32              `bson:"maxWireVersion,omitempty"`
	MinWireVersion    int32              `bson:"minWireVersion,omitempty"`
	Msg               string             `bson:"msg,omitempty"`
	OK                float64            `bson:"ok"`
	Passives          []string           `bson:"passives,omitempty"`
	Primary           string             `bson:"primary,omitempty"`
	Secondary         bool               `bson:"secondary,omitempty"`
	SetName           string             `bson:"setName,omitempty"`
	SetVersion        uint32             `bson:"setVersion,omitempty"`
	Tags              map[string]string  `bson:"tags,omitempty"`
}

// LastWrite is the lastWrite sub-document of a hello reply.
type LastWrite struct {
	LastWriteDate time.Time `bson:"lastWriteDate"`
}

// Succeeded reports whether the reply carries ok: 1.
func (h Hello) Succeeded() bool {
	return h.OK == 1
}

// Writable reports whether the replying server accepts writes.
func (h Hello) Writable() bool {
	return h.IsWritablePrimary || h.IsMaster
}
