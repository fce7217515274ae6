// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package description

import (
	"bytes"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ikmak/mongo-topology/address"
	"github.com/ikmak/mongo-topology/result"
	"github.com/ikmak/mongo-topology/tag"
)

// UnsetRTT is the unset value for a round trip time.
const UnsetRTT = -1 * time.Millisecond

// VersionRange is an inclusive range of wire protocol versions.
type VersionRange struct {
	Min int32
	Max int32
}

// Includes reports whether v falls within the range.
func (vr VersionRange) Includes(v int32) bool {
	return v >= vr.Min && v <= vr.Max
}

// String implements the fmt.Stringer interface.
func (vr VersionRange) String() string {
	return fmt.Sprintf("[%d, %d]", vr.Min, vr.Max)
}

// Server contains information about a node in a cluster. A Server is built from
// exactly one heartbeat outcome and is never modified once published.
type Server struct {
	Addr address.Address

	AverageRTT        time.Duration
	AverageRTTSet     bool
	CanonicalAddr     address.Address
	ElectionID        primitive.ObjectID
	HeartbeatInterval time.Duration
	LastError         error
	LastUpdateTime    time.Time
	LastWriteTime     time.Time
	Members           []address.Address
	MinRTT            time.Duration
	OK                bool
	Primary           address.Address
	RTT90             time.Duration
	SetName           string
	SetVersion        uint32
	State             ServerState
	Tags              tag.Set
	Kind              ServerKind
	WireVersion       *VersionRange
}

// NewServer creates a new server description from the given hello reply. The
// description is Connected when the reply carries ok: 1.
func NewServer(addr address.Address, hello result.Hello) Server {
	desc := Server{
		Addr: addr,

		CanonicalAddr:  address.Address(hello.Me).Canonicalize(),
		ElectionID:     hello.ElectionID,
		LastUpdateTime: time.Now().UTC(),
		Primary:        address.Address(hello.Primary).Canonicalize(),
		SetName:        hello.SetName,
		SetVersion:     hello.SetVersion,
		Tags:           tag.NewTagSetFromMap(hello.Tags),
	}

	if desc.CanonicalAddr == "" {
		desc.CanonicalAddr = addr
	}

	if !hello.Succeeded() {
		desc.State = ServerStateUnknown
		desc.LastError = fmt.Errorf("hello reply from %s was not ok", addr)
		return desc
	}

	desc.OK = true
	desc.State = ServerStateConnected

	if hello.LastWrite != nil {
		desc.LastWriteTime = hello.LastWrite.LastWriteDate
	}
	if hello.MaxWireVersion > 0 {
		desc.WireVersion = &VersionRange{Min: hello.MinWireVersion, Max: hello.MaxWireVersion}
	}

	for _, host := range hello.Hosts {
		desc.Members = append(desc.Members, address.Address(host).Canonicalize())
	}
	for _, passive := range hello.Passives {
		desc.Members = append(desc.Members, address.Address(passive).Canonicalize())
	}
	for _, arbiter := range hello.Arbiters {
		desc.Members = append(desc.Members, address.Address(arbiter).Canonicalize())
	}

	desc.Kind = ServerKindStandalone

	switch {
	case hello.IsReplicaSet:
		desc.Kind = ServerKindRSGhost
	case hello.SetName != "":
		switch {
		case hello.Writable():
			desc.Kind = ServerKindRSPrimary
		case hello.Hidden:
			desc.Kind = ServerKindRSMember
		case hello.Secondary:
			desc.Kind = ServerKindRSSecondary
		case hello.ArbiterOnly:
			desc.Kind = ServerKindRSArbiter
		default:
			desc.Kind = ServerKindRSMember
		}
	case hello.Msg == "isdbgrid":
		desc.Kind = ServerKindMongos
	}

	return desc
}

// NewServerFromError creates a new unknown server description with the given
// error. The address is preserved so the member keeps its place in the topology.
func NewServerFromError(addr address.Address, err error) Server {
	return Server{
		Addr:           addr,
		CanonicalAddr:  addr,
		LastError:      err,
		LastUpdateTime: time.Now().UTC(),
		State:          ServerStateUnknown,
	}
}

// SetAverageRTT sets the average round trip time for this server description.
func (s Server) SetAverageRTT(rtt time.Duration) Server {
	s.AverageRTT = rtt
	s.AverageRTTSet = rtt != UnsetRTT
	return s
}

// Selectable reports whether the server can be handed out by server selection.
func (s Server) Selectable() bool {
	return s.State == ServerStateConnected
}

// Equal compares two server descriptions and returns true if they are equal.
// Round trip times and update times are not compared.
func (s Server) Equal(other Server) bool {
	if s.Addr != other.Addr || s.CanonicalAddr != other.CanonicalAddr {
		return false
	}
	if s.State != other.State || s.Kind != other.Kind || s.OK != other.OK {
		return false
	}
	if s.SetName != other.SetName || s.SetVersion != other.SetVersion {
		return false
	}
	if !bytes.Equal(s.ElectionID[:], other.ElectionID[:]) || s.Primary != other.Primary {
		return false
	}
	if errorString(s.LastError) != errorString(other.LastError) {
		return false
	}
	if !s.Tags.Equal(other.Tags) {
		return false
	}
	if (s.WireVersion == nil) != (other.WireVersion == nil) {
		return false
	}
	if s.WireVersion != nil && *s.WireVersion != *other.WireVersion {
		return false
	}
	if len(s.Members) != len(other.Members) {
		return false
	}
	for i := range s.Members {
		if s.Members[i] != other.Members[i] {
			return false
		}
	}
	return true
}

// String implements the Stringer interface.
func (s Server) String() string {
	str := fmt.Sprintf("Addr: %s, Type: %s, State: %s", s.Addr, s.Kind, s.State)
	if len(s.Tags) != 0 {
		str += fmt.Sprintf(", Tag sets: %s", s.Tags)
	}
	if s.AverageRTTSet {
		str += fmt.Sprintf(", Average RTT: %d", s.AverageRTT)
	}
	if s.LastError != nil {
		str += fmt.Sprintf(", Last error: %s", s.LastError)
	}
	return str
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
