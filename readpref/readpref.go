// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package readpref defines read preferences: which server roles, tag sets and
// staleness bounds are acceptable for an operation.
package readpref

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/ikmak/mongo-topology/tag"
)

// MinMaxStaleness is the smallest max staleness a read preference may carry.
const MinMaxStaleness = 90 * time.Second

var errInvalidReadPreference = errors.New("can not specify tags or max staleness with mode primary")

// Primary constructs a read preference with a PrimaryMode.
func Primary() *ReadPref {
	return &ReadPref{mode: PrimaryMode}
}

// PrimaryPreferred constructs a read preference with a PrimaryPreferredMode.
func PrimaryPreferred(opts ...Option) *ReadPref {
	return build(PrimaryPreferredMode, opts...)
}

// SecondaryPreferred constructs a read preference with a SecondaryPreferredMode.
func SecondaryPreferred(opts ...Option) *ReadPref {
	return build(SecondaryPreferredMode, opts...)
}

// Secondary constructs a read preference with a SecondaryMode.
func Secondary(opts ...Option) *ReadPref {
	return build(SecondaryMode, opts...)
}

// Nearest constructs a read preference with a NearestMode.
func Nearest(opts ...Option) *ReadPref {
	return build(NearestMode, opts...)
}

// New creates a new ReadPref and validates it.
func New(mode Mode, opts ...Option) (*ReadPref, error) {
	rp := &ReadPref{mode: mode}
	for _, opt := range opts {
		if err := opt(rp); err != nil {
			return nil, err
		}
	}

	if err := rp.Validate(); err != nil {
		return nil, err
	}
	return rp, nil
}

// build applies options without validating. Invalid options are reported by
// Validate when the read preference is used for selection.
func build(mode Mode, opts ...Option) *ReadPref {
	rp := &ReadPref{mode: mode}
	for _, opt := range opts {
		if err := opt(rp); err != nil && rp.optErr == nil {
			rp.optErr = err
		}
	}
	return rp
}

// ReadPref determines which servers are considered suitable for read operations.
type ReadPref struct {
	maxStaleness    time.Duration
	maxStalenessSet bool
	mode            Mode
	tagSets         []tag.Set

	optErr error
}

// MaxStaleness is the maximum amount of time to allow
// a server to be considered eligible for selection. The
// second return value indicates if this value has been set.
func (r *ReadPref) MaxStaleness() (time.Duration, bool) {
	return r.maxStaleness, r.maxStalenessSet
}

// Mode indicates the mode of the read preference.
func (r *ReadPref) Mode() Mode {
	return r.mode
}

// TagSets are multiple tag sets indicating
// which servers should be considered.
func (r *ReadPref) TagSets() []tag.Set {
	return r.tagSets
}

// Validate reports whether the read preference can be used for selection.
func (r *ReadPref) Validate() error {
	if r.optErr != nil {
		return r.optErr
	}
	if !r.mode.IsValid() {
		return errors.Errorf("invalid read preference mode %d", r.mode)
	}
	if r.mode == PrimaryMode && (len(r.tagSets) > 0 || r.maxStalenessSet) {
		return errInvalidReadPreference
	}
	if r.maxStalenessSet && r.maxStaleness < MinMaxStaleness {
		return errors.Errorf("max staleness (%s) must be greater than or equal to %s", r.maxStaleness, MinMaxStaleness)
	}
	return nil
}

// Equal reports whether two read preferences select the same servers.
func (r *ReadPref) Equal(other *ReadPref) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.mode != other.mode || r.maxStalenessSet != other.maxStalenessSet || r.maxStaleness != other.maxStaleness {
		return false
	}
	if len(r.tagSets) != len(other.tagSets) {
		return false
	}
	for i := range r.tagSets {
		if !r.tagSets[i].Equal(other.tagSets[i]) {
			return false
		}
	}
	return true
}

// String returns a human-readable description of the read preference.
func (r *ReadPref) String() string {
	var b bytes.Buffer
	b.WriteString(r.mode.String())
	delim := "("
	if r.maxStalenessSet {
		fmt.Fprintf(&b, "%smaxStaleness=%v", delim, r.maxStaleness)
		delim = " "
	}
	for _, ts := range r.tagSets {
		fmt.Fprintf(&b, "%stagSet=%s", delim, ts)
		delim = " "
	}
	if delim != "(" {
		b.WriteString(")")
	}
	return b.String()
}
