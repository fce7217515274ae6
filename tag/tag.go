// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package tag provides the name/value labels attached to replica set members
// and the tag sets a read preference uses to restrict selection.
package tag

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// Tag is a name/value pair.
type Tag struct {
	Name  string
	Value string
}

// String returns a human-readable description of the tag.
func (t Tag) String() string {
	return fmt.Sprintf("%s=%s", t.Name, t.Value)
}

// Set is an ordered list of Tags.
type Set []Tag

// NewTagSet creates a new tag set by taking the entries in pairs.
func NewTagSet(tags ...string) (Set, error) {
	if len(tags)%2 != 0 {
		return nil, errors.Errorf("an even number of tags must be specified, got %d", len(tags))
	}

	set := make(Set, 0, len(tags)/2)
	for i := 0; i < len(tags); i += 2 {
		set = append(set, Tag{Name: tags[i], Value: tags[i+1]})
	}
	return set, nil
}

// NewTagSetFromMap creates a tag set from a map. The resulting set is sorted by
// name so that two sets built from equal maps compare equal.
func NewTagSetFromMap(m map[string]string) Set {
	set := make(Set, 0, len(m))
	for k, v := range m {
		set = append(set, Tag{Name: k, Value: v})
	}
	sort.Slice(set, func(i, j int) bool { return set[i].Name < set[j].Name })

	return set
}

// NewTagSetsFromMaps creates a list of tag sets from a slice of maps.
func NewTagSetsFromMaps(maps []map[string]string) []Set {
	sets := make([]Set, 0, len(maps))
	for _, m := range maps {
		sets = append(sets, NewTagSetFromMap(m))
	}
	return sets
}

// Contains indicates whether the name/value pair exists in the tag set.
func (ts Set) Contains(name, value string) bool {
	for _, t := range ts {
		if t.Name == name && t.Value == value {
			return true
		}
	}

	return false
}

// ContainsAll indicates whether all the name/value pairs in other exist in the
// tag set, i.e. whether ts is a superset of other.
func (ts Set) ContainsAll(other []Tag) bool {
	for _, ot := range other {
		if !ts.Contains(ot.Name, ot.Value) {
			return false
		}
	}

	return true
}

// Equal reports whether both sets hold the same tags in any order.
func (ts Set) Equal(other Set) bool {
	return len(ts) == len(other) && ts.ContainsAll(other) && other.ContainsAll(ts)
}

// String returns a human-readable description of the tag set.
func (ts Set) String() string {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, t := range ts {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.String())
	}
	b.WriteByte('}')
	return b.String()
}
