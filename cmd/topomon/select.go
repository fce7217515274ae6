// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ikmak/mongo-topology/readpref"
	"github.com/ikmak/mongo-topology/tag"
)

var (
	selectReadPref     string
	selectTags         []string
	selectMaxStaleness time.Duration
	selectWrite        bool
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Select a server and print its address",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		var rp *readpref.ReadPref
		if !selectWrite {
			var err error
			if rp, err = buildReadPref(selectReadPref, selectTags, selectMaxStaleness); err != nil {
				return err
			}
		}

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		if selectWrite {
			selected, err := e.topo.SelectWritableServer(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), selected.Addr)
			return err
		}

		addr, err := e.topo.SelectServerByReadPref(cmd.Context(), rp)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), addr)
		return err
	},
}

func init() {
	selectCmd.Flags().StringVar(&selectReadPref, "read-preference", "primary", "the read preference mode")
	selectCmd.Flags().StringArrayVar(&selectTags, "tags", nil, `a tag set such as "dc:ny,rack:1", may be repeated`)
	selectCmd.Flags().DurationVar(&selectMaxStaleness, "max-staleness", 0, "the maximum replication lag of a secondary")
	selectCmd.Flags().BoolVar(&selectWrite, "write", false, "select a server that accepts writes")
}

func buildReadPref(mode string, tagSets []string, maxStaleness time.Duration) (*readpref.ReadPref, error) {
	m, err := readpref.ModeFromString(mode)
	if err != nil {
		return nil, err
	}

	var opts []readpref.Option
	if len(tagSets) > 0 {
		sets := make([]tag.Set, 0, len(tagSets))
		for _, s := range tagSets {
			set, err := parseTagSet(s)
			if err != nil {
				return nil, err
			}
			sets = append(sets, set)
		}
		opts = append(opts, readpref.WithTagSets(sets...))
	}
	if maxStaleness > 0 {
		opts = append(opts, readpref.WithMaxStaleness(maxStaleness))
	}

	return readpref.New(m, opts...)
}

func parseTagSet(s string) (tag.Set, error) {
	var tags []string
	if s != "" {
		for _, pair := range strings.Split(s, ",") {
			kv := strings.SplitN(pair, ":", 2)
			if len(kv) != 2 || kv[0] == "" {
				return nil, errors.Errorf("invalid tag %q in tag set %q", pair, s)
			}
			tags = append(tags, kv[0], kv[1])
		}
	}
	return tag.NewTagSet(tags...)
}
