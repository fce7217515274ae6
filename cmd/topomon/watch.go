// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package main

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ikmak/mongo-topology/description"
)

var watchColor bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print every change of the topology description as JSON",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		sub, err := e.topo.Subscribe()
		if err != nil {
			return err
		}
		defer func() { _ = sub.Unsubscribe() }()

		ctx := cmd.Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case desc, ok := <-sub.C:
				if !ok {
					return nil
				}
				if err := printTopology(cmd.OutOrStdout(), desc, watchColor); err != nil {
					return err
				}
			}
		}
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchColor, "color", false, "colorize the JSON output")
}

type serverView struct {
	Address      string            `bson:"address"`
	Kind         string            `bson:"kind"`
	State        string            `bson:"state"`
	SetName      string            `bson:"setName,omitempty"`
	Primary      string            `bson:"primary,omitempty"`
	AverageRTTMS float64           `bson:"averageRTTMS,omitempty"`
	Tags         map[string]string `bson:"tags,omitempty"`
	LastWrite    *time.Time        `bson:"lastWrite,omitempty"`
	Error        string            `bson:"error,omitempty"`
}

type topologyView struct {
	Kind    string       `bson:"kind"`
	SetName string       `bson:"setName,omitempty"`
	Servers []serverView `bson:"servers"`
}

func newTopologyView(desc description.Topology) topologyView {
	view := topologyView{
		Kind:    desc.Kind.String(),
		SetName: desc.SetName,
		Servers: make([]serverView, 0, len(desc.Servers)),
	}

	for _, s := range desc.Servers {
		sv := serverView{
			Address: s.Addr.String(),
			Kind:    s.Kind.String(),
			State:   s.State.String(),
			SetName: s.SetName,
			Primary: s.Primary.String(),
		}
		if s.AverageRTTSet {
			sv.AverageRTTMS = float64(s.AverageRTT) / float64(time.Millisecond)
		}
		if len(s.Tags) > 0 {
			sv.Tags = make(map[string]string, len(s.Tags))
			for _, t := range s.Tags {
				sv.Tags[t.Name] = t.Value
			}
		}
		if !s.LastWriteTime.IsZero() {
			lw := s.LastWriteTime
			sv.LastWrite = &lw
		}
		if s.LastError != nil {
			sv.Error = s.LastError.Error()
		}
		view.Servers = append(view.Servers, sv)
	}

	return view
}

func printTopology(w io.Writer, desc description.Topology, color bool) error {
	data, err := bson.MarshalExtJSON(newTopologyView(desc), false, false)
	if err != nil {
		return errors.Wrap(err, "encoding topology description")
	}

	data = pretty.Pretty(data)
	if color {
		data = pretty.Color(data, nil)
	}
	_, err = w.Write(data)
	return err
}
