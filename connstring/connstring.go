// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package connstring parses mongodb:// connection strings into the options
// relevant to topology monitoring and server selection.
package connstring

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ikmak/mongo-topology/readpref"
	"github.com/ikmak/mongo-topology/tag"
)

// Scheme is the only supported connection string scheme.
const Scheme = "mongodb"

// SchemeSRV is the DNS seedlist scheme, which is not supported.
const SchemeSRV = "mongodb+srv"

// ConnString represents a connection string to mongodb.
type ConnString struct {
	Original string
	Hosts    []string
	Username string
	Database string

	AppName                   string
	ConnectTimeout            time.Duration
	ConnectTimeoutSet         bool
	DirectConnection          bool
	DirectConnectionSet       bool
	HeartbeatInterval         time.Duration
	HeartbeatIntervalSet      bool
	LocalThreshold            time.Duration
	LocalThresholdSet         bool
	MaxStaleness              time.Duration
	MaxStalenessSet           bool
	ReadPreference            string
	ReadPreferenceTagSets     []map[string]string
	ReplicaSet                string
	ServerSelectionTimeout    time.Duration
	ServerSelectionTimeoutSet bool

	UnknownOptions map[string][]string
}

// String returns the original connection string.
func (cs ConnString) String() string {
	return cs.Original
}

// ReadPref builds the read preference described by the connection string. It
// returns nil if the connection string carries no read preference options.
func (cs ConnString) ReadPref() (*readpref.ReadPref, error) {
	if cs.ReadPreference == "" && len(cs.ReadPreferenceTagSets) == 0 && !cs.MaxStalenessSet {
		return nil, nil
	}

	mode := readpref.PrimaryMode
	if cs.ReadPreference != "" {
		var err error
		if mode, err = readpref.ModeFromString(cs.ReadPreference); err != nil {
			return nil, err
		}
	}

	var opts []readpref.Option
	if len(cs.ReadPreferenceTagSets) > 0 {
		opts = append(opts, readpref.WithTagSets(tag.NewTagSetsFromMaps(cs.ReadPreferenceTagSets)...))
	}
	if cs.MaxStalenessSet {
		opts = append(opts, readpref.WithMaxStaleness(cs.MaxStaleness))
	}

	rp, err := readpref.New(mode, opts...)
	return rp, errors.Wrap(err, "invalid read preference in connection string")
}

// Parse parses the provided uri and returns a ConnString object.
func Parse(s string) (ConnString, error) {
	var p parser
	err := p.parse(s)
	if err != nil {
		err = errors.Wrapf(err, "error parsing uri")
	}
	return p.ConnString, err
}

type parser struct {
	ConnString
}

func (p *parser) parse(original string) error {
	p.Original = original
	uri := original

	switch {
	case strings.HasPrefix(uri, SchemeSRV+"://"):
		return errors.New("the mongodb+srv scheme is not supported")
	case strings.HasPrefix(uri, Scheme+"://"):
		uri = uri[len(Scheme)+3:]
	default:
		return errors.Errorf("scheme must be %q", Scheme)
	}

	// Credentials are accepted and ignored apart from the user name.
	authority := uri
	if idx := strings.Index(uri, "/"); idx != -1 {
		authority = uri[:idx]
	}
	if idx := strings.LastIndex(authority, "@"); idx != -1 {
		userInfo := uri[:idx]
		uri = uri[idx+1:]
		username := userInfo
		if colon := strings.Index(userInfo, ":"); colon != -1 {
			username = userInfo[:colon]
		}
		var err error
		if p.Username, err = url.PathUnescape(username); err != nil {
			return errors.Wrap(err, "invalid username")
		}
	}

	hosts := uri
	rest := ""
	if idx := strings.IndexAny(uri, "/?"); idx != -1 {
		hosts = uri[:idx]
		rest = uri[idx:]
	}

	for _, host := range strings.Split(hosts, ",") {
		if err := p.addHost(host); err != nil {
			return err
		}
	}
	if len(p.Hosts) == 0 {
		return errors.New("must have at least 1 host")
	}

	rest = strings.TrimPrefix(rest, "/")
	query := ""
	if idx := strings.Index(rest, "?"); idx != -1 {
		query = rest[idx+1:]
		rest = rest[:idx]
	}

	var err error
	if p.Database, err = url.PathUnescape(rest); err != nil {
		return errors.Wrap(err, "invalid database")
	}

	if query != "" {
		values, err := url.ParseQuery(strings.ReplaceAll(query, ";", "&"))
		if err != nil {
			return errors.Wrap(err, "invalid options")
		}
		for key, vals := range values {
			for _, val := range vals {
				if err := p.addOption(key, val); err != nil {
					return err
				}
			}
		}
	}

	return p.validate()
}

func (p *parser) addHost(host string) error {
	if host == "" {
		return nil
	}
	host, err := url.PathUnescape(host)
	if err != nil {
		return errors.Wrapf(err, "invalid host %q", host)
	}

	if strings.HasSuffix(host, ".sock") {
		p.Hosts = append(p.Hosts, host)
		return nil
	}

	_, port, err := net.SplitHostPort(host)
	if err == nil {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n >= 65536 {
			return errors.Errorf("port must be in the range [1, 65535] in host %q", host)
		}
	} else if !strings.Contains(err.Error(), "missing port in address") {
		return errors.Wrapf(err, "invalid host %q", host)
	}

	p.Hosts = append(p.Hosts, host)
	return nil
}

func (p *parser) addOption(key, value string) error {
	switch strings.ToLower(key) {
	case "appname":
		p.AppName = value
	case "connect":
		switch strings.ToLower(value) {
		case "direct":
			p.DirectConnection, p.DirectConnectionSet = true, true
		case "automatic":
			p.DirectConnection, p.DirectConnectionSet = false, true
		default:
			return errors.Errorf("invalid value for connect: %q", value)
		}
	case "connecttimeoutms":
		d, err := parseMS(key, value)
		if err != nil {
			return err
		}
		p.ConnectTimeout, p.ConnectTimeoutSet = d, true
	case "directconnection":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Errorf("invalid value for %s: %q", key, value)
		}
		p.DirectConnection, p.DirectConnectionSet = b, true
	case "heartbeatfrequencyms", "heartbeatintervalms":
		d, err := parseMS(key, value)
		if err != nil {
			return err
		}
		p.HeartbeatInterval, p.HeartbeatIntervalSet = d, true
	case "localthresholdms":
		d, err := parseMS(key, value)
		if err != nil {
			return err
		}
		p.LocalThreshold, p.LocalThresholdSet = d, true
	case "maxstalenessseconds":
		n, err := strconv.Atoi(value)
		if err != nil || n < -1 {
			return errors.Errorf("invalid value for %s: %q", key, value)
		}
		// -1 means no max staleness.
		if n >= 0 {
			p.MaxStaleness, p.MaxStalenessSet = time.Duration(n)*time.Second, true
		}
	case "readpreference":
		p.ReadPreference = value
	case "readpreferencetags":
		tags := make(map[string]string)
		if value != "" {
			for _, pair := range strings.Split(value, ",") {
				kv := strings.SplitN(pair, ":", 2)
				if len(kv) != 2 || kv[0] == "" {
					return errors.Errorf("invalid value for %s: %q", key, value)
				}
				tags[kv[0]] = kv[1]
			}
		}
		p.ReadPreferenceTagSets = append(p.ReadPreferenceTagSets, tags)
	case "replicaset":
		p.ReplicaSet = value
	case "serverselectiontimeoutms":
		d, err := parseMS(key, value)
		if err != nil {
			return err
		}
		p.ServerSelectionTimeout, p.ServerSelectionTimeoutSet = d, true
	default:
		if p.UnknownOptions == nil {
			p.UnknownOptions = make(map[string][]string)
		}
		lower := strings.ToLower(key)
		p.UnknownOptions[lower] = append(p.UnknownOptions[lower], value)
	}

	return nil
}

func (p *parser) validate() error {
	if p.DirectConnectionSet && p.DirectConnection && len(p.Hosts) > 1 {
		return errors.New("a direct connection cannot be made if multiple hosts are specified")
	}
	if p.HeartbeatIntervalSet && p.HeartbeatInterval < 500*time.Millisecond {
		return errors.Errorf("heartbeatFrequencyMS must be at least 500, got %d", p.HeartbeatInterval.Milliseconds())
	}
	return nil
}

func parseMS(key, value string) (time.Duration, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, errors.Errorf("invalid value for %s: %q", key, value)
	}
	return time.Duration(n) * time.Millisecond, nil
}
