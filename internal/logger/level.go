// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import "strings"

// DiffToInfo is the number of levels that come before the "Info" level. This
// ensures that "Info" is the 0th level passed to the sink.
const DiffToInfo = 1

// Level is an enumeration representing the supported log severity levels.
//
// The order of the logging levels is important. A LogSink is likely to follow
// the logr convention of InfoLevel being 0. Any additions before InfoLevel will
// need to also update DiffToInfo.
type Level int

const (
	// OffLevel suppresses logging.
	OffLevel Level = iota

	// InfoLevel enables logging of informational messages: topology opening and
	// closing, description changes and selection outcomes.
	InfoLevel

	// DebugLevel enables logging of debug messages. These logs can be voluminous.
	// Example: every heartbeat.
	DebugLevel
)

// String implements the fmt.Stringer interface.
func (level Level) String() string {
	switch level {
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	}
	return "off"
}

// ParseLevel converts a level literal into a Level. The literals follow the
// syslog severities: everything from "error" to "info" maps to InfoLevel,
// "debug" and "trace" map to DebugLevel, and anything else is OffLevel.
func ParseLevel(str string) Level {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "error", "warn", "notice", "info":
		return InfoLevel
	case "debug", "trace":
		return DebugLevel
	}
	return OffLevel
}
