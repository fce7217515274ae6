// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package logger provides component and level filtered structured logging
// with pluggable sinks.
package logger

import (
	"os"
)

// LogSink is an interface that can be implemented to provide a custom sink for
// the topology's logs. It is compatible with the logr.LogSink Info method.
type LogSink interface {
	// Info logs a non-error message with the given key/value pairs. The level
	// argument is 0 for informational and 1 for debug messages.
	Info(level int, message string, keysAndValues ...interface{})
}

// Logger filters messages by component and level before handing them to a
// LogSink.
type Logger struct {
	ComponentLevels map[Component]Level
	Sink            LogSink
}

// New constructs a new logger with the given LogSink. If the sink is nil the
// logger writes extended JSON lines to os.Stderr.
//
// The componentLevels are merged on top of the levels sourced from the
// MONGODB_LOG_* environment variables, with the latest value taking
// precedence.
func New(sink LogSink, componentLevels ...map[Component]Level) *Logger {
	if sink == nil {
		sink = NewIOSink(os.Stderr)
	}

	levels := append([]map[Component]Level{getEnvComponentLevels()}, componentLevels...)

	return &Logger{
		ComponentLevels: mergeComponentLevels(levels...),
		Sink:            sink,
	}
}

// LevelComponentEnabled will return true if the given Level is enabled for the
// given Component.
func (logger *Logger) LevelComponentEnabled(level Level, component Component) bool {
	if logger == nil || level == OffLevel {
		return false
	}
	if component == ComponentAll {
		for _, l := range logger.ComponentLevels {
			if l >= level {
				return true
			}
		}
		return false
	}
	return logger.ComponentLevels[component] >= level
}

// Print will synchronously print the given message to the configured LogSink
// if the level is enabled for the component.
func (logger *Logger) Print(level Level, component Component, msg string, keysAndValues ...interface{}) {
	if !logger.LevelComponentEnabled(level, component) {
		return
	}

	logger.Sink.Info(int(level)-DiffToInfo, msg, keysAndValues...)
}
