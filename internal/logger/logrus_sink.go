// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import (
	"github.com/sirupsen/logrus"
)

// LogrusSink adapts a logrus logger to the LogSink interface. Key/value pairs
// become logrus fields.
type LogrusSink struct {
	log *logrus.Logger
}

var _ LogSink = &LogrusSink{}

// NewLogrusSink creates a LogrusSink writing to l, or to the logrus standard
// logger if l is nil.
func NewLogrusSink(l *logrus.Logger) *LogrusSink {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogrusSink{log: l}
}

// Info logs msg at info level, or at debug level for debug messages.
func (sink *LogrusSink) Info(level int, msg string, keysAndValues ...interface{}) {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[keyString(keysAndValues[i])] = keysAndValues[i+1]
	}

	entry := sink.log.WithFields(fields)
	if level+DiffToInfo >= int(DebugLevel) {
		entry.Debug(msg)
		return
	}
	entry.Info(msg)
}
