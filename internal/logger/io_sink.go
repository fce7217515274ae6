// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package logger

import (
	"fmt"
	"io"
	"log"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// IOSink writes to an io.Writer using the standard library logging solution and
// is the default sink for the logger, with the default IO being os.Stderr.
type IOSink struct {
	mu  sync.Mutex
	log *log.Logger
}

var _ LogSink = &IOSink{}

// NewIOSink will create a new IOSink that writes to the provided io.Writer.
func NewIOSink(out io.Writer) *IOSink {
	return &IOSink{
		log: log.New(out, "", 0),
	}
}

// Info will write the provided message and key-value pairs to the io.Writer
// as relaxed extended JSON, one document per line.
func (sink *IOSink) Info(_ int, msg string, keysAndValues ...interface{}) {
	kvMap := make(map[string]interface{}, len(keysAndValues)/2+1)
	kvMap[KeyMessage] = msg

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		kvMap[keyString(keysAndValues[i])] = keysAndValues[i+1]
	}

	kvBytes, err := bson.MarshalExtJSON(kvMap, false, false)
	if err != nil {
		kvBytes = []byte(fmt.Sprintf(`{%q: %q, "marshalError": %q}`, KeyMessage, msg, err.Error()))
	}

	sink.mu.Lock()
	sink.log.Println(string(kvBytes))
	sink.mu.Unlock()
}

func keyString(key interface{}) string {
	if str, ok := key.(string); ok {
		return str
	}
	return fmt.Sprint(key)
}
