// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package result

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestHelloDecode(t *testing.T) {
	electionID := primitive.NewObjectID()
	lastWrite := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	raw, err := bson.Marshal(bson.D{
		{Key: "ok", Value: int32(1)},
		{Key: "ismaster", Value: true},
		{Key: "setName", Value: "rs0"},
		{Key: "setVersion", Value: int32(3)},
		{Key: "electionId", Value: electionID},
		{Key: "hosts", Value: bson.A{"a:27017", "b:27017"}},
		{Key: "me", Value: "a:27017"},
		{Key: "tags", Value: bson.D{{Key: "dc", Value: "ny"}}},
		{Key: "lastWrite", Value: bson.D{{Key: "lastWriteDate", Value: lastWrite}}},
		{Key: "maxWireVersion", Value: int32(21)},
	})
	require.NoError(t, err)

	var hello Hello
	require.NoError(t, bson.Unmarshal(raw, &hello))

	assert.True(t, hello.Succeeded())
	assert.True(t, hello.Writable())
	assert.Equal(t, "rs0", hello.SetName)
	assert.Equal(t, uint32(3), hello.SetVersion)
	assert.Equal(t, electionID, hello.ElectionID)
	assert.Equal(t, []string{"a:27017", "b:27017"}, hello.Hosts)
	assert.Equal(t, map[string]string{"dc": "ny"}, hello.Tags)
	require.NotNil(t, hello.LastWrite)
	assert.True(t, lastWrite.Equal(hello.LastWrite.LastWriteDate))
	assert.Equal(t, int32(21), hello.MaxWireVersion)
}

func TestHelloFailed(t *testing.T) {
	hello := Hello{OK: 0, IsWritablePrimary: true}
	assert.False(t, hello.Succeeded())
	assert.True(t, hello.Writable())
	assert.False(t, Hello{OK: 1, Secondary: true}.Writable())
}
