// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package connection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ikmak/mongo-topology/address"
)

func TestError(t *testing.T) {
	t.Parallel()

	wrapped := errors.New("connection refused")
	err := NewError("a:27017", wrapped, "unable to dial")

	require.Equal(t, "connection(a:27017) unable to dial: connection refused", err.Error())
	require.ErrorIs(t, err, wrapped)
	require.Equal(t, "connection(a:27017) closed", NewError("a:27017", nil, "closed").Error())
}

func TestDialerFunc(t *testing.T) {
	t.Parallel()

	var dialed address.Address
	dialer := DialerFunc(func(_ context.Context, addr address.Address) (Connection, error) {
		dialed = addr
		return nil, errors.New("no server")
	})

	_, err := dialer.Dial(context.Background(), "b:27018")

	require.Error(t, err)
	require.Equal(t, address.Address("b:27018"), dialed)
}
