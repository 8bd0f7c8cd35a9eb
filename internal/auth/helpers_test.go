// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/breadsocial/bread/internal/auth"
)

// cheapParams keeps argon2id fast enough for unit tests.
var cheapParams = auth.Argon2idParams{Memory: 64, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32}

func newTestHasher(t *testing.T) *auth.Argon2idHasher {
	t.Helper()
	h, err := auth.NewArgon2idHasherWithParams(cheapParams)
	require.NoError(t, err)
	return h
}
