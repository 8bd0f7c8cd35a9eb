// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Argon2idParams are the cost parameters embedded in every hash.
type Argon2idParams struct {
	Memory  uint32 // KiB
	Time    uint32 // iterations
	Threads uint8  // lanes
	SaltLen uint32 // bytes
	KeyLen  uint32 // bytes
}

// DefaultArgon2idParams returns the production cost: 64 MiB, 10 passes,
// 4 lanes. A single hash takes tens to hundreds of milliseconds.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Memory:  64 * 1024,
		Time:    10,
		Threads: 4,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// Validate rejects parameters argon2id cannot run with.
func (p Argon2idParams) Validate() error {
	switch {
	case p.Time == 0:
		return oops.Code("AUTH_INVALID_PARAMS").Errorf("argon2id time must be positive")
	case p.Threads == 0:
		return oops.Code("AUTH_INVALID_PARAMS").Errorf("argon2id threads must be positive")
	case p.Memory < 8*uint32(p.Threads):
		return oops.Code("AUTH_INVALID_PARAMS").Errorf("argon2id memory must be at least 8 KiB per thread")
	case p.SaltLen < 8:
		return oops.Code("AUTH_INVALID_PARAMS").Errorf("argon2id salt must be at least 8 bytes")
	case p.KeyLen < 16:
		return oops.Code("AUTH_INVALID_PARAMS").Errorf("argon2id key must be at least 16 bytes")
	}
	return nil
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	// Hash produces a self-describing hash of password with a fresh salt.
	Hash(password string) (string, error)

	// Verify checks password against hash. Returns (false, nil) on mismatch
	// and an ErrHash error when hash is malformed.
	Verify(password, hash string) (bool, error)

	// NeedsRehash reports whether hash was produced with parameters other
	// than the hasher's current ones.
	NeedsRehash(hash string) bool
}

// Argon2idHasher implements PasswordHasher with argon2id and PHC-format
// output: $argon2id$v=19$m=<mem>,t=<time>,p=<lanes>$<salt>$<hash>.
type Argon2idHasher struct {
	params Argon2idParams
}

// NewArgon2idHasher creates a hasher with DefaultArgon2idParams.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2idParams()}
}

// NewArgon2idHasherWithParams creates a hasher with custom cost parameters.
func NewArgon2idHasherWithParams(params Argon2idParams) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params}, nil
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", oops.Code("AUTH_EMPTY_PASSWORD").Wrap(fmt.Errorf("%w: password cannot be empty", ErrValidation))
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	p := h.params
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory,
		p.Time,
		p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the hash, using the parameters
// embedded in the hash rather than the hasher's own.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	decoded, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	p := decoded.params
	computed := argon2.IDKey([]byte(password), decoded.salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(computed, decoded.key) == 1, nil
}

// NeedsRehash returns true if hash is unparseable or was produced with
// different cost parameters.
func (h *Argon2idHasher) NeedsRehash(hash string) bool {
	decoded, err := decodeHash(hash)
	if err != nil {
		return true
	}
	p := decoded.params
	return p.Memory != h.params.Memory ||
		p.Time != h.params.Time ||
		p.Threads != h.params.Threads ||
		p.KeyLen != h.params.KeyLen
}

type decodedHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func invalidHash(format string, args ...any) error {
	return oops.Code("AUTH_INVALID_HASH").Wrap(fmt.Errorf("%w: "+format, append([]any{ErrHash}, args...)...))
}

func decodeHash(encoded string) (*decodedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, invalidHash("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, invalidHash("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, invalidHash("bad version field %q", parts[2])
	}
	if version != argon2.Version {
		return nil, invalidHash("unsupported argon2 version %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, invalidHash("bad parameter field %q", parts[3])
	}
	if threads == 0 || threads > 255 {
		return nil, invalidHash("threads value %d out of range", threads)
	}
	if time == 0 || memory == 0 {
		return nil, invalidHash("zero cost parameter")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, invalidHash("bad salt encoding")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, invalidHash("bad hash encoding")
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return nil, invalidHash("invalid hash key length: %d", len(key))
	}

	return &decodedHash{
		params: Argon2idParams{
			Memory:  memory,
			Time:    time,
			Threads: uint8(threads),
			SaltLen: uint32(len(salt)),
			KeyLen:  uint32(len(key)),
		},
		salt: salt,
		key:  key,
	}, nil
}
