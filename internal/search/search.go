// Package search implements the search identifier: a 256-bit random token
// that tags an in-flight swap query across its whole lifecycle.
package search

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"lukechampine.com/blake3"
)

// IDSize is the length in bytes of a search identifier.
const IDSize = 32

// ID uniquely tags a query/query-want exchange. Equality and ordering are
// byte-wise.
type ID [IDSize]byte

// ErrWrongLength is returned when decoded bytes aren't IDSize long.
var ErrWrongLength = errors.New("search: wrong id length")

// ErrHexDecode is returned when a hex id string fails to parse.
var ErrHexDecode = errors.New("search: invalid hex id")

// Random draws 32 uniformly random bytes from a cryptographic source and
// applies BLAKE3 to yield a 32-byte identifier.
func Random() (ID, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return ID{}, fmt.Errorf("search: reading random seed: %w", err)
	}
	return ID(blake3.Sum256(seed[:])), nil
}

// FromBytes copies a raw 32-byte identifier.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDSize {
		return id, fmt.Errorf("%w: got %d bytes", ErrWrongLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Bytes returns the raw 32-byte form.
func (id ID) Bytes() []byte {
	out := make([]byte, IDSize)
	copy(out, id[:])
	return out
}

// String renders the identifier as lowercase hex, its display form.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseHex parses the lowercase hex form produced by String.
func ParseHex(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("%w: %s", ErrHexDecode, err)
	}
	return FromBytes(b)
}
