// Package artifact implements QuantaSwap's content-addressed identity and
// splitting model: fixed-size immutable blobs identified by the SHA-256 of
// their payload.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	cid "github.com/ipfs/go-cid"
	"github.com/mr-tron/base58"
	mh "github.com/multiformats/go-multihash"
)

// MaxArtifactSize is the largest payload an artifact may carry.
const MaxArtifactSize = 2048

// IDSize is the length in bytes of an artifact identifier.
const IDSize = sha256.Size

// ID is a content-addressed artifact identifier: the SHA-256 of its
// payload. Equality and ordering are byte-wise.
type ID [IDSize]byte

var (
	// ErrWrongLength is returned when decoded bytes aren't IDSize long.
	ErrWrongLength = errors.New("artifact: wrong id length")
	// ErrHexDecode is returned when a hex id string fails to parse.
	ErrHexDecode = errors.New("artifact: invalid hex id")
	// ErrBase58Decode is returned when a base58 id string fails to parse.
	ErrBase58Decode = errors.New("artifact: invalid base58 id")
)

// IDFromBytes copies a raw 32-byte identifier.
func IDFromBytes(b []byte) (ID, error) {
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

// ToHex renders the identifier as lowercase hex (diagnostic form).
func (id ID) ToHex() string {
	return hex.EncodeToString(id[:])
}

// ParseHex parses the lowercase hex form produced by ToHex.
func ParseHex(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("%w: %s", ErrHexDecode, err)
	}
	return IDFromBytes(b)
}

// ToBase58 renders the identifier as base58 (primary textual form).
func (id ID) ToBase58() string {
	return base58.Encode(id[:])
}

// ParseBase58 parses the base58 form produced by ToBase58.
func ParseBase58(s string) (ID, error) {
	var id ID
	b, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("%w: %s", ErrBase58Decode, err)
	}
	return IDFromBytes(b)
}

// String implements fmt.Stringer using the primary (base58) form.
func (id ID) String() string {
	return id.ToBase58()
}

// Hash computes an artifact identifier from payload bytes.
func Hash(data []byte) ID {
	return ID(sha256.Sum256(data))
}

// ToCID renders the identifier as a CIDv1 (raw codec, sha2-256 multihash)
// using the teacher's own content-addressing primitive, so an artifact ID
// interoperates with any CID-aware tooling even though the 32-byte array
// remains this package's native form.
func (id ID) ToCID() cid.Cid {
	digest, err := mh.Encode(id[:], mh.SHA2_256)
	if err != nil {
		// mh.Encode only fails for unregistered codes; SHA2_256 is always
		// registered, so this is unreachable.
		panic(fmt.Sprintf("artifact: encoding multihash: %s", err))
	}
	return cid.NewCidV1(cid.Raw, digest)
}

// FromCID extracts an artifact ID from a CIDv1 produced by ToCID. c must
// carry a sha2-256 multihash over exactly IDSize bytes.
func FromCID(c cid.Cid) (ID, error) {
	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return ID{}, fmt.Errorf("%w: %s", ErrWrongLength, err)
	}
	if decoded.Code != mh.SHA2_256 {
		return ID{}, fmt.Errorf("%w: expected sha2-256 multihash, got code %d", ErrWrongLength, decoded.Code)
	}
	return IDFromBytes(decoded.Digest)
}

// Artifact is a content-addressed, immutable blob: data no larger than
// MaxArtifactSize, keyed by the SHA-256 of its own bytes. The only creation
// path is New — an ID is never supplied independently.
type Artifact struct {
	ID   ID
	Data []byte
}

// New hashes data and returns the resulting Artifact. data must be at most
// MaxArtifactSize bytes.
func New(data []byte) (Artifact, error) {
	if len(data) > MaxArtifactSize {
		return Artifact{}, fmt.Errorf("artifact: payload of %d bytes exceeds max %d", len(data), MaxArtifactSize)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return Artifact{ID: Hash(buf), Data: buf}, nil
}
