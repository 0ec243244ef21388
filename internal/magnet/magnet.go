// Package magnet implements the magnet descriptor: an aggregate record of
// ordered artifact identifiers plus file metadata sufficient to reassemble
// the original byte sequence.
package magnet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/mr-tron/base58"

	"github.com/sufferpurrityxd/quantaswap/internal/artifact"
)

var (
	// ErrEncode is returned when the canonical binary form cannot be built.
	ErrEncode = errors.New("magnet: encode failed")
	// ErrDecode is returned when canonical bytes cannot be parsed.
	ErrDecode = errors.New("magnet: decode failed")
	// ErrBase58Decode is returned when the display string isn't valid base58.
	ErrBase58Decode = errors.New("magnet: invalid base58 string")
)

// canonicalEncMode mirrors the teacher's ipld/ipldbindcode codec layer:
// CBOR's canonical options (RFC 7049 §3.9 core deterministic encoding, same
// as the teacher's encodeCBOR) give a self-describing, stably-ordered wire
// form instead of a hand-rolled binary layout.
var canonicalEncMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("magnet: building canonical cbor encoder: %s", err))
	}
	return em
}()

// wireEntry is one (index, artifact id) pair in a magnet descriptor's
// canonical CBOR form, encoded as a small map with integer field keys.
// Entries form an array whose order is set by ToBytes, which sorts them by
// ascending index before encoding.
type wireEntry struct {
	Index int    `cbor:"1,keyasint"`
	ID    []byte `cbor:"2,keyasint"`
}

// wireDescriptor is the canonical CBOR encoding of a Descriptor.
type wireDescriptor struct {
	Entries  []wireEntry `cbor:"1,keyasint"`
	FileName string      `cbor:"2,keyasint"`
	Size     uint64      `cbor:"3,keyasint"`
}

// Descriptor is the aggregate record for one user-visible file: an ordered
// map from 1-based index to artifact identifier, plus file name and
// declared size.
type Descriptor struct {
	artifactIDMapping map[int]artifact.ID
	fileName          string
	size              uint64
}

// New creates an empty descriptor for fileName with a declared total size.
func New(fileName string, size uint64) *Descriptor {
	return &Descriptor{
		artifactIDMapping: make(map[int]artifact.ID),
		fileName:          fileName,
		size:              size,
	}
}

// Append assigns id the next index: max(existing keys)+1, or 1 if empty.
func (d *Descriptor) Append(id artifact.ID) int {
	idx := d.nextIdx()
	d.artifactIDMapping[idx] = id
	return idx
}

func (d *Descriptor) nextIdx() int {
	max := 0
	for idx := range d.artifactIDMapping {
		if idx > max {
			max = idx
		}
	}
	return max + 1
}

// FileName returns the descriptor's declared file name.
func (d *Descriptor) FileName() string { return d.fileName }

// Size returns the descriptor's declared total byte length.
func (d *Descriptor) Size() uint64 { return d.size }

// Len returns the number of artifact entries.
func (d *Descriptor) Len() int { return len(d.artifactIDMapping) }

// OrderedIDs returns the artifact identifiers in ascending index order,
// suitable for reassembly.
func (d *Descriptor) OrderedIDs() []artifact.ID {
	indexes := make([]int, 0, len(d.artifactIDMapping))
	for idx := range d.artifactIDMapping {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	ids := make([]artifact.ID, 0, len(indexes))
	for _, idx := range indexes {
		ids = append(ids, d.artifactIDMapping[idx])
	}
	return ids
}

// Equal reports field-wise equality, as required by the round-trip law.
func (d *Descriptor) Equal(other *Descriptor) bool {
	if d.fileName != other.fileName || d.size != other.size {
		return false
	}
	if len(d.artifactIDMapping) != len(other.artifactIDMapping) {
		return false
	}
	for idx, id := range d.artifactIDMapping {
		oid, ok := other.artifactIDMapping[idx]
		if !ok || oid != id {
			return false
		}
	}
	return true
}

// ToBytes produces the canonical deterministic CBOR form: entries in
// ascending index order, the file name, and the declared size, encoded with
// CanonicalEncOptions so the same Descriptor always yields the same bytes.
func (d *Descriptor) ToBytes() ([]byte, error) {
	indexes := make([]int, 0, len(d.artifactIDMapping))
	for idx := range d.artifactIDMapping {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	wd := wireDescriptor{
		Entries:  make([]wireEntry, 0, len(indexes)),
		FileName: d.fileName,
		Size:     d.size,
	}
	for _, idx := range indexes {
		id := d.artifactIDMapping[idx]
		wd.Entries = append(wd.Entries, wireEntry{Index: idx, ID: id.Bytes()})
	}

	out, err := canonicalEncMode.Marshal(wd)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEncode, err)
	}
	return out, nil
}

// FromBytes parses the canonical CBOR form produced by ToBytes.
func FromBytes(b []byte) (*Descriptor, error) {
	var wd wireDescriptor
	if err := cbor.Unmarshal(b, &wd); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecode, err)
	}

	mapping := make(map[int]artifact.ID, len(wd.Entries))
	for _, entry := range wd.Entries {
		id, err := artifact.IDFromBytes(entry.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrDecode, err)
		}
		mapping[entry.Index] = id
	}

	return &Descriptor{
		artifactIDMapping: mapping,
		fileName:          wd.FileName,
		size:              wd.Size,
	}, nil
}

// ToCompressedBytes gzips the canonical form — the on-disk persistence form.
func (d *Descriptor) ToCompressedBytes() ([]byte, error) {
	canonical, err := d.ToBytes()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(canonical); err != nil {
		return nil, fmt.Errorf("%w: gzip write: %s", ErrEncode, err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("%w: gzip close: %s", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// FromCompressedBytes reverses ToCompressedBytes.
func FromCompressedBytes(b []byte) (*Descriptor, error) {
	gr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip open: %s", ErrDecode, err)
	}
	defer gr.Close()

	canonical, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip read: %s", ErrDecode, err)
	}
	return FromBytes(canonical)
}

// ToDisplayString renders the textual form: base58 of the UNCOMPRESSED
// canonical bytes. Gzip is reserved for the on-disk persistence form.
func (d *Descriptor) ToDisplayString() (string, error) {
	canonical, err := d.ToBytes()
	if err != nil {
		return "", err
	}
	return base58.Encode(canonical), nil
}

// ParseDisplayString reverses ToDisplayString.
func ParseDisplayString(s string) (*Descriptor, error) {
	canonical, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBase58Decode, err)
	}
	return FromBytes(canonical)
}
