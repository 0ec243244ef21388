package artifact

import (
	"crypto/sha256"
	"testing"

	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

func TestNewHashesPayload(t *testing.T) {
	data := []byte("hello world")
	a, err := New(data)
	require.NoError(t, err)
	require.Equal(t, sha256.Sum256(data), [32]byte(a.ID))
	require.Equal(t, data, a.Data)
}

func TestNewRejectsOversizedPayload(t *testing.T) {
	_, err := New(make([]byte, MaxArtifactSize+1))
	require.Error(t, err)
}

func TestIDBase58RoundTrip(t *testing.T) {
	id := Hash([]byte("payload"))
	s := id.ToBase58()
	got, err := ParseBase58(s)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestIDHexRoundTrip(t *testing.T) {
	id := Hash([]byte("payload"))
	s := id.ToHex()
	got, err := ParseHex(s)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestParseBase58Invalid(t *testing.T) {
	_, err := ParseBase58("not-valid-base58!!!")
	require.ErrorIs(t, err, ErrBase58Decode)
}

func TestParseHexInvalid(t *testing.T) {
	_, err := ParseHex("zz")
	require.ErrorIs(t, err, ErrHexDecode)
}

func TestIDFromBytesWrongLength(t *testing.T) {
	_, err := IDFromBytes([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrWrongLength)
}

func TestDistinctPayloadsHaveDistinctIDs(t *testing.T) {
	a := Hash([]byte("a"))
	b := Hash([]byte("b"))
	require.NotEqual(t, a, b)
}

func TestIDToCIDRoundTrip(t *testing.T) {
	id := Hash([]byte("payload"))
	c := id.ToCID()
	require.Equal(t, uint64(cid.Raw), c.Type())

	got, err := FromCID(c)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestFromCIDRejectsWrongMultihash(t *testing.T) {
	digest, err := mh.Sum([]byte("payload"), mh.SHA2_256_TRUNC254_PADDED, -1)
	require.NoError(t, err)
	_, err = FromCID(cid.NewCidV1(cid.Raw, digest))
	require.ErrorIs(t, err, ErrWrongLength)
}

func TestFromCIDRejectsShortDigest(t *testing.T) {
	digest, err := mh.Encode([]byte("short"), mh.SHA2_256)
	require.NoError(t, err)
	_, err = FromCID(cid.NewCidV1(cid.Raw, digest))
	require.ErrorIs(t, err, ErrWrongLength)
}
