package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomProducesDistinctIDs(t *testing.T) {
	a, err := Random()
	require.NoError(t, err)
	b, err := Random()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestHexRoundTrip(t *testing.T) {
	id, err := Random()
	require.NoError(t, err)

	s := id.String()
	got, err := ParseHex(s)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestBytesRoundTrip(t *testing.T) {
	id, err := Random()
	require.NoError(t, err)

	got, err := FromBytes(id.Bytes())
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestFromBytesWrongLength(t *testing.T) {
	_, err := FromBytes([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrWrongLength)
}

func TestParseHexInvalid(t *testing.T) {
	_, err := ParseHex("zz")
	require.ErrorIs(t, err, ErrHexDecode)
}
