package artifact

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitterExactMultiple(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, MaxArtifactSize*2)
	got, err := All(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, data[:MaxArtifactSize], got[0].Data)
	require.Equal(t, data[MaxArtifactSize:], got[1].Data)
}

func TestSplitterShortLastRead(t *testing.T) {
	data := append(bytes.Repeat([]byte{0x01}, MaxArtifactSize), []byte("tail")...)
	got, err := All(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, []byte("tail"), got[1].Data)
}

func TestSplitterEmptyInput(t *testing.T) {
	got, err := All(bytes.NewReader(nil))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSplitterEachArtifactSelfConsistent(t *testing.T) {
	got, err := All(strings.NewReader("some small payload"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, Hash(got[0].Data), got[0].ID)
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

func TestSplitterPropagatesReadError(t *testing.T) {
	sentinel := bytes.ErrTooLarge
	s := NewSplitter(errReader{err: sentinel})
	_, err := s.Next()
	require.ErrorIs(t, err, sentinel)
}
