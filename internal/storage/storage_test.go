package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sufferpurrityxd/quantaswap/internal/artifact"
	"github.com/sufferpurrityxd/quantaswap/internal/magnet"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db")
	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestPutArtifactThenExistsAndGet(t *testing.T) {
	s := openTestStore(t)
	a, err := artifact.New([]byte("payload bytes"))
	require.NoError(t, err)

	require.False(t, s.Exists(a.ID.Bytes()))

	require.NoError(t, s.PutArtifact(a))
	require.True(t, s.Exists(a.ID.Bytes()))

	got, ok := s.Get(a.ID.Bytes())
	require.True(t, ok)
	require.Equal(t, a.Data, got)
}

func TestGetMissingArtifact(t *testing.T) {
	s := openTestStore(t)
	id := artifact.Hash([]byte("never written"))

	_, ok := s.Get(id.Bytes())
	require.False(t, ok)
}

func TestExistsRejectsMalformedKey(t *testing.T) {
	s := openTestStore(t)
	require.False(t, s.Exists([]byte{1, 2, 3}))
}

func TestMagnetTreeAssignsAscendingCounters(t *testing.T) {
	s := openTestStore(t)
	d1 := magnet.New("a.bin", 10)
	d2 := magnet.New("b.bin", 20)

	c1, err := s.PutMagnet(d1)
	require.NoError(t, err)
	c2, err := s.PutMagnet(d2)
	require.NoError(t, err)

	require.Equal(t, uint64(0), c1)
	require.Equal(t, uint64(1), c2)

	got1, err := s.GetMagnet(c1)
	require.NoError(t, err)
	require.True(t, d1.Equal(got1))

	got2, err := s.GetMagnet(c2)
	require.NoError(t, err)
	require.True(t, d2.Equal(got2))
}

func TestGetMagnetMissingCounter(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetMagnet(42)
	require.ErrorIs(t, err, ErrNotFound)
}
