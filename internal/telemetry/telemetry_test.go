package telemetry

import (
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/test"
	"github.com/stretchr/testify/require"
)

func TestTouchCreatesEmptyEntry(t *testing.T) {
	c := NewCache()
	id, err := test.RandPeerID()
	require.NoError(t, err)

	info := c.Touch(id)
	require.NotNil(t, info)
	require.Nil(t, info.IdentifyInfo)
	require.Nil(t, info.RTT)
	require.False(t, info.IsMDNS)
}

func TestSetRTTPersists(t *testing.T) {
	c := NewCache()
	id, err := test.RandPeerID()
	require.NoError(t, err)

	c.SetRTT(id, 42*time.Millisecond)
	info, ok := c.Get(id)
	require.True(t, ok)
	require.Equal(t, 42*time.Millisecond, *info.RTT)
}

func TestSetMDNSPersists(t *testing.T) {
	c := NewCache()
	id, err := test.RandPeerID()
	require.NoError(t, err)

	c.SetMDNS(id)
	info, ok := c.Get(id)
	require.True(t, ok)
	require.True(t, info.IsMDNS)
}

func TestRemoveForgetsPeer(t *testing.T) {
	c := NewCache()
	id, err := test.RandPeerID()
	require.NoError(t, err)

	c.Touch(id)
	c.Remove(id)
	_, ok := c.Get(id)
	require.False(t, ok)
}

func TestPeersListsTracked(t *testing.T) {
	c := NewCache()
	id1, err := test.RandPeerID()
	require.NoError(t, err)
	id2, err := test.RandPeerID()
	require.NoError(t, err)

	c.Touch(id1)
	c.Touch(id2)
	require.Len(t, c.Peers(), 2)
}
