package proxy

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/test"
	"github.com/stretchr/testify/require"

	"github.com/sufferpurrityxd/quantaswap/internal/artifact"
	"github.com/sufferpurrityxd/quantaswap/internal/search"
	"github.com/sufferpurrityxd/quantaswap/internal/telemetry"
)

func newTestProxy() (*Proxy, chan Command, chan Searched) {
	cmds := make(chan Command, 1)
	events := make(chan Searched, 1)
	return New(cmds, events), cmds, events
}

func TestGetConnectionsRoundTrip(t *testing.T) {
	p, cmds, _ := newTestProxy()

	id, err := test.RandPeerID()
	require.NoError(t, err)
	want := map[peer.ID]telemetry.ConnectionInfo{id: {IsMDNS: true}}

	go func() {
		cmd := (<-cmds).(GetConnectionsCmd)
		cmd.Reply <- want
	}()

	got, err := p.GetConnections(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestCreateSearchRoundTrip(t *testing.T) {
	p, cmds, _ := newTestProxy()

	sid, err := search.Random()
	require.NoError(t, err)

	go func() {
		cmd := (<-cmds).(CreateSearchCmd)
		cmd.Reply <- sid
	}()

	got, err := p.CreateSearch(context.Background(), artifact.Hash([]byte("target")))
	require.NoError(t, err)
	require.Equal(t, sid, got)
}

func TestGetConnectionsTimesOutWithoutReply(t *testing.T) {
	cmds := make(chan Command, 1)
	events := make(chan Searched, 1)
	p := New(cmds, events)

	go func() { <-cmds }() // drain the command, never reply

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.GetConnections(ctx)
	require.Error(t, err)
}

func TestEventsStreamDelivers(t *testing.T) {
	p, _, events := newTestProxy()
	sid, err := search.Random()
	require.NoError(t, err)
	a, err := artifact.New([]byte("payload"))
	require.NoError(t, err)

	events <- Searched{SearchID: sid, Artifact: a}

	got := <-p.Events()
	require.Equal(t, sid, got.SearchID)
	require.Equal(t, a, got.Artifact)
}
