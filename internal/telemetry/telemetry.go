// Package telemetry holds per-peer connection bookkeeping the orchestrator
// accumulates from the identify and ping subprotocols: what a peer says
// about itself, and how far away it is.
package telemetry

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/protocol/identify"
)

// IdentifyInfo mirrors the subset of identify.Info worth retaining after
// the identify exchange completes.
type IdentifyInfo struct {
	ProtocolVersion string
	AgentVersion    string
	ListenAddrs     []string
	Protocols       []string
	ObservedAddr    string
}

// FromIdentify captures the fields of an identify.Info event.
func FromIdentify(info identify.Info) IdentifyInfo {
	addrs := make([]string, 0, len(info.ListenAddrs))
	for _, a := range info.ListenAddrs {
		addrs = append(addrs, a.String())
	}
	protos := make([]string, 0, len(info.Protocols))
	for _, p := range info.Protocols {
		protos = append(protos, string(p))
	}
	return IdentifyInfo{
		ProtocolVersion: info.ProtocolVersion,
		AgentVersion:    info.AgentVersion,
		ListenAddrs:     addrs,
		Protocols:       protos,
		ObservedAddr:    info.ObservedAddr.String(),
	}
}

// ConnectionInfo is the per-peer record the orchestrator maintains:
// identify metadata (once captured), the most recent ping RTT, and whether
// the peer was discovered via local mDNS.
type ConnectionInfo struct {
	IdentifyInfo *IdentifyInfo
	RTT          *time.Duration
	IsMDNS       bool
}

// Cache tracks ConnectionInfo per connected peer. Like internal/swap, it is
// only safe to touch from the orchestrator's single event-loop goroutine.
type Cache struct {
	byPeer map[peer.ID]*ConnectionInfo
}

// NewCache constructs an empty telemetry cache.
func NewCache() *Cache {
	return &Cache{byPeer: make(map[peer.ID]*ConnectionInfo)}
}

// Touch returns the ConnectionInfo for p, creating an empty one on first
// use.
func (c *Cache) Touch(p peer.ID) *ConnectionInfo {
	info, ok := c.byPeer[p]
	if !ok {
		info = &ConnectionInfo{}
		c.byPeer[p] = info
	}
	return info
}

// SetIdentify records the identify info captured for p.
func (c *Cache) SetIdentify(p peer.ID, info IdentifyInfo) {
	c.Touch(p).IdentifyInfo = &info
}

// SetRTT records the most recent ping RTT for p.
func (c *Cache) SetRTT(p peer.ID, rtt time.Duration) {
	c.Touch(p).RTT = &rtt
}

// SetMDNS marks p as discovered via local mDNS.
func (c *Cache) SetMDNS(p peer.ID) {
	c.Touch(p).IsMDNS = true
}

// Get returns the ConnectionInfo for p, if any has been recorded.
func (c *Cache) Get(p peer.ID) (*ConnectionInfo, bool) {
	info, ok := c.byPeer[p]
	return info, ok
}

// Remove forgets p entirely, typically on disconnect.
func (c *Cache) Remove(p peer.ID) {
	delete(c.byPeer, p)
}

// Peers returns every peer currently tracked.
func (c *Cache) Peers() []peer.ID {
	out := make([]peer.ID, 0, len(c.byPeer))
	for p := range c.byPeer {
		out = append(out, p)
	}
	return out
}
