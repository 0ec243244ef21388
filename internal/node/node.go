// Package node implements the network orchestrator: a single-threaded
// event loop that owns the libp2p swarm, drives the swap protocol engine,
// maintains per-peer connection telemetry, and answers proxy commands.
package node

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	libp2p "github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/core/routing"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	connmgr "github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/libp2p/go-libp2p/p2p/protocol/identify"
	"github.com/libp2p/go-libp2p/p2p/protocol/ping"

	"k8s.io/klog/v2"

	"github.com/sufferpurrityxd/quantaswap/internal/artifact"
	"github.com/sufferpurrityxd/quantaswap/internal/proxy"
	"github.com/sufferpurrityxd/quantaswap/internal/swap"
	"github.com/sufferpurrityxd/quantaswap/internal/telemetry"
	"github.com/sufferpurrityxd/quantaswap/internal/wire"
)

// SwapProtocolID is the protocol name negotiated for swap streams.
const SwapProtocolID = protocol.ID("/quanta/swap/0.0.1")

// IdentifyProtocolVersion names this implementation's identify subprotocol.
const IdentifyProtocolVersion = "/quanta/identify/0.0.1"

// KadWalkDelay is the interval between periodic closest-peers queries that
// keep the DHT routing table warm.
const KadWalkDelay = 60 * time.Second

// SendTimeout bounds a single outbound swap request: stream open plus the
// write/read round trip. The request's context is derived from Run's ctx,
// so cancelling Run also ends it; the timeout keeps one unresponsive peer
// from holding a request open indefinitely.
const SendTimeout = 15 * time.Second

// ChannelsBufSize bounds every inter-goroutine channel the orchestrator
// owns. Ping results, send results, proxy replies and completion events are
// dropped and logged once their channel is full; the connection, identify
// and mDNS relays block until there is room.
const ChannelsBufSize = 4096

// Orchestrator owns the swarm and the swap engine exclusively. All state
// mutation happens on the goroutine running Run.
type Orchestrator struct {
	host    host.Host
	dht     *dht.IpfsDHT
	pingSvc *ping.PingService
	mdnsSvc mdns.Service
	idSub   event.Subscription

	telemetry *telemetry.Cache
	engine    *swap.Engine

	cmds           chan proxy.Command
	searchedEvents chan proxy.Searched

	connEvents  chan connEvent
	idEvents    chan identifyEvent
	pingEvents  chan pingEvent
	mdnsEvents  chan peer.AddrInfo
	sendResults chan sendResult

	pingCancels map[peer.ID]context.CancelFunc
}

// sendResult is one completed (or failed) outbound swap request, reported
// back from the goroutine that performed the stream I/O so that the
// response is still only ever fed into the engine from the event-loop
// goroutine.
type sendResult struct {
	peer peer.ID
	resp wire.Response
	err  error
}

type connEvent struct {
	peer      peer.ID
	connected bool
}

type identifyEvent struct {
	peer peer.ID
	info identify.Info
}

type pingEvent struct {
	peer peer.ID
	rtt  time.Duration
}

// New constructs an Orchestrator. keypair is the node's libp2p identity,
// listenAddr is a multiaddr to listen on, and storage backs the swap
// engine's read-only artifact contract.
func New(keypair crypto.PrivKey, listenAddr string, storage swap.Storage) (*Orchestrator, error) {
	cmgr, err := connmgr.NewConnManager(20, 60, connmgr.WithGracePeriod(time.Minute))
	if err != nil {
		return nil, fmt.Errorf("node: creating connection manager: %w", err)
	}

	o := &Orchestrator{
		telemetry:      telemetry.NewCache(),
		engine:         swap.New(storage),
		cmds:           make(chan proxy.Command, ChannelsBufSize),
		searchedEvents: make(chan proxy.Searched, ChannelsBufSize),
		connEvents:     make(chan connEvent, ChannelsBufSize),
		idEvents:       make(chan identifyEvent, ChannelsBufSize),
		pingEvents:     make(chan pingEvent, ChannelsBufSize),
		mdnsEvents:     make(chan peer.AddrInfo, ChannelsBufSize),
		sendResults:    make(chan sendResult, ChannelsBufSize),
		pingCancels:    make(map[peer.ID]context.CancelFunc),
	}

	var kadDHT *dht.IpfsDHT
	h, err := libp2p.New(
		libp2p.Identity(keypair),
		libp2p.ListenAddrStrings(listenAddr),
		libp2p.ConnectionManager(cmgr),
		libp2p.UserAgent("quantaswap"),
		libp2p.ProtocolVersion(IdentifyProtocolVersion),
		libp2p.NATPortMap(),
		libp2p.EnableNATService(),
		libp2p.Routing(func(h host.Host) (routing.PeerRouting, error) {
			d, dErr := dht.New(context.Background(), h)
			kadDHT = d
			return d, dErr
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("node: creating libp2p host: %w", err)
	}
	o.host = h
	o.dht = kadDHT
	o.pingSvc = ping.NewPingService(h)

	idSub, err := h.EventBus().Subscribe(new(event.EvtPeerIdentificationCompleted))
	if err != nil {
		return nil, fmt.Errorf("node: subscribing to identify events: %w", err)
	}
	o.idSub = idSub
	go o.pumpIdentifyEvents(idSub)

	mdnsSvc := mdns.NewMdnsService(h, "quantaswap-mdns", mdnsNotifee{out: o.mdnsEvents})
	if err := mdnsSvc.Start(); err != nil {
		return nil, fmt.Errorf("node: starting mdns service: %w", err)
	}
	o.mdnsSvc = mdnsSvc

	h.Network().Notify(&network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			o.connEvents <- connEvent{peer: c.RemotePeer(), connected: true}
		},
		DisconnectedF: func(_ network.Network, c network.Conn) {
			o.connEvents <- connEvent{peer: c.RemotePeer(), connected: false}
		},
	})

	h.SetStreamHandler(SwapProtocolID, o.handleSwapStream)

	return o, nil
}

// pumpIdentifyEvents relays the eventbus's identify-completion events onto
// idEvents so they're only ever handled on the orchestrator's event-loop
// goroutine.
func (o *Orchestrator) pumpIdentifyEvents(sub event.Subscription) {
	for raw := range sub.Out() {
		evt, ok := raw.(event.EvtPeerIdentificationCompleted)
		if !ok {
			continue
		}
		info := identify.Info{
			ID:              evt.Peer,
			ProtocolVersion: evt.ProtocolVersion,
			AgentVersion:    evt.AgentVersion,
			ListenAddrs:     evt.ListenAddrs,
			Protocols:       evt.Protocols,
			ObservedAddr:    evt.ObservedAddr,
		}
		o.idEvents <- identifyEvent{peer: evt.Peer, info: info}
	}
}

// pingLoop pings p repeatedly until ctx is cancelled (typically on
// disconnect), forwarding every successful RTT measurement.
func (o *Orchestrator) pingLoop(ctx context.Context, p peer.ID) {
	for res := range o.pingSvc.Ping(ctx, p) {
		if res.Error != nil {
			continue
		}
		select {
		case o.pingEvents <- pingEvent{peer: p, rtt: res.RTT}:
		default:
			klog.V(3).Infof("node: dropping ping result for %s, buffer full", p)
		}
	}
}

// Proxy returns a Proxy bound to this orchestrator's command and event
// channels.
func (o *Orchestrator) Proxy() *proxy.Proxy {
	return proxy.New(o.cmds, o.searchedEvents)
}

// Host exposes the underlying libp2p host, e.g. for CLI bootstrap to print
// the node's listen addresses.
func (o *Orchestrator) Host() host.Host {
	return o.host
}

// Connect dials addr and waits for the connection to establish.
func (o *Orchestrator) Connect(ctx context.Context, addr peer.AddrInfo) error {
	if err := o.host.Connect(ctx, addr); err != nil {
		return fmt.Errorf("node: dialing %s: %w", addr.ID, err)
	}
	return nil
}

// Run drives the main event loop: a cooperative select over swarm
// connection/identify/ping/mdns events, proxy commands, and the kademlia
// walk timer. It blocks until ctx is cancelled. Per-event handlers log and
// continue on failure; only ctx cancellation ends the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	walkTimer := time.NewTicker(KadWalkDelay)
	defer walkTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return o.shutdown()

		case ev := <-o.connEvents:
			o.handleConnEvent(ctx, ev)

		case ev := <-o.idEvents:
			o.handleIdentifyEvent(ev)

		case ev := <-o.pingEvents:
			o.telemetry.SetRTT(ev.peer, ev.rtt)

		case addr := <-o.mdnsEvents:
			o.handleMDNSPeer(ctx, addr)

		case cmd := <-o.cmds:
			o.handleCommand(ctx, cmd)

		case <-walkTimer.C:
			o.walkDHT(ctx)

		case res := <-o.sendResults:
			o.handleSendResult(res)
		}

		o.drainEngineQueue(ctx)
	}
}

func (o *Orchestrator) shutdown() error {
	for p, cancel := range o.pingCancels {
		cancel()
		delete(o.pingCancels, p)
	}
	if o.idSub != nil {
		if err := o.idSub.Close(); err != nil {
			klog.Warningf("node: closing identify subscription: %s", err)
		}
	}
	if o.mdnsSvc != nil {
		if err := o.mdnsSvc.Close(); err != nil {
			klog.Warningf("node: closing mdns service: %s", err)
		}
	}
	if o.dht != nil {
		if err := o.dht.Close(); err != nil {
			klog.Warningf("node: closing dht: %s", err)
		}
	}
	if err := o.host.Close(); err != nil {
		return fmt.Errorf("node: closing host: %w", err)
	}
	return nil
}

func (o *Orchestrator) handleConnEvent(ctx context.Context, ev connEvent) {
	if ev.connected {
		klog.V(2).Infof("node: peer connected: %s", ev.peer)
		o.engine.OnPeerConnected(ev.peer)
		o.telemetry.Touch(ev.peer)

		pctx, cancel := context.WithCancel(ctx)
		o.pingCancels[ev.peer] = cancel
		go o.pingLoop(pctx, ev.peer)
		return
	}

	klog.V(2).Infof("node: peer disconnected: %s", ev.peer)
	o.engine.OnPeerDisconnected(ev.peer)
	o.telemetry.Remove(ev.peer)
	if cancel, ok := o.pingCancels[ev.peer]; ok {
		cancel()
		delete(o.pingCancels, ev.peer)
	}
}

func (o *Orchestrator) handleIdentifyEvent(ev identifyEvent) {
	o.telemetry.SetIdentify(ev.peer, telemetry.FromIdentify(ev.info))
}

func (o *Orchestrator) handleMDNSPeer(ctx context.Context, addr peer.AddrInfo) {
	o.telemetry.SetMDNS(addr.ID)
	o.host.Peerstore().AddAddrs(addr.ID, addr.Addrs, peerstore.TempAddrTTL)
	if err := o.host.Connect(ctx, addr); err != nil {
		klog.Warningf("node: dialing mdns-discovered peer %s: %s", addr.ID, err)
	}
}

func (o *Orchestrator) handleCommand(ctx context.Context, cmd proxy.Command) {
	switch c := cmd.(type) {
	case proxy.GetConnectionsCmd:
		peers := o.telemetry.Peers()
		snapshot := make(map[peer.ID]telemetry.ConnectionInfo, len(peers))
		for _, p := range peers {
			if info, ok := o.telemetry.Get(p); ok {
				snapshot[p] = *info
			}
		}
		select {
		case c.Reply <- snapshot:
		default:
			klog.Warningf("node: dropping GetConnections reply, receiver not ready")
		}

	case proxy.CreateSearchCmd:
		sid, err := o.engine.Search(c.Searching.Bytes())
		if err != nil {
			klog.Warningf("node: starting search: %s", err)
			close(c.Reply)
			return
		}
		select {
		case c.Reply <- sid:
		default:
			klog.Warningf("node: dropping CreateSearch reply, receiver not ready")
		}

	default:
		klog.Warningf("node: unrecognized proxy command %T", cmd)
	}
}

func (o *Orchestrator) walkDHT(ctx context.Context) {
	if o.dht == nil {
		return
	}
	target, err := randomKadKey()
	if err != nil {
		klog.Warningf("node: drawing random kademlia walk target: %s", err)
		return
	}
	if _, err := o.dht.GetClosestPeers(ctx, target); err != nil {
		klog.V(2).Infof("node: kademlia walk: %s", err)
	}
}

func randomKadKey() (string, error) {
	var buf [20]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return string(buf[:]), nil
}

// drainEngineQueue flushes every pending swap-engine outbound item: kicks
// off each queued request's stream I/O on its own goroutine (so a slow peer
// never blocks Run's select from servicing everything else), and forwards
// each completion event to the proxy's event stream.
func (o *Orchestrator) drainEngineQueue(ctx context.Context) {
	for {
		outbound, ev, ok := o.engine.Poll()
		if !ok {
			return
		}
		if outbound != nil {
			go o.sendOutbound(ctx, *outbound)
			continue
		}
		if ev != nil {
			o.forwardCompletion(*ev)
		}
	}
}

// sendOutbound performs one request's stream I/O off the event-loop
// goroutine, bounded by SendTimeout as well as Run's ctx, and reports the outcome on sendResults rather than touching the engine
// directly.
func (o *Orchestrator) sendOutbound(ctx context.Context, ob swap.Outbound) {
	sctx, cancel := context.WithTimeout(ctx, SendTimeout)
	defer cancel()

	s, err := o.host.NewStream(sctx, ob.Peer, SwapProtocolID)
	if err != nil {
		klog.Warningf("node: opening swap stream to %s: %s", ob.Peer, err)
		return
	}
	defer s.Close()

	if dl, ok := sctx.Deadline(); ok {
		_ = s.SetDeadline(dl)
	}

	if err := wire.WriteRequest(s, ob.Request); err != nil {
		klog.Warningf("node: writing request to %s: %s", ob.Peer, err)
		return
	}

	resp, err := wire.ReadResponse(s)
	o.reportSendResult(sendResult{peer: ob.Peer, resp: resp, err: err})
}

func (o *Orchestrator) reportSendResult(res sendResult) {
	select {
	case o.sendResults <- res:
	default:
		klog.Warningf("node: dropping send result for %s, result buffer full", res.peer)
	}
}

// handleSendResult applies one sendOutbound outcome to the engine. It only
// ever runs on Run's event-loop goroutine, preserving the single-writer
// invariant on engine state even though the I/O that produced it ran
// elsewhere.
func (o *Orchestrator) handleSendResult(res sendResult) {
	if res.err != nil {
		klog.V(2).Infof("node: reading response from %s: %s", res.peer, res.err)
		return
	}
	o.engine.HandleResponse(res.peer, res.resp)
}

func (o *Orchestrator) forwardCompletion(ev swap.Event) {
	id, err := artifact.IDFromBytes(ev.Searching)
	if err != nil {
		klog.Warningf("node: completion for non-artifact search key: %s", err)
		return
	}
	a := artifact.Artifact{ID: id, Data: ev.Item}

	select {
	case o.searchedEvents <- proxy.Searched{SearchID: ev.SearchID, Artifact: a}:
	default:
		klog.Warningf("node: dropping completion event, proxy event buffer full")
	}
}

// handleSwapStream serves one inbound swap request on s, answering from
// storage via the swap engine and replying on the same stream.
func (o *Orchestrator) handleSwapStream(s network.Stream) {
	defer s.Close()

	req, err := wire.ReadRequest(s)
	if err != nil {
		if err != io.EOF {
			klog.V(2).Infof("node: malformed inbound frame from %s: %s", s.Conn().RemotePeer(), err)
		}
		return
	}

	resp, shouldReply := o.engine.HandleRequest(s.Conn().RemotePeer(), req)
	if !shouldReply {
		return
	}
	if err := wire.WriteResponse(s, resp); err != nil {
		klog.Warningf("node: sending response to %s: %s", s.Conn().RemotePeer(), err)
	}
}

// mdnsNotifee forwards mdns.Service peer discoveries onto a channel so
// they're processed on the orchestrator's single event-loop goroutine.
type mdnsNotifee struct {
	out chan peer.AddrInfo
}

func (n mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	n.out <- pi
}
