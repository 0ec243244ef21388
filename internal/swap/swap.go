// Package swap implements the two-phase query/query-want swap protocol
// engine: broadcasting existence queries across every connected peer,
// following up with a fetch against each affirmative responder, and
// fanning the first result back in as a completion event.
//
// An Engine's state is only ever safe to touch from a single goroutine —
// the network orchestrator's event loop. It performs no I/O and no
// synchronization of its own.
package swap

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"k8s.io/klog/v2"

	"github.com/sufferpurrityxd/quantaswap/internal/search"
	"github.com/sufferpurrityxd/quantaswap/internal/wire"
)

// Storage is the read-only key-value contract the engine consults when
// answering inbound requests.
type Storage interface {
	// Exists reports whether key is present.
	Exists(key []byte) bool
	// Get returns the value for key, if present.
	Get(key []byte) ([]byte, bool)
}

// Event is emitted once a locally initiated search completes: the querying
// peer received the item it was searching for.
type Event struct {
	Peer      peer.ID
	SearchID  search.ID
	Searching []byte
	Item      []byte
}

// Outbound is a Query or QueryWant request the orchestrator must send to a
// specific peer over the wire codec.
type Outbound struct {
	Peer    peer.ID
	Request wire.Request
}

// outItem is a single entry in the engine's out_queue: either an outbound
// request or a completion event, preserving emission order like the
// reference implementation's combined poll queue.
type outItem struct {
	outbound *Outbound
	event    *Event
}

// Engine is the swap protocol state machine. Zero value is not usable; use
// New.
type Engine struct {
	storage Storage

	connections map[peer.ID]struct{}
	queries     map[search.ID][]byte
	sentTo      map[search.ID]map[peer.ID]struct{}

	outQueue []outItem
}

// New constructs an Engine backed by storage.
func New(storage Storage) *Engine {
	return &Engine{
		storage:     storage,
		connections: make(map[peer.ID]struct{}),
		queries:     make(map[search.ID][]byte),
		sentTo:      make(map[search.ID]map[peer.ID]struct{}),
	}
}

// Search draws a fresh search identifier, records (search_id → searching),
// and emits a Query to every currently connected peer. It returns
// immediately; completion is reported asynchronously via Poll.
func (e *Engine) Search(searching []byte) (search.ID, error) {
	sid, err := search.Random()
	if err != nil {
		return search.ID{}, fmt.Errorf("swap: drawing search id: %w", err)
	}

	klog.V(2).Infof("swap: started new search with id=%s", sid)
	e.queries[sid] = searching

	for p := range e.connections {
		e.sendQuery(p, sid, searching)
	}

	return sid, nil
}

// OnPeerConnected records p as connected and re-issues every active local
// query to it, so a peer joining mid-search still participates. Re-emits
// are deduplicated per (search_id, peer) via sentTo.
func (e *Engine) OnPeerConnected(p peer.ID) {
	for sid, searching := range e.queries {
		e.sendQuery(p, sid, searching)
	}
	e.connections[p] = struct{}{}
}

// OnPeerDisconnected forgets p. In-flight queries addressed to it are left
// alone; they simply never receive a response.
func (e *Engine) OnPeerDisconnected(p peer.ID) {
	delete(e.connections, p)
}

// sendQuery enqueues a Query{sid, searching} to p unless already sent.
func (e *Engine) sendQuery(p peer.ID, sid search.ID, searching []byte) {
	sent, ok := e.sentTo[sid]
	if !ok {
		sent = make(map[peer.ID]struct{})
		e.sentTo[sid] = sent
	}
	if _, already := sent[p]; already {
		return
	}
	sent[p] = struct{}{}

	e.outQueue = append(e.outQueue, outItem{outbound: &Outbound{
		Peer: p,
		Request: wire.Request{
			Kind:      wire.KindQuery,
			SearchID:  sid,
			Searching: searching,
		},
	}})
}

// HandleRequest answers an inbound Query or QueryWant against storage. It
// returns the response to send back on the inbound stream's response
// channel, and whether any response should be sent at all — QueryWant
// against a missing key yields no response, matching the reference
// behaviour of silently dropping the request.
func (e *Engine) HandleRequest(from peer.ID, req wire.Request) (wire.Response, bool) {
	switch req.Kind {
	case wire.KindQuery:
		exists := e.storage.Exists(req.Searching)
		return wire.Response{
			Kind:     wire.KindQueryResp,
			SearchID: req.SearchID,
			Exists:   exists,
		}, true

	case wire.KindQueryWant:
		item, ok := e.storage.Get(req.Searching)
		if !ok {
			return wire.Response{}, false
		}
		return wire.Response{
			Kind:     wire.KindQueryWantResp,
			SearchID: req.SearchID,
			Item:     item,
		}, true

	default:
		klog.Warningf("swap: request from %s with unrecognized kind %d", from, req.Kind)
		return wire.Response{}, false
	}
}

// HandleResponse processes an inbound QueryResp or QueryWantResp. Every
// affirmative QueryResp triggers its own follow-up QueryWant, so several
// peers may be asked for the item concurrently; whichever QueryWantResp
// arrives first removes the queries entry and wins — later QueryWantResp
// frames for the same search_id find no entry and are dropped.
func (e *Engine) HandleResponse(from peer.ID, resp wire.Response) {
	switch resp.Kind {
	case wire.KindQueryResp:
		if !resp.Exists {
			return
		}
		searching, ok := e.queries[resp.SearchID]
		if !ok {
			return
		}
		e.outQueue = append(e.outQueue, outItem{outbound: &Outbound{
			Peer: from,
			Request: wire.Request{
				Kind:      wire.KindQueryWant,
				SearchID:  resp.SearchID,
				Searching: searching,
			},
		}})

	case wire.KindQueryWantResp:
		searching, ok := e.queries[resp.SearchID]
		if !ok {
			return
		}
		delete(e.queries, resp.SearchID)

		e.outQueue = append(e.outQueue, outItem{event: &Event{
			Peer:      from,
			SearchID:  resp.SearchID,
			Searching: searching,
			Item:      resp.Item,
		}})

	default:
		klog.Warningf("swap: response from %s with unrecognized kind %d", from, resp.Kind)
	}
}

// Poll drains the single head item from the out queue, in the order it was
// enqueued, reporting whether it is an Outbound request or a completion
// Event. ok is false once the queue is empty.
func (e *Engine) Poll() (outbound *Outbound, event *Event, ok bool) {
	if len(e.outQueue) == 0 {
		return nil, nil, false
	}
	item := e.outQueue[0]
	e.outQueue = e.outQueue[1:]
	return item.outbound, item.event, true
}

// Connections returns the set of currently connected peers.
func (e *Engine) Connections() []peer.ID {
	out := make([]peer.ID, 0, len(e.connections))
	for p := range e.connections {
		out = append(out, p)
	}
	return out
}
