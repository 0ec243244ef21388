// Package proxy implements the service proxy: a thread-safe command/event
// bridge that lets synchronous callers (an HTTP handler, a CLI command)
// issue commands into the orchestrator's event loop and await replies with
// bounded timeouts.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/sufferpurrityxd/quantaswap/internal/artifact"
	"github.com/sufferpurrityxd/quantaswap/internal/search"
	"github.com/sufferpurrityxd/quantaswap/internal/telemetry"
)

// ReplyTimeout bounds how long a synchronous proxy call waits for the
// orchestrator's reply before surfacing ErrRecvTimeout.
const ReplyTimeout = 10 * time.Second

var (
	// ErrRecvTimeout is returned when ReplyTimeout elapses before a reply
	// arrives.
	ErrRecvTimeout = errors.New("proxy: timed out waiting for orchestrator reply")
	// ErrRecv is returned when the reply channel closes without a value;
	// the orchestrator does this when it cannot start a requested search.
	ErrRecv = errors.New("proxy: orchestrator closed its reply channel")
	// ErrSend is returned when the command channel does not accept the
	// command before ReplyTimeout elapses or the caller's ctx ends.
	ErrSend = errors.New("proxy: could not send command to orchestrator")
)

// GetConnectionsCmd asks the orchestrator for its current per-peer
// telemetry snapshot.
type GetConnectionsCmd struct {
	Reply chan map[peer.ID]telemetry.ConnectionInfo
}

// CreateSearchCmd asks the orchestrator to start a new swap search for an
// artifact identifier.
type CreateSearchCmd struct {
	Searching artifact.ID
	Reply     chan search.ID
}

// Command is any orchestrator-bound proxy command.
type Command interface {
	isCommand()
}

func (GetConnectionsCmd) isCommand() {}
func (CreateSearchCmd) isCommand()   {}

// Searched is the one event-origin stream the proxy exposes: a search this
// proxy initiated has completed.
type Searched struct {
	SearchID search.ID
	Artifact artifact.Artifact
}

// Proxy is a thread-safe command/event bridge. A Proxy holds one sender of
// orchestrator-bound commands and one receiver of engine-originated events.
type Proxy struct {
	cmds   chan<- Command
	events <-chan Searched
}

// New wraps the orchestrator-facing command and event channels. The
// orchestrator owns the other end of both.
func New(cmds chan<- Command, events <-chan Searched) *Proxy {
	return &Proxy{cmds: cmds, events: events}
}

// GetConnections requests the orchestrator's current connection telemetry,
// waiting up to ReplyTimeout for the reply.
func (p *Proxy) GetConnections(ctx context.Context) (map[peer.ID]telemetry.ConnectionInfo, error) {
	reply := make(chan map[peer.ID]telemetry.ConnectionInfo, 1)
	if err := p.send(ctx, GetConnectionsCmd{Reply: reply}); err != nil {
		return nil, err
	}
	return awaitReply(ctx, reply)
}

// CreateSearch asks the orchestrator to start a swap search for searching,
// waiting up to ReplyTimeout for the assigned search identifier.
func (p *Proxy) CreateSearch(ctx context.Context, searching artifact.ID) (search.ID, error) {
	reply := make(chan search.ID, 1)
	if err := p.send(ctx, CreateSearchCmd{Searching: searching, Reply: reply}); err != nil {
		return search.ID{}, err
	}
	return awaitReply(ctx, reply)
}

// Events returns the asynchronous stream of completed searches.
func (p *Proxy) Events() <-chan Searched {
	return p.events
}

func (p *Proxy) send(ctx context.Context, cmd Command) error {
	cctx, cancel := context.WithTimeout(ctx, ReplyTimeout)
	defer cancel()

	select {
	case p.cmds <- cmd:
		return nil
	case <-cctx.Done():
		return fmt.Errorf("%w: %s", ErrSend, cctx.Err())
	}
}

func awaitReply[T any](ctx context.Context, reply <-chan T) (T, error) {
	var zero T

	cctx, cancel := context.WithTimeout(ctx, ReplyTimeout)
	defer cancel()

	select {
	case v, ok := <-reply:
		if !ok {
			return zero, ErrRecv
		}
		return v, nil
	case <-cctx.Done():
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return zero, ErrRecvTimeout
		}
		return zero, fmt.Errorf("proxy: %w", cctx.Err())
	}
}
