package node

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/libp2p/go-libp2p/core/peer"
)

// firstSuccess runs fns concurrently (bounded by concurrency, or
// unbounded if <= 0) and returns the first successful result. Every fn
// still runs to completion even after a winner is found, so callers see a
// consistent ErrorSlice if none succeed. Used by DialBootstrapPeers to race
// dials against a bootstrap peer list without waiting on the slowest one.
func firstSuccess[T comparable](
	ctx context.Context,
	concurrency int,
	fns ...func(context.Context) (T, error),
) (T, error) {
	type result struct {
		val T
		err error
	}
	results := make(chan result, len(fns))

	var wg errgroup.Group
	if concurrency > 0 {
		wg.SetLimit(concurrency)
	}
	for _, fn := range fns {
		fn := fn
		wg.Go(func() error {
			if ctx.Err() != nil {
				var empty T
				results <- result{empty, ctx.Err()}
				return nil
			}
			val, err := fn(ctx)
			select {
			case results <- result{val, err}:
			case <-ctx.Done():
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var errs ErrorSlice
	for res := range results {
		if res.err == nil {
			return res.val, nil
		}
		errs = append(errs, res.err)
		if len(errs) == len(fns) {
			break
		}
	}
	return *new(T), errs
}

// ErrorSlice collects every error from a firstSuccess race where no
// candidate succeeded.
type ErrorSlice []error

func (e ErrorSlice) Error() string {
	if len(e) == 0 {
		return "ErrorSlice{}"
	}
	var b strings.Builder
	b.WriteString("ErrorSlice{")
	for i, err := range e {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Quote(err.Error()))
	}
	b.WriteString("}")
	return b.String()
}

// DialBootstrapPeers races concurrent dials against every address in
// peers and returns the first one to connect successfully; the rest are
// left to finish so the caller sees every failure if all of them fail.
// A nil error with a non-empty ID means that peer is now connected.
func (o *Orchestrator) DialBootstrapPeers(ctx context.Context, peers []peer.AddrInfo) (peer.ID, error) {
	if len(peers) == 0 {
		return "", nil
	}

	fns := make([]func(context.Context) (peer.ID, error), 0, len(peers))
	for _, addr := range peers {
		addr := addr
		fns = append(fns, func(ctx context.Context) (peer.ID, error) {
			if err := o.Connect(ctx, addr); err != nil {
				return "", err
			}
			return addr.ID, nil
		})
	}

	return firstSuccess(ctx, 0, fns...)
}
