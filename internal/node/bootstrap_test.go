package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFirstSuccessReturnsFastestWinner(t *testing.T) {
	slow := func(context.Context) (int, error) {
		time.Sleep(50 * time.Millisecond)
		return 1, nil
	}
	fast := func(context.Context) (int, error) {
		return 2, nil
	}

	val, err := firstSuccess(context.Background(), 0, slow, fast)
	require.NoError(t, err)
	require.Equal(t, 2, val)
}

func TestFirstSuccessSkipsFailuresBeforeSuccess(t *testing.T) {
	fails := func(context.Context) (int, error) {
		return -1, errors.New("dial refused")
	}
	succeeds := func(context.Context) (int, error) {
		return 7, nil
	}

	val, err := firstSuccess(context.Background(), 0, fails, succeeds, fails)
	require.NoError(t, err)
	require.Equal(t, 7, val)
}

func TestFirstSuccessReturnsErrorSliceWhenAllFail(t *testing.T) {
	mkErr := func(msg string) func(context.Context) (int, error) {
		return func(context.Context) (int, error) { return 0, errors.New(msg) }
	}

	_, err := firstSuccess(context.Background(), 0, mkErr("a"), mkErr("b"), mkErr("c"))
	require.Error(t, err)

	var slice ErrorSlice
	require.ErrorAs(t, err, &slice)
	require.Len(t, slice, 3)
}

func TestDialBootstrapPeersEmptyListIsNoop(t *testing.T) {
	o := &Orchestrator{}
	id, err := o.DialBootstrapPeers(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, id)
}
