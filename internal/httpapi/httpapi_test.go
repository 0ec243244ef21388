package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/sufferpurrityxd/quantaswap/internal/artifact"
	"github.com/sufferpurrityxd/quantaswap/internal/proxy"
	"github.com/sufferpurrityxd/quantaswap/internal/search"
	"github.com/sufferpurrityxd/quantaswap/internal/telemetry"
)

func TestHandleSearchRoundTrip(t *testing.T) {
	cmds := make(chan proxy.Command, 1)
	events := make(chan proxy.Searched, 1)
	p := proxy.New(cmds, events)
	srv := NewServer(p)

	target := artifact.Hash([]byte("payload"))
	sid, err := search.Random()
	require.NoError(t, err)

	go func() {
		cmd := (<-cmds).(proxy.CreateSearchCmd)
		require.Equal(t, target, cmd.Searching)
		cmd.Reply <- sid
	}()

	body := `{"artifact_id":"` + target.ToBase58() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), sid.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandleSearchRejectsBadArtifactID(t *testing.T) {
	cmds := make(chan proxy.Command, 1)
	events := make(chan proxy.Searched, 1)
	srv := NewServer(proxy.New(cmds, events))

	body := `{"artifact_id":"not-valid-base58!!"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSearchRejectsWrongMethod(t *testing.T) {
	cmds := make(chan proxy.Command, 1)
	events := make(chan proxy.Searched, 1)
	srv := NewServer(proxy.New(cmds, events))

	req := httptest.NewRequest(http.MethodGet, "/v1/search", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleConnectionsRoundTrip(t *testing.T) {
	cmds := make(chan proxy.Command, 1)
	events := make(chan proxy.Searched, 1)
	p := proxy.New(cmds, events)
	srv := NewServer(p)

	go func() {
		cmd := (<-cmds).(proxy.GetConnectionsCmd)
		cmd.Reply <- map[peer.ID]telemetry.ConnectionInfo{}
	}()

	req := httptest.NewRequest(http.MethodGet, "/v1/connections", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "[]")
}
