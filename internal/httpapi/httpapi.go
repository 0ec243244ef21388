// Package httpapi exposes the orchestrator's proxy over a thin JSON HTTP
// surface: POST /v1/search starts a swap search, GET /v1/connections
// reports current peer telemetry.
package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"k8s.io/klog/v2"

	"github.com/sufferpurrityxd/quantaswap/internal/artifact"
	"github.com/sufferpurrityxd/quantaswap/internal/proxy"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server wraps a proxy.Proxy with a net/http handler.
type Server struct {
	proxy *proxy.Proxy
	mux   *http.ServeMux
}

// NewServer builds a Server bound to p. The returned *Server implements
// http.Handler directly.
func NewServer(p *proxy.Proxy) *Server {
	s := &Server{proxy: p, mux: http.NewServeMux()}
	s.mux.HandleFunc("/v1/search", s.handleSearch)
	s.mux.HandleFunc("/v1/connections", s.handleConnections)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	w.Header().Set("X-Request-Id", requestID)
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	klog.V(3).Infof("httpapi: %s %s request_id=%s took=%s", r.Method, r.URL.Path, requestID, time.Since(start))
}

type searchRequest struct {
	ArtifactID string `json:"artifact_id"`
}

type searchResponse struct {
	SearchID string `json:"search_id"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	id, err := artifact.ParseBase58(req.ArtifactID)
	if err != nil {
		http.Error(w, "invalid artifact_id: "+err.Error(), http.StatusBadRequest)
		return
	}

	sid, err := s.proxy.CreateSearch(r.Context(), id)
	if err != nil {
		writeProxyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{SearchID: sid.String()})
}

type connectionEntry struct {
	Peer   string `json:"peer"`
	IsMDNS bool   `json:"is_mdns"`
	RTTMs  *int64 `json:"rtt_ms,omitempty"`
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conns, err := s.proxy.GetConnections(r.Context())
	if err != nil {
		writeProxyError(w, err)
		return
	}

	out := make([]connectionEntry, 0, len(conns))
	for p, info := range conns {
		entry := connectionEntry{Peer: p.String(), IsMDNS: info.IsMDNS}
		if info.RTT != nil {
			ms := info.RTT.Milliseconds()
			entry.RTTMs = &ms
		}
		out = append(out, entry)
	}

	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Warningf("httpapi: encoding response: %s", err)
	}
}

func writeProxyError(w http.ResponseWriter, err error) {
	klog.Warningf("httpapi: proxy call failed: %s", err)
	http.Error(w, "upstream orchestrator unavailable", http.StatusServiceUnavailable)
}
