// Package queryhttp is a minimal JSON HTTP surface over the query
// adapter, bound to the configured bind_addr. It intentionally mirrors the
// plain net/http + http.ServeMux framing the node's own inbound RPC
// server uses, rather than pulling in a router dependency.
package queryhttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/monicindex/monicindex/core/types"
	"github.com/monicindex/monicindex/ierrors"
	"github.com/monicindex/monicindex/metrics"
	"github.com/monicindex/monicindex/query"
)

// Server serves the query adapter's operations as JSON over HTTP.
type Server struct {
	adapter *query.Adapter
	mux     *http.ServeMux
	metrics *metrics.Metrics
}

// NewServer builds a Server around adapter. m may be nil to disable
// per-method request/error counters.
func NewServer(adapter *query.Adapter, m *metrics.Metrics) *Server {
	s := &Server{adapter: adapter, mux: http.NewServeMux(), metrics: m}
	s.mux.HandleFunc("/index/", s.handleByIndex)
	s.mux.HandleFunc("/address/", s.handleByAddress)
	s.mux.HandleFunc("/monic/", s.handleByMonic)
	s.mux.HandleFunc("/proof/", s.handleProof)
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler { return s.mux }

// resultJSON is the {index, address, monic} wire shape. Index is a
// decimal string, not a JSON number, which would silently lose
// precision for clients that parse JSON numbers as float64.
type resultJSON struct {
	Index   string `json:"index"`
	Address string `json:"address"`
	Monic   string `json:"monic"`
}

func toResultJSON(r query.Result) resultJSON {
	return resultJSON{Index: strconv.FormatUint(r.Index, 10), Address: r.Address.Hex(), Monic: r.Monic}
}

type proofJSON struct {
	Index uint64   `json:"index"`
	Root  string   `json:"root"`
	Nodes []string `json:"nodes"`
}

func toProofJSON(p query.Proof) proofJSON {
	nodes := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		nodes[i] = "0x" + hexEncode(n)
	}
	return proofJSON{Index: p.Index, Root: p.Root.Hex(), Nodes: nodes}
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0xf]
	}
	return string(out)
}

func (s *Server) handleByIndex(w http.ResponseWriter, r *http.Request) {
	s.track("by_index")
	index, err := parseIndex(strings.TrimPrefix(r.URL.Path, "/index/"))
	if err != nil {
		s.trackError("by_index", ierrors.KindQuery)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.adapter.ByIndex(index)
	if err != nil {
		s.trackError("by_index", ierrors.KindOf(err))
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultJSON(res))
}

func (s *Server) handleByAddress(w http.ResponseWriter, r *http.Request) {
	s.track("by_address")
	raw := strings.TrimPrefix(r.URL.Path, "/address/")
	if !isHexAddress(raw) {
		s.trackError("by_address", ierrors.KindQuery)
		writeError(w, http.StatusBadRequest, errBadAddress)
		return
	}
	res, err := s.adapter.ByAddress(types.HexToAddress(raw))
	if err != nil {
		s.trackError("by_address", ierrors.KindOf(err))
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultJSON(res))
}

func (s *Server) handleByMonic(w http.ResponseWriter, r *http.Request) {
	s.track("by_monic")
	monic := strings.ReplaceAll(strings.TrimPrefix(r.URL.Path, "/monic/"), "-", " ")
	res, err := s.adapter.ByMonic(monic)
	if err != nil {
		s.trackError("by_monic", ierrors.KindOf(err))
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultJSON(res))
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	s.track("proof")
	index, err := parseIndex(strings.TrimPrefix(r.URL.Path, "/proof/"))
	if err != nil {
		s.trackError("proof", ierrors.KindQuery)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := s.adapter.Proof(index)
	if err != nil {
		s.trackError("proof", ierrors.KindOf(err))
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProofJSON(p))
}

func (s *Server) track(method string) {
	if s.metrics != nil {
		s.metrics.QueryRequests.WithLabelValues(method).Inc()
	}
}

func (s *Server) trackError(method string, kind ierrors.Kind) {
	if s.metrics != nil {
		s.metrics.QueryErrors.WithLabelValues(method, kind.String()).Inc()
	}
}

var errBadAddress = errors.New("queryhttp: not a 20-byte hex address")

func parseIndex(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func isHexAddress(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorJSON struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorJSON{Error: err.Error()})
}

// writeQueryError maps an ierrors.Kind to an HTTP status: KindQuery
// errors are the client's fault (400/404), anything else is a 500.
func writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ierrors.ErrNotFound), errors.Is(err, ierrors.ErrUnknown):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ierrors.ErrInvalidMonic), errors.Is(err, ierrors.ErrInvalidChecksum):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
