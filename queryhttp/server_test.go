package queryhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/monicindex/monicindex/core/types"
	"github.com/monicindex/monicindex/query"
)

type fakeEngine struct {
	forward map[uint64]types.Address
	reverse map[types.Address]uint64
}

func (f *fakeEngine) LookupByIndex(index uint64) (types.Address, bool, error) {
	a, ok := f.forward[index]
	return a, ok, nil
}
func (f *fakeEngine) LookupByAddress(addr types.Address) (uint64, bool, error) {
	i, ok := f.reverse[addr]
	return i, ok, nil
}
func (f *fakeEngine) Proof(index uint64) ([][]byte, error) { return [][]byte{{0xaa, 0xbb}}, nil }
func (f *fakeEngine) TrieRoot() types.Hash                 { return types.Hash{0x01} }

func newTestServer() (*Server, *fakeEngine) {
	f := &fakeEngine{forward: map[uint64]types.Address{}, reverse: map[types.Address]uint64{}}
	var a types.Address
	a[19] = 0x42
	f.forward[262144] = a
	f.reverse[a] = 262144
	return NewServer(query.New(f), nil), f
}

func TestHandleByIndexFound(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/index/262144", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got resultJSON
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Index != "262144" {
		t.Fatalf("Index = %q, want %q", got.Index, "262144")
	}
}

func TestHandleByIndexMutableRangeIsNotFound(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/index/10", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleByAddressBadFormat(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/address/not-hex", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleProof(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/proof/262144", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got proofJSON
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Nodes) != 1 {
		t.Fatalf("len(Nodes) = %d, want 1", len(got.Nodes))
	}
}
