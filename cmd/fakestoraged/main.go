// Command fakestoraged is a minimal storage-daemon double: just enough of
// the HTTP surface internal/netrpc and internal/storage talk to
// (GET /stats, GET/POST/DELETE /meta) for balancerd's refresh loop and meta
// writer to exercise against something real in an integration test, without
// pulling in an actual storage daemon: a standalone process the control
// plane's HTTP clients can point at.
//
// Configuration is by flag; fakestoraged has no registration handshake to
// perform, so flags cover everything.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
)

// stats is the /stats wire shape, matching clustermodel.storageStats.
type stats struct {
	StorageReads  uint64 `json:"storage_reads"`
	StorageWrites uint64 `json:"storage_writes"`
	ProxyReads    uint64 `json:"proxy_reads"`
	ProxyWrites   uint64 `json:"proxy_writes"`
	LA1           int64  `json:"la1"`
	DU1           *int64 `json:"du1,omitempty"`
	Bavail        uint64 `json:"bavail"`
	Bsize         uint64 `json:"bsize"`
	Blocks        uint64 `json:"blocks"`
}

// metaBlob mirrors storage.metaBlob, the request/response shape
// HTTPMetaClient sends over /meta.
type metaBlob struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// daemon holds one fake storage node's mutable state: counters that
// advance on every /stats poll (simulating ongoing traffic) and the single
// meta blob slot a real daemon would expose at SYMMETRIC_GROUPS_KEY.
type daemon struct {
	mu sync.Mutex

	writesPerTick uint64
	readsPerTick  uint64
	la1           int64
	bavail        uint64
	bsize         uint64
	blocks        uint64

	st   stats
	meta map[string][]byte
}

func newDaemon(writesPerTick, readsPerTick uint64, la1 int64, bavail, bsize, blocks uint64) *daemon {
	return &daemon{
		writesPerTick: writesPerTick,
		readsPerTick:  readsPerTick,
		la1:           la1,
		bavail:        bavail,
		bsize:         bsize,
		blocks:        blocks,
		meta:          make(map[string][]byte),
	}
}

func (d *daemon) handleStats(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	d.st.StorageWrites += d.writesPerTick
	d.st.StorageReads += d.readsPerTick
	d.st.LA1 = d.la1
	d.st.Bavail = d.bavail
	d.st.Bsize = d.bsize
	d.st.Blocks = d.blocks
	out := d.st
	d.mu.Unlock()

	writeJSON(w, out)
}

func (d *daemon) handleMeta(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		key := r.URL.Query().Get("key")
		d.mu.Lock()
		v, ok := d.meta[key]
		d.mu.Unlock()
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, metaBlob{Key: key, Value: v})

	case http.MethodPost:
		var req metaBlob
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		d.mu.Lock()
		d.meta[req.Key] = req.Value
		d.mu.Unlock()
		w.WriteHeader(http.StatusOK)

	case http.MethodDelete:
		key := r.URL.Query().Get("key")
		d.mu.Lock()
		delete(d.meta, key)
		d.mu.Unlock()
		w.WriteHeader(http.StatusOK)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	addr := flag.String("addr", ":9001", "listen address")
	writesPerTick := flag.Uint64("writes-per-tick", 50, "storage_writes added on every /stats poll")
	readsPerTick := flag.Uint64("reads-per-tick", 100, "storage_reads added on every /stats poll")
	la1 := flag.Int64("la1", 100, "reported la1 (x100 scale; 100 = load average 1.0)")
	bavail := flag.Uint64("bavail", 1<<30, "reported bavail blocks")
	bsize := flag.Uint64("bsize", 4096, "reported filesystem block size")
	blocks := flag.Uint64("blocks", 1<<32, "reported total blocks")
	flag.Parse()

	d := newDaemon(*writesPerTick, *readsPerTick, *la1, *bavail, *bsize, *blocks)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/stats", d.handleStats)
	mux.HandleFunc("/meta", d.handleMeta)

	fmt.Fprintf(os.Stderr, "fakestoraged listening on %s\n", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "fakestoraged: %v\n", err)
		os.Exit(1)
	}
}
