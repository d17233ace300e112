package clustermodel

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cocaineapp/balancer/internal/netrpc"
)

// SampleFetcher retrieves a fresh counter Sample for a node address. Swapping
// this out is how tests substitute a fake storage daemon for real HTTP calls.
type SampleFetcher func(ctx context.Context, addr string) (Sample, error)

// Refresher periodically polls every known node for a fresh counter sample
// and feeds it into the matching NodeState. A failed poll does not remove
// the node or fire a callback: a node that misses a tick simply keeps its
// last-derived rates until the next successful poll ("no sample yet" is the
// only state that yields a forced zero).
type Refresher struct {
	state    *ClusterState
	fetch    SampleFetcher
	interval time.Duration
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefresher builds a Refresher. Pass HTTPSampleFetcher(timeout) for fetch
// in production, or a stub in tests.
func NewRefresher(state *ClusterState, fetch SampleFetcher, interval time.Duration, logger zerolog.Logger) *Refresher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		state:    state,
		fetch:    fetch,
		interval: interval,
		log:      logger.With().Str("component", "clustermodel.refresher").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the poll loop until Stop is called or ctx is canceled. It
// blocks, so callers invoke it with `go r.Start(ctx)`.
func (r *Refresher) Start(ctx context.Context) {
	r.wg.Add(1)
	defer r.wg.Done()

	if ctx == nil {
		ctx = r.ctx
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.pollAll(ctx)

	for {
		select {
		case <-ticker.C:
			r.pollAll(ctx)
		case <-ctx.Done():
			r.log.Info().Msg("refresh loop stopping: context canceled")
			return
		case <-r.ctx.Done():
			r.log.Info().Msg("refresh loop stopping: Stop called")
			return
		}
	}
}

// Stop cancels the poll loop and waits for the current tick to finish.
func (r *Refresher) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Refresher) pollAll(ctx context.Context) {
	addrs := r.state.Nodes()

	var wg sync.WaitGroup
	for _, addr := range addrs {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			r.pollOne(ctx, addr)
		}(addr)
	}
	wg.Wait()
}

func (r *Refresher) pollOne(ctx context.Context, addr string) {
	sample, err := r.fetch(ctx, addr)
	if err != nil {
		r.log.Warn().Err(err).Str("node", addr).Msg("sample fetch failed, keeping last rates")
		return
	}

	ns := r.state.Node(addr)
	if err := ns.Observe(time.Now(), sample); err != nil {
		r.log.Warn().Err(err).Str("node", addr).Msg("sample rejected")
	}
}

// storageStats is the wire shape a storage daemon's /stats endpoint returns.
type storageStats struct {
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

// HTTPSampleFetcher builds a SampleFetcher that pulls /stats from a storage
// daemon over HTTP via internal/netrpc: the balancer consumes counters
// through the daemon's HTTP surface, never by touching a node's disk or
// process table directly. timeout bounds each poll (the configured
// wait_timeout); zero means no per-call deadline.
func HTTPSampleFetcher(timeout time.Duration) SampleFetcher {
	return func(ctx context.Context, addr string) (Sample, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = netrpc.WithTimeout(ctx, timeout)
			defer cancel()
		}
		var stats storageStats
		if err := netrpc.GetJSON(ctx, addr+"/stats", &stats); err != nil {
			return Sample{}, err
		}

		sample := Sample{
			StorageReads:  stats.StorageReads,
			StorageWrites: stats.StorageWrites,
			ProxyReads:    stats.ProxyReads,
			ProxyWrites:   stats.ProxyWrites,
			LA1:           stats.LA1,
			Bavail:        stats.Bavail,
			Bsize:         stats.Bsize,
			Blocks:        stats.Blocks,
		}
		if stats.DU1 != nil {
			sample.HasDU1 = true
			sample.DU1 = *stats.DU1
		}
		return sample, nil
	}
}
