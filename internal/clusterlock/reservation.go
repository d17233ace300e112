package clusterlock

import (
	"encoding/json"
	"time"

	"github.com/cocaineapp/balancer/internal/errs"
)

// ReserveGroupIDs implements get_next_group_number: it applies a
// reserveCmd through raft so the max-group high-water mark advances exactly
// once per call even if two replicas race to call it, then returns the n
// consecutive ids the caller reserved.
func (c *Cluster) ReserveGroupIDs(n int) ([]int, error) {
	if n < 0 || n > 100 {
		return nil, errs.Wrap(errs.BadRequest, "clusterlock: n must be in [0, 100], got %d", n)
	}
	if n == 0 {
		return []int{}, nil
	}

	data, err := json.Marshal(reserveCmd{N: n})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "clusterlock: encode reservation: %v", err)
	}

	future := c.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return nil, errs.Wrap(errs.Internal, "clusterlock: apply reservation: %v", err)
	}

	result, ok := future.Response().(reserveResult)
	if !ok {
		return nil, errs.Wrap(errs.Internal, "clusterlock: unexpected FSM response type")
	}
	if result.Err != nil {
		return nil, errs.Wrap(errs.Internal, "clusterlock: %v", result.Err)
	}

	ids := make([]int, n)
	for i := 0; i < n; i++ {
		ids[i] = result.Start + i + 1
	}
	return ids, nil
}
