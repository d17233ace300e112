package balancer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cocaineapp/balancer/internal/clustermodel"
	"github.com/cocaineapp/balancer/internal/errs"
	"github.com/cocaineapp/balancer/internal/topology"
)

// Inventory is one snapshot of the external inventory feed: the hosts
// that make up the fault-domain hierarchy and the groups living on
// them. balancerd loads it from a YAML file at startup and accepts fresh
// snapshots over POST /v1/inventory; both paths end in ApplyInventory.
type Inventory struct {
	Hosts  []InventoryHost  `yaml:"hosts" json:"hosts"`
	Groups []InventoryGroup `yaml:"groups" json:"groups"`
}

// InventoryHost is one host record: its unique full path, its coordinate
// value at each accountable level, and the filesystems physically on it.
type InventoryHost struct {
	FullPath string            `yaml:"full_path" json:"full_path"`
	Levels   map[string]string `yaml:"levels" json:"levels"`
	Fsids    []string          `yaml:"fsids" json:"fsids"`
}

// InventoryGroup is one group record with its node backends.
type InventoryGroup struct {
	ID       int                `yaml:"id" json:"id"`
	Backends []InventoryBackend `yaml:"backends" json:"backends"`
}

// InventoryBackend locates one backend: the storage daemon's base URL and
// the (host, fsid) pair the backend's data sits on.
type InventoryBackend struct {
	Node string `yaml:"node" json:"node"`
	Host string `yaml:"host" json:"host"`
	Fsid string `yaml:"fsid" json:"fsid"`
}

// LoadInventory reads an inventory snapshot from a YAML file.
func LoadInventory(path string) (Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Inventory{}, fmt.Errorf("balancer: read inventory %s: %w", path, err)
	}
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return Inventory{}, fmt.Errorf("balancer: parse inventory %s: %w", path, err)
	}
	return inv, nil
}

// ApplyInventory ingests one inventory snapshot: it registers every backend
// node so the refresh loop starts polling it, creates groups first seen in
// this snapshot as uncoupled INIT groups, updates the backend lists of
// groups already known (their status and couple membership are owned by the
// lifecycle layer, not the feed), and rebuilds the topology tree.
func (s *Service) ApplyInventory(inv Inventory) error {
	hostKnown := make(map[string]bool, len(inv.Hosts))
	hosts := make([]topology.HostInfo, 0, len(inv.Hosts))
	for _, h := range inv.Hosts {
		if h.FullPath == "" {
			return errs.Wrap(errs.BadRequest, "balancer: inventory host with empty full_path")
		}
		hostKnown[h.FullPath] = true
		hosts = append(hosts, topology.HostInfo{FullPath: h.FullPath, Levels: h.Levels, Fsids: h.Fsids})
	}

	for _, ig := range inv.Groups {
		backends := make([]clustermodel.Backend, 0, len(ig.Backends))
		for _, b := range ig.Backends {
			if !hostKnown[b.Host] {
				return errs.Wrap(errs.BadRequest, "balancer: group %d backend references unknown host %q", ig.ID, b.Host)
			}
			s.state.Node(b.Node)
			backends = append(backends, clustermodel.Backend{
				NodeAddr:     b.Node,
				HostFullPath: b.Host,
				Fsid:         b.Fsid,
				OK:           true,
			})
		}

		if existing, err := s.state.Group(ig.ID); err == nil {
			existing.Backends = backends
			continue
		}
		s.state.PutGroup(&clustermodel.Group{
			ID:       ig.ID,
			Status:   clustermodel.GroupInit,
			Backends: backends,
		})
	}

	s.RebuildTopology(topology.Build(s.topoLevels, hosts))
	s.log.Info().Int("hosts", len(hosts)).Int("groups", len(inv.Groups)).Msg("inventory applied")
	return nil
}
