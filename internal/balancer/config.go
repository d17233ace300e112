package balancer

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cocaineapp/balancer/internal/weight"
)

// Config is balancerd's on-disk YAML configuration.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	Raft RaftConfig `yaml:"raft"`

	Topology struct {
		Levels []string `yaml:"levels"`
	} `yaml:"topology"`

	// InventoryFile is the path of the inventory snapshot loaded at startup;
	// fresh snapshots can also be pushed over POST /v1/inventory at runtime.
	InventoryFile string `yaml:"inventory_file"`

	RefreshInterval time.Duration `yaml:"refresh_interval"`

	BalancerConfig struct {
		MinUnits                      int     `yaml:"min_units"`
		TotalSpaceDiffTolerance       float64 `yaml:"total_space_diff_tolerance"`
		ForbiddenDCSharingAmongGroups bool    `yaml:"forbidden_dc_sharing_among_groups"`
	} `yaml:"balancer_config"`

	Elliptics struct {
		WaitTimeout time.Duration `yaml:"wait_timeout"`
	} `yaml:"elliptics"`

	Weight weight.Config `yaml:"weight"`

	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
}

// RaftConfig configures this replica's participation in the cluster-change
// lock (internal/clusterlock).
type RaftConfig struct {
	NodeID   string `yaml:"node_id"`
	BindAddr string `yaml:"bind_addr"`
	DataDir  string `yaml:"data_dir"`
}

// DefaultConfig returns a Config with every default filled in, the way
// DefaultConfig() in internal/weight does for its own knobs.
func DefaultConfig() Config {
	cfg := Config{
		HTTPAddr:        ":8080",
		MetricsAddr:     ":9090",
		RefreshInterval: 5 * time.Second,
		Weight:          weight.DefaultConfig(),
	}
	cfg.Topology.Levels = []string{"dc"}
	cfg.BalancerConfig.MinUnits = 1
	cfg.BalancerConfig.TotalSpaceDiffTolerance = 0.05
	cfg.Elliptics.WaitTimeout = 5 * time.Second
	cfg.Log.Level = "info"
	cfg.Raft.NodeID = "balancer-1"
	cfg.Raft.BindAddr = "127.0.0.1:7000"
	cfg.Raft.DataDir = "./data"
	return cfg
}

// LoadConfig reads and parses a YAML config file, starting from
// DefaultConfig so an operator only needs to specify overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("balancer: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("balancer: parse config %s: %w", path, err)
	}
	return cfg, nil
}
