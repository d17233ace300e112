// Command balancerd is the cluster-management control plane's entrypoint:
// it wires internal/clustermodel, internal/topology, internal/weight,
// internal/placement, internal/lifecycle, internal/namespace, and
// internal/clusterlock into an internal/balancer.Service and serves it over
// HTTP behind a cobra CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cocaineapp/balancer/internal/audit"
	"github.com/cocaineapp/balancer/internal/balancer"
	"github.com/cocaineapp/balancer/internal/clusterlock"
	"github.com/cocaineapp/balancer/internal/clustermodel"
	"github.com/cocaineapp/balancer/internal/lifecycle"
	"github.com/cocaineapp/balancer/internal/storage"
)

var (
	// Version is set via -ldflags at release build time.
	Version = "dev"

	configPath string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "balancerd",
		Short:   "Cluster-management control plane for a replicated group-addressed object store",
		Version: Version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file (defaults built in if unset)")

	root.AddCommand(serveCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the balancer daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func initLogger(cfg balancer.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if cfg.Log.JSON {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return logger
}

func serve(ctx context.Context) error {
	cfg := balancer.DefaultConfig()
	if configPath != "" {
		loaded, err := balancer.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("balancerd: %w", err)
		}
		cfg = loaded
	}

	logger := initLogger(cfg)
	logger.Info().Str("http_addr", cfg.HTTPAddr).Msg("starting balancerd")

	boltStore, err := storage.NewBoltStore(cfg.Raft.DataDir)
	if err != nil {
		return fmt.Errorf("balancerd: open store: %w", err)
	}
	defer boltStore.Close()

	cluster, err := clusterlock.Bootstrap(clusterlock.Config{
		NodeID:   cfg.Raft.NodeID,
		BindAddr: cfg.Raft.BindAddr,
		DataDir:  cfg.Raft.DataDir,
		Store:    boltStore,
	})
	if err != nil {
		return fmt.Errorf("balancerd: bootstrap cluster lock: %w", err)
	}
	defer cluster.Shutdown()

	lock := clusterlock.NewLock(cluster)
	state := clustermodel.NewClusterState()
	auditLog := audit.New(logger)

	resolver := storage.GroupAddressResolver(func(groupID int) (string, bool) {
		g, err := state.Group(groupID)
		if err != nil || len(g.Backends) == 0 {
			return "", false
		}
		return g.Backends[0].NodeAddr, true
	})
	metaClient := storage.NewHTTPMetaClient(resolver, cfg.Elliptics.WaitTimeout)
	writer := lifecycle.NewWriter(metaClient, logger, 3)
	life := lifecycle.New(state, writer, auditLog, logger)

	nsStore := balancer.NewNamespaceStore(boltStore)
	metrics := balancer.NewMetrics()

	svc := balancer.NewService(
		state, life, nsStore, lock, cluster, auditLog, metrics,
		cfg.Topology.Levels,
		cfg.Weight, cfg.BalancerConfig.ForbiddenDCSharingAmongGroups,
		cfg.BalancerConfig.TotalSpaceDiffTolerance, cfg.BalancerConfig.MinUnits,
		logger,
	)

	if cfg.InventoryFile != "" {
		inv, err := balancer.LoadInventory(cfg.InventoryFile)
		if err != nil {
			return fmt.Errorf("balancerd: %w", err)
		}
		if err := svc.ApplyInventory(inv); err != nil {
			return fmt.Errorf("balancerd: apply inventory: %w", err)
		}
	}

	refresher := clustermodel.NewRefresher(state, clustermodel.HTTPSampleFetcher(cfg.Elliptics.WaitTimeout), cfg.RefreshInterval, logger)
	refreshCtx, cancelRefresh := context.WithCancel(ctx)
	go refresher.Start(refreshCtx)
	defer cancelRefresh()

	// Couple statuses (FULL detection in particular) and the couple-count
	// gauges follow the node stats one tick behind.
	go func() {
		ticker := time.NewTicker(cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				svc.RefreshCoupleStatuses()
			case <-refreshCtx.Done():
				return
			}
		}
	}()

	handler := balancer.NewHandler(svc, logger)
	mux := handler.Mux()
	mux.Handle("/metrics", metrics.Handler())

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if cfg.MetricsAddr != cfg.HTTPAddr {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		metricsSrv.Handler = metricsMux
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("balancerd: http server: %w", err)
		}
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	return nil
}
