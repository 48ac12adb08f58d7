package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roost-io/roost/pkg/agent"
	"github.com/roost-io/roost/pkg/conf"
	"github.com/roost-io/roost/pkg/config"
	"github.com/roost-io/roost/pkg/log"
	"github.com/roost-io/roost/pkg/metrics"
	"github.com/roost-io/roost/pkg/mgmt"
	"github.com/roost-io/roost/pkg/registry"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the node registration agent",
	Long: `Run the Roost agent for this cluster member.

The agent connects to the coordination store, registers the node's
management, shell, and web endpoints with conflict-free ports, publishes
the node's address records, and mirrors the locally exposed management
domains until stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		nodeID, _ := cmd.Flags().GetString("node-id")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		adminAddr, _ := cmd.Flags().GetString("admin-addr")

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		// Flags override file and environment
		if nodeID != "" {
			cfg.NodeID = nodeID
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if adminAddr != "" {
			cfg.AdminAddr = adminAddr
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
		})
		metrics.SetVersion(Version)

		return runAgent(cfg)
	},
}

func init() {
	agentCmd.Flags().String("config", "", "Path to YAML config file")
	agentCmd.Flags().String("node-id", "", "Node identifier (default: generated)")
	agentCmd.Flags().String("data-dir", "", "Data directory for local state")
	agentCmd.Flags().String("admin-addr", "", "Listen address for metrics and health endpoints")
}

func runAgent(cfg *config.Config) error {
	logger := log.WithComponent("main")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Local configuration store
	confStore, err := conf.NewStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer confStore.Close()
	metrics.RegisterComponent("conf", true, "")

	// Coordination store
	store, err := registry.Dial(context.Background(), cfg.EtcdEndpoints)
	if err != nil {
		return err
	}
	defer store.Close()

	// Management registry
	mgmtServer := mgmt.NewServer()

	// Coordinator wiring: the coordinator observes the store session,
	// local configuration changes, and management-registry notifications.
	coordinator := agent.New(store, confStore, cfg)
	coordinator.AttachManagementRegistry(mgmtServer)
	mgmtServer.Subscribe(coordinator)
	confStore.Subscribe(coordinator)
	store.Subscribe(coordinator)
	store.Subscribe(storeHealth{})

	if err := store.Start(context.Background()); err != nil {
		return err
	}
	metrics.RegisterComponent("agent", true, "")

	// Admin endpoints
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/readyz", metrics.ReadyHandler())
	mux.HandleFunc("/livez", metrics.LivenessHandler())

	errCh := make(chan error, 1)
	go func() {
		if err := http.ListenAndServe(cfg.AdminAddr, mux); err != nil {
			errCh <- fmt.Errorf("admin server error: %w", err)
		}
	}()

	logger.Info().
		Str("node_id", cfg.NodeID).
		Str("admin_addr", cfg.AdminAddr).
		Msg("agent running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("admin server failed")
	}

	coordinator.Destroy()
	return nil
}

// storeHealth mirrors the store session state into the health checker.
type storeHealth struct{}

func (storeHealth) OnConnected() {
	metrics.UpdateComponent("store", true, "")
}

func (storeHealth) OnDisconnected() {
	metrics.UpdateComponent("store", false, "session lost")
}
