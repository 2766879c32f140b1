package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/common-nighthawk/go-figure"

	ledgerhttp "ledgerhub/internal/http"
	"ledgerhub/pkg/cluster"
	"ledgerhub/pkg/metrics"
	"ledgerhub/pkg/ownership"
	"ledgerhub/pkg/placement"
)

// loggingListener activates/deactivates local topic state on ownership
// transitions. Persistence and delivery hook in here in a full broker;
// the standalone binary just records the transitions.
type loggingListener struct{}

func (loggingListener) TopicGained(topic string) {
	slog.Info("topic ownership gained", "topic", topic)
}

func (loggingListener) TopicLost(topic string) {
	slog.Info("topic ownership lost", "topic", topic)
}

func main() {
	configPath := flag.String("config", "ledgerhub.yaml", "path to config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := initConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogger(&cfg)
	figure.NewFigure("ledgerhub", "", true).Print()

	if addr := os.Getenv("LEDGERHUB_NODE_ADDR"); addr != "" {
		cfg.Node.Addr = addr
	}
	if servers := os.Getenv("ZK_SERVERS"); servers != "" {
		cfg.ZooKeeper.Servers = strings.Split(servers, ",")
	}
	self := cluster.NodeAddress(cfg.Node.Addr)

	metrics.Register()

	view := cluster.NewView()
	policy := placement.NewRandomPolicy()
	defer policy.Uninitialize()
	history := placement.NewFailureHistory(cfg.Placement.FailureExpiry)

	var store ownership.CoordStore
	if len(cfg.ZooKeeper.Servers) > 0 {
		membership, err := cluster.NewZKMembership(
			cfg.ZooKeeper.Servers, cfg.ZooKeeper.Root, cfg.ZooKeeper.SessionTimeout, self)
		if err != nil {
			slog.Error("failed to connect to zookeeper", "error", err)
			os.Exit(1)
		}
		defer membership.Close()

		if err := membership.RegisterSelf(); err != nil {
			slog.Error("failed to register hub in zookeeper", "error", err)
			os.Exit(1)
		}

		// The membership watcher feeds full snapshots to the cluster
		// view and the placement policy; nodes reported dead get a
		// failure history entry for read reordering.
		go membership.RunWatch(ctx, func(writable, readOnly []cluster.NodeAddress) {
			view.Apply(writable, readOnly)
			dead := policy.OnClusterChanged(
				cluster.NewNodeSet(writable...), cluster.NewNodeSet(readOnly...))
			for n := range dead {
				history.RecordFailure(n)
			}
		})

		store = ownership.NewZKStore(membership.Conn(), cfg.ZooKeeper.Root)
	} else {
		slog.Warn("no zookeeper servers configured, running standalone with in-memory ownership")
		store = ownership.NewMemStore()
	}

	owners := ownership.NewManager(store, self)
	defer owners.Stop()
	owners.AddTopicOwnershipChangeListener(loggingListener{})

	server := ledgerhttp.NewServer(owners, policy, view, fmt.Sprintf("%d", cfg.HTTP.Port))
	if err := server.Start(); err != nil {
		slog.Error("failed to start HTTP server", "error", err)
		os.Exit(1)
	}

	slog.Info("ledgerhub started", "addr", self, "region", cfg.Node.Region)
	<-ctx.Done()

	slog.Info("shutting down")
	if err := server.Stop(); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
}
