package config

import (
	"runtime"
	"time"
)

// Config holds all configuration for a ledgerhub node.
type Config struct {
	Node      NodeConfig
	ZooKeeper ZooKeeperConfig
	Placement PlacementConfig
	Subscribe SubscribeConfig
	HTTP      HTTPConfig
	Logger    LoggerConfig
}

// NodeConfig describes identity of the hub process.
type NodeConfig struct {
	// Addr is the advertised host:port of this hub. Used as the owner
	// value in ownership records and as the membership znode name.
	Addr string
	// Region is the name of the local region for cross-region
	// subscription bookkeeping.
	Region string
	// WorkerThreads bounds concurrent background work.
	WorkerThreads int
}

// ZooKeeperConfig covers the coordination store connection.
type ZooKeeperConfig struct {
	Servers        []string
	SessionTimeout time.Duration
	// Root is the chroot-style prefix for all ledgerhub znodes.
	Root string
}

// PlacementConfig controls ensemble construction defaults.
type PlacementConfig struct {
	EnsembleSize int
	WriteQuorum  int
	AckQuorum    int
	// ReadTimeout bounds a single replica read before the next replica
	// in the reordered sequence is tried.
	ReadTimeout time.Duration
	// FailureExpiry is the recency window for FailureHistory entries.
	FailureExpiry time.Duration
}

// SubscribeConfig controls the reconnect engine.
type SubscribeConfig struct {
	// RetryWaitTime is the constant delay between reconnect attempts.
	RetryWaitTime time.Duration
}

// HTTPConfig covers the admin HTTP surface.
type HTTPConfig struct {
	Port int
}

// LoggerConfig selects the slog handler.
type LoggerConfig struct {
	Level string
	JSON  bool
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Node: NodeConfig{
			Addr:          "localhost:4080",
			Region:        "standalone",
			WorkerThreads: runtime.NumCPU(),
		},
		ZooKeeper: ZooKeeperConfig{
			Servers:        []string{"localhost:2181"},
			SessionTimeout: 10 * time.Second,
			Root:           "/ledgerhub",
		},
		Placement: PlacementConfig{
			EnsembleSize:  3,
			WriteQuorum:   2,
			AckQuorum:     2,
			ReadTimeout:   5 * time.Second,
			FailureExpiry: 10 * time.Minute,
		},
		Subscribe: SubscribeConfig{
			RetryWaitTime: 2 * time.Second,
		},
		HTTP:   HTTPConfig{Port: 8080},
		Logger: LoggerConfig{Level: "info", JSON: false},
	}
}
