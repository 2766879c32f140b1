package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EnsemblesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgerhub_ensembles_created_total",
		Help: "Total number of replica ensembles constructed",
	})
	PlacementFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgerhub_placement_failures_total",
		Help: "Total number of placements failed for lack of eligible nodes",
	})
	OwnedTopics = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledgerhub_owned_topics",
		Help: "Number of topics currently owned by this hub",
	})
	OwnershipConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgerhub_ownership_conflicts_total",
		Help: "Total number of topic claims lost to another hub",
	})
	ReconnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgerhub_subscribe_reconnect_attempts_total",
		Help: "Total number of subscription reconnect attempts",
	})
	ReconnectAbandoned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgerhub_subscribe_reconnect_abandoned_total",
		Help: "Total number of reconnects abandoned because the channel manager closed",
	})
)

func Register() {
	prometheus.MustRegister(
		EnsemblesCreated,
		PlacementFailures,
		OwnedTopics,
		OwnershipConflicts,
		ReconnectAttempts,
		ReconnectAbandoned,
	)
}
