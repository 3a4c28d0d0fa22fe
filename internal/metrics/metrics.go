// Package metrics declares the Prometheus collectors of the sync server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Label values for round results and drop reasons.
const (
	Fail = "fail"
	Ok   = "ok"
	Noop = "noop"

	ReasonMissing = "missing"
	ReasonError   = "error"
)

var (
	SyncRoundsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vultsync_sync_rounds_total",
		Help: "Cumulative number of sync rounds by result.",
	}, []string{"result"})
	SyncSnapshotsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vultsync_sync_snapshots_total",
		Help: "Cumulative number of rounds answered with a full store snapshot.",
	})
	MutationsAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vultsync_mutations_applied_total",
		Help: "Cumulative number of client mutations applied to the store, by op.",
	}, []string{"op"})
	MutationsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vultsync_mutations_dropped_total",
		Help: "Cumulative number of client mutations dropped from a round, by reason.",
	}, []string{"reason"})
	IDCollisionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vultsync_id_collisions_total",
		Help: "Cumulative number of added credentials re-assigned a fresh id.",
	})
	RemoteSuppressedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vultsync_remote_suppressed_total",
		Help: "Cumulative number of remote mutations withheld because the client touched the same id.",
	})
	RemoteAddAnomaliesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vultsync_remote_add_anomalies_total",
		Help: "Cumulative number of remote Add mutations for an id the client already touched.",
	})
	CachePrunedBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vultsync_cache_pruned_batches_total",
		Help: "Cumulative number of mutation batches removed by retention.",
	})
)

// Collectors returns every collector of this package, for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SyncRoundsTotal,
		SyncSnapshotsTotal,
		MutationsAppliedTotal,
		MutationsDroppedTotal,
		IDCollisionsTotal,
		RemoteSuppressedTotal,
		RemoteAddAnomaliesTotal,
		CachePrunedBatchesTotal,
	}
}
