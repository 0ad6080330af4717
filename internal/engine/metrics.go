package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	mergedEntries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lexisync_merged_entries_total",
			Help: "Entries written into local dictionaries by snapshot merges.",
		},
	)

	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexisync_sync_runs_total",
			Help: "Dictionary synchronizations by result.",
		},
		[]string{"result"},
	)

	backups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexisync_backups_total",
			Help: "Snapshot backups by result.",
		},
		[]string{"result"},
	)

	lastSync = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lexisync_last_sync_timestamp_seconds",
			Help: "Unix time of the last completed scheduled synchronization.",
		},
	)
)

func init() {
	prometheus.MustRegister(mergedEntries)
	prometheus.MustRegister(syncRuns)
	prometheus.MustRegister(backups)
	prometheus.MustRegister(lastSync)
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
