// Package metrics holds the small set of Prometheus collectors the mvcc
// coordinator and companion transaction registry publish. Collectors are
// registered against the default registry in init, mirroring how raftstore
// components elsewhere register their own collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	InFlightOps = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mvcc_in_flight_ops",
		Help: "Current number of ops in the coordinator's in-flight table.",
	})

	CleanTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mvcc_clean_timestamp",
		Help: "Current value of the coordinator's all_committed_before watermark.",
	})

	Waiters = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mvcc_waiters",
		Help: "Current length of the coordinator's waiter list.",
	})

	TransactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "txnstatus_transactions_total",
		Help: "Transactions reaching a terminal state, labeled by that state.",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(InFlightOps, CleanTimestamp, Waiters, TransactionsTotal)
}
