package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "notebins", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "notebins", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// realtime layer
	RealtimeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "notebins", Name: "realtime_connections", Help: "Currently open realtime connections."},
	)
	RoomsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "notebins", Name: "rooms_active", Help: "Note rooms with at least one member."},
	)
	RealtimeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "notebins", Name: "realtime_events_total", Help: "Inbound realtime events by event name."},
		[]string{"event"},
	)
	RealtimeDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "notebins", Name: "realtime_dropped_total", Help: "Outbound events dropped because a connection queue was full."},
	)

	// expiration sweeper
	SweeperRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "notebins", Name: "sweeper_runs_total", Help: "Sweeps by store and result."},
		[]string{"store", "result"},
	)
	SweeperDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "notebins", Name: "sweeper_deleted_total", Help: "Expired records removed by the sweeper, by store."},
		[]string{"store"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(RealtimeConnections)
	reg.MustRegister(RoomsActive)
	reg.MustRegister(RealtimeEvents)
	reg.MustRegister(RealtimeDropped)
	reg.MustRegister(SweeperRuns)
	reg.MustRegister(SweeperDeleted)
}
