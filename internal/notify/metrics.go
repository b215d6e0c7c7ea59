package notify

import "github.com/prometheus/client_golang/prometheus"

var (
	cyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nextclass_cycles_total",
		Help: "Completed notification cycles",
	})
	cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nextclass_cycle_duration_seconds",
		Help:    "Wall-clock duration of one matching+dispatch cycle",
		Buckets: prometheus.DefBuckets,
	})
	matchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nextclass_matches_total",
		Help: "Matched (user, slot) pairs across all cycles",
	})
	sentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nextclass_notifications_sent_total",
		Help: "Push notifications delivered",
	})
	sendErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nextclass_send_errors_total",
		Help: "Delivery failures by classification",
	}, []string{"reason"})
	invalidTokensTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nextclass_invalid_tokens_total",
		Help: "Tokens flagged inactive after an unregistered-token failure",
	})
	cycleErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nextclass_cycle_errors_total",
		Help: "Data source errors tallied during cycles",
	})
)

func init() {
	prometheus.MustRegister(
		cyclesTotal, cycleDuration, matchesTotal, sentTotal,
		sendErrorsTotal, invalidTokensTotal, cycleErrorsTotal,
	)
}
