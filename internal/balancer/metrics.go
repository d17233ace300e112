package balancer

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cocaineapp/balancer/internal/clustermodel"
)

// Metrics is the facade's prometheus surface: couple counts by status,
// weight-engine failures, placement attempts, and lock outcomes. It's
// built per-Service (not package-level vars) so tests can construct
// independent registries.
type Metrics struct {
	registry *prometheus.Registry

	couplesByStatus   *prometheus.GaugeVec
	weightFailures    *prometheus.CounterVec
	placementAttempts *prometheus.CounterVec
	lockOutcomes      *prometheus.CounterVec
}

// NewMetrics builds and registers a Metrics set against a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		couplesByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "balancer_couples_total",
			Help: "Number of couples by status.",
		}, []string{"status"}),
		weightFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "balancer_weight_engine_failures_total",
			Help: "Number of get_group_weights passes that failed, by namespace.",
		}, []string{"namespace"}),
		placementAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "balancer_placement_attempts_total",
			Help: "Number of per-couple placement attempts, by outcome.",
		}, []string{"outcome"}),
		lockOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "balancer_cluster_lock_total",
			Help: "Number of cluster-lock acquisition attempts, by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.couplesByStatus, m.weightFailures, m.placementAttempts, m.lockOutcomes)
	return m
}

// Handler serves this Metrics set's registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCoupleCounts replaces the couple-count gauges with a fresh tally,
// called after every couple-status refresh pass (RefreshCoupleStatuses).
func (m *Metrics) ObserveCoupleCounts(couples []*clustermodel.Couple) {
	counts := map[clustermodel.CoupleStatus]int{}
	for _, c := range couples {
		counts[c.Status]++
	}
	for _, status := range []clustermodel.CoupleStatus{
		clustermodel.CoupleInit, clustermodel.CoupleOK, clustermodel.CoupleFull,
		clustermodel.CoupleFrozen, clustermodel.CoupleBad, clustermodel.CoupleBroken,
	} {
		m.couplesByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

func (m *Metrics) observeWeightFailure(namespace string) {
	m.weightFailures.WithLabelValues(namespace).Inc()
}

func (m *Metrics) observePlacement(outcome string) {
	m.placementAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeLock(outcome string) {
	m.lockOutcomes.WithLabelValues(outcome).Inc()
}
