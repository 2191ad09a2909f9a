package crawl

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawl and the cart.
type Metrics struct {
	Registry            *prometheus.Registry
	TransitionsTotal    *prometheus.CounterVec
	VendorsVisitedTotal prometheus.Counter
	ItemsAcceptedTotal  prometheus.Counter
	RecoveriesTotal     prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
	VendorDuration      prometheus.Histogram
	CommitsTotal        *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menuscout_state_transitions_total",
			Help: "Crawl controller state entries by state.",
		},
		[]string{"state"},
	)
	vendors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "menuscout_vendors_visited_total",
			Help: "Total vendor visits attempted.",
		},
	)
	items := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "menuscout_items_accepted_total",
			Help: "Total menu items that passed matching and price validation.",
		},
	)
	recoveries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "menuscout_recoveries_total",
			Help: "Total listing reconstruction attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menuscout_errors_total",
			Help: "Total crawl errors by type.",
		},
		[]string{"error_type"},
	)
	vendorDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "menuscout_vendor_duration_seconds",
			Help:    "Time from vendor click to the end of extraction.",
			Buckets: prometheus.DefBuckets,
		},
	)
	commits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menuscout_commits_total",
			Help: "Cart commits by outcome.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(transitions, vendors, items, recoveries, errorsTotal, vendorDuration, commits)

	return &Metrics{
		Registry:            registry,
		TransitionsTotal:    transitions,
		VendorsVisitedTotal: vendors,
		ItemsAcceptedTotal:  items,
		RecoveriesTotal:     recoveries,
		ErrorsTotal:         errorsTotal,
		VendorDuration:      vendorDuration,
		CommitsTotal:        commits,
	}
}

// IncState counts an entry into state.
func (m *Metrics) IncState(state State) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(state.String()).Inc()
}

// IncVendor counts a vendor visit.
func (m *Metrics) IncVendor() {
	if m == nil {
		return
	}
	m.VendorsVisitedTotal.Inc()
}

// AddItems counts accepted items.
func (m *Metrics) AddItems(n int) {
	if m == nil {
		return
	}
	m.ItemsAcceptedTotal.Add(float64(n))
}

// IncRecovery counts a reconstruction attempt.
func (m *Metrics) IncRecovery() {
	if m == nil {
		return
	}
	m.RecoveriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveVendor records how long a vendor visit took.
func (m *Metrics) ObserveVendor(d time.Duration) {
	if m == nil {
		return
	}
	m.VendorDuration.Observe(d.Seconds())
}

// IncCommit counts a commit outcome ("committed" or "failed").
func (m *Metrics) IncCommit(outcome string) {
	if m == nil {
		return
	}
	m.CommitsTotal.WithLabelValues(outcome).Inc()
}
