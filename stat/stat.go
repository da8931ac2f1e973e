package stat

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "dremio"
	subsystem = "monitor"
)

var (
	CounterScrapeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "scrape_total",
		Help:      "Total number of scrape rounds.",
	}, []string{"cluster"})

	CounterScrapeErrorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "scrape_error_total",
		Help:      "Number of failed scrape rounds.",
	}, []string{"cluster"})

	ScrapeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{.1, 1, 5, 10, 30, 60},
			Name:      "scrape_duration_seconds",
			Help:      "Duration of one scrape round.",
		}, []string{"cluster"},
	)

	CounterPushTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "push_total",
		Help:      "Number of samples pushed to the gateway.",
	}, []string{"job"})

	CounterPushErrorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "push_error_total",
		Help:      "Number of failed gateway pushes.",
	}, []string{"job"})

	ForwardDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{.001, .01, .1, 1, 5, 10},
			Name:      "forward_duration_seconds",
			Help:      "Forward samples to remote write endpoints. latencies in seconds.",
		}, []string{"url"},
	)

	GaugeCoordinatorStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "coordinator_status",
			Help:      "Last observed coordinator status, role dependent: master 2 api / 1 jmx only, standby 1 api / 2 jmx only, 0 down.",
		}, []string{"cluster", "instance", "role"},
	)
)

func init() {
	prometheus.MustRegister(
		CounterScrapeTotal,
		CounterScrapeErrorTotal,
		ScrapeDuration,
		CounterPushTotal,
		CounterPushErrorTotal,
		ForwardDuration,
		GaugeCoordinatorStatus,
	)
}
