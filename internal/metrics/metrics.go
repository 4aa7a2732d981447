package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	CyclesTotal prometheus.Counter
	CycleErrors prometheus.Counter

	VehiclesFetched    prometheus.Counter
	VehiclesStored     prometheus.Counter
	VehiclesSuppressed prometheus.Counter
	RouteFetchErrors   prometheus.Counter
	RouteCorrections   prometheus.Counter
	InsertErrors       prometheus.Counter

	TrackedVehicles prometheus.Gauge

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	CycleDuration   prometheus.Histogram
	PublishDuration prometheus.Histogram

	PollInterval    prometheus.Gauge // seconds
	ParallelWorkers prometheus.Gauge
}

func NewCollector(pollInterval time.Duration, parallelWorkers int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_cycles_total",
			Help: "Total collection cycles run.",
		}),
		CycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_cycle_errors_total",
			Help: "Total collection cycles that ended with an error.",
		}),
		VehiclesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_vehicles_fetched_total",
			Help: "Total vehicle positions extracted from the upstream API.",
		}),
		VehiclesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_vehicles_stored_total",
			Help: "Total vehicle positions accepted for storage.",
		}),
		VehiclesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_vehicles_suppressed_total",
			Help: "Total vehicle positions suppressed as unchanged.",
		}),
		RouteFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_route_fetch_errors_total",
			Help: "Total per-route fetch failures.",
		}),
		RouteCorrections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_route_corrections_total",
			Help: "Total route id overrides applied by geographic zones.",
		}),
		InsertErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_db_insert_errors_total",
			Help: "Total failed bulk inserts.",
		}),
		TrackedVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_tracked_vehicles",
			Help: "Number of distinct vehicles in the change-detection cache.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "collector_cycle_duration_seconds",
			Help:    "Duration of one fetch-correct-filter-persist cycle.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "collector_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		PollInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_poll_interval_seconds",
			Help: "Configured poll interval in seconds.",
		}),
		ParallelWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_parallel_workers",
			Help: "Configured fetch fan-out width.",
		}),
	}

	reg.MustRegister(
		c.CyclesTotal, c.CycleErrors,
		c.VehiclesFetched, c.VehiclesStored, c.VehiclesSuppressed,
		c.RouteFetchErrors, c.RouteCorrections, c.InsertErrors,
		c.TrackedVehicles,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.CycleDuration, c.PublishDuration,
		c.PollInterval, c.ParallelWorkers,
	)

	c.PollInterval.Set(pollInterval.Seconds())
	c.ParallelWorkers.Set(float64(parallelWorkers))

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
