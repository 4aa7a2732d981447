package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"ptv-collector/internal/collector"
	"ptv-collector/internal/config"
	"ptv-collector/internal/metrics"
	"ptv-collector/internal/ptv"
	"ptv-collector/internal/publisher"
	"ptv-collector/internal/store"
	"ptv-collector/internal/zones"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	log.Printf("configuration: mode=%s interval=%s workers=%d writes=%v",
		ptv.RouteTypeName(cfg.RouteType), cfg.PollInterval, cfg.ParallelWorkers, cfg.EnableDBWrite)

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.PollInterval, cfg.ParallelWorkers)
		srv := mcol.Serve(cfg.MetricsAddr)
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// PTV API client
	client := ptv.NewClient(cfg.PTVUserID, cfg.PTVAPIKey, cfg.ParallelWorkers, cfg.RequestTimeout)
	if mcol != nil {
		client.SetMetrics(&clientMetrics{c: mcol})
	}

	// Persistence sink; nil keeps the collector in dry-run mode
	var sink collector.Sink
	if cfg.EnableDBWrite {
		sqlDB, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open error: %v", err)
		}
		defer sqlDB.Close()
		if err := store.Ping(ctx, sqlDB); err != nil {
			log.Fatalf("db ping error: %v", err)
		}
		st := store.New(sqlDB)
		if err := st.EnsureSchema(ctx); err != nil {
			log.Fatalf("schema error: %v", err)
		}
		sink = st
		log.Printf("database writes enabled")
	} else {
		log.Printf("dry-run mode: database writes disabled")
	}

	// Optional NATS live feed
	var pub collector.Publisher
	if cfg.NATSURL != "" {
		natsPub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer natsPub.Close()
		pub = natsPub
	}

	coll := collector.New(client, collector.Options{
		RouteType:    cfg.RouteType,
		PollInterval: cfg.PollInterval,
		Retention:    time.Duration(cfg.RetentionHours) * time.Hour,
		MaxTracked:   cfg.MaxTrackedVehicles,
		Zones:        zones.Default,
		Sink:         sink,
		Pub:          pub,
		Metrics:      mcol,
	})

	if err := coll.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("collector error: %v", err)
	}
	log.Println("shutdown complete")
}

// clientMetrics adapts the Collector to the ptv.Metrics interface.
type clientMetrics struct{ c *metrics.Collector }

func (m *clientMetrics) RouteFetchErrInc() { m.c.RouteFetchErrors.Inc() }

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
