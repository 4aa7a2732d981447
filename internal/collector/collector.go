// Package collector drives the fetch-correct-filter-persist cycle.
package collector

import (
	"context"
	"log"
	"time"

	"ptv-collector/internal/metrics"
	"ptv-collector/internal/ptv"
	"ptv-collector/internal/store"
	"ptv-collector/internal/zones"
)

// Fetcher yields the live positions for one transport mode.
type Fetcher interface {
	FetchVehicles(ctx context.Context, routeType int, useCache bool) ([]ptv.VehiclePosition, error)
}

// Sink is the durable storage boundary. A nil Sink means dry-run: the
// collector logs what it would have written and writes nothing.
type Sink interface {
	InsertVehiclesBulk(ctx context.Context, vehicles []ptv.VehiclePosition) (int, error)
	Prune(ctx context.Context, retention time.Duration) (int64, error)
	GetStats(ctx context.Context) (store.Stats, error)
}

// Publisher pushes stored positions to live consumers. Optional.
type Publisher interface {
	PublishPosition(v ptv.VehiclePosition) error
}

type Options struct {
	RouteType    int
	PollInterval time.Duration
	Retention    time.Duration

	// MaxTracked bounds the change-detection cache by vehicle count;
	// 0 keeps it unbounded.
	MaxTracked int

	Zones   zones.Table
	Sink    Sink
	Pub     Publisher
	Metrics *metrics.Collector
}

type tracked struct {
	pos    ptv.VehiclePosition
	seenAt time.Time
}

// Collector owns the change-detection state. It is driven by a single
// goroutine; the cache needs no locking because updates happen only after
// the per-cycle fan-in has completed.
type Collector struct {
	fetcher Fetcher
	opts    Options

	seen   map[string]tracked
	cycles uint64
}

func New(fetcher Fetcher, opts Options) *Collector {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.Retention <= 0 {
		opts.Retention = 24 * time.Hour
	}
	return &Collector{
		fetcher: fetcher,
		opts:    opts,
		seen:    make(map[string]tracked),
	}
}

// shouldStore reports whether a position adds information over the last
// stored one. Unseen vehicles always qualify; otherwise any coordinate
// change does, with strict inequality and no epsilon. A vehicle reporting
// an identical position is suppressed indefinitely.
func (c *Collector) shouldStore(v ptv.VehiclePosition) bool {
	last, ok := c.seen[v.VehicleID]
	if !ok {
		return true
	}
	return last.pos.Latitude != v.Latitude || last.pos.Longitude != v.Longitude
}

func (c *Collector) remember(v ptv.VehiclePosition, now time.Time) {
	c.seen[v.VehicleID] = tracked{pos: v, seenAt: now}
	if c.opts.MaxTracked > 0 && len(c.seen) > c.opts.MaxTracked {
		c.evictOldest()
	}
}

// evictOldest drops the least recently updated vehicles until the cache is
// back within its bound. Evicted vehicles are treated as unseen on their
// next report, which costs at most one extra stored row each.
func (c *Collector) evictOldest() {
	for len(c.seen) > c.opts.MaxTracked {
		var oldestID string
		var oldestAt time.Time
		first := true
		for id, entry := range c.seen {
			if first || entry.seenAt.Before(oldestAt) {
				oldestID, oldestAt = id, entry.seenAt
				first = false
			}
		}
		delete(c.seen, oldestID)
	}
}

// TrackedVehicles returns the change-detection cache size.
func (c *Collector) TrackedVehicles() int { return len(c.seen) }

// CollectOnce runs one collection cycle: fetch all positions for the
// configured route type, apply geographic route corrections, filter to
// positions that changed since the previous cycle and hand the survivors to
// the sink. The cache baseline is advanced for every accepted position.
func (c *Collector) CollectOnce(ctx context.Context) error {
	mode := ptv.RouteTypeName(c.opts.RouteType)

	vehicles, err := c.fetcher.FetchVehicles(ctx, c.opts.RouteType, true)
	if err != nil {
		return err
	}
	if len(vehicles) == 0 {
		log.Printf("no %s positions received", mode)
		return nil
	}
	if m := c.opts.Metrics; m != nil {
		m.VehiclesFetched.Add(float64(len(vehicles)))
	}

	now := time.Now()
	toStore := make([]ptv.VehiclePosition, 0, len(vehicles))
	for _, v := range vehicles {
		corrected := c.opts.Zones.Correct(v.Longitude, v.Latitude, v.RouteID, v.VehicleID)
		if corrected != v.RouteID {
			v.RouteID = corrected
			if m := c.opts.Metrics; m != nil {
				m.RouteCorrections.Inc()
			}
		}
		if !c.shouldStore(v) {
			continue
		}
		toStore = append(toStore, v)
		c.remember(v, now)
	}

	if m := c.opts.Metrics; m != nil {
		m.VehiclesStored.Add(float64(len(toStore)))
		m.VehiclesSuppressed.Add(float64(len(vehicles) - len(toStore)))
		m.TrackedVehicles.Set(float64(len(c.seen)))
	}

	if len(toStore) == 0 {
		log.Printf("no new positions to store (all %ss stationary)", mode)
		return nil
	}

	if c.opts.Sink == nil {
		sample := make([]string, 0, 5)
		for _, v := range toStore {
			if len(sample) == 5 {
				break
			}
			sample = append(sample, v.VehicleID)
		}
		log.Printf("dry-run: would store %d new positions (sample %v), %d unchanged",
			len(toStore), sample, len(vehicles)-len(toStore))
		return nil
	}

	if _, err := c.opts.Sink.InsertVehiclesBulk(ctx, toStore); err != nil {
		// The cache baseline has already advanced; the next tick retries
		// naturally with whatever moved since.
		if m := c.opts.Metrics; m != nil {
			m.InsertErrors.Inc()
		}
		log.Printf("bulk insert failed: %v", err)
		return nil
	}
	log.Printf("stored %d new positions (%d unchanged)", len(toStore), len(vehicles)-len(toStore))

	if c.opts.Pub != nil {
		for _, v := range toStore {
			if err := c.opts.Pub.PublishPosition(v); err != nil {
				log.Printf("publish position for %s: %v", v.VehicleID, err)
			}
		}
	}
	return nil
}

// Run polls on a fixed interval until the context is cancelled. Sleep time
// compensates for cycle duration; a cycle that overruns the interval starts
// the next cycle immediately rather than skipping it. Cycle errors are
// logged and never stop the loop.
func (c *Collector) Run(ctx context.Context) error {
	log.Printf("collector starting: mode=%s interval=%s",
		ptv.RouteTypeName(c.opts.RouteType), c.opts.PollInterval)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		start := time.Now()
		err := c.CollectOnce(ctx)
		c.cycles++
		if m := c.opts.Metrics; m != nil {
			m.CyclesTotal.Inc()
			m.CycleDuration.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if m := c.opts.Metrics; m != nil {
				m.CycleErrors.Inc()
			}
			log.Printf("collection cycle failed: %v", err)
		}

		c.maintain(ctx)

		elapsed := time.Since(start)
		sleep := c.opts.PollInterval - elapsed
		if sleep < 0 {
			log.Printf("cycle took %s (longer than %s interval)", elapsed.Round(time.Millisecond), c.opts.PollInterval)
			sleep = 0
		}
		timer.Reset(sleep)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// maintain prunes old rows every 20th cycle and logs storage stats every
// 40th. Cadence follows the original deployment rhythm.
func (c *Collector) maintain(ctx context.Context) {
	if c.opts.Sink == nil || c.cycles == 0 {
		return
	}
	if c.cycles%20 == 0 {
		n, err := c.opts.Sink.Prune(ctx, c.opts.Retention)
		if err != nil {
			log.Printf("prune failed: %v", err)
		} else {
			log.Printf("pruned %d rows older than %s", n, c.opts.Retention)
		}
	}
	if c.cycles%40 == 0 {
		st, err := c.opts.Sink.GetStats(ctx)
		if err != nil {
			log.Printf("stats query failed: %v", err)
		} else {
			log.Printf("storage stats: total=%d vehicles=%d oldest=%s newest=%s",
				st.TotalRecords, st.UniqueVehicles, st.OldestRecord.String, st.NewestRecord.String)
		}
	}
}
