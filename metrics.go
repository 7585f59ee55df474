package gisdb

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics.
// Package metrics provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordOpen is called after each Open/OpenBlob/OpenBytes.
	RecordOpen(duration time.Duration, err error)

	// RecordLookup is called after each GetItem.
	RecordLookup(duration time.Duration, found bool, err error)

	// RecordNearest is called after each Nearest (k=1) or NNearest call.
	// returned is the number of neighbors in the result.
	RecordNearest(k, returned int, duration time.Duration, err error)

	// RecordBuild is called after each Build/BuildTo/WriteTo.
	RecordBuild(items int, bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOpen(time.Duration, error)              {}
func (NoopMetricsCollector) RecordLookup(time.Duration, bool, error)      {}
func (NoopMetricsCollector) RecordNearest(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordBuild(int, int64, time.Duration, error) {}

// BasicMetricsCollector keeps in-memory counters.
type BasicMetricsCollector struct {
	OpenCount         atomic.Int64
	OpenErrors        atomic.Int64
	LookupCount       atomic.Int64
	LookupHits        atomic.Int64
	LookupErrors      atomic.Int64
	LookupTotalNanos  atomic.Int64
	NearestCount      atomic.Int64
	NearestErrors     atomic.Int64
	NearestResults    atomic.Int64
	NearestTotalNanos atomic.Int64
	BuildCount        atomic.Int64
	BuildErrors       atomic.Int64
	BuildItems        atomic.Int64
	BuildBytes        atomic.Int64
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(_ time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLookup(duration time.Duration, found bool, err error) {
	b.LookupCount.Add(1)
	b.LookupTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LookupErrors.Add(1)
	}
	if found {
		b.LookupHits.Add(1)
	}
}

// RecordNearest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordNearest(_, returned int, duration time.Duration, err error) {
	b.NearestCount.Add(1)
	b.NearestTotalNanos.Add(duration.Nanoseconds())
	b.NearestResults.Add(int64(returned))
	if err != nil {
		b.NearestErrors.Add(1)
	}
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(items int, bytes int64, _ time.Duration, err error) {
	b.BuildCount.Add(1)
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildItems.Add(int64(items))
	b.BuildBytes.Add(bytes)
}

// Stats is a snapshot of BasicMetricsCollector.
type Stats struct {
	Opens          int64
	Lookups        int64
	LookupHits     int64
	Nearest        int64
	NearestResults int64
	Builds         int64
	Errors         int64
	AvgLookupNanos int64
}

// GetStats returns a snapshot of the counters.
func (b *BasicMetricsCollector) GetStats() Stats {
	lookups := b.LookupCount.Load()
	var avg int64
	if lookups > 0 {
		avg = b.LookupTotalNanos.Load() / lookups
	}
	errs := b.OpenErrors.Load() + b.LookupErrors.Load() + b.NearestErrors.Load() + b.BuildErrors.Load()
	return Stats{
		Opens:          b.OpenCount.Load(),
		Lookups:        lookups,
		LookupHits:     b.LookupHits.Load(),
		Nearest:        b.NearestCount.Load(),
		NearestResults: b.NearestResults.Load(),
		Builds:         b.BuildCount.Load(),
		Errors:         errs,
		AvgLookupNanos: avg,
	}
}
