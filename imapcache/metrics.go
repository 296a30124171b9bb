package imapcache

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
)

// Metrics holds the cache counters.
type Metrics struct {
	Hits    metrics.Counter
	Misses  metrics.Counter
	Stores  metrics.Counter
	Busts   metrics.Counter
	Repairs metrics.Counter
}

// NewDiscardMetrics returns counters that drop every observation.
func NewDiscardMetrics() *Metrics {
	return &Metrics{
		Hits:    discard.NewCounter(),
		Misses:  discard.NewCounter(),
		Stores:  discard.NewCounter(),
		Busts:   discard.NewCounter(),
		Repairs: discard.NewCounter(),
	}
}
