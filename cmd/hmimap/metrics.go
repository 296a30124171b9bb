package main

import (
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jasonmunro/hm-imap/imapcache"
)

// cacheCounters are shared by every account and labelled with its name.
type cacheCounters struct {
	hits, misses, stores, busts, repairs *prometheus.Counter
}

func newCacheCounters() *cacheCounters {
	counter := func(name, help string) *prometheus.Counter {
		return prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "hmimap",
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, []string{"account"})
	}

	return &cacheCounters{
		hits:    counter("hits_total", "Number of command results served from the cache."),
		misses:  counter("misses_total", "Number of cacheable commands sent to the server."),
		stores:  counter("stores_total", "Number of results stored in the cache."),
		busts:   counter("busts_total", "Number of cache entries dropped by a state change."),
		repairs: counter("repairs_total", "Number of cached results patched from unsolicited responses."),
	}
}

// forAccount returns the cache metrics of one account. A nil receiver
// yields discarding counters.
func (c *cacheCounters) forAccount(name string) *imapcache.Metrics {
	if c == nil {
		return imapcache.NewDiscardMetrics()
	}
	return &imapcache.Metrics{
		Hits:    c.hits.With("account", name),
		Misses:  c.misses.With("account", name),
		Stores:  c.stores.With("account", name),
		Busts:   c.busts.With("account", name),
		Repairs: c.repairs.With("account", name),
	}
}

// runPromHTTP exposes the Prometheus metrics on addr. It does nothing if
// addr is empty.
func runPromHTTP(logger log.Logger, addr string) {
	if addr == "" {
		level.Debug(logger).Log("msg", "no metrics address configured, not exposing metrics")
		return
	}

	http.Handle("/metrics", promhttp.Handler())
	level.Info(logger).Log("msg", "exposing metrics", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		level.Error(logger).Log("msg", "failed to serve metrics", "err", err)
	}
}
