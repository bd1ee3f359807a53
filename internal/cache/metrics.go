package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_cache_hits_total",
		Help: "Downloads served from the local cache.",
	})
	missesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_cache_misses_total",
		Help: "Downloads fetched from the object store because no local copy was recorded.",
	})
	repairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_cache_repairs_total",
		Help: "Downloads whose record claimed a local copy that was missing on disk.",
	})
	evictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_cache_evictions_total",
		Help: "Local copies removed by delete or expiry.",
	})
)

func RecordHit()      { hitsTotal.Inc() }
func RecordMiss()     { missesTotal.Inc() }
func RecordRepair()   { repairsTotal.Inc() }
func RecordEviction() { evictionsTotal.Inc() }
