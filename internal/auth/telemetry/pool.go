package telemetry

import (
	red "github.com/redis/go-redis/v9"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolStatser reports connection pool counters. The redis store driver
// implements it.
type PoolStatser interface {
	PoolStats() *red.PoolStats
}

// PoolCollector exports a Redis connection pool's counters at scrape time.
type PoolCollector struct {
	source PoolStatser

	hits     *prometheus.Desc
	misses   *prometheus.Desc
	timeouts *prometheus.Desc
	total    *prometheus.Desc
	idle     *prometheus.Desc
	stale    *prometheus.Desc
}

// NewPoolCollector registers a collector reading source on every scrape.
func NewPoolCollector(opts Options, source PoolStatser) (*PoolCollector, error) {
	opts = opts.withDefaults()

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(opts.Namespace, "redis_pool", name), help, nil, nil)
	}

	c := &PoolCollector{
		source:   source,
		hits:     desc("hits_total", "Times a free connection was found in the pool."),
		misses:   desc("misses_total", "Times a free connection was not found in the pool."),
		timeouts: desc("timeouts_total", "Times a wait for a connection timed out."),
		total:    desc("connections", "Connections currently in the pool."),
		idle:     desc("idle_connections", "Idle connections in the pool."),
		stale:    desc("stale_connections_total", "Stale connections removed from the pool."),
	}
	return register(opts.Registerer, "redis pool", c)
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.timeouts
	ch <- c.total
	ch <- c.idle
	ch <- c.stale
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.PoolStats()
	if s == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(s.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns))
	ch <- prometheus.MustNewConstMetric(c.stale, prometheus.CounterValue, float64(s.StaleConns))
}
