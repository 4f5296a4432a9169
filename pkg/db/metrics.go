package db

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "expopulse"

// PoolStatsCollector exposes pgx connection pool statistics as Prometheus
// metrics. It implements prometheus.Collector and reads stats directly from
// the pool on each scrape, so values are current without a polling goroutine.
type PoolStatsCollector struct {
	pool *pgxpool.Pool

	totalConns       *prometheus.Desc
	idleConns        *prometheus.Desc
	acquiredConns    *prometheus.Desc
	maxConns         *prometheus.Desc
	acquireCount     *prometheus.Desc
	emptyAcquires    *prometheus.Desc
	acquireSecsTotal *prometheus.Desc
}

// NewPoolStatsCollector creates a collector for the given connection pool.
func NewPoolStatsCollector(pool *pgxpool.Pool) *PoolStatsCollector {
	return &PoolStatsCollector{
		pool: pool,
		totalConns: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "db_pool", "total_conns"),
			"Total number of connections currently open in the pool",
			nil, nil,
		),
		idleConns: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "db_pool", "idle_conns"),
			"Number of idle connections in the pool",
			nil, nil,
		),
		acquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "db_pool", "acquired_conns"),
			"Number of connections currently acquired from the pool",
			nil, nil,
		),
		maxConns: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "db_pool", "max_conns"),
			"Maximum number of connections allowed in the pool",
			nil, nil,
		),
		acquireCount: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "db_pool", "acquires_total"),
			"Cumulative number of successful connection acquires",
			nil, nil,
		),
		emptyAcquires: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "db_pool", "empty_acquires_total"),
			"Cumulative number of acquires that had to wait for a free connection",
			nil, nil,
		),
		acquireSecsTotal: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "db_pool", "acquire_seconds_total"),
			"Cumulative time spent acquiring connections",
			nil, nil,
		),
	}
}

func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalConns
	ch <- c.idleConns
	ch <- c.acquiredConns
	ch <- c.maxConns
	ch <- c.acquireCount
	ch <- c.emptyAcquires
	ch <- c.acquireSecsTotal
}

func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}

	stats := c.pool.Stat()

	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(stats.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(stats.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.acquiredConns, prometheus.GaugeValue, float64(stats.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(stats.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(stats.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquires, prometheus.CounterValue, float64(stats.EmptyAcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.acquireSecsTotal, prometheus.CounterValue, stats.AcquireDuration().Seconds())
}

// RegisterPoolStatsCollector registers a pool stats collector with the given
// registry, or the default registry when reg is nil. Re-registration of an
// identical collector is not an error.
func RegisterPoolStatsCollector(pool *pgxpool.Pool, reg prometheus.Registerer) (*PoolStatsCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collector := NewPoolStatsCollector(pool)
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return nil, err
		}
	}
	return collector, nil
}
