package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	heightMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "registry",
		Subsystem: "ledger",
		Name:      "height",
		Help:      "Number of blocks in the chain, genesis included",
	})

	appendMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "ledger",
		Name:      "append_total",
		Help:      "Number of block append attempts by result",
	}, []string{"result"})

	persistLatencyMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "registry",
		Subsystem: "ledger",
		Name:      "persist_latency_seconds",
		Help:      "Latency of full chain rewrites",
		Buckets:   prometheus.ExponentialBuckets(0.001, 1.5, 20),
	})
)
