package nonce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	issuedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "nonce",
		Name:      "issued_total",
		Help:      "Number of nonces issued",
	})

	verifyMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "nonce",
		Name:      "verify_total",
		Help:      "Number of nonce verifications by result",
	}, []string{"result"})
)
