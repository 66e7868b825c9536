package registration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registrationsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "registry",
	Name:      "registrations_total",
	Help:      "Number of registration attempts by result",
}, []string{"result"})
