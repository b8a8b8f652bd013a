package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeAuthenticated = "authenticated"
	OutcomeRejected      = "rejected"
	OutcomeExpired       = "expired"
	OutcomeError         = "error"
)

var AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "auth_attempts_total",
	Help: "Authentication attempts by outcome.",
}, []string{"outcome"})
