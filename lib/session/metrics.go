package session

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	challengesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "isnad_challenges_issued",
		Help: "The total number of challenges issued",
	})

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "isnad_verifications_total",
		Help: "The total number of verification attempts by outcome",
	}, []string{"outcome"})

	timeTaken = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "isnad_time_taken",
		Help:    "The time taken for an agent to solve a challenge (milliseconds)",
		Buckets: prometheus.ExponentialBucketsRange(1, math.Pow(2, 20), 20),
	})
)
