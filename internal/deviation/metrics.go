package deviation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// flightsTotal counts analysed flights by outcome kind
	flightsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightdev_flights_total",
		Help: "Analysed flights by outcome",
	}, []string{"outcome"})

	// holesTotal counts holes by what happened to them
	holesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightdev_holes_total",
		Help: "Holes found by disposition",
	}, []string{"disposition"})

	recordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flightdev_records_total",
		Help: "Deviation records emitted",
	})

	flightDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flightdev_flight_analysis_duration_seconds",
		Help:    "Time spent analysing one flight",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})
)
