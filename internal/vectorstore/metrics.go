// Package vectorstore provides Prometheus metrics for store health monitoring.
package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchesTotal counts similarity searches by backend.
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusd",
			Subsystem: "vectorstore",
			Name:      "searches_total",
			Help:      "Total number of similarity searches",
		},
		[]string{"backend"},
	)

	// VectorsAddedTotal counts vectors inserted by backend.
	VectorsAddedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusd",
			Subsystem: "vectorstore",
			Name:      "vectors_added_total",
			Help:      "Total number of vectors added",
		},
		[]string{"backend"},
	)

	// VectorsDeletedTotal counts vectors removed by backend.
	VectorsDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusd",
			Subsystem: "vectorstore",
			Name:      "vectors_deleted_total",
			Help:      "Total number of vectors deleted",
		},
		[]string{"backend"},
	)

	// OrphansDetectedTotal counts consistency orphans by kind.
	// Labels: kind (vector, metadata)
	OrphansDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusd",
			Subsystem: "vectorstore",
			Name:      "orphans_detected_total",
			Help:      "Total number of orphaned index/metadata halves detected",
		},
		[]string{"kind"},
	)

	// RepairsTotal counts orphaned halves removed by consistency repair.
	RepairsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "corpusd",
			Subsystem: "vectorstore",
			Name:      "repairs_total",
			Help:      "Total number of orphaned halves removed by repair",
		},
	)
)

func recordSearch(backend Backend) {
	SearchesTotal.WithLabelValues(string(backend)).Inc()
}

func recordAdd(backend Backend, n int) {
	VectorsAddedTotal.WithLabelValues(string(backend)).Add(float64(n))
}

func recordDelete(backend Backend, n int) {
	VectorsDeletedTotal.WithLabelValues(string(backend)).Add(float64(n))
}

func recordOrphan(kind string) {
	OrphansDetectedTotal.WithLabelValues(kind).Inc()
}

func recordRepair(n int) {
	RepairsTotal.Add(float64(n))
}
