package metrics

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session Metrics
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "napkin_sessions_active",
		Help: "The current number of registered design sessions.",
	})
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "napkin_sessions_created_total",
		Help: "The total number of design sessions created.",
	})
	SnapshotsTaken = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "napkin_snapshots_total",
		Help: "The total number of document snapshots appended to history.",
	}, []string{"source"})
	WritesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "napkin_writes_rejected_total",
		Help: "The total number of document writes rejected by validation.",
	})
	Rollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "napkin_rollbacks_total",
		Help: "The total number of successful history rollbacks.",
	})

	// Viewer Metrics
	ViewersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "napkin_viewers_active",
		Help: "The current number of connected viewer sockets.",
	})
	ViewersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "napkin_viewers_total",
		Help: "The total number of viewer connections accepted.",
	})
	BroadcastsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "napkin_broadcasts_sent_total",
		Help: "The total number of events fanned out to viewers.",
	})

	// Persistence Metrics
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "napkin_persist_failures_total",
		Help: "The total number of failed background session persists.",
	})
)

// StartServer starts the HTTP server for Prometheus metrics.
func StartServer(port int, path string) {
	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Starting metrics server on %s%s", addr, path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
	}()
}
