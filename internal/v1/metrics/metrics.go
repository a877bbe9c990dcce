// Package metrics declares the Prometheus collectors for the game session
// service.
//
// Naming convention: namespace_subsystem_name
//   - namespace: eurus
//   - subsystem: room, broker, repository, http
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveRooms tracks the number of room runtimes currently alive.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eurus",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of live room runtimes",
	})

	// RoomsCreated counts room creations by outcome.
	RoomsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eurus",
		Subsystem: "room",
		Name:      "created_total",
		Help:      "Total room creation attempts",
	}, []string{"status"})

	// MessagesProcessed counts broker messages handled by the runtimes.
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eurus",
		Subsystem: "room",
		Name:      "messages_total",
		Help:      "Total broker messages processed by room runtimes",
	}, []string{"request", "status"})

	// RepositoryRequests counts requests served by the repository actor.
	RepositoryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eurus",
		Subsystem: "repository",
		Name:      "requests_total",
		Help:      "Total requests served by the repository actor",
	}, []string{"request", "status"})

	// PublishFailures counts outbound publishes that the broker rejected.
	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eurus",
		Subsystem: "broker",
		Name:      "publish_failures_total",
		Help:      "Total failed publishes to the broker",
	})

	// ReconnectAttempts counts broker reconnect attempts across all rooms.
	ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eurus",
		Subsystem: "broker",
		Name:      "reconnect_attempts_total",
		Help:      "Total broker reconnect attempts",
	})

	// RoomCreationDuration tracks the latency of the full room creation flow
	// (persist, connect, subscribe, announce).
	RoomCreationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "eurus",
		Subsystem: "http",
		Name:      "room_creation_seconds",
		Help:      "Time spent creating a room end to end",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})
)
