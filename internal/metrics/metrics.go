// Package metrics registers the prometheus collectors shared across the
// realtime subsystem. Collectors are package-level and registered once via
// Init, mirroring the process-wide registry prometheus itself keeps.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MatchesLive     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "arena_matches_live", Help: "currently live match simulations"})
	MatchesCreated  = prometheus.NewCounter(prometheus.CounterOpts{Name: "arena_matches_created_total", Help: "total matches created"})
	MatchesFinished = prometheus.NewCounter(prometheus.CounterOpts{Name: "arena_matches_finished_total", Help: "total matches that reached game over"})
	RoomsLive       = prometheus.NewGauge(prometheus.GaugeOpts{Name: "arena_rooms_live", Help: "currently open rooms"})
	QueueDepth      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "arena_queue_depth", Help: "players waiting in the matchmaking queue"})
	QueuePairs      = prometheus.NewCounter(prometheus.CounterOpts{Name: "arena_queue_pairs_total", Help: "total pairs produced by matchmaking"})
	Connections     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "arena_ws_connections", Help: "open websocket connections"})
	Broadcasts      = prometheus.NewCounter(prometheus.CounterOpts{Name: "arena_ws_broadcasts_total", Help: "state broadcasts fanned out"})
	DroppedSends    = prometheus.NewCounter(prometheus.CounterOpts{Name: "arena_ws_dropped_sends_total", Help: "subscriber sends that failed and removed the socket"})
)

var registered bool

// Init registers all collectors with the default prometheus registry. Safe to
// call once per process; tests exercising services skip it.
func Init() {
	if registered {
		return
	}
	registered = true
	prometheus.MustRegister(
		MatchesLive,
		MatchesCreated,
		MatchesFinished,
		RoomsLive,
		QueueDepth,
		QueuePairs,
		Connections,
		Broadcasts,
		DroppedSends,
	)
}
