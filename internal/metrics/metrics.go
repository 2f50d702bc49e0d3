package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reasons used with FramesDropped.
const (
	DropMalformed    = "malformed"
	DropNoTarget     = "no_target"
	DropMissingField = "missing_target"
	DropForbidden    = "forbidden_type"
	DropUnknown      = "unknown_type"
	DropBackpressure = "backpressure"
	DropRateLimited  = "rate_limited"
)

var (
	reg = prometheus.NewRegistry()

	WSConnections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wiremeet_ws_connections_total", Help: "Total signaling connections accepted",
	})
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wiremeet_connections_active", Help: "Currently registered connections",
	})
	RoomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wiremeet_rooms_active", Help: "Rooms with at least one member",
	})
	FramesRouted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wiremeet_frames_routed_total", Help: "Inbound frames routed, by type",
	}, []string{"type"})
	FramesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wiremeet_frames_dropped_total", Help: "Frames dropped, by reason",
	}, []string{"reason"})
	FrameSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wiremeet_ws_frame_bytes",
		Help:    "WebSocket frame sizes",
		Buckets: []float64{64, 256, 1024, 4096, 16384, 65536},
	}, []string{"dir"})
	ParticipationErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wiremeet_participation_errors_total", Help: "Failed participation store operations",
	}, []string{"op"})
)

func init() {
	reg.MustRegister(
		WSConnections, ConnectionsActive, RoomsActive,
		FramesRouted, FramesDropped, FrameSize,
		ParticipationErrors,
	)
}

// Handler exposes the registry in Prometheus text format.
func Handler() http.Handler { return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}) }

func SetRooms(n int)       { RoomsActive.Set(float64(n)) }
func SetConnections(n int) { ConnectionsActive.Set(float64(n)) }

// Dropped counts one dropped frame.
func Dropped(reason string) { FramesDropped.WithLabelValues(reason).Inc() }
