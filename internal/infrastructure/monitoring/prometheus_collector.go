package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"streamcast/internal/core/domain"
)

// PrometheusCollector exports session lifecycle and throughput
// figures. It implements ports.MetricsSink.
type PrometheusCollector struct {
	sessionState   *prometheus.GaugeVec
	viewersCurrent prometheus.Gauge
	bytesSentTotal prometheus.Gauge
	encoderCrashes prometheus.Counter
	clipsSaved     prometheus.Counter
	healthBitrate  prometheus.Gauge
	healthLoss     prometheus.Gauge
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		sessionState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streamcast_session_state",
			Help: "Current session state, 1 for the active state and 0 otherwise",
		}, []string{"state"}),

		viewersCurrent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streamcast_viewers_current",
			Help: "Server-reported viewer count of the live session",
		}),

		bytesSentTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streamcast_bytes_sent_total",
			Help: "Cumulative bytes handed to the active transport",
		}),

		encoderCrashes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streamcast_encoder_crashes_total",
			Help: "Encoder subprocess exits outside of a deliberate stop",
		}),

		clipsSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streamcast_clips_saved_total",
			Help: "Clips exported from the retained chunk buffer",
		}),

		healthBitrate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streamcast_health_bitrate_kbps",
			Help: "Advisory outgoing bitrate from the health monitor",
		}),

		healthLoss: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streamcast_health_packet_loss_ratio",
			Help: "Advisory packet loss reported by receivers",
		}),
	}
}

var sessionStates = []domain.SessionState{
	domain.StateIdle,
	domain.StatePreview,
	domain.StateConnecting,
	domain.StateLive,
	domain.StateError,
}

func (c *PrometheusCollector) SessionStateChanged(state domain.SessionState) {
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		c.sessionState.WithLabelValues(string(s)).Set(v)
	}
}

func (c *PrometheusCollector) ViewerCount(n int) {
	c.viewersCurrent.Set(float64(n))
}

func (c *PrometheusCollector) BytesSent(total uint64) {
	c.bytesSentTotal.Set(float64(total))
}

func (c *PrometheusCollector) EncoderCrashed() {
	c.encoderCrashes.Inc()
}

func (c *PrometheusCollector) ClipSaved() {
	c.clipsSaved.Inc()
}

// RecordHealth mirrors the latest health sample into the exported
// gauges.
func (c *PrometheusCollector) RecordHealth(h domain.StreamHealth) {
	c.healthBitrate.Set(float64(h.BitrateKbps))
	c.healthLoss.Set(h.PacketLoss)
}
