package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
)

// healthMonitor samples transport counters on a fixed interval and
// derives an advisory bitrate from the byte delta. Samples inform the
// UI and metrics only; the session state machine never reads them.
type healthMonitor struct {
	log      *zap.SugaredLogger
	interval time.Duration

	mu        sync.Mutex
	cancel    context.CancelFunc
	latest    domain.StreamHealth
	lastBytes uint64
	lastAt    time.Time
}

func NewHealthMonitor(log *zap.SugaredLogger, interval time.Duration) ports.HealthMonitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &healthMonitor{log: log, interval: interval}
}

func (h *healthMonitor) Start(ctx context.Context, session domain.SessionID, stats func() domain.TransportStats) {
	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.latest = domain.StreamHealth{}
	h.lastBytes = 0
	h.lastAt = time.Now()
	h.mu.Unlock()

	go h.sample(ctx, session, stats)
}

func (h *healthMonitor) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

func (h *healthMonitor) Latest() domain.StreamHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

func (h *healthMonitor) sample(ctx context.Context, session domain.SessionID, stats func() domain.TransportStats) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			st := stats()

			h.mu.Lock()
			elapsed := now.Sub(h.lastAt).Seconds()
			var kbps int
			if elapsed > 0 && st.BytesSent >= h.lastBytes {
				kbps = int(float64(st.BytesSent-h.lastBytes) * 8 / 1000 / elapsed)
			}
			h.lastBytes = st.BytesSent
			h.lastAt = now
			h.latest = domain.StreamHealth{
				BitrateKbps: kbps,
				Quality:     qualityFor(kbps, st.PacketLoss),
				PacketLoss:  st.PacketLoss,
				Latency:     st.Latency,
				SampledAt:   now,
			}
			latest := h.latest
			h.mu.Unlock()

			h.log.Debugw("health sample", "session", session,
				"bitrateKbps", latest.BitrateKbps, "quality", latest.Quality, "loss", latest.PacketLoss)
		case <-ctx.Done():
			return
		}
	}
}

// qualityFor grades the sample. Thresholds follow common RTMP ingest
// guidance: sustained loss above 5% or a collapsed bitrate is poor.
func qualityFor(kbps int, loss float64) domain.StreamQuality {
	switch {
	case loss > 0.05 || (kbps > 0 && kbps < 300):
		return domain.QualityPoor
	case loss > 0.02 || (kbps > 0 && kbps < 800):
		return domain.QualityDegraded
	default:
		return domain.QualityGood
	}
}
