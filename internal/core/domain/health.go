package domain

import "time"

// StreamQuality is the server-reported or locally derived signal quality.
type StreamQuality string

const (
	QualityGood     StreamQuality = "good"
	QualityDegraded StreamQuality = "degraded"
	QualityPoor     StreamQuality = "poor"
)

// StreamHealth is an advisory sample of the outgoing stream. It never
// drives state transitions.
type StreamHealth struct {
	BitrateKbps int
	FrameRate   int
	Quality     StreamQuality
	PacketLoss  float64
	Latency     time.Duration
	SampledAt   time.Time
}
