package domain

import (
	"context"
	"time"
)

type TrackID string

type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// VideoFrame is one uncompressed frame in RGBA order, Width*Height*4 bytes.
type VideoFrame struct {
	Width  int
	Height int
	Pixels []byte
	PTS    time.Duration
}

// AudioFrame is one block of interleaved PCM16 samples.
type AudioFrame struct {
	SampleRate int
	Channels   int
	Samples    []int16
	PTS        time.Duration
}

// VideoTrack is a live video sample source. Frames closes when the
// track ends, whether by Stop or by the underlying device going away.
type VideoTrack interface {
	ID() TrackID
	Frames() <-chan VideoFrame
	Stop(ctx context.Context) error
	OnEnded(fn func())
}

// AudioTrack is a live audio sample source.
type AudioTrack interface {
	ID() TrackID
	Label() string
	Samples() <-chan AudioFrame
	Stop(ctx context.Context) error
	OnEnded(fn func())
}

// MediaStream bundles the tracks a session sends. Video may be nil for
// audio-only sessions.
type MediaStream struct {
	Video VideoTrack
	Audio []AudioTrack
}

// StopAll stops every track in the stream, returning the first error.
func (m *MediaStream) StopAll(ctx context.Context) error {
	var first error
	if m.Video != nil {
		if err := m.Video.Stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	for _, a := range m.Audio {
		if err := a.Stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// TransportStats is a byte-level counter snapshot used by the health
// monitor to derive bitrate.
type TransportStats struct {
	BytesSent  uint64
	PacketLoss float64
	Latency    time.Duration
}
