package ports

import (
	"context"

	"streamcast/internal/core/domain"
)

// DeviceCatalog enumerates capture devices. Enumeration failures
// surface as an empty list, never as an error.
type DeviceCatalog interface {
	GetDevices(ctx context.Context) domain.DeviceList
	Invalidate()
}

// CaptureAcquirer turns a media source config into live tracks.
type CaptureAcquirer interface {
	Acquire(ctx context.Context, cfg domain.MediaSourceConfig) (*domain.MediaStream, error)
	ScreenCaptureSupported() bool
}

// Compositor merges camera and screen streams into one outgoing
// stream. Each Compose builds a fresh pipeline; Close tears down the
// last composed stream's derived tracks.
type Compositor interface {
	Compose(ctx context.Context, camera, screen *domain.MediaStream, cfg domain.MediaSourceConfig) (*domain.MediaStream, error)
	SetGains(mixer domain.AudioMixerConfig) error
	Close(ctx context.Context) error
}

// Transport carries the composed stream off the host. Exactly one
// transport is active per session. Events delivers normalized
// lifecycle signals until Close; the channel closes with the transport.
type Transport interface {
	Connect(ctx context.Context, session *domain.StreamSession, media *domain.MediaStream) error
	Close(ctx context.Context) error
	Events() <-chan domain.Event
	Stats() domain.TransportStats
}

// TransportFactory builds the transport for the configured mode.
type TransportFactory interface {
	New(mode domain.TransportMode) (Transport, error)
}

// SessionService drives the single broadcast session lifecycle.
type SessionService interface {
	StartPreview(ctx context.Context, cfg domain.MediaSourceConfig) (*domain.StreamSession, error)
	GoLive(ctx context.Context, mode domain.TransportMode, title, streamKey string) (*domain.StreamSession, error)
	Stop(ctx context.Context) error
	Status(ctx context.Context) (*domain.StreamSession, error)
	SaveClip(ctx context.Context) (string, error)
	SetMixerGains(ctx context.Context, mixer domain.AudioMixerConfig) error
}

// HealthMonitor samples advisory stream health while a session is live.
type HealthMonitor interface {
	Start(ctx context.Context, session domain.SessionID, stats func() domain.TransportStats)
	Stop()
	Latest() domain.StreamHealth
}

// MetricsSink receives session lifecycle and throughput figures. A
// nil sink is allowed; callers must guard for it.
type MetricsSink interface {
	SessionStateChanged(state domain.SessionState)
	ViewerCount(n int)
	BytesSent(total uint64)
	EncoderCrashed()
	ClipSaved()
}

// ClipBuffer retains the most recent media chunks for clip export.
type ClipBuffer interface {
	Add(chunk []byte)
	Save(dir string) (string, error)
	Reset()
	Len() int
}
