package domain

import (
	"time"
)

type SessionID string
type PeerID string
type DeviceID string
type ClipID string

// SessionState is the lifecycle state of the single broadcast session.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StatePreview    SessionState = "preview"
	StateConnecting SessionState = "connecting"
	StateLive       SessionState = "live"
	StateError      SessionState = "error"
)

// TransportMode selects how composed media leaves the host.
type TransportMode string

const (
	TransportMesh   TransportMode = "mesh"
	TransportRelay  TransportMode = "relay"
	TransportNative TransportMode = "native"

	// Recognized but not constructible; selecting them yields
	// ErrTransportUnsupported until a fan-out server exists.
	TransportSFU TransportMode = "sfu"
	TransportHLS TransportMode = "hls"
)

type StreamSession struct {
	ID          SessionID
	State       SessionState
	Transport   TransportMode
	Title       string
	StreamKey   string
	Source      MediaSourceConfig
	ViewerCount int
	StartedAt   time.Time
	Duration    time.Duration
	Health      StreamHealth
	LastError   string
}

// MediaSourceConfig describes what the session should capture and how.
type MediaSourceConfig struct {
	CameraDeviceID DeviceID
	MicDeviceID    DeviceID
	SystemAudioID  DeviceID
	ScreenShare    bool
	Resolution     ResolutionPreset
	FrameRate      int
	BitrateKbps    int
	MobileProfile  bool
	Mixer          AudioMixerConfig
}

type ResolutionPreset string

const (
	Res360p  ResolutionPreset = "360p"
	Res480p  ResolutionPreset = "480p"
	Res720p  ResolutionPreset = "720p"
	Res1080p ResolutionPreset = "1080p"
)

// Dimensions returns pixel width and height for the preset.
// Unknown presets fall back to 720p.
func (r ResolutionPreset) Dimensions() (width, height int) {
	switch r {
	case Res360p:
		return 640, 360
	case Res480p:
		return 854, 480
	case Res720p:
		return 1280, 720
	case Res1080p:
		return 1920, 1080
	default:
		return 1280, 720
	}
}
