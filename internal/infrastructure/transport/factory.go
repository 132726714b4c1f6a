package transport

import (
	"time"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/infrastructure/native"
	"streamcast/pkg/config"
)

// Factory builds the transport for a requested mode from the static
// configuration. sfu and hls are recognized but have no fan-out
// server to talk to, so selecting them fails before any media flows.
type Factory struct {
	log   *zap.SugaredLogger
	cfg   *config.Config
	clips *ClipBuffer
}

func NewFactory(log *zap.SugaredLogger, cfg *config.Config, clips *ClipBuffer) *Factory {
	return &Factory{log: log, cfg: cfg, clips: clips}
}

func (f *Factory) New(mode domain.TransportMode) (ports.Transport, error) {
	switch mode {
	case domain.TransportMesh:
		m, err := NewMesh(f.log, MeshConfig{
			SignalingURL: f.cfg.Signaling.URL,
			DialAttempts: f.cfg.Signaling.DialAttempts,
			ICEServers:   f.iceServers(),
			ICETimeout:   f.cfg.WebRTC.ICETimeout,
			EncoderPath:  f.cfg.Native.EncoderPath,
		})
		if err != nil {
			return nil, err
		}
		return m, nil

	case domain.TransportRelay:
		return NewRelay(f.log, RelayConfig{
			URL:              f.cfg.Relay.URL,
			ConnectTimeout:   f.cfg.Relay.ConnectTimeout,
			EncoderPath:      f.cfg.Native.EncoderPath,
			Timeslice:        timesliceFor(f.cfg.Capture.MobileProfile),
			VideoBitrateKbps: f.cfg.Native.BitrateKbps,
			AudioBitrateKbps: 160,
			RecordDir:        recordDir(f.cfg),
			RTMPURL:          f.cfg.Relay.RTMPURL,
		}, f.clips), nil

	case domain.TransportNative:
		return native.NewPipeline(f.log, native.PipelineConfig{
			EncoderPath:  f.cfg.Native.EncoderPath,
			Display:      f.cfg.Native.DisplayInput,
			FrameRate:    f.cfg.Native.FrameRate,
			BitrateKbps:  f.cfg.Native.BitrateKbps,
			KeyframeSecs: f.cfg.Native.KeyframeSecs,
			IngestBase:   f.cfg.Native.IngestURL,
			StopGrace:    f.cfg.Native.StopGrace,
		}), nil

	default:
		return nil, domain.ErrTransportUnsupported
	}
}

func (f *Factory) iceServers() []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	for _, s := range f.cfg.WebRTC.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return servers
}

func recordDir(cfg *config.Config) string {
	if !cfg.Recordings.Enabled {
		return ""
	}
	return cfg.Recordings.OutputDir
}

// timesliceFor picks the chunk interval: mobile uploads benefit from
// smaller, more frequent chunks.
func timesliceFor(mobile bool) time.Duration {
	if mobile {
		return 500 * time.Millisecond
	}
	return time.Second
}
