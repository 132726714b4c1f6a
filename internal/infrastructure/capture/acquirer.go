package capture

import (
	"context"
	"errors"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"streamcast/internal/core/domain"
)

// Acquirer turns a media source config into live tracks. One call
// acquires one video source (camera, or screen when no camera id is
// set) plus the configured audio devices; sessions that want camera
// AND screen call Acquire twice with different configs.
type Acquirer struct {
	log         *zap.SugaredLogger
	encoderPath string
	stopTimeout time.Duration

	startVideo  func(ctx context.Context, c Constraints) (domain.VideoTrack, error)
	startAudio  func(ctx context.Context, deviceID, label string) (domain.AudioTrack, error)
	screenProbe func() bool
}

func NewAcquirer(log *zap.SugaredLogger, encoderPath string, stopTimeout time.Duration) *Acquirer {
	a := &Acquirer{
		log:         log,
		encoderPath: encoderPath,
		stopTimeout: stopTimeout,
		screenProbe: probeScreenCapture,
	}
	a.startVideo = func(ctx context.Context, c Constraints) (domain.VideoTrack, error) {
		return startVideoReader(ctx, log, encoderPath, c, stopTimeout)
	}
	a.startAudio = func(ctx context.Context, deviceID, label string) (domain.AudioTrack, error) {
		return startAudioReader(ctx, log, encoderPath, deviceID, label, stopTimeout)
	}
	return a
}

func (a *Acquirer) ScreenCaptureSupported() bool {
	return a.screenProbe()
}

func (a *Acquirer) Acquire(ctx context.Context, cfg domain.MediaSourceConfig) (*domain.MediaStream, error) {
	if cfg.ScreenShare && !a.ScreenCaptureSupported() {
		return nil, domain.ErrScreenShareUnsupported
	}

	stream := &domain.MediaStream{}

	wantVideo := cfg.CameraDeviceID != "" || cfg.ScreenShare
	if wantVideo {
		video, err := a.acquireVideo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		stream.Video = video
	}

	if cfg.MicDeviceID != "" {
		mic, err := a.startAudio(ctx, string(cfg.MicDeviceID), "microphone")
		if err != nil {
			stream.StopAll(ctx)
			return nil, err
		}
		stream.Audio = append(stream.Audio, mic)
	}
	if cfg.SystemAudioID != "" {
		sys, err := a.startAudio(ctx, string(cfg.SystemAudioID), "systemAudio")
		if err != nil {
			stream.StopAll(ctx)
			return nil, err
		}
		stream.Audio = append(stream.Audio, sys)
	}

	return stream, nil
}

// acquireVideo tries the requested constraints, then retries exactly
// once with minimal constraints before giving up. Permission, device
// and busy failures are terminal on the first attempt.
func (a *Acquirer) acquireVideo(ctx context.Context, cfg domain.MediaSourceConfig) (domain.VideoTrack, error) {
	c := videoConstraints(cfg)
	track, err := a.startVideo(ctx, c)
	if err == nil {
		return track, nil
	}
	if !errors.Is(err, domain.ErrConstraintUnsatisfiable) {
		return nil, err
	}

	a.log.Warnw("capture constraints rejected, retrying with minimal constraints",
		"device", c.DeviceID, "width", c.Width, "height", c.Height, "error", err)

	track, err = a.startVideo(ctx, c.relaxed())
	if err != nil {
		return nil, err
	}
	return track, nil
}

// probeScreenCapture reports whether the host can grab the screen at
// all. Linux needs a display server; the other platforms always have
// a grabbable desktop.
func probeScreenCapture() bool {
	if runtime.GOOS != "linux" {
		return true
	}
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}
