package compositor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"streamcast/internal/core/domain"
)

// Compositor merges camera and screen streams into one outgoing
// stream. Every Compose builds a fresh pipeline; the previous one is
// torn down first, never mutated in place.
type Compositor struct {
	log *zap.SugaredLogger

	mu      sync.Mutex
	current *domain.MediaStream
	gains   *gainControl
}

func New(log *zap.SugaredLogger) *Compositor {
	return &Compositor{log: log}
}

func (c *Compositor) Compose(ctx context.Context, camera, screen *domain.MediaStream, cfg domain.MediaSourceConfig) (*domain.MediaStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.stopDerived(ctx)
	}
	c.gains = newGainControl(cfg.Mixer)

	out := &domain.MediaStream{}
	out.Video = c.composeVideo(camera, screen, cfg)
	out.Audio = c.composeAudio(camera, screen, cfg)

	c.current = out
	return out, nil
}

// SetGains adjusts mixer gains on the running mix without rebuilding
// the pipeline. Gains are clamped to the allowed range.
func (c *Compositor) SetGains(mixer domain.AudioMixerConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gains == nil {
		return nil
	}
	mixer.MicGain = domain.ClampGain(mixer.MicGain)
	mixer.SystemAudioGain = domain.ClampGain(mixer.SystemAudioGain)
	c.gains.set(mixer)
	c.log.Infow("mixer gains updated", "micGain", mixer.MicGain, "systemGain", mixer.SystemAudioGain)
	return nil
}

// Close tears down the derived tracks from the last Compose.
func (c *Compositor) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopDerived(ctx)
	return nil
}

func (c *Compositor) stopDerived(ctx context.Context) {
	if c.current == nil {
		return
	}
	if _, ok := c.current.Video.(*derivedVideoTrack); ok {
		c.current.Video.Stop(ctx)
	}
	for _, a := range c.current.Audio {
		if _, ok := a.(*derivedAudioTrack); ok {
			a.Stop(ctx)
		}
	}
	c.current = nil
}

// composeVideo returns the sole video track untouched, or starts the
// PiP canvas when both camera and screen are present.
func (c *Compositor) composeVideo(camera, screen *domain.MediaStream, cfg domain.MediaSourceConfig) domain.VideoTrack {
	var camTrack, screenTrack domain.VideoTrack
	if camera != nil {
		camTrack = camera.Video
	}
	if screen != nil {
		screenTrack = screen.Video
	}

	switch {
	case camTrack == nil && screenTrack == nil:
		return nil
	case screenTrack == nil:
		return camTrack
	case camTrack == nil:
		return screenTrack
	}

	w, h := cfg.Resolution.Dimensions()
	out := newDerivedVideoTrack()
	go runCanvas(out, screenTrack, camTrack, w, h)
	c.log.Infow("picture-in-picture canvas started", "width", w, "height", h)
	return out
}

// runCanvas paces on screen frames, scaling each to the canvas and
// overlaying the most recent camera frame.
func runCanvas(out *derivedVideoTrack, screen, camera domain.VideoTrack, w, h int) {
	defer out.finish()

	var lastCam domain.VideoFrame
	haveCam := false
	for {
		var frame domain.VideoFrame
		var ok bool
		select {
		case frame, ok = <-screen.Frames():
			if !ok {
				return
			}
		case <-out.stopReq:
			return
		}

		select {
		case cam, camOK := <-camera.Frames():
			if camOK {
				lastCam = cam
				haveCam = true
			}
		default:
		}

		canvas := scaleRGBA(frame, w, h)
		if haveCam {
			drawPiP(canvas, w, h, lastCam)
		}

		composed := domain.VideoFrame{Width: w, Height: h, Pixels: canvas, PTS: frame.PTS}
		select {
		case out.frames <- composed:
		case <-out.stopReq:
			return
		}
	}
}

// composeAudio mixes every active audio track with its configured
// gain. A single track passes through untouched; a failed mix setup
// falls back to the primary source audio.
func (c *Compositor) composeAudio(camera, screen *domain.MediaStream, cfg domain.MediaSourceConfig) []domain.AudioTrack {
	var tracks []domain.AudioTrack
	if camera != nil {
		tracks = append(tracks, camera.Audio...)
	}
	if screen != nil {
		tracks = append(tracks, screen.Audio...)
	}

	switch len(tracks) {
	case 0:
		return nil
	case 1:
		return tracks
	}

	out := newDerivedAudioTrack()
	go runAudioMix(out, tracks[0], tracks[1:], c.gains)
	c.log.Infow("audio mix started", "sources", len(tracks),
		"micGain", cfg.Mixer.MicGain, "systemGain", cfg.Mixer.SystemAudioGain)
	return []domain.AudioTrack{out}
}
