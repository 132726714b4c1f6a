package capture

import (
	"context"
	"sync"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/pkg/utils"
)

// trackBase carries the lifecycle shared by audio and video tracks:
// a stop request channel, a done channel closed when the source
// acknowledges, and OnEnded hooks fired only on unsolicited ends.
type trackBase struct {
	id       domain.TrackID
	watchdog time.Duration

	stopReq  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once

	mu       sync.Mutex
	stopping bool
	onEnded  []func()
}

func newTrackBase(prefix string, watchdog time.Duration) trackBase {
	return trackBase{
		id:       domain.TrackID(utils.GenerateID(prefix)),
		watchdog: watchdog,
		stopReq:  make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (t *trackBase) ID() domain.TrackID {
	return t.id
}

func (t *trackBase) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = append(t.onEnded, fn)
}

// Stop requests the source to end and waits for acknowledgement. The
// watchdog bounds the wait; an unresponsive source is abandoned
// without error so teardown can proceed.
func (t *trackBase) Stop(ctx context.Context) error {
	t.mu.Lock()
	t.stopping = true
	t.mu.Unlock()
	t.stopOnce.Do(func() { close(t.stopReq) })

	select {
	case <-t.done:
		return nil
	case <-time.After(t.watchdog):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// markEnded closes done and fires OnEnded hooks unless the end was
// requested through Stop.
func (t *trackBase) markEnded() {
	t.mu.Lock()
	solicited := t.stopping
	hooks := t.onEnded
	t.mu.Unlock()

	t.doneOnce.Do(func() { close(t.done) })
	if solicited {
		return
	}
	for _, fn := range hooks {
		fn()
	}
}

// VideoSourceTrack is a live camera or screen track producing raw
// frames from a capture subprocess or a synthetic generator.
type VideoSourceTrack struct {
	trackBase
	frames chan domain.VideoFrame
}

func newVideoSourceTrack(watchdog time.Duration) *VideoSourceTrack {
	return &VideoSourceTrack{
		trackBase: newTrackBase("video", watchdog),
		frames:    make(chan domain.VideoFrame, 4),
	}
}

func (t *VideoSourceTrack) Frames() <-chan domain.VideoFrame {
	return t.frames
}

// AudioSourceTrack is a live PCM track for one audio device.
type AudioSourceTrack struct {
	trackBase
	label   string
	samples chan domain.AudioFrame
}

func newAudioSourceTrack(label string, watchdog time.Duration) *AudioSourceTrack {
	return &AudioSourceTrack{
		trackBase: newTrackBase("audio", watchdog),
		label:     label,
		samples:   make(chan domain.AudioFrame, 8),
	}
}

func (t *AudioSourceTrack) Label() string {
	return t.label
}

func (t *AudioSourceTrack) Samples() <-chan domain.AudioFrame {
	return t.samples
}
