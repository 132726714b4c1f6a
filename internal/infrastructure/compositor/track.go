package compositor

import (
	"context"
	"sync"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/pkg/utils"
)

// derivedVideoTrack is the compositor's output video track. Stopping
// it halts compositing but leaves the source tracks running; their
// lifecycle belongs to the session.
type derivedVideoTrack struct {
	id     domain.TrackID
	frames chan domain.VideoFrame

	stopReq  chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	onEnded []func()
}

func newDerivedVideoTrack() *derivedVideoTrack {
	return &derivedVideoTrack{
		id:      domain.TrackID(utils.GenerateID("composed-video")),
		frames:  make(chan domain.VideoFrame, 2),
		stopReq: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (t *derivedVideoTrack) ID() domain.TrackID               { return t.id }
func (t *derivedVideoTrack) Frames() <-chan domain.VideoFrame { return t.frames }

func (t *derivedVideoTrack) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = append(t.onEnded, fn)
}

func (t *derivedVideoTrack) Stop(ctx context.Context) error {
	t.stopOnce.Do(func() { close(t.stopReq) })
	select {
	case <-t.done:
		return nil
	case <-time.After(time.Second):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *derivedVideoTrack) finish() {
	close(t.frames)
	close(t.done)
	t.mu.Lock()
	hooks := t.onEnded
	t.mu.Unlock()
	select {
	case <-t.stopReq:
		return
	default:
	}
	for _, fn := range hooks {
		fn()
	}
}

// derivedAudioTrack is the mixed audio output track.
type derivedAudioTrack struct {
	id      domain.TrackID
	samples chan domain.AudioFrame

	stopReq  chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	onEnded []func()
}

func newDerivedAudioTrack() *derivedAudioTrack {
	return &derivedAudioTrack{
		id:      domain.TrackID(utils.GenerateID("mixed-audio")),
		samples: make(chan domain.AudioFrame, 4),
		stopReq: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (t *derivedAudioTrack) ID() domain.TrackID                { return t.id }
func (t *derivedAudioTrack) Label() string                     { return "mixed" }
func (t *derivedAudioTrack) Samples() <-chan domain.AudioFrame { return t.samples }

func (t *derivedAudioTrack) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = append(t.onEnded, fn)
}

func (t *derivedAudioTrack) Stop(ctx context.Context) error {
	t.stopOnce.Do(func() { close(t.stopReq) })
	select {
	case <-t.done:
		return nil
	case <-time.After(time.Second):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *derivedAudioTrack) finish() {
	close(t.samples)
	close(t.done)
	t.mu.Lock()
	hooks := t.onEnded
	t.mu.Unlock()
	select {
	case <-t.stopReq:
		return
	default:
	}
	for _, fn := range hooks {
		fn()
	}
}
