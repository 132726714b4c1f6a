package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"streamcast/internal/core/domain"
)

type fakeVideoTrack struct {
	*VideoSourceTrack
	constraints Constraints
}

func newFakeVideo(c Constraints) *fakeVideoTrack {
	t := &fakeVideoTrack{VideoSourceTrack: newVideoSourceTrack(time.Second), constraints: c}
	go func() {
		<-t.stopReq
		close(t.frames)
		t.markEnded()
	}()
	return t
}

func testAcquirer() *Acquirer {
	a := NewAcquirer(zap.NewNop().Sugar(), "ffmpeg", time.Second)
	a.screenProbe = func() bool { return true }
	return a
}

func TestAcquireScreenShareUnsupported(t *testing.T) {
	a := testAcquirer()
	a.screenProbe = func() bool { return false }

	_, err := a.Acquire(context.Background(), domain.MediaSourceConfig{ScreenShare: true})
	assert.ErrorIs(t, err, domain.ErrScreenShareUnsupported)
}

func TestAcquireRetriesOnceWithRelaxedConstraints(t *testing.T) {
	a := testAcquirer()
	var attempts []Constraints
	a.startVideo = func(ctx context.Context, c Constraints) (domain.VideoTrack, error) {
		attempts = append(attempts, c)
		if len(attempts) == 1 {
			return nil, domain.ErrConstraintUnsatisfiable
		}
		return newFakeVideo(c), nil
	}

	stream, err := a.Acquire(context.Background(), domain.MediaSourceConfig{
		CameraDeviceID: "cam-0",
		Resolution:     domain.Res1080p,
	})
	require.NoError(t, err)
	require.NotNil(t, stream.Video)

	require.Len(t, attempts, 2)
	assert.Equal(t, 1920, attempts[0].Width)
	assert.Equal(t, 640, attempts[1].Width)
	assert.Equal(t, 15, attempts[1].FrameRate)
	assert.Equal(t, "cam-0", attempts[1].DeviceID)
}

func TestAcquireConstraintFailureAfterRetry(t *testing.T) {
	a := testAcquirer()
	calls := 0
	a.startVideo = func(ctx context.Context, c Constraints) (domain.VideoTrack, error) {
		calls++
		return nil, domain.ErrConstraintUnsatisfiable
	}

	_, err := a.Acquire(context.Background(), domain.MediaSourceConfig{CameraDeviceID: "cam-0"})
	assert.ErrorIs(t, err, domain.ErrConstraintUnsatisfiable)
	assert.Equal(t, 2, calls)
}

func TestAcquirePermissionDeniedIsTerminal(t *testing.T) {
	a := testAcquirer()
	calls := 0
	a.startVideo = func(ctx context.Context, c Constraints) (domain.VideoTrack, error) {
		calls++
		return nil, domain.ErrPermissionDenied
	}

	_, err := a.Acquire(context.Background(), domain.MediaSourceConfig{CameraDeviceID: "cam-0"})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Equal(t, 1, calls)
}

func TestAcquireAudioFailureStopsVideo(t *testing.T) {
	a := testAcquirer()
	video := newFakeVideo(Constraints{})
	a.startVideo = func(ctx context.Context, c Constraints) (domain.VideoTrack, error) {
		return video, nil
	}
	a.startAudio = func(ctx context.Context, deviceID, label string) (domain.AudioTrack, error) {
		return nil, domain.ErrDeviceBusy
	}

	_, err := a.Acquire(context.Background(), domain.MediaSourceConfig{
		CameraDeviceID: "cam-0",
		MicDeviceID:    "mic-0",
	})
	assert.ErrorIs(t, err, domain.ErrDeviceBusy)

	select {
	case <-video.done:
	case <-time.After(time.Second):
		t.Fatal("video track was not stopped")
	}
}

func TestAcquireAudioOnly(t *testing.T) {
	a := testAcquirer()
	a.startAudio = func(ctx context.Context, deviceID, label string) (domain.AudioTrack, error) {
		at := newAudioSourceTrack(label, time.Second)
		go func() {
			<-at.stopReq
			close(at.samples)
			at.markEnded()
		}()
		return at, nil
	}

	stream, err := a.Acquire(context.Background(), domain.MediaSourceConfig{
		MicDeviceID:   "mic-0",
		SystemAudioID: "monitor-0",
	})
	require.NoError(t, err)
	assert.Nil(t, stream.Video)
	assert.Len(t, stream.Audio, 2)
	assert.Equal(t, "microphone", stream.Audio[0].Label())
	assert.Equal(t, "systemAudio", stream.Audio[1].Label())
}
