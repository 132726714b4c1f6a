package compositor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"streamcast/internal/core/domain"
)

// testVideoTrack feeds canned frames.
type testVideoTrack struct {
	id     domain.TrackID
	frames chan domain.VideoFrame
}

func newTestVideoTrack() *testVideoTrack {
	return &testVideoTrack{id: "test-video", frames: make(chan domain.VideoFrame, 16)}
}

func (t *testVideoTrack) ID() domain.TrackID               { return t.id }
func (t *testVideoTrack) Frames() <-chan domain.VideoFrame { return t.frames }
func (t *testVideoTrack) Stop(context.Context) error       { return nil }
func (t *testVideoTrack) OnEnded(func())                   {}

type testAudioTrack struct {
	id      domain.TrackID
	label   string
	samples chan domain.AudioFrame
}

func newTestAudioTrack(label string) *testAudioTrack {
	return &testAudioTrack{id: domain.TrackID("test-" + label), label: label, samples: make(chan domain.AudioFrame, 16)}
}

func (t *testAudioTrack) ID() domain.TrackID                { return t.id }
func (t *testAudioTrack) Label() string                     { return t.label }
func (t *testAudioTrack) Samples() <-chan domain.AudioFrame { return t.samples }
func (t *testAudioTrack) Stop(context.Context) error        { return nil }
func (t *testAudioTrack) OnEnded(func())                    {}

func solidFrame(w, h int, r, g, b byte) domain.VideoFrame {
	px := make([]byte, w*h*4)
	for i := 0; i < len(px); i += 4 {
		px[i], px[i+1], px[i+2], px[i+3] = r, g, b, 255
	}
	return domain.VideoFrame{Width: w, Height: h, Pixels: px}
}

func TestComposeSingleVideoPassesThrough(t *testing.T) {
	c := New(zap.NewNop().Sugar())
	cam := newTestVideoTrack()

	out, err := c.Compose(context.Background(), &domain.MediaStream{Video: cam}, nil, domain.MediaSourceConfig{})
	require.NoError(t, err)
	assert.Same(t, domain.VideoTrack(cam), out.Video)
}

func TestComposeBothBuildsPiP(t *testing.T) {
	c := New(zap.NewNop().Sugar())
	cam := newTestVideoTrack()
	screen := newTestVideoTrack()

	cfg := domain.MediaSourceConfig{Resolution: domain.Res360p}
	out, err := c.Compose(context.Background(),
		&domain.MediaStream{Video: cam},
		&domain.MediaStream{Video: screen},
		cfg)
	require.NoError(t, err)
	require.NotNil(t, out.Video)
	assert.NotSame(t, domain.VideoTrack(screen), out.Video)

	// screen is blue, camera is red
	screen.frames <- solidFrame(640, 360, 0, 0, 255)
	cam.frames <- solidFrame(320, 180, 255, 0, 0)
	screen.frames <- solidFrame(640, 360, 0, 0, 255)

	var composed domain.VideoFrame
	select {
	case composed = <-out.Video.Frames():
	case <-time.After(2 * time.Second):
		t.Fatal("no composed frame")
	}
	// drain until a frame with the camera overlaid arrives
	select {
	case composed = <-out.Video.Frames():
	case <-time.After(2 * time.Second):
		t.Fatal("no second composed frame")
	}

	assert.Equal(t, 640, composed.Width)
	assert.Equal(t, 360, composed.Height)

	// top-left corner stays screen content
	assert.Equal(t, byte(255), composed.Pixels[2])

	// center of the PiP region shows camera content
	pipW, pipH := 640/pipFraction, 360/pipFraction
	cx := 640 - pipMargin - pipW/2
	cy := 360 - pipMargin - pipH/2
	idx := (cy*640 + cx) * 4
	assert.Equal(t, byte(255), composed.Pixels[idx], "expected red camera pixel in PiP")

	require.NoError(t, c.Close(context.Background()))
}

func TestComposeRebuildStopsPreviousDerivedTracks(t *testing.T) {
	c := New(zap.NewNop().Sugar())
	cam := newTestVideoTrack()
	screen := newTestVideoTrack()
	cfg := domain.MediaSourceConfig{Resolution: domain.Res360p}

	first, err := c.Compose(context.Background(), &domain.MediaStream{Video: cam}, &domain.MediaStream{Video: screen}, cfg)
	require.NoError(t, err)
	firstVideo := first.Video.(*derivedVideoTrack)

	_, err = c.Compose(context.Background(), &domain.MediaStream{Video: cam}, &domain.MediaStream{Video: screen}, cfg)
	require.NoError(t, err)

	select {
	case <-firstVideo.done:
	case <-time.After(2 * time.Second):
		t.Fatal("previous derived track still running")
	}
	require.NoError(t, c.Close(context.Background()))
}

func TestComposeAudioSingleTrackPassesThrough(t *testing.T) {
	c := New(zap.NewNop().Sugar())
	mic := newTestAudioTrack("microphone")

	out, err := c.Compose(context.Background(), &domain.MediaStream{Audio: []domain.AudioTrack{mic}}, nil, domain.MediaSourceConfig{})
	require.NoError(t, err)
	require.Len(t, out.Audio, 1)
	assert.Same(t, domain.AudioTrack(mic), out.Audio[0])
}

func TestComposeAudioMixesWithGains(t *testing.T) {
	c := New(zap.NewNop().Sugar())
	mic := newTestAudioTrack("microphone")
	sys := newTestAudioTrack("systemAudio")

	cfg := domain.MediaSourceConfig{
		Mixer: domain.AudioMixerConfig{MicGain: 1.0, SystemAudioGain: 0.5},
	}
	out, err := c.Compose(context.Background(), &domain.MediaStream{Audio: []domain.AudioTrack{mic}}, &domain.MediaStream{Audio: []domain.AudioTrack{sys}}, cfg)
	require.NoError(t, err)
	require.Len(t, out.Audio, 1)

	sys.samples <- domain.AudioFrame{SampleRate: 48000, Channels: 2, Samples: []int16{1000, 1000}}
	time.Sleep(20 * time.Millisecond) // let the secondary block land
	mic.samples <- domain.AudioFrame{SampleRate: 48000, Channels: 2, Samples: []int16{100, 100}}

	select {
	case mixed := <-out.Audio[0].Samples():
		require.Len(t, mixed.Samples, 2)
		assert.Equal(t, int16(600), mixed.Samples[0]) // 100*1.0 + 1000*0.5
	case <-time.After(2 * time.Second):
		t.Fatal("no mixed audio frame")
	}
	require.NoError(t, c.Close(context.Background()))
}

func TestSetGainsAdjustsRunningMix(t *testing.T) {
	c := New(zap.NewNop().Sugar())
	mic := newTestAudioTrack("microphone")
	sys := newTestAudioTrack("systemAudio")

	cfg := domain.MediaSourceConfig{
		Mixer: domain.AudioMixerConfig{MicGain: 1.0, SystemAudioGain: 1.0},
	}
	out, err := c.Compose(context.Background(), &domain.MediaStream{Audio: []domain.AudioTrack{mic}}, &domain.MediaStream{Audio: []domain.AudioTrack{sys}}, cfg)
	require.NoError(t, err)

	require.NoError(t, c.SetGains(domain.AudioMixerConfig{MicGain: 0.5, SystemAudioGain: 1.0}))

	mic.samples <- domain.AudioFrame{SampleRate: 48000, Channels: 2, Samples: []int16{1000, 1000}}

	select {
	case mixed := <-out.Audio[0].Samples():
		assert.Equal(t, int16(500), mixed.Samples[0], "new mic gain applies without recomposing")
	case <-time.After(2 * time.Second):
		t.Fatal("no mixed audio frame")
	}
	require.NoError(t, c.Close(context.Background()))
}

func TestSetGainsWithoutComposeIsNoop(t *testing.T) {
	c := New(zap.NewNop().Sugar())
	assert.NoError(t, c.SetGains(domain.AudioMixerConfig{MicGain: 1.0}))
}

func TestScaleRGBA(t *testing.T) {
	src := solidFrame(4, 4, 10, 20, 30)
	dst := scaleRGBA(src, 2, 2)
	require.Len(t, dst, 2*2*4)
	assert.Equal(t, byte(10), dst[0])
	assert.Equal(t, byte(20), dst[1])
	assert.Equal(t, byte(30), dst[2])
}

func TestInsideRoundedRect(t *testing.T) {
	// sharp corner pixel is outside, center is inside
	assert.False(t, insideRoundedRect(0, 0, 100, 100, 12))
	assert.True(t, insideRoundedRect(50, 50, 100, 100, 12))
	assert.True(t, insideRoundedRect(0, 50, 100, 100, 12))
}

func TestGainFor(t *testing.T) {
	mixer := domain.AudioMixerConfig{MicGain: 1.2, SystemAudioGain: 0.3}
	assert.Equal(t, 1.2, gainFor("microphone", mixer))
	assert.Equal(t, 0.3, gainFor("systemAudio", mixer))

	// out-of-range gains are clamped
	mixer = domain.AudioMixerConfig{MicGain: 9, SystemAudioGain: -1}
	assert.Equal(t, 1.5, gainFor("microphone", mixer))
	assert.Equal(t, 0.0, gainFor("systemAudio", mixer))
}
