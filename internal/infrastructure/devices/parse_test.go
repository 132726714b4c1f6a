package devices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamcast/internal/core/domain"
)

func TestParsePactlSources(t *testing.T) {
	out := `1	alsa_output.pci-0000_00_1f.3.analog-stereo.monitor	module-alsa-card.c	s16le 2ch 44100Hz	IDLE
2	alsa_input.pci-0000_00_1f.3.analog-stereo	module-alsa-card.c	s16le 2ch 44100Hz	RUNNING

`
	descs := parsePactlSources(out)
	require.Len(t, descs, 2)
	assert.Equal(t, domain.DeviceSystemAudio, descs[0].Type)
	assert.Equal(t, domain.DeviceMicrophone, descs[1].Type)
	assert.Equal(t, domain.DeviceID("alsa_input.pci-0000_00_1f.3.analog-stereo"), descs[1].ID)
}

func TestParseSystemProfilerAudio(t *testing.T) {
	out := `Audio:

    Devices:

        MacBook Pro Microphone:

          Default Input Device: Yes
          Input Channels: 1
          Manufacturer: Apple Inc.

        BlackHole 2ch:

          Manufacturer: Existential Audio Inc.
          Output Channels: 2
`
	descs := parseSystemProfilerAudio(out)
	require.Len(t, descs, 2)
	assert.Equal(t, "MacBook Pro Microphone", descs[0].Name)
	assert.Equal(t, domain.DeviceMicrophone, descs[0].Type)
	assert.Equal(t, "BlackHole 2ch", descs[1].Name)
	assert.Equal(t, domain.DeviceSystemAudio, descs[1].Type)
}

func TestParseNameLines(t *testing.T) {
	out := "Microphone (Realtek High Definition Audio)\r\nStereo Mix (Realtek High Definition Audio)\r\n\r\n"
	descs := parseNameLines(out)
	require.Len(t, descs, 2)
	assert.Equal(t, domain.DeviceMicrophone, descs[0].Type)
	assert.Equal(t, domain.DeviceSystemAudio, descs[1].Type)
}

func TestWithDesktopLoopbackAlwaysInjected(t *testing.T) {
	descs := withDesktopLoopback(nil)
	require.Len(t, descs, 1)
	assert.Equal(t, domain.DesktopLoopbackID, descs[0].ID)
	assert.True(t, descs[0].IsDefault)
}

func TestWithDesktopLoopbackNotDefaultWhenRealSourceExists(t *testing.T) {
	existing := []domain.DeviceDescriptor{
		{ID: "stereo-mix", Name: "Stereo Mix", Type: domain.DeviceSystemAudio},
	}
	descs := withDesktopLoopback(existing)
	require.Len(t, descs, 2)
	assert.False(t, descs[1].IsDefault)
}

func TestBuildList(t *testing.T) {
	descs := []domain.DeviceDescriptor{
		{ID: "mic-a", Name: "Mic A", Type: domain.DeviceMicrophone},
		{ID: "mic-b", Name: "Mic B", Type: domain.DeviceMicrophone, IsDefault: true},
		{ID: "monitor-a", Name: "Monitor A", Type: domain.DeviceSystemAudio},
		{ID: "/dev/video0", Name: "/dev/video0", Type: domain.DeviceCamera},
	}
	list := buildList(descs)

	assert.Len(t, list.Microphones, 2)
	assert.Len(t, list.SystemAudio, 1)
	assert.Len(t, list.Cameras, 1)
	assert.Equal(t, domain.DeviceID("mic-b"), list.DefaultMic)
	assert.Equal(t, domain.DeviceID("monitor-a"), list.DefaultSystemAudio)
}

func TestBuildListEmpty(t *testing.T) {
	list := buildList(nil)
	assert.Empty(t, list.Microphones)
	assert.Empty(t, list.SystemAudio)
	assert.Empty(t, list.DefaultMic)
}
