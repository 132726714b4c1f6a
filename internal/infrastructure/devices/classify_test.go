package devices

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"streamcast/internal/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want domain.DeviceType
	}{
		{"alsa_output.pci-0000_00_1f.3.analog-stereo.monitor", domain.DeviceSystemAudio},
		{"BlackHole 2ch", domain.DeviceSystemAudio},
		{"Soundflower (2ch)", domain.DeviceSystemAudio},
		{"Loopback Audio", domain.DeviceSystemAudio},
		{"Stereo Mix (Realtek High Definition Audio)", domain.DeviceSystemAudio},
		{"virtual-audio-capturer", domain.DeviceSystemAudio},
		{"alsa_input.usb-Blue_Microphones_Yeti-00.analog-stereo", domain.DeviceMicrophone},
		{"MacBook Pro Microphone", domain.DeviceMicrophone},
		{"Microphone (Realtek High Definition Audio)", domain.DeviceMicrophone},
		{"", domain.DeviceMicrophone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.name), tt.name)
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	assert.Equal(t, domain.DeviceSystemAudio, Classify("STEREO MIX"))
	assert.Equal(t, domain.DeviceSystemAudio, Classify("BlackHole 16CH"))
}
