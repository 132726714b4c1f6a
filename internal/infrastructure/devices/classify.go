package devices

import (
	"strings"

	"streamcast/internal/core/domain"
)

// systemAudioMarkers are substrings that identify an audio source as
// capturing system output rather than a physical microphone. Matching
// is case-insensitive and order-independent.
var systemAudioMarkers = []string{
	"monitor",
	"loopback",
	"blackhole",
	"soundflower",
	"stereo mix",
	"virtual-audio-capturer",
	"what u hear",
}

// Classify maps a raw device name to its device type.
func Classify(name string) domain.DeviceType {
	lower := strings.ToLower(name)
	for _, marker := range systemAudioMarkers {
		if strings.Contains(lower, marker) {
			return domain.DeviceSystemAudio
		}
	}
	return domain.DeviceMicrophone
}
