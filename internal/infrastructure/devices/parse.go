package devices

import (
	"strings"

	"streamcast/internal/core/domain"
)

// parsePactlSources parses `pactl list sources short` output. Each
// line is index\tname\tdriver\tformat\tstate.
func parsePactlSources(out string) []domain.DeviceDescriptor {
	var descs []domain.DeviceDescriptor
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := fields[1]
		descs = append(descs, domain.DeviceDescriptor{
			ID:   domain.DeviceID(name),
			Name: name,
			Type: Classify(name),
		})
	}
	return descs
}

// parseSystemProfilerAudio parses `system_profiler SPAudioDataType`
// output. Device names are indented lines ending with a colon, below
// the "Devices:" header.
func parseSystemProfilerAudio(out string) []domain.DeviceDescriptor {
	var descs []domain.DeviceDescriptor
	inDevices := false
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "Devices:" {
			inDevices = true
			continue
		}
		if !inDevices || trimmed == "" {
			continue
		}
		// Properties are "Key: Value"; device headers end with a bare colon.
		if !strings.HasSuffix(trimmed, ":") || strings.Contains(strings.TrimSuffix(trimmed, ":"), ":") {
			continue
		}
		name := strings.TrimSuffix(trimmed, ":")
		descs = append(descs, domain.DeviceDescriptor{
			ID:   domain.DeviceID(name),
			Name: name,
			Type: Classify(name),
		})
	}
	return descs
}

// parseNameLines parses one device name per line, as produced by the
// PowerShell CIM sound device listing.
func parseNameLines(out string) []domain.DeviceDescriptor {
	var descs []domain.DeviceDescriptor
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if name == "" {
			continue
		}
		descs = append(descs, domain.DeviceDescriptor{
			ID:   domain.DeviceID(name),
			Name: name,
			Type: Classify(name),
		})
	}
	return descs
}

// withDesktopLoopback appends the synthetic Windows desktop audio
// descriptor. It becomes the default when no real system audio source
// was found.
func withDesktopLoopback(descs []domain.DeviceDescriptor) []domain.DeviceDescriptor {
	hasSystemAudio := false
	for _, d := range descs {
		if d.Type == domain.DeviceSystemAudio {
			hasSystemAudio = true
			break
		}
	}
	return append(descs, domain.DeviceDescriptor{
		ID:        domain.DesktopLoopbackID,
		Name:      "Desktop Audio (loopback)",
		Type:      domain.DeviceSystemAudio,
		IsDefault: !hasSystemAudio,
	})
}
