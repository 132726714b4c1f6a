//go:build windows

package devices

import (
	"context"

	"streamcast/internal/core/domain"
)

func enumerate(ctx context.Context, run runner) ([]domain.DeviceDescriptor, error) {
	out, err := run(ctx, "powershell", "-NoProfile", "-Command",
		"Get-CimInstance Win32_SoundDevice | Select-Object -ExpandProperty Name")
	var descs []domain.DeviceDescriptor
	if err == nil {
		descs = parseNameLines(string(out))
	}
	// The loopback descriptor is injected even when listing fails:
	// desktop audio capture does not depend on the CIM query.
	return withDesktopLoopback(descs), nil
}
