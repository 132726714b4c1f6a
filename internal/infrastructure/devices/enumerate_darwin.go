//go:build darwin

package devices

import (
	"context"

	"streamcast/internal/core/domain"
)

func enumerate(ctx context.Context, run runner) ([]domain.DeviceDescriptor, error) {
	out, err := run(ctx, "system_profiler", "SPAudioDataType")
	if err != nil {
		return nil, err
	}
	descs := parseSystemProfilerAudio(string(out))
	return descs, nil
}
