//go:build linux

package devices

import (
	"context"
	"path/filepath"

	"streamcast/internal/core/domain"
)

func enumerate(ctx context.Context, run runner) ([]domain.DeviceDescriptor, error) {
	out, err := run(ctx, "pactl", "list", "sources", "short")
	if err != nil {
		return nil, err
	}
	descs := parsePactlSources(string(out))

	// v4l2 capture nodes double as the camera list.
	if nodes, err := filepath.Glob("/dev/video*"); err == nil {
		for _, node := range nodes {
			descs = append(descs, domain.DeviceDescriptor{
				ID:   domain.DeviceID(node),
				Name: node,
				Type: domain.DeviceCamera,
			})
		}
	}
	return descs, nil
}
