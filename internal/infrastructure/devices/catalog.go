package devices

import (
	"context"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"streamcast/internal/core/domain"
	"streamcast/pkg/cache"
)

const cacheKey = "device-list"

// runner abstracts subprocess execution so enumeration is testable.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Catalog enumerates local capture devices with a short-lived cache.
// Enumeration failures degrade to an empty list so the UI can render
// a "no devices" state instead of an error.
type Catalog struct {
	log   *zap.SugaredLogger
	cache *cache.Cache
	run   runner
}

func NewCatalog(log *zap.SugaredLogger, ttl time.Duration) *Catalog {
	return &Catalog{
		log:   log,
		cache: cache.New(ttl),
		run:   execRunner,
	}
}

func (c *Catalog) GetDevices(ctx context.Context) domain.DeviceList {
	if v, ok := c.cache.Get(cacheKey); ok {
		return v.(domain.DeviceList)
	}

	descs, err := enumerate(ctx, c.run)
	if err != nil {
		c.log.Warnw("device enumeration failed", "error", err)
		descs = nil
	}

	list := buildList(descs)
	c.cache.Set(cacheKey, list)
	return list
}

func (c *Catalog) Invalidate() {
	c.cache.Delete(cacheKey)
}

// buildList groups descriptors by type and picks defaults. The first
// descriptor flagged IsDefault wins; otherwise the first of its type.
func buildList(descs []domain.DeviceDescriptor) domain.DeviceList {
	var list domain.DeviceList
	for _, d := range descs {
		switch d.Type {
		case domain.DeviceSystemAudio:
			list.SystemAudio = append(list.SystemAudio, d)
			if list.DefaultSystemAudio == "" {
				list.DefaultSystemAudio = d.ID
			}
		case domain.DeviceCamera:
			list.Cameras = append(list.Cameras, d)
		default:
			list.Microphones = append(list.Microphones, d)
			if list.DefaultMic == "" {
				list.DefaultMic = d.ID
			}
		}
	}
	for _, d := range list.SystemAudio {
		if d.IsDefault {
			list.DefaultSystemAudio = d.ID
			break
		}
	}
	for _, d := range list.Microphones {
		if d.IsDefault {
			list.DefaultMic = d.ID
			break
		}
	}
	return list
}
