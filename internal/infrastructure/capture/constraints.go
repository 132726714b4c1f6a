package capture

import "streamcast/internal/core/domain"

// Constraints is the concrete request handed to a video source.
type Constraints struct {
	DeviceID   string
	Screen     bool
	Width      int
	Height     int
	FrameRate  int
	FacingMode string
}

const (
	defaultFrameRate = 30

	mobileResolution = domain.Res480p
	mobileFrameRate  = 24
)

// videoConstraints resolves a source config into concrete capture
// constraints. The mobile profile lowers defaults and prefers a
// facing-mode hint over a device id.
func videoConstraints(cfg domain.MediaSourceConfig) Constraints {
	res := cfg.Resolution
	fps := cfg.FrameRate

	if cfg.MobileProfile {
		if res == "" {
			res = mobileResolution
		}
		if fps == 0 {
			fps = mobileFrameRate
		}
	}
	if res == "" {
		res = domain.Res720p
	}
	if fps == 0 {
		fps = defaultFrameRate
	}

	w, h := res.Dimensions()
	c := Constraints{
		DeviceID:  string(cfg.CameraDeviceID),
		Screen:    cfg.ScreenShare && cfg.CameraDeviceID == "",
		Width:     w,
		Height:    h,
		FrameRate: fps,
	}
	if cfg.MobileProfile && c.DeviceID == "" && !c.Screen {
		c.FacingMode = "user"
	}
	return c
}

// relaxed drops to the minimum the pipeline supports, for the single
// retry after a constraint failure.
func (c Constraints) relaxed() Constraints {
	w, h := domain.Res360p.Dimensions()
	return Constraints{
		DeviceID:   c.DeviceID,
		Screen:     c.Screen,
		Width:      w,
		Height:     h,
		FrameRate:  15,
		FacingMode: c.FacingMode,
	}
}
