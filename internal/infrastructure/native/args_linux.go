//go:build linux

package native

import (
	"os"
	"strconv"
)

// ScreenInputArgs grabs the X11 display. Display falls back to the
// DISPLAY env var, then :0.0.
func ScreenInputArgs(display string, fps int) []string {
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	if display == "" {
		display = ":0.0"
	}
	return []string{
		"-f", "x11grab",
		"-framerate", strconv.Itoa(fps),
		"-i", display,
	}
}

// CameraInputArgs reads a v4l2 capture node.
func CameraInputArgs(deviceID string, width, height, fps int) []string {
	args := []string{"-f", "v4l2"}
	if width > 0 && height > 0 {
		args = append(args, "-video_size", videoSize(width, height))
	}
	if fps > 0 {
		args = append(args, "-framerate", strconv.Itoa(fps))
	}
	return append(args, "-i", deviceID)
}

// AudioInputArgs reads a PulseAudio source.
func AudioInputArgs(deviceID string) []string {
	if deviceID == "" {
		deviceID = "default"
	}
	return []string{"-f", "pulse", "-i", deviceID}
}
