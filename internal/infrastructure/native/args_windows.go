//go:build windows

package native

import "strconv"

// ScreenInputArgs grabs the whole desktop through gdigrab.
func ScreenInputArgs(display string, fps int) []string {
	if display == "" {
		display = "desktop"
	}
	return []string{
		"-f", "gdigrab",
		"-framerate", strconv.Itoa(fps),
		"-i", display,
	}
}

// CameraInputArgs reads a DirectShow camera by name.
func CameraInputArgs(deviceID string, width, height, fps int) []string {
	args := []string{"-f", "dshow"}
	if width > 0 && height > 0 {
		args = append(args, "-video_size", videoSize(width, height))
	}
	if fps > 0 {
		args = append(args, "-framerate", strconv.Itoa(fps))
	}
	return append(args, "-i", "video="+deviceID)
}

// AudioInputArgs reads a DirectShow audio device by name. The
// reserved desktop loopback id maps to the virtual capture device.
func AudioInputArgs(deviceID string) []string {
	if deviceID == "desktop-loopback" {
		deviceID = "virtual-audio-capturer"
	}
	return []string{"-f", "dshow", "-i", "audio=" + deviceID}
}
