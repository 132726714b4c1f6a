//go:build darwin

package native

import "strconv"

// ScreenInputArgs grabs the main display through avfoundation.
// Display is the avfoundation screen index, default "1".
func ScreenInputArgs(display string, fps int) []string {
	if display == "" {
		display = "1"
	}
	return []string{
		"-f", "avfoundation",
		"-framerate", strconv.Itoa(fps),
		"-capture_cursor", "1",
		"-i", display + ":none",
	}
}

// CameraInputArgs reads an avfoundation camera by index.
func CameraInputArgs(deviceID string, width, height, fps int) []string {
	args := []string{"-f", "avfoundation"}
	if width > 0 && height > 0 {
		args = append(args, "-video_size", videoSize(width, height))
	}
	if fps > 0 {
		args = append(args, "-framerate", strconv.Itoa(fps))
	}
	if deviceID == "" {
		deviceID = "0"
	}
	return append(args, "-i", deviceID+":none")
}

// AudioInputArgs reads an avfoundation audio device by index.
func AudioInputArgs(deviceID string) []string {
	if deviceID == "" {
		deviceID = "0"
	}
	return []string{"-f", "avfoundation", "-i", "none:" + deviceID}
}
