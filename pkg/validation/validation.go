package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// SessionIDRegex validates session ID format
	SessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// DeviceIDRegex validates device ID format
	DeviceIDRegex = regexp.MustCompile(`^[a-zA-Z0-9._:/-]+$`)

	// StreamKeyRegex validates ingest stream key format
	StreamKeyRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateSessionID validates session ID
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}
	if len(sessionID) > 100 {
		return fmt.Errorf("session ID is too long (max 100 characters)")
	}
	if !SessionIDRegex.MatchString(sessionID) {
		return fmt.Errorf("invalid session ID format")
	}
	return nil
}

// ValidateDeviceID validates device ID
func ValidateDeviceID(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("device ID is required")
	}
	if len(deviceID) > 200 {
		return fmt.Errorf("device ID is too long (max 200 characters)")
	}
	if !DeviceIDRegex.MatchString(deviceID) {
		return fmt.Errorf("invalid device ID format")
	}
	return nil
}

// ValidateStreamKey validates ingest stream key
func ValidateStreamKey(key string) error {
	if key == "" {
		return fmt.Errorf("stream key is required")
	}
	if len(key) < 8 {
		return fmt.Errorf("stream key must be at least 8 characters")
	}
	if len(key) > 128 {
		return fmt.Errorf("stream key is too long (max 128 characters)")
	}
	if !StreamKeyRegex.MatchString(key) {
		return fmt.Errorf("invalid stream key format")
	}
	return nil
}

// ValidateStreamTitle validates stream title
func ValidateStreamTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("stream title is required")
	}
	if len(title) > 140 {
		return fmt.Errorf("stream title is too long (max 140 characters)")
	}
	if !utf8.ValidString(title) {
		return fmt.Errorf("stream title contains invalid characters")
	}
	return nil
}

// ValidateRTMPURL validates RTMP ingest URL
func ValidateRTMPURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("RTMP URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid RTMP URL: %w", err)
	}
	if u.Scheme != "rtmp" && u.Scheme != "rtmps" {
		return fmt.Errorf("RTMP URL must use rtmp:// or rtmps:// scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("RTMP URL must have a host")
	}
	return nil
}

// ValidateWebSocketURL validates signaling or relay websocket URL
func ValidateWebSocketURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("websocket URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("websocket URL must use ws:// or wss:// scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("websocket URL must have a host")
	}
	return nil
}

// ValidateResolution validates resolution preset name
func ValidateResolution(res string) error {
	switch res {
	case "360p", "480p", "720p", "1080p":
		return nil
	case "":
		return fmt.Errorf("resolution is required")
	default:
		return fmt.Errorf("unknown resolution preset %q (expected 360p, 480p, 720p or 1080p)", res)
	}
}

// ValidateFrameRate validates a requested frame rate
func ValidateFrameRate(fps int) error {
	if fps < 1 {
		return fmt.Errorf("frame rate must be at least 1")
	}
	if fps > 120 {
		return fmt.Errorf("frame rate is too high (max 120)")
	}
	return nil
}

// ValidateGain validates an audio mixer gain value
func ValidateGain(gain float64) error {
	if gain < 0 {
		return fmt.Errorf("gain must not be negative")
	}
	if gain > 1.5 {
		return fmt.Errorf("gain is too high (max 1.5)")
	}
	return nil
}

// ValidateBitrate validates encoder bitrate in kbps
func ValidateBitrate(kbps int) error {
	if kbps < 100 {
		return fmt.Errorf("bitrate must be at least 100 kbps")
	}
	if kbps > 50000 {
		return fmt.Errorf("bitrate is too high (max 50000 kbps)")
	}
	return nil
}
