package native

import (
	"fmt"
	"strconv"
)

// Encoded output settings shared by the full pipeline builder.
const (
	outputWidth  = 1920
	outputHeight = 1080
)

func videoSize(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}

// RawVideoOutputArgs emits uncompressed RGBA frames on stdout, sized
// for the capture reader's fixed-length frame reads.
func RawVideoOutputArgs(width, height, fps int) []string {
	return []string{
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(fps),
		"pipe:1",
	}
}

// PCMOutputArgs emits interleaved s16le samples on stdout.
func PCMOutputArgs(sampleRate, channels int) []string {
	return []string{
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"pipe:1",
	}
}

// EncodeConfig describes one full broadcast encode invocation.
type EncodeConfig struct {
	Display      string
	AudioInputs  []AudioInput
	FrameRate    int
	BitrateKbps  int
	KeyframeSecs int
	IngestURL    string
}

// AudioInput is one audio source with its mixer gain.
type AudioInput struct {
	DeviceID string
	Gain     float64
}

// BuildEncodeArgs assembles the single-invocation pipeline: per-OS
// screen grab, up to two gain-wrapped audio inputs mixed with amix,
// scaled to 1080p, x264 zerolatency, flv to the ingest URL.
func BuildEncodeArgs(cfg EncodeConfig) []string {
	args := []string{"-y"}
	args = append(args, ScreenInputArgs(cfg.Display, cfg.FrameRate)...)
	for _, in := range cfg.AudioInputs {
		args = append(args, AudioInputArgs(in.DeviceID)...)
	}

	filter := buildFilter(cfg)
	if filter != "" {
		args = append(args, "-filter_complex", filter)
		args = append(args, "-map", "[vout]")
		if len(cfg.AudioInputs) > 0 {
			args = append(args, "-map", "[aout]")
		}
	}

	bitrate := fmt.Sprintf("%dk", cfg.BitrateKbps)
	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-tune", "zerolatency",
		"-b:v", bitrate,
		"-maxrate", bitrate,
		"-bufsize", fmt.Sprintf("%dk", cfg.BitrateKbps*2),
		"-g", strconv.Itoa(cfg.KeyframeSecs*cfg.FrameRate),
		"-pix_fmt", "yuv420p",
	)
	if len(cfg.AudioInputs) > 0 {
		args = append(args, "-c:a", "aac", "-b:a", "160k", "-ar", "44100")
	}
	args = append(args, "-f", "flv", cfg.IngestURL)
	return args
}

// buildFilter wraps each audio input in a volume filter and mixes
// them; video is scaled to the fixed output size.
func buildFilter(cfg EncodeConfig) string {
	filter := fmt.Sprintf("[0:v]scale=%d:%d[vout]", outputWidth, outputHeight)
	switch len(cfg.AudioInputs) {
	case 0:
		return filter
	case 1:
		return filter + fmt.Sprintf(";[1:a]volume=%.2f[aout]", cfg.AudioInputs[0].Gain)
	default:
		return filter + fmt.Sprintf(
			";[1:a]volume=%.2f[a0];[2:a]volume=%.2f[a1];[a0][a1]amix=inputs=2[aout]",
			cfg.AudioInputs[0].Gain, cfg.AudioInputs[1].Gain)
	}
}
