package capture

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"

	"streamcast/internal/core/domain"
	"streamcast/internal/infrastructure/native"
)

const (
	firstSampleTimeout = 3 * time.Second

	audioSampleRate = 48000
	audioChannels   = 2
	// 20ms of interleaved PCM16
	audioBlockSamples = audioSampleRate / 50 * audioChannels
)

// startVideoReader spawns a capture subprocess emitting raw RGBA
// frames on stdout and wraps it in a VideoSourceTrack. The first
// frame is awaited synchronously so constraint and permission
// failures surface as errors instead of silent dead tracks.
func startVideoReader(ctx context.Context, log *zap.SugaredLogger, encoderPath string, c Constraints, watchdog time.Duration) (*VideoSourceTrack, error) {
	var args []string
	if c.Screen {
		args = native.ScreenInputArgs("", c.FrameRate)
	} else {
		args = native.CameraInputArgs(c.DeviceID, 0, 0, c.FrameRate)
	}
	args = append(args, native.RawVideoOutputArgs(c.Width, c.Height, c.FrameRate)...)

	cmd := exec.Command(encoderPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, classifyCaptureError(err.Error())
	}
	if err := cmd.Start(); err != nil {
		return nil, classifyCaptureError(err.Error())
	}

	frameSize := c.Width * c.Height * 4
	first := make([]byte, frameSize)
	if err := awaitFirst(ctx, stdout, first); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, classifyCaptureError(stderr.String())
	}

	track := newVideoSourceTrack(watchdog)
	go terminateOnStop(track.stopReq, cmd)
	go func() {
		defer func() {
			cmd.Wait()
			close(track.frames)
			track.markEnded()
		}()

		frameDur := time.Second / time.Duration(c.FrameRate)
		buf := first
		for i := 0; ; i++ {
			frame := domain.VideoFrame{
				Width:  c.Width,
				Height: c.Height,
				Pixels: buf,
				PTS:    time.Duration(i) * frameDur,
			}
			select {
			case track.frames <- frame:
			case <-track.stopReq:
				return
			}
			buf = make([]byte, frameSize)
			if _, err := io.ReadFull(stdout, buf); err != nil {
				if err != io.EOF {
					log.Debugw("video reader ended", "error", err)
				}
				return
			}
		}
	}()
	return track, nil
}

// startAudioReader spawns a capture subprocess emitting s16le PCM on
// stdout and wraps it in an AudioSourceTrack.
func startAudioReader(ctx context.Context, log *zap.SugaredLogger, encoderPath, deviceID, label string, watchdog time.Duration) (*AudioSourceTrack, error) {
	args := native.AudioInputArgs(deviceID)
	args = append(args, native.PCMOutputArgs(audioSampleRate, audioChannels)...)

	cmd := exec.Command(encoderPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, classifyCaptureError(err.Error())
	}
	if err := cmd.Start(); err != nil {
		return nil, classifyCaptureError(err.Error())
	}

	blockBytes := audioBlockSamples * 2
	first := make([]byte, blockBytes)
	if err := awaitFirst(ctx, stdout, first); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, classifyCaptureError(stderr.String())
	}

	track := newAudioSourceTrack(label, watchdog)
	go terminateOnStop(track.stopReq, cmd)
	go func() {
		defer func() {
			cmd.Wait()
			close(track.samples)
			track.markEnded()
		}()

		blockDur := 20 * time.Millisecond
		buf := first
		for i := 0; ; i++ {
			frame := domain.AudioFrame{
				SampleRate: audioSampleRate,
				Channels:   audioChannels,
				Samples:    decodePCM16(buf),
				PTS:        time.Duration(i) * blockDur,
			}
			select {
			case track.samples <- frame:
			case <-track.stopReq:
				return
			}
			buf = make([]byte, blockBytes)
			if _, err := io.ReadFull(stdout, buf); err != nil {
				if err != io.EOF {
					log.Debugw("audio reader ended", "error", err)
				}
				return
			}
		}
	}()
	return track, nil
}

// awaitFirst blocks until one full read, a timeout, or ctx cancel.
func awaitFirst(ctx context.Context, r io.Reader, buf []byte) error {
	errCh := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(r, buf)
		errCh <- err
	}()
	select {
	case err := <-errCh:
		return err
	case <-time.After(firstSampleTimeout):
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}

// terminateOnStop unblocks the reader's pipe read when Stop fires.
func terminateOnStop(stopReq <-chan struct{}, cmd *exec.Cmd) {
	<-stopReq
	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		cmd.Process.Kill()
		return
	}
	time.AfterFunc(time.Second, func() { cmd.Process.Kill() })
}

func decodePCM16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out
}
