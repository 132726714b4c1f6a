package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/at-wat/ebml-go/webm"
	"go.uber.org/zap"

	"streamcast/internal/core/domain"
	"streamcast/pkg/utils"
)

// RecorderConfig sizes one recording run.
type RecorderConfig struct {
	EncoderPath string
	Profile     CodecProfile
	Width       int
	Height      int
	FrameRate   int
	BitrateKbps int
	Timeslice   time.Duration

	// RecordDir, when set, keeps a full local copy of the stream on
	// disk alongside whatever the transport does with the chunks.
	RecordDir string
}

// Recorder encodes the composed stream and muxes it into a
// continuous WebM byte stream, released as timeslice chunks through
// the onChunk callback. One recorder serves one session.
type Recorder struct {
	log     *zap.SugaredLogger
	cfg     RecorderConfig
	onChunk func([]byte)

	chunker *chunkingWriter
	encoder *videoEncoder

	videoWriter webm.BlockWriteCloser
	audioWriter webm.BlockWriteCloser

	recording *os.File

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	bytesOut atomic.Uint64
}

func NewRecorder(log *zap.SugaredLogger, cfg RecorderConfig, onChunk func([]byte)) *Recorder {
	return &Recorder{
		log:     log,
		cfg:     cfg,
		onChunk: onChunk,
		chunker: &chunkingWriter{},
		stop:    make(chan struct{}),
	}
}

type nopWriteCloser struct{ *chunkingWriter }

func (nopWriteCloser) Close() error { return nil }

// Start begins encoding and chunk emission for the given stream.
func (r *Recorder) Start(media *domain.MediaStream) error {
	var entries []webm.TrackEntry
	trackNum := uint64(1)

	hasVideo := media.Video != nil
	if hasVideo {
		entries = append(entries, webm.TrackEntry{
			Name:            "Video",
			TrackNumber:     trackNum,
			TrackUID:        trackNum,
			CodecID:         r.cfg.Profile.VideoID,
			TrackType:       1,
			DefaultDuration: uint64(time.Second.Nanoseconds() / int64(r.cfg.FrameRate)),
			Video: &webm.Video{
				PixelWidth:  uint64(r.cfg.Width),
				PixelHeight: uint64(r.cfg.Height),
			},
		})
		trackNum++
	}
	hasAudio := len(media.Audio) > 0
	if hasAudio {
		entries = append(entries, webm.TrackEntry{
			Name:            "Audio",
			TrackNumber:     trackNum,
			TrackUID:        trackNum,
			CodecID:         r.cfg.Profile.AudioID,
			TrackType:       2,
			DefaultDuration: 20_000_000, // 20ms blocks
			Audio: &webm.Audio{
				SamplingFrequency: 48000.0,
				Channels:          2,
			},
		})
	}
	if len(entries) == 0 {
		return fmt.Errorf("recorder needs at least one track")
	}

	writers, err := webm.NewSimpleBlockWriter(nopWriteCloser{r.chunker}, entries)
	if err != nil {
		return fmt.Errorf("failed to create webm writer: %w", err)
	}
	idx := 0
	if hasVideo {
		r.videoWriter = writers[idx]
		idx++
	}
	if hasAudio {
		r.audioWriter = writers[idx]
	}

	if hasVideo {
		enc, err := startVideoEncoder(r.log, r.cfg.EncoderPath, r.cfg.Profile,
			r.cfg.Width, r.cfg.Height, r.cfg.FrameRate, r.cfg.BitrateKbps)
		if err != nil {
			return err
		}
		r.encoder = enc

		r.wg.Add(2)
		go r.feedEncoder(media.Video)
		go r.writeVideoBlocks()
	}
	if hasAudio {
		r.wg.Add(1)
		go r.writeAudioBlocks(media.Audio[0])
	}

	if r.cfg.RecordDir != "" {
		path := filepath.Join(r.cfg.RecordDir, utils.StreamFileName(time.Now(), "webm"))
		f, err := os.Create(path)
		if err != nil {
			// A broken local copy never blocks the broadcast itself.
			r.log.Warnw("local recording disabled", "path", path, "error", err)
		} else {
			r.recording = f
			r.log.Infow("recording locally", "path", path)
		}
	}

	r.wg.Add(1)
	go r.emitChunks()

	r.log.Infow("recorder started",
		"codec", r.cfg.Profile.Name, "width", r.cfg.Width, "height", r.cfg.Height,
		"timeslice", r.cfg.Timeslice)
	return nil
}

// Stop halts encoding, flushes the final chunk and waits for the
// workers to drain.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()

	if r.encoder != nil {
		r.encoder.Close()
	}
	if r.videoWriter != nil {
		r.videoWriter.Close()
	}
	if r.audioWriter != nil {
		r.audioWriter.Close()
	}
	if chunk := r.chunker.Cut(); chunk != nil {
		r.deliver(chunk)
	}
	if r.recording != nil {
		r.recording.Close()
		r.recording = nil
	}
}

func (r *Recorder) BytesOut() uint64 {
	return r.bytesOut.Load()
}

func (r *Recorder) feedEncoder(video domain.VideoTrack) {
	defer r.wg.Done()
	defer r.encoder.stdin.Close()
	for {
		select {
		case frame, ok := <-video.Frames():
			if !ok {
				return
			}
			if err := r.encoder.WriteFrame(frame); err != nil {
				r.log.Warnw("encoder rejected frame", "error", err)
				return
			}
		case <-r.stop:
			return
		}
	}
}

func (r *Recorder) writeVideoBlocks() {
	defer r.wg.Done()
	for {
		select {
		case ef, ok := <-r.encoder.Frames():
			if !ok {
				return
			}
			if _, err := r.videoWriter.Write(ef.Keyframe, ef.PTS.Milliseconds(), ef.Data); err != nil {
				r.log.Warnw("webm video write failed", "error", err)
				return
			}
		case <-r.stop:
			return
		}
	}
}

func (r *Recorder) writeAudioBlocks(audio domain.AudioTrack) {
	defer r.wg.Done()
	for {
		select {
		case af, ok := <-audio.Samples():
			if !ok {
				return
			}
			if _, err := r.audioWriter.Write(true, af.PTS.Milliseconds(), encodePCM16(af.Samples)); err != nil {
				r.log.Warnw("webm audio write failed", "error", err)
				return
			}
		case <-r.stop:
			return
		}
	}
}

func (r *Recorder) emitChunks() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.Timeslice)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if chunk := r.chunker.Cut(); chunk != nil {
				r.deliver(chunk)
			}
		case <-r.stop:
			return
		}
	}
}

func (r *Recorder) deliver(chunk []byte) {
	r.bytesOut.Add(uint64(len(chunk)))
	if r.recording != nil {
		if _, err := r.recording.Write(chunk); err != nil {
			r.log.Warnw("local recording write failed, stopping copy", "error", err)
			r.recording.Close()
			r.recording = nil
		}
	}
	if r.onChunk != nil {
		r.onChunk(chunk)
	}
}

func encodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}
