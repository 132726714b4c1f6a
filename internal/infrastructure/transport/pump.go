package transport

import (
	"errors"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"streamcast/internal/core/domain"
)

const (
	videoClockRate = 90000
	audioClockRate = 48000
	rtpMTU         = 1200

	videoPayloadType = 96
	audioPayloadType = 97
)

// trackPump encodes the composed stream once and fans the RTP
// packets out to every attached peer connection through shared local
// tracks.
type trackPump struct {
	log *zap.SugaredLogger

	encoder *videoEncoder
	video   *webrtc.TrackLocalStaticRTP
	audio   *webrtc.TrackLocalStaticRTP

	videoPacketizer rtp.Packetizer
	audioPacketizer rtp.Packetizer

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	bytesSent atomic.Uint64
	lossPct   atomic.Uint64 // fraction lost * 10000
	latencyUS atomic.Int64
}

func newTrackPump(log *zap.SugaredLogger, profile CodecProfile) (*trackPump, error) {
	video, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: mimeForProfile(profile), ClockRate: videoClockRate},
		"video", "streamcast-video")
	if err != nil {
		return nil, err
	}
	audio, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: "audio/L16", ClockRate: audioClockRate, Channels: 2},
		"audio", "streamcast-audio")
	if err != nil {
		return nil, err
	}

	p := &trackPump{
		log:   log,
		video: video,
		audio: audio,
		stop:  make(chan struct{}),
	}
	p.videoPacketizer = rtp.NewPacketizer(rtpMTU, videoPayloadType, rand.Uint32(),
		payloaderForProfile(profile), rtp.NewRandomSequencer(), videoClockRate)
	p.audioPacketizer = rtp.NewPacketizer(rtpMTU, audioPayloadType, rand.Uint32(),
		&codecs.G711Payloader{}, rtp.NewRandomSequencer(), audioClockRate)
	return p, nil
}

func mimeForProfile(p CodecProfile) string {
	if p.VideoID == "V_VP9" {
		return webrtc.MimeTypeVP9
	}
	return webrtc.MimeTypeVP8
}

func payloaderForProfile(p CodecProfile) rtp.Payloader {
	if p.VideoID == "V_VP9" {
		return &codecs.VP9Payloader{}
	}
	return &codecs.VP8Payloader{}
}

// Start begins encoding and packetizing the stream.
func (p *trackPump) Start(encoderPath string, profile CodecProfile, media *domain.MediaStream, width, height, fps, bitrateKbps int) error {
	if media.Video != nil {
		enc, err := startVideoEncoder(p.log, encoderPath, profile, width, height, fps, bitrateKbps)
		if err != nil {
			return err
		}
		p.encoder = enc

		p.wg.Add(2)
		go p.feedEncoder(media.Video)
		go p.pumpVideo(fps)
	}
	if len(media.Audio) > 0 {
		p.wg.Add(1)
		go p.pumpAudio(media.Audio[0])
	}
	return nil
}

func (p *trackPump) feedEncoder(video domain.VideoTrack) {
	defer p.wg.Done()
	defer p.encoder.stdin.Close()
	for {
		select {
		case frame, ok := <-video.Frames():
			if !ok {
				return
			}
			if err := p.encoder.WriteFrame(frame); err != nil {
				return
			}
		case <-p.stop:
			return
		}
	}
}

func (p *trackPump) pumpVideo(fps int) {
	defer p.wg.Done()
	samplesPerFrame := uint32(videoClockRate / fps)
	for {
		select {
		case ef, ok := <-p.encoder.Frames():
			if !ok {
				return
			}
			for _, pkt := range p.videoPacketizer.Packetize(ef.Data, samplesPerFrame) {
				if err := p.video.WriteRTP(pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
					p.log.Debugw("video rtp write failed", "error", err)
				}
				p.bytesSent.Add(uint64(len(pkt.Payload)))
			}
		case <-p.stop:
			return
		}
	}
}

func (p *trackPump) pumpAudio(audio domain.AudioTrack) {
	defer p.wg.Done()
	for {
		select {
		case af, ok := <-audio.Samples():
			if !ok {
				return
			}
			payload := encodePCM16(af.Samples)
			samples := uint32(len(af.Samples) / af.Channels)
			for _, pkt := range p.audioPacketizer.Packetize(payload, samples) {
				if err := p.audio.WriteRTP(pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
					p.log.Debugw("audio rtp write failed", "error", err)
				}
				p.bytesSent.Add(uint64(len(pkt.Payload)))
			}
		case <-p.stop:
			return
		}
	}
}

// watchRTCP folds receiver reports from one peer into the shared
// loss and latency figures the health monitor reads.
func (p *trackPump) watchRTCP(sender *webrtc.RTPSender) {
	go func() {
		buf := make([]byte, 1500)
		for {
			n, _, err := sender.Read(buf)
			if err != nil {
				return
			}
			packets, err := rtcp.Unmarshal(buf[:n])
			if err != nil {
				continue
			}
			for _, pkt := range packets {
				rr, ok := pkt.(*rtcp.ReceiverReport)
				if !ok {
					continue
				}
				for _, report := range rr.Reports {
					p.lossPct.Store(uint64(report.FractionLost) * 10000 / 256)
					if report.Delay > 0 {
						// DLSR is in 1/65536 seconds
						p.latencyUS.Store(int64(report.Delay) * 1_000_000 / 65536)
					}
				}
			}
		}
	}()
}

func (p *trackPump) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
	if p.encoder != nil {
		p.encoder.Close()
	}
}

func (p *trackPump) Stats() domain.TransportStats {
	return domain.TransportStats{
		BytesSent:  p.bytesSent.Load(),
		PacketLoss: float64(p.lossPct.Load()) / 10000,
		Latency:    time.Duration(p.latencyUS.Load()) * time.Microsecond,
	}
}
