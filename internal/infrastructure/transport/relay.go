package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"streamcast/internal/core/domain"
)

// RelayConfig configures the chunked relay transport.
type RelayConfig struct {
	URL              string
	ConnectTimeout   time.Duration
	EncoderPath      string
	Timeslice        time.Duration
	VideoBitrateKbps int
	AudioBitrateKbps int
	RecordDir        string

	// RTMPURL, when non-empty, tells the relay host to forward the
	// remuxed stream to this external ingest instead of serving it
	// to viewers itself.
	RTMPURL string
}

// relayHandshake is the one-time config frame sent after dialing.
// An empty RTMPURL selects the relay's internal ingest.
type relayHandshake struct {
	Type         string `json:"type"`
	RTMPURL      string `json:"rtmpUrl,omitempty"`
	StreamKey    string `json:"streamKey"`
	VideoBitrate int    `json:"videoBitrate"`
	AudioBitrate int    `json:"audioBitrate"`
	Title        string `json:"title"`
}

// relayControl is a server-pushed control message.
type relayControl struct {
	Type      string `json:"type"`
	Count     int    `json:"count,omitempty"`
	Quality   string `json:"quality,omitempty"`
	StreamKey string `json:"streamKey,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Relay streams timeslice chunks of one continuous WebM recording
// over a websocket. The server remuxes and forwards to the RTMP
// ingest; chunks also land in the clip buffer.
type Relay struct {
	log   *zap.SugaredLogger
	cfg   RelayConfig
	clips *ClipBuffer
	probe func(CodecProfile) bool

	mu       sync.Mutex
	conn     *websocket.Conn
	recorder *Recorder
	closed   bool

	writeMu   sync.Mutex
	limiter   *rate.Limiter
	events    chan domain.Event
	bytesSent atomic.Uint64
}

func NewRelay(log *zap.SugaredLogger, cfg RelayConfig, clips *ClipBuffer) *Relay {
	return &Relay{
		log:    log,
		cfg:    cfg,
		clips:  clips,
		probe:  defaultCodecProbe(cfg.EncoderPath),
		events: make(chan domain.Event, 16),
	}
}

func (r *Relay) Connect(ctx context.Context, session *domain.StreamSession, media *domain.MediaStream) error {
	// Codec support is settled before any socket exists, so an
	// unsupportable host never half-opens a stream.
	profile, err := NegotiateCodec(r.probe)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, r.cfg.ConnectTimeout)
	defer cancel()
	dialer := websocket.Dialer{HandshakeTimeout: r.cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(dialCtx, r.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: relay dial: %v", domain.ErrTransportTimeout, err)
	}

	hs := relayHandshake{
		Type:         "config",
		RTMPURL:      r.cfg.RTMPURL,
		StreamKey:    session.StreamKey,
		VideoBitrate: r.cfg.VideoBitrateKbps,
		AudioBitrate: r.cfg.AudioBitrateKbps,
		Title:        session.Title,
	}
	if err := conn.WriteJSON(hs); err != nil {
		conn.Close()
		return fmt.Errorf("relay handshake failed: %w", err)
	}

	// Backpressure: sized to the stream bitrate with one second of burst.
	bytesPerSec := (r.cfg.VideoBitrateKbps + r.cfg.AudioBitrateKbps) * 1000 / 8
	r.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)

	w, h := session.Source.Resolution.Dimensions()
	fps := session.Source.FrameRate
	if fps == 0 {
		fps = 30
	}
	rec := NewRecorder(r.log, RecorderConfig{
		EncoderPath: r.cfg.EncoderPath,
		Profile:     profile,
		Width:       w,
		Height:      h,
		FrameRate:   fps,
		BitrateKbps: r.cfg.VideoBitrateKbps,
		Timeslice:   r.cfg.Timeslice,
		RecordDir:   r.cfg.RecordDir,
	}, r.sendChunk)

	if r.clips != nil {
		r.clips.Reset()
		r.clips.SetExtension(profile.Ext)
	}
	if err := rec.Start(media); err != nil {
		conn.Close()
		return err
	}

	r.mu.Lock()
	r.conn = conn
	r.recorder = rec
	r.mu.Unlock()

	go r.readLoop(conn)
	r.log.Infow("relay connected", "url", r.cfg.URL, "codec", profile.Name, "timeslice", r.cfg.Timeslice)
	return nil
}

func (r *Relay) sendChunk(chunk []byte) {
	if r.clips != nil {
		r.clips.Add(chunk)
	}

	n := len(chunk)
	if burst := r.limiter.Burst(); n > burst {
		n = burst
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	r.limiter.WaitN(ctx, n)
	cancel()

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		r.log.Warnw("relay chunk write failed", "error", err, "size", len(chunk))
		return
	}
	r.bytesSent.Add(uint64(len(chunk)))
}

// readLoop routes server control messages into session events. An
// unexpected close while live ends the stream.
func (r *Relay) readLoop(conn *websocket.Conn) {
	for {
		var msg relayControl
		if err := conn.ReadJSON(&msg); err != nil {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if !closed {
				r.emit(domain.Event{
					Kind: domain.EventTransportClosed,
					Err:  fmt.Errorf("%w: %v", domain.ErrTransportClosed, err),
					At:   time.Now(),
				})
			}
			return
		}

		switch msg.Type {
		case "ready":
			r.emit(domain.Event{Kind: domain.EventTransportReady, At: time.Now()})
		case "viewers":
			r.emit(domain.Event{Kind: domain.EventViewerCount, Count: msg.Count, At: time.Now()})
		case "quality":
			r.emit(domain.Event{Kind: domain.EventQualityReport, Quality: domain.StreamQuality(msg.Quality), At: time.Now()})
		case "stream-key":
			r.emit(domain.Event{Kind: domain.EventStreamKey, StreamKey: msg.StreamKey, At: time.Now()})
		case "error":
			r.emit(domain.Event{
				Kind: domain.EventTransportError,
				Err:  fmt.Errorf("relay server error: %s", msg.Message),
				At:   time.Now(),
			})
		default:
			r.log.Debugw("unknown relay control message", "type", msg.Type)
		}
	}
}

func (r *Relay) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conn := r.conn
	rec := r.recorder
	r.mu.Unlock()

	// The recorder flushes its final chunk through the still-open
	// socket before the connection comes down.
	if rec != nil {
		rec.Stop()
	}
	r.mu.Lock()
	r.conn = nil
	r.mu.Unlock()
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}
	close(r.events)
	return nil
}

func (r *Relay) Events() <-chan domain.Event {
	return r.events
}

func (r *Relay) Stats() domain.TransportStats {
	return domain.TransportStats{BytesSent: r.bytesSent.Load()}
}

// emit delivers an event without ever blocking under the mutex; the
// consumer may be tearing this transport down concurrently. Advisory
// events are dropped when the channel is full, fatal ones evict the
// oldest queued event until they fit.
func (r *Relay) emit(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for {
		select {
		case r.events <- ev:
			return
		default:
		}
		if !ev.Fatal() {
			return
		}
		select {
		case <-r.events:
		default:
		}
	}
}
