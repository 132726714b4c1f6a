package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"streamcast/internal/core/domain"
)

// MeshConfig configures the peer-mesh transport.
type MeshConfig struct {
	SignalingURL string
	DialAttempts int
	ICEServers   []webrtc.ICEServer
	ICETimeout   time.Duration
	EncoderPath  string
}

// viewerPeer is one peer connection to a viewer. The invariant is one
// live connection per peer id: a rejoin replaces the old connection.
type viewerPeer struct {
	id       domain.PeerID
	pc       *webrtc.PeerConnection
	mu       sync.Mutex
	watchdog *time.Timer
	expired  bool
}

func (p *viewerPeer) armWatchdog(d time.Duration, onExpiry func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watchdog != nil || p.expired {
		return
	}
	p.watchdog = time.AfterFunc(d, onExpiry)
}

func (p *viewerPeer) disarmWatchdog() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watchdog != nil {
		p.watchdog.Stop()
		p.watchdog = nil
	}
}

// expire force-closes the peer exactly once.
func (p *viewerPeer) expire() bool {
	p.mu.Lock()
	if p.expired {
		p.mu.Unlock()
		return false
	}
	p.expired = true
	p.mu.Unlock()
	p.pc.Close()
	return true
}

// Mesh streams directly to each viewer over WebRTC, driven by a
// signaling websocket.
type Mesh struct {
	log   *zap.SugaredLogger
	cfg   MeshConfig
	probe func(CodecProfile) bool

	api  *webrtc.API
	sig  *signalingClient
	pump *trackPump

	mu       sync.Mutex
	peers    map[domain.PeerID]*viewerPeer
	closed   bool
	streamID string

	events chan domain.Event
}

func NewMesh(log *zap.SugaredLogger, cfg MeshConfig) (*Mesh, error) {
	engine := &webrtc.MediaEngine{}
	if err := engine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	// Raw PCM audio rides a dynamic payload type.
	err := engine.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType: "audio/L16", ClockRate: audioClockRate, Channels: 2,
		},
		PayloadType: audioPayloadType,
	}, webrtc.RTPCodecTypeAudio)
	if err != nil {
		return nil, err
	}

	return &Mesh{
		log:    log,
		cfg:    cfg,
		probe:  defaultCodecProbe(cfg.EncoderPath),
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(engine)),
		peers:  make(map[domain.PeerID]*viewerPeer),
		events: make(chan domain.Event, 32),
	}, nil
}

func (m *Mesh) Connect(ctx context.Context, session *domain.StreamSession, media *domain.MediaStream) error {
	profile, err := NegotiateCodec(m.probe)
	if err != nil {
		return err
	}

	pump, err := newTrackPump(m.log, profile)
	if err != nil {
		return err
	}

	sig, err := dialSignaling(ctx, m.log, m.cfg.SignalingURL, m.cfg.DialAttempts)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransportTimeout, err)
	}

	join := signalMessage{
		Type:        "broadcaster-join",
		UserID:      string(session.ID),
		StreamTitle: session.Title,
	}
	if err := sig.Send(join); err != nil {
		sig.Close()
		return fmt.Errorf("broadcaster join failed: %w", err)
	}

	w, h := session.Source.Resolution.Dimensions()
	fps := session.Source.FrameRate
	if fps == 0 {
		fps = 30
	}
	bitrate := session.Source.BitrateKbps
	if bitrate == 0 {
		bitrate = 2500
	}
	if err := pump.Start(m.cfg.EncoderPath, profile, media, w, h, fps, bitrate); err != nil {
		sig.Close()
		return err
	}

	m.mu.Lock()
	m.sig = sig
	m.pump = pump
	m.mu.Unlock()

	go sig.ReadLoop(m.handleSignal, func(err error) {
		m.emit(domain.Event{
			Kind: domain.EventTransportClosed,
			Err:  fmt.Errorf("%w: signaling: %v", domain.ErrTransportClosed, err),
			At:   time.Now(),
		})
	})

	m.log.Infow("mesh signaling connected", "url", m.cfg.SignalingURL, "codec", profile.Name)
	return nil
}

func (m *Mesh) handleSignal(msg signalMessage) {
	switch msg.Type {
	case "broadcaster-ready":
		m.mu.Lock()
		m.streamID = msg.StreamID
		m.mu.Unlock()
		m.emit(domain.Event{Kind: domain.EventTransportReady, At: time.Now()})

	case "viewer-joined":
		go m.addViewer(domain.PeerID(msg.PeerID))

	case "answer":
		m.applyAnswer(domain.PeerID(msg.PeerID), msg.SDP)

	case "ice-candidate":
		m.applyCandidate(domain.PeerID(msg.PeerID), msg.Candidate)

	case "viewer-left":
		m.removePeer(domain.PeerID(msg.PeerID))
		m.emit(domain.Event{Kind: domain.EventViewerLeft, PeerID: domain.PeerID(msg.PeerID), At: time.Now()})

	case "viewer-count":
		// the server's count is authoritative, not the local peer map
		m.emit(domain.Event{Kind: domain.EventViewerCount, Count: msg.Count, At: time.Now()})

	case "stream-ended":
		m.emit(domain.Event{Kind: domain.EventTransportClosed, Err: domain.ErrTransportClosed, At: time.Now()})

	case "error":
		m.emit(domain.Event{
			Kind: domain.EventTransportError,
			Err:  fmt.Errorf("signaling error: %s", msg.Message),
			At:   time.Now(),
		})

	default:
		m.log.Debugw("unknown signal", "type", msg.Type)
	}
}

func (m *Mesh) addViewer(peerID domain.PeerID) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if old, ok := m.peers[peerID]; ok {
		old.disarmWatchdog()
		old.pc.Close()
		delete(m.peers, peerID)
		m.log.Infow("replacing existing connection for rejoining viewer", "peer", peerID)
	}
	m.mu.Unlock()

	pc, err := m.api.NewPeerConnection(webrtc.Configuration{ICEServers: m.cfg.ICEServers})
	if err != nil {
		m.log.Errorw("peer connection create failed", "peer", peerID, "error", err)
		return
	}

	peer := &viewerPeer{id: peerID, pc: pc}

	if sender, err := pc.AddTrack(m.pump.video); err == nil {
		m.pump.watchRTCP(sender)
	}
	if sender, err := pc.AddTrack(m.pump.audio); err == nil {
		m.pump.watchRTCP(sender)
	}

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		switch state {
		case webrtc.ICEConnectionStateChecking:
			peer.armWatchdog(m.cfg.ICETimeout, func() { m.expirePeer(peer) })
		case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
			peer.disarmWatchdog()
			m.log.Infow("viewer connected", "peer", peerID, "state", state.String())
		}
	})

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		payload, err := json.Marshal(cand.ToJSON())
		if err != nil {
			return
		}
		m.sig.Send(signalMessage{Type: "ice-candidate", PeerID: string(peerID), Candidate: payload})
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		m.log.Errorw("offer create failed", "peer", peerID, "error", err)
		return
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		m.log.Errorw("set local description failed", "peer", peerID, "error", err)
		return
	}
	if err := m.sig.Send(signalMessage{Type: "offer", PeerID: string(peerID), SDP: offer.SDP}); err != nil {
		pc.Close()
		m.log.Errorw("offer send failed", "peer", peerID, "error", err)
		return
	}

	m.mu.Lock()
	m.peers[peerID] = peer
	m.mu.Unlock()
	m.emit(domain.Event{Kind: domain.EventViewerJoined, PeerID: peerID, At: time.Now()})
}

// expirePeer fires when ICE never left checking within the timeout.
// The peer is closed once; the session stays live for other viewers.
func (m *Mesh) expirePeer(peer *viewerPeer) {
	if !peer.expire() {
		return
	}
	m.mu.Lock()
	delete(m.peers, peer.id)
	m.mu.Unlock()

	m.log.Warnw("ice negotiation timed out", "peer", peer.id, "timeout", m.cfg.ICETimeout)
	m.emit(domain.Event{
		Kind:   domain.EventTransportError,
		PeerID: peer.id,
		Err:    fmt.Errorf("%w: ice negotiation with %s", domain.ErrTransportTimeout, peer.id),
		At:     time.Now(),
	})
}

func (m *Mesh) applyAnswer(peerID domain.PeerID, sdp string) {
	m.mu.Lock()
	peer, ok := m.peers[peerID]
	m.mu.Unlock()
	if !ok {
		m.log.Warnw("answer for unknown peer", "peer", peerID)
		return
	}
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := peer.pc.SetRemoteDescription(desc); err != nil {
		m.log.Errorw("set remote description failed", "peer", peerID, "error", err)
	}
}

func (m *Mesh) applyCandidate(peerID domain.PeerID, raw json.RawMessage) {
	m.mu.Lock()
	peer, ok := m.peers[peerID]
	m.mu.Unlock()
	if !ok {
		return
	}
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &init); err != nil {
		m.log.Warnw("bad ice candidate payload", "peer", peerID, "error", err)
		return
	}
	if err := peer.pc.AddICECandidate(init); err != nil {
		m.log.Warnw("add ice candidate failed", "peer", peerID, "error", err)
	}
}

func (m *Mesh) removePeer(peerID domain.PeerID) {
	m.mu.Lock()
	peer, ok := m.peers[peerID]
	if ok {
		delete(m.peers, peerID)
	}
	m.mu.Unlock()
	if ok {
		peer.disarmWatchdog()
		peer.pc.Close()
	}
}

func (m *Mesh) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	peers := make([]*viewerPeer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.peers = make(map[domain.PeerID]*viewerPeer)
	sig := m.sig
	pump := m.pump
	m.mu.Unlock()

	// peers first, with their watchdogs, then tracks, then the socket
	for _, p := range peers {
		p.disarmWatchdog()
		p.pc.Close()
	}
	if pump != nil {
		pump.Stop()
	}
	if sig != nil {
		sig.Close()
	}
	close(m.events)
	return nil
}

func (m *Mesh) Events() <-chan domain.Event {
	return m.events
}

func (m *Mesh) Stats() domain.TransportStats {
	m.mu.Lock()
	pump := m.pump
	m.mu.Unlock()
	if pump == nil {
		return domain.TransportStats{}
	}
	return pump.Stats()
}

// emit delivers an event without ever blocking under the mutex.
// Advisory events are dropped when the channel is full, fatal ones
// evict the oldest queued event until they fit.
func (m *Mesh) emit(ev domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for {
		select {
		case m.events <- ev:
			return
		default:
		}
		if !ev.Fatal() {
			return
		}
		select {
		case <-m.events:
		default:
		}
	}
}
