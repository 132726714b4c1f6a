package transport

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"streamcast/internal/core/domain"
)

func newTestMesh(t *testing.T) *Mesh {
	t.Helper()
	m, err := NewMesh(zap.NewNop().Sugar(), MeshConfig{ICETimeout: 15 * time.Second})
	require.NoError(t, err)
	return m
}

func TestMeshHandleBroadcasterReady(t *testing.T) {
	m := newTestMesh(t)
	m.handleSignal(signalMessage{Type: "broadcaster-ready", StreamID: "stream_7"})

	assert.Equal(t, "stream_7", m.streamID)
	assert.Equal(t, domain.EventTransportReady, waitEvent(t, m.Events()).Kind)
}

func TestMeshHandleViewerCount(t *testing.T) {
	m := newTestMesh(t)
	m.handleSignal(signalMessage{Type: "viewer-count", Count: 3})

	ev := waitEvent(t, m.Events())
	assert.Equal(t, domain.EventViewerCount, ev.Kind)
	assert.Equal(t, 3, ev.Count)
}

func TestMeshHandleViewerLeft(t *testing.T) {
	m := newTestMesh(t)
	m.handleSignal(signalMessage{Type: "viewer-left", PeerID: "peer_1"})

	ev := waitEvent(t, m.Events())
	assert.Equal(t, domain.EventViewerLeft, ev.Kind)
	assert.Equal(t, domain.PeerID("peer_1"), ev.PeerID)
}

func TestMeshHandleStreamEnded(t *testing.T) {
	m := newTestMesh(t)
	m.handleSignal(signalMessage{Type: "stream-ended"})

	ev := waitEvent(t, m.Events())
	assert.Equal(t, domain.EventTransportClosed, ev.Kind)
	assert.ErrorIs(t, ev.Err, domain.ErrTransportClosed)
}

func TestMeshHandleServerError(t *testing.T) {
	m := newTestMesh(t)
	m.handleSignal(signalMessage{Type: "error", Message: "room full"})

	ev := waitEvent(t, m.Events())
	assert.Equal(t, domain.EventTransportError, ev.Kind)
	assert.Empty(t, ev.PeerID, "server errors are not peer scoped")
	assert.Contains(t, ev.Err.Error(), "room full")
}

func TestMeshUnknownPeerMessagesAreIgnored(t *testing.T) {
	m := newTestMesh(t)
	m.applyAnswer("nobody", "v=0")
	m.applyCandidate("nobody", []byte(`{"candidate":""}`))
	m.removePeer("nobody")

	select {
	case ev := <-m.Events():
		t.Fatalf("unexpected event %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestViewerPeerExpiresOnce(t *testing.T) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)

	peer := &viewerPeer{id: "peer_1", pc: pc}
	assert.True(t, peer.expire())
	assert.False(t, peer.expire(), "a peer is force-closed at most once")
}

func TestViewerPeerWatchdogDisarm(t *testing.T) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer pc.Close()

	fired := make(chan struct{}, 1)
	peer := &viewerPeer{id: "peer_1", pc: pc}
	peer.armWatchdog(50*time.Millisecond, func() { fired <- struct{}{} })
	peer.disarmWatchdog()

	select {
	case <-fired:
		t.Fatal("watchdog fired after disarm")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestMeshExpirePeerIsPeerScoped(t *testing.T) {
	m := newTestMesh(t)

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	peer := &viewerPeer{id: "peer_9", pc: pc}
	m.peers[peer.id] = peer

	m.expirePeer(peer)

	ev := waitEvent(t, m.Events())
	assert.Equal(t, domain.EventTransportError, ev.Kind)
	assert.Equal(t, domain.PeerID("peer_9"), ev.PeerID)
	assert.ErrorIs(t, ev.Err, domain.ErrTransportTimeout)

	m.mu.Lock()
	_, still := m.peers[peer.id]
	m.mu.Unlock()
	assert.False(t, still, "expired peer leaves the mesh")

	// a second expiry is a no-op
	m.expirePeer(peer)
	select {
	case ev := <-m.Events():
		t.Fatalf("unexpected second event %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMeshCloseIsIdempotent(t *testing.T) {
	m := newTestMesh(t)

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	m.peers["peer_1"] = &viewerPeer{id: "peer_1", pc: pc}

	require.NoError(t, m.Close(context.Background()))
	require.NoError(t, m.Close(context.Background()))

	_, open := <-m.Events()
	assert.False(t, open, "events channel closes on Close")
	assert.Empty(t, m.peers)
}

func TestMeshEmitKeepsFatalEventWhenSaturated(t *testing.T) {
	m := newTestMesh(t)
	for i := 0; i < cap(m.events)+4; i++ {
		m.emit(domain.Event{Kind: domain.EventViewerCount, Count: i, At: time.Now()})
	}
	m.emit(domain.Event{Kind: domain.EventTransportError, Err: domain.ErrTransportClosed, At: time.Now()})

	var sawError bool
drain:
	for {
		select {
		case ev := <-m.events:
			if ev.Kind == domain.EventTransportError {
				sawError = true
			}
		default:
			break drain
		}
	}
	assert.True(t, sawError, "a full channel must not swallow a session-fatal error")
}
