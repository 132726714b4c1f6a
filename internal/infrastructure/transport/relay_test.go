package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"streamcast/internal/core/domain"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func wsTestServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitEvent(t *testing.T, events <-chan domain.Event) domain.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return domain.Event{}
	}
}

func TestRelayConnectFailsWhenCodecUnsupported(t *testing.T) {
	r := NewRelay(zap.NewNop().Sugar(), RelayConfig{URL: "ws://127.0.0.1:1"}, nil)
	r.probe = func(CodecProfile) bool { return false }

	err := r.Connect(context.Background(), &domain.StreamSession{}, &domain.MediaStream{})
	assert.ErrorIs(t, err, domain.ErrCodecUnsupported)
}

func TestRelayConnectDialTimeout(t *testing.T) {
	r := NewRelay(zap.NewNop().Sugar(), RelayConfig{
		URL:            "ws://127.0.0.1:1",
		ConnectTimeout: 200 * time.Millisecond,
	}, nil)
	r.probe = func(CodecProfile) bool { return true }

	err := r.Connect(context.Background(), &domain.StreamSession{}, &domain.MediaStream{})
	assert.ErrorIs(t, err, domain.ErrTransportTimeout)
}

func TestRelayReadLoopRoutesControlMessages(t *testing.T) {
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(relayControl{Type: "ready"})
		conn.WriteJSON(relayControl{Type: "viewers", Count: 7})
		conn.WriteJSON(relayControl{Type: "quality", Quality: "good"})
		conn.WriteJSON(relayControl{Type: "stream-key", StreamKey: "live_abc"})
		conn.WriteJSON(relayControl{Type: "error", Message: "ingest rejected"})
		time.Sleep(time.Second)
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	r := NewRelay(zap.NewNop().Sugar(), RelayConfig{}, nil)
	r.conn = conn
	go r.readLoop(conn)

	assert.Equal(t, domain.EventTransportReady, waitEvent(t, r.Events()).Kind)

	ev := waitEvent(t, r.Events())
	assert.Equal(t, domain.EventViewerCount, ev.Kind)
	assert.Equal(t, 7, ev.Count)

	ev = waitEvent(t, r.Events())
	assert.Equal(t, domain.EventQualityReport, ev.Kind)
	assert.Equal(t, domain.StreamQuality("good"), ev.Quality)

	ev = waitEvent(t, r.Events())
	assert.Equal(t, domain.EventStreamKey, ev.Kind)
	assert.Equal(t, "live_abc", ev.StreamKey)

	ev = waitEvent(t, r.Events())
	assert.Equal(t, domain.EventTransportError, ev.Kind)
	assert.Contains(t, ev.Err.Error(), "ingest rejected")
}

func TestRelayUnexpectedCloseEmitsTransportClosed(t *testing.T) {
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		// close immediately without a close frame
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	r := NewRelay(zap.NewNop().Sugar(), RelayConfig{}, nil)
	r.conn = conn
	go r.readLoop(conn)

	ev := waitEvent(t, r.Events())
	assert.Equal(t, domain.EventTransportClosed, ev.Kind)
	assert.ErrorIs(t, ev.Err, domain.ErrTransportClosed)
}

func TestRelaySendChunkDeliversAndBuffers(t *testing.T) {
	received := make(chan []byte, 4)
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				received <- data
			}
		}
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	clips := NewClipBuffer(10)
	r := NewRelay(zap.NewNop().Sugar(), RelayConfig{}, clips)
	r.conn = conn
	r.limiter = rate.NewLimiter(rate.Inf, 1<<20)

	r.sendChunk([]byte("chunk-1"))
	r.sendChunk([]byte("chunk-2"))

	select {
	case data := <-received:
		assert.Equal(t, "chunk-1", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("chunk never arrived")
	}

	assert.Equal(t, uint64(14), r.Stats().BytesSent)
	assert.Equal(t, 2, clips.Len())
}

func TestRelayCloseIsIdempotent(t *testing.T) {
	r := NewRelay(zap.NewNop().Sugar(), RelayConfig{}, nil)
	require.NoError(t, r.Close(context.Background()))
	require.NoError(t, r.Close(context.Background()))

	_, open := <-r.Events()
	assert.False(t, open, "events channel closes on Close")
}

func TestRelayEmitKeepsFatalEventWhenSaturated(t *testing.T) {
	r := NewRelay(zap.NewNop().Sugar(), RelayConfig{}, nil)
	for i := 0; i < cap(r.events)+4; i++ {
		r.emit(domain.Event{Kind: domain.EventViewerCount, Count: i, At: time.Now()})
	}
	r.emit(domain.Event{Kind: domain.EventTransportClosed, Err: domain.ErrTransportClosed, At: time.Now()})

	var sawClosed bool
drain:
	for {
		select {
		case ev := <-r.events:
			if ev.Kind == domain.EventTransportClosed {
				sawClosed = true
			}
		default:
			break drain
		}
	}
	assert.True(t, sawClosed, "a full channel must not swallow the closed signal")
}

func TestRelayHandshakeCarriesExternalTarget(t *testing.T) {
	got := make(chan relayHandshake, 1)
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		var hs relayHandshake
		if err := conn.ReadJSON(&hs); err == nil {
			got <- hs
		}
	})

	r := NewRelay(zap.NewNop().Sugar(), RelayConfig{
		URL:              wsURL(srv),
		ConnectTimeout:   2 * time.Second,
		VideoBitrateKbps: 2500,
		AudioBitrateKbps: 160,
		RTMPURL:          "rtmp://live.example.com/app",
	}, nil)
	r.probe = func(CodecProfile) bool { return true }

	// a trackless stream makes Connect bail right after the handshake
	// is on the wire
	err := r.Connect(context.Background(),
		&domain.StreamSession{StreamKey: "live_abcdef12"}, &domain.MediaStream{})
	require.Error(t, err)

	select {
	case hs := <-got:
		assert.Equal(t, "config", hs.Type)
		assert.Equal(t, "rtmp://live.example.com/app", hs.RTMPURL)
		assert.Equal(t, "live_abcdef12", hs.StreamKey)
	case <-time.After(2 * time.Second):
		t.Fatal("relay never sent its handshake")
	}
}
