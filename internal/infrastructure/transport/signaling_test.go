package transport

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDialSignalingFailsAfterAttempts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := dialSignaling(ctx, zap.NewNop().Sugar(), "ws://127.0.0.1:1", 1)
	assert.Error(t, err)
}

func TestSignalingSendAndReadLoop(t *testing.T) {
	fromClient := make(chan signalMessage, 4)
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		var msg signalMessage
		require.NoError(t, conn.ReadJSON(&msg))
		fromClient <- msg

		conn.WriteJSON(signalMessage{Type: "broadcaster-ready", StreamID: "stream_42"})
		time.Sleep(time.Second)
	})

	c, err := dialSignaling(context.Background(), zap.NewNop().Sugar(), wsURL(srv), 1)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Send(signalMessage{Type: "broadcaster-join", UserID: "sess_1", StreamTitle: "demo"}))

	sent := <-fromClient
	assert.Equal(t, "broadcaster-join", sent.Type)
	assert.Equal(t, "sess_1", sent.UserID)
	assert.Equal(t, "demo", sent.StreamTitle)

	handled := make(chan signalMessage, 1)
	go c.ReadLoop(func(msg signalMessage) { handled <- msg }, func(error) {
		t.Error("onClosed fired for a live connection")
	})

	select {
	case msg := <-handled:
		assert.Equal(t, "broadcaster-ready", msg.Type)
		assert.Equal(t, "stream_42", msg.StreamID)
	case <-time.After(2 * time.Second):
		t.Fatal("signal never handled")
	}
}

func TestSignalingCloseSuppressesOnClosed(t *testing.T) {
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})

	c, err := dialSignaling(context.Background(), zap.NewNop().Sugar(), wsURL(srv), 1)
	require.NoError(t, err)

	done := make(chan struct{})
	closedFired := false
	go func() {
		c.ReadLoop(func(signalMessage) {}, func(error) { closedFired = true })
		close(done)
	}()

	require.NoError(t, c.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read loop never returned")
	}
	assert.False(t, closedFired, "deliberate close is not an error")
}
