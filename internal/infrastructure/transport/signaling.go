package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"streamcast/pkg/retry"
)

// signalMessage is the JSON envelope exchanged with the signaling
// server. Only the fields relevant to Type are populated.
type signalMessage struct {
	Type        string          `json:"type"`
	UserID      string          `json:"userId,omitempty"`
	StreamTitle string          `json:"streamTitle,omitempty"`
	StreamID    string          `json:"streamId,omitempty"`
	PeerID      string          `json:"peerId,omitempty"`
	Count       int             `json:"count,omitempty"`
	SDP         string          `json:"sdp,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
	Message     string          `json:"message,omitempty"`
}

// signalingClient is the broadcaster's connection to the signaling
// server. The initial dial is retried with backoff; failures after
// the session is up are not.
type signalingClient struct {
	log *zap.SugaredLogger

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func dialSignaling(ctx context.Context, log *zap.SugaredLogger, url string, attempts int) (*signalingClient, error) {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = attempts

	conn, err := retry.DoWithResult(ctx, cfg, func() (*websocket.Conn, error) {
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		c, _, err := dialer.DialContext(ctx, url, nil)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("signaling dial failed: %w", err)
	}

	return &signalingClient{log: log, conn: conn}, nil
}

func (c *signalingClient) Send(msg signalMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// ReadLoop delivers messages to handler until the connection drops.
// onClosed fires only for unexpected drops.
func (c *signalingClient) ReadLoop(handler func(signalMessage), onClosed func(error)) {
	for {
		var msg signalMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed && onClosed != nil {
				onClosed(err)
			}
			return
		}
		handler(msg)
	}
}

func (c *signalingClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}
