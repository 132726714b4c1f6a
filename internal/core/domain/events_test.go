package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventFatal(t *testing.T) {
	assert.True(t, Event{Kind: EventTransportClosed}.Fatal())
	assert.True(t, Event{Kind: EventEncoderCrash}.Fatal())
	assert.True(t, Event{Kind: EventTrackEnded}.Fatal())
	assert.True(t, Event{Kind: EventTransportError}.Fatal())

	// a single peer's failure never ends the session
	assert.False(t, Event{Kind: EventTransportError, PeerID: "peer_1"}.Fatal())
	assert.False(t, Event{Kind: EventViewerCount}.Fatal())
	assert.False(t, Event{Kind: EventQualityReport}.Fatal())
	assert.False(t, Event{Kind: EventTransportReady}.Fatal())
}
