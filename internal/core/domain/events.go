package domain

import "time"

// EventKind enumerates every signal a transport, track or monitor can
// raise. All of them funnel through the session state machine as a
// single Event value instead of per-transport callback sets.
type EventKind string

const (
	EventTransportReady  EventKind = "transport-ready"
	EventTransportClosed EventKind = "transport-closed"
	EventTransportError  EventKind = "transport-error"

	EventViewerJoined EventKind = "viewer-joined"
	EventViewerLeft   EventKind = "viewer-left"
	EventViewerCount  EventKind = "viewer-count"

	EventQualityReport EventKind = "quality-report"
	EventStreamKey     EventKind = "stream-key"

	EventTrackEnded   EventKind = "track-ended"
	EventEncoderCrash EventKind = "encoder-crash"
)

// Event is the normalized signal dispatched through the session
// state machine. Only the fields relevant to Kind are set.
type Event struct {
	Kind      EventKind
	PeerID    PeerID
	Count     int
	Quality   StreamQuality
	StreamKey string
	Err       error
	At        time.Time
}

// Fatal reports whether the event ends the whole session rather than
// a single peer. Fatal events must never be silently dropped.
func (e Event) Fatal() bool {
	switch e.Kind {
	case EventTransportClosed, EventEncoderCrash, EventTrackEnded:
		return true
	case EventTransportError:
		return e.PeerID == ""
	default:
		return false
	}
}
