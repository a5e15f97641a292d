package event

import (
	"time"

	"github.com/2006-sk/Backend-hackharvard/internal/risk"
)

// Kind discriminates the event types on the wire.
type Kind string

const (
	KindConnectionEstablished Kind = "connection_established"
	KindCallStart             Kind = "call_start"
	KindUpdate                Kind = "update"
	KindCallEnd               Kind = "call_end"
	KindAudioReady            Kind = "audio_ready"
	KindEventsDropped         Kind = "events_dropped"
)

// Event is one emission on the subscriber feed. StreamID is empty for
// events with no session association.
type Event interface {
	EventKind() Kind
	StreamID() string
}

// ConnectionEstablished is sent once to each new subscriber.
type ConnectionEstablished struct {
	Event     Kind      `json:"event"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func NewConnectionEstablished(message string, now time.Time) ConnectionEstablished {
	return ConnectionEstablished{Event: KindConnectionEstablished, Message: message, Timestamp: now}
}

func (e ConnectionEstablished) EventKind() Kind  { return KindConnectionEstablished }
func (e ConnectionEstablished) StreamID() string { return "" }

// CallStart announces a new monitored call.
type CallStart struct {
	Event     Kind      `json:"event"`
	StreamSID string    `json:"streamSid"`
	Timestamp time.Time `json:"timestamp"`
}

func NewCallStart(streamSID string, now time.Time) CallStart {
	return CallStart{Event: KindCallStart, StreamSID: streamSID, Timestamp: now}
}

func (e CallStart) EventKind() Kind  { return KindCallStart }
func (e CallStart) StreamID() string { return e.StreamSID }

// Update carries one scored transcript fragment.
type Update struct {
	Event     Kind      `json:"event"`
	StreamSID string    `json:"streamSid"`
	Text      string    `json:"text"`
	CleanText string    `json:"clean_text"`
	Risk      float64   `json:"risk"`
	Band      risk.Band `json:"band"`
	Timestamp time.Time `json:"timestamp"`
}

func NewUpdate(streamSID, text, cleanText string, score float64, band risk.Band, now time.Time) Update {
	return Update{
		Event:     KindUpdate,
		StreamSID: streamSID,
		Text:      text,
		CleanText: cleanText,
		Risk:      score,
		Band:      band,
		Timestamp: now,
	}
}

func (e Update) EventKind() Kind  { return KindUpdate }
func (e Update) StreamID() string { return e.StreamSID }

// CallEnd announces a completed call with its final score and duration.
type CallEnd struct {
	Event      Kind      `json:"event"`
	StreamSID  string    `json:"streamSid"`
	FinalScore float64   `json:"final_score"`
	Duration   float64   `json:"duration"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewCallEnd(streamSID string, finalScore, durationSeconds float64, now time.Time) CallEnd {
	return CallEnd{
		Event:      KindCallEnd,
		StreamSID:  streamSID,
		FinalScore: finalScore,
		Duration:   durationSeconds,
		Timestamp:  now,
	}
}

func (e CallEnd) EventKind() Kind  { return KindCallEnd }
func (e CallEnd) StreamID() string { return e.StreamSID }

// AudioReady announces that a call's archived recording is available.
type AudioReady struct {
	Event     Kind   `json:"event"`
	StreamSID string `json:"streamSid"`
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
}

func NewAudioReady(streamSID, url, filename string, sizeBytes int64) AudioReady {
	return AudioReady{
		Event:     KindAudioReady,
		StreamSID: streamSID,
		URL:       url,
		Filename:  filename,
		SizeBytes: sizeBytes,
	}
}

func (e AudioReady) EventKind() Kind  { return KindAudioReady }
func (e AudioReady) StreamID() string { return e.StreamSID }

// EventsDropped tells a lagging subscriber its feed has a gap. Dropped
// is the subscriber's lifetime drop count, so consecutive notices let
// the client size the gap.
type EventsDropped struct {
	Event     Kind      `json:"event"`
	Dropped   uint64    `json:"dropped"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEventsDropped(dropped uint64, now time.Time) EventsDropped {
	return EventsDropped{Event: KindEventsDropped, Dropped: dropped, Timestamp: now}
}

func (e EventsDropped) EventKind() Kind  { return KindEventsDropped }
func (e EventsDropped) StreamID() string { return "" }
