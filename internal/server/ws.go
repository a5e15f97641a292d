package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2006-sk/Backend-hackharvard/internal/event"
	"github.com/2006-sk/Backend-hackharvard/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// The dashboard and telephony provider connect from other origins.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// dropTracker notices when a subscriber's drop count has grown since
// the last delivered event, so the client can be told about the gap.
type dropTracker struct {
	seen uint64
}

func (d *dropTracker) gap(dropped uint64) (uint64, bool) {
	if dropped == d.seen {
		return 0, false
	}
	d.seen = dropped
	return dropped, true
}

// handleNotify implements the /notify WebSocket endpoint. Each client
// gets its own event queue; clients that stop reading lose oldest
// events first and receive an events_dropped notice about the gap,
// never a disconnect.
func (h *HTTPServer) handleNotify(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade notify connection", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	var filters []string
	if id := r.URL.Query().Get("session"); id != "" {
		filters = append(filters, id)
	}

	sub := h.hub.Subscribe(filters...)
	defer h.hub.Unsubscribe(sub)

	h.logger.Info("Notify client connected",
		slog.String("remote", r.RemoteAddr),
		slog.Int("subscribers", h.hub.SubscriberCount()))

	// Read loop exists only to detect disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	var drops dropTracker

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if total, gapped := drops.gap(sub.Dropped()); gapped {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(event.NewEventsDropped(total, time.Now().UTC())); err != nil {
					return
				}
				h.logger.Warn("Notify client lagging, events dropped",
					slog.String("remote", r.RemoteAddr),
					slog.Uint64("dropped", total))
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("Notify client write failed",
					slog.String("remote", r.RemoteAddr),
					slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			h.logger.Info("Notify client disconnected",
				slog.String("remote", r.RemoteAddr),
				slog.Uint64("dropped_events", sub.Dropped()))
			return
		}
	}
}

// mediaMessage is one frame of the telephony media stream protocol.
type mediaMessage struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Start     struct {
		StreamSid string `json:"streamSid"`
	} `json:"start"`
	Media struct {
		Payload string `json:"payload"` // base64 µ-law audio
	} `json:"media"`
	Stop struct {
		StreamSid string `json:"streamSid"`
	} `json:"stop"`
}

// handleMediaStream implements the /media WebSocket endpoint that
// telephony providers stream call audio into.
func (h *HTTPServer) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade media connection", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	h.logger.Info("Media stream connected", slog.String("remote", r.RemoteAddr))

	var streamSid string
	defer func() {
		// A dropped media connection ends the call it carried.
		if streamSid == "" {
			return
		}
		if _, err := h.engine.EndCall(streamSid); err != nil &&
			!errors.Is(err, session.ErrSessionEnded) &&
			!errors.Is(err, session.ErrUnknownSession) {
			h.logger.Error("Failed to end call on disconnect",
				slog.String("session_id", streamSid),
				slog.String("error", err.Error()))
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("Media stream closed unexpectedly", slog.String("error", err.Error()))
			}
			return
		}

		var msg mediaMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("Invalid media message", slog.String("error", err.Error()))
			continue
		}

		switch msg.Event {
		case "connected":
			// Protocol handshake, nothing to do yet.

		case "start":
			sid := msg.Start.StreamSid
			if sid == "" {
				sid = msg.StreamSid
			}
			if sid == "" {
				h.logger.Warn("Start message without streamSid")
				continue
			}
			if err := h.engine.HandleStart(sid); err != nil {
				h.logger.Warn("Call start rejected",
					slog.String("session_id", sid),
					slog.String("error", err.Error()))
				continue
			}
			streamSid = sid

		case "media":
			if streamSid == "" {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				h.logger.Warn("Invalid media payload",
					slog.String("session_id", streamSid),
					slog.String("error", err.Error()))
				continue
			}
			if err := h.engine.HandleMedia(streamSid, payload); err != nil {
				h.logger.Error("Failed to process media frame",
					slog.String("session_id", streamSid),
					slog.String("error", err.Error()))
			}

		case "stop":
			sid := msg.Stop.StreamSid
			if sid == "" {
				sid = streamSid
			}
			if sid == "" {
				continue
			}
			if _, err := h.engine.EndCall(sid); err != nil &&
				!errors.Is(err, session.ErrSessionEnded) &&
				!errors.Is(err, session.ErrUnknownSession) {
				h.logger.Error("Failed to end call",
					slog.String("session_id", sid),
					slog.String("error", err.Error()))
			}
			if sid == streamSid {
				streamSid = ""
			}

		default:
			h.logger.Debug("Unknown media event", slog.String("event", msg.Event))
		}
	}
}
