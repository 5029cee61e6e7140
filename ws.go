package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"emberreach/server/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWS upgrades the connection for an already-joined player and runs its
// read loop until the socket drops.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("id")
	if playerID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logSystem("system.upgrade_failed", playerID, err)
		return
	}

	sub, snapshot, err := h.Subscribe(playerID, conn)
	if err != nil {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown player")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}

	if err := sub.writeJSON(snapshot); err != nil {
		h.Disconnect(playerID)
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.Disconnect(playerID)
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logSystem("system.malformed_message", playerID, err)
			continue
		}

		switch msg.Type {
		case "input":
			h.UpdateIntent(playerID, msg.DX, msg.DY, msg.Facing)
		case "heartbeat":
			now := time.Now()
			rtt := h.Heartbeat(playerID, msg.SentAt, now)
			ack := heartbeatMessage{
				Ver:        ProtocolVersion,
				Type:       "heartbeat",
				ServerTime: now.UnixMilli(),
				ClientTime: msg.SentAt,
				RTTMillis:  rtt.Milliseconds(),
			}
			if err := sub.writeJSON(ack); err != nil {
				h.Disconnect(playerID)
				return
			}
		case "cast":
			castID, rejection := h.HandleCastRequest(playerID, msg)
			var reply any
			if rejection == RejectionNone {
				reply = castAcceptedMessage{
					Ver:            ProtocolVersion,
					Type:           "castAccepted",
					ClientSequence: msg.ClientSequence,
					CastID:         castID,
				}
			} else {
				reply = castFailedMessage{
					Ver:            ProtocolVersion,
					Type:           "castFailed",
					ClientSequence: msg.ClientSequence,
					Reason:         string(rejection),
				}
			}
			if err := sub.writeJSON(reply); err != nil {
				h.Disconnect(playerID)
				return
			}
		case "cancelCast":
			h.CancelCast(playerID)
		case "resync":
			snapshot, ok := h.Resync(playerID)
			if !ok {
				continue
			}
			if err := sub.writeJSON(snapshot); err != nil {
				h.Disconnect(playerID)
				return
			}
		default:
			h.logSystem("system.unknown_message", playerID, nil)
		}
	}
}

func (h *Hub) logSystem(eventType logging.EventType, playerID string, cause error) {
	event := logging.Event{
		Type:     eventType,
		Tick:     h.Tick(),
		Actor:    logging.EntityRef{ID: playerID, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityWarn,
		Category: logging.CategorySystem,
	}
	if cause != nil {
		event.Payload = map[string]any{"error": cause.Error()}
	}
	h.publisher.Publish(context.Background(), event)
}
