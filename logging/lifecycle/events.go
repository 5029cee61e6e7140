package lifecycle

import (
	"context"

	"emberreach/server/logging"
)

const (
	PlayerJoinedEventType       logging.EventType = "lifecycle.player_joined"
	PlayerDisconnectedEventType logging.EventType = "lifecycle.player_disconnected"
)

type PlayerJoinedPayload struct {
	Spawn [2]float64 `json:"spawn"`
}

func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerJoinedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     PlayerJoinedEventType,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

type PlayerDisconnectedPayload struct {
	Reason string `json:"reason"`
}

func PlayerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerDisconnectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     PlayerDisconnectedEventType,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}
