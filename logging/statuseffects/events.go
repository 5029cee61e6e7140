package statuseffects

import (
	"context"

	"emberreach/server/logging"
)

const (
	AppliedEventType logging.EventType = "status_effects.applied"
	ExpiredEventType logging.EventType = "status_effects.expired"
)

type AppliedPayload struct {
	Effect     string `json:"effect"`
	SourceID   string `json:"sourceId,omitempty"`
	Stacks     int    `json:"stacks"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

func Applied(ctx context.Context, pub logging.Publisher, tick uint64, source logging.EntityRef, target logging.EntityRef, payload AppliedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     AppliedEventType,
		Tick:     tick,
		Actor:    source,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryStatusEffects,
		Payload:  payload,
	})
}

type ExpiredPayload struct {
	Effect string `json:"effect"`
	Reason string `json:"reason,omitempty"`
}

func Expired(ctx context.Context, pub logging.Publisher, tick uint64, target logging.EntityRef, payload ExpiredPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     ExpiredEventType,
		Tick:     tick,
		Actor:    target,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryStatusEffects,
		Payload:  payload,
	})
}
