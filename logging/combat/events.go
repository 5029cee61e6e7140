package combat

import (
	"context"

	"emberreach/server/logging"
)

const (
	CastAcceptedEventType logging.EventType = "combat.cast_accepted"
	CastRejectedEventType logging.EventType = "combat.cast_rejected"
	CastImpactEventType   logging.EventType = "combat.cast_impact"
	DefeatedEventType     logging.EventType = "combat.defeated"
)

type CastAcceptedPayload struct {
	CastID  string `json:"castId"`
	Ability string `json:"ability"`
}

func CastAccepted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CastAcceptedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     CastAcceptedEventType,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

type CastRejectedPayload struct {
	Ability string `json:"ability"`
	Reason  string `json:"reason"`
}

func CastRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CastRejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     CastRejectedEventType,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

type CastImpactPayload struct {
	CastID  string    `json:"castId"`
	Ability string    `json:"ability"`
	Damage  []float64 `json:"damage,omitempty"`
}

func CastImpact(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload CastImpactPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     CastImpactEventType,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

type DefeatedPayload struct {
	CastID  string `json:"castId,omitempty"`
	Ability string `json:"ability,omitempty"`
}

func Defeated(ctx context.Context, pub logging.Publisher, tick uint64, killer logging.EntityRef, victim logging.EntityRef, payload DefeatedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     DefeatedEventType,
		Tick:     tick,
		Actor:    killer,
		Targets:  []logging.EntityRef{victim},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
