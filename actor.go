package server

import (
	"time"

	"emberreach/server/internal/geom"
)

type FacingDirection string

const (
	FacingUp    FacingDirection = "up"
	FacingDown  FacingDirection = "down"
	FacingLeft  FacingDirection = "left"
	FacingRight FacingDirection = "right"

	defaultFacing = FacingDown
)

func parseFacing(raw string) (FacingDirection, bool) {
	switch FacingDirection(raw) {
	case FacingUp, FacingDown, FacingLeft, FacingRight:
		return FacingDirection(raw), true
	default:
		return "", false
	}
}

// deriveFacing picks the dominant axis of a movement vector, keeping the
// current facing when the vector is zero.
func deriveFacing(dx, dy float64, current FacingDirection) FacingDirection {
	if dx == 0 && dy == 0 {
		return current
	}
	if abs(dx) >= abs(dy) {
		if dx > 0 {
			return FacingRight
		}
		return FacingLeft
	}
	if dy > 0 {
		return FacingDown
	}
	return FacingUp
}

func facingToVector(facing FacingDirection) (float64, float64) {
	switch facing {
	case FacingUp:
		return 0, -1
	case FacingDown:
		return 0, 1
	case FacingLeft:
		return -1, 0
	case FacingRight:
		return 1, 0
	default:
		return 0, 1
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Actor is the broadcast-friendly view of any combat-capable entity.
type Actor struct {
	ID        string          `json:"id"`
	X         float64         `json:"x"`
	Y         float64         `json:"y"`
	Facing    FacingDirection `json:"facing"`
	Health    float64         `json:"health"`
	MaxHealth float64         `json:"maxHealth"`
	Mana      float64         `json:"mana"`
	MaxMana   float64         `json:"maxMana"`
	Level     int             `json:"level"`
}

// actorState carries the authoritative per-entity fields the tick loop owns.
type actorState struct {
	Actor
	intentX float64
	intentY float64
	// speedScale is written by stat-kind status effects (slows, hastes).
	speedScale    float64
	cooldowns     map[string]time.Time
	pendingCastID string
	diedAt        time.Time
}

func (a *actorState) isAlive() bool {
	return a != nil && a.Health > 0
}

func (a *actorState) position() geom.Vec2 {
	return geom.Vec2{X: a.X, Y: a.Y}
}

// applyHealthDelta mutates health clamped to [0, MaxHealth] and reports
// whether the value changed.
func (a *actorState) applyHealthDelta(delta float64) bool {
	if a == nil || delta == 0 {
		return false
	}
	next := a.Health + delta
	if next < 0 {
		next = 0
	}
	if next > a.MaxHealth {
		next = a.MaxHealth
	}
	if next == a.Health {
		return false
	}
	a.Health = next
	return true
}

// applyManaDelta mutates mana clamped to [0, MaxMana] and reports whether the
// value changed.
func (a *actorState) applyManaDelta(delta float64) bool {
	if a == nil || delta == 0 {
		return false
	}
	next := a.Mana + delta
	if next < 0 {
		next = 0
	}
	if next > a.MaxMana {
		next = a.MaxMana
	}
	if next == a.Mana {
		return false
	}
	a.Mana = next
	return true
}

func (a *actorState) effectiveSpeedScale() float64 {
	if a == nil || a.speedScale == 0 {
		return 1
	}
	return a.speedScale
}

// markDead stamps the death time once; repeated calls are no-ops.
func (a *actorState) markDead(now time.Time) bool {
	if a == nil || !a.diedAt.IsZero() {
		return false
	}
	a.Health = 0
	a.diedAt = now
	return true
}

type playerState struct {
	actorState
	lastInput     time.Time
	lastHeartbeat time.Time
	lastRTT       time.Duration
}

func (p *playerState) snapshot() Actor {
	return p.Actor
}

type NPCType string

const (
	NPCTypeDummy    NPCType = "dummy"
	NPCTypeMarauder NPCType = "marauder"
)

type npcState struct {
	actorState
	Type NPCType
}

func (n *npcState) snapshot() NPC {
	return NPC{Actor: n.Actor, Type: n.Type}
}

// NPC is the broadcast view of a server-driven entity.
type NPC struct {
	Actor
	Type NPCType `json:"type"`
}
