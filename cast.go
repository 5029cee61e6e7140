package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"emberreach/server/internal/geom"
	"emberreach/server/logging"
	loggingcombat "emberreach/server/logging/combat"
)

// CastState is the lifecycle phase of one ability invocation. The legal
// sequences are Casting→Traveling→Impact and Casting→Impact; Impact is
// terminal.
type CastState string

const (
	CastStateCasting   CastState = "casting"
	CastStateTraveling CastState = "traveling"
	CastStateImpact    CastState = "impact"
)

// CastRejection is the typed reason a cast request was refused. The empty
// value means accepted.
type CastRejection string

const (
	RejectionNone                 CastRejection = ""
	RejectionInvalidAbility       CastRejection = "invalid_ability"
	RejectionCasterDead           CastRejection = "caster_dead"
	RejectionOnCooldown           CastRejection = "on_cooldown"
	RejectionInsufficientResource CastRejection = "insufficient_resource"
	RejectionNoValidTarget        CastRejection = "no_valid_target"
	RejectionOutOfRange           CastRejection = "out_of_range"
)

// Cast is the broadcast view of an active invocation.
type Cast struct {
	ID        string    `json:"id"`
	CasterID  string    `json:"casterId"`
	AbilityID string    `json:"abilityId"`
	State     CastState `json:"state"`
	OriginX   float64   `json:"originX"`
	OriginY   float64   `json:"originY"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	TargetID  string    `json:"targetId,omitempty"`
	StartedAt int64     `json:"startedAt"`
}

// castState carries the authoritative fields only the tick loop touches.
type castState struct {
	Cast
	def            *AbilityDefinition
	elapsedInState time.Duration
	dirX           float64
	dirY           float64
	traveled       float64
	hasTargetPoint bool
	targetPoint    geom.Vec2
	// hitIDs records targets a piercing projectile already damaged so a
	// long sweep never double-hits.
	hitIDs        map[string]struct{}
	resolved      bool
	resolvedAt    time.Time
	lastBroadcast time.Time
}

func (c *castState) snapshot() Cast {
	return c.Cast
}

// RequestCast validates a cast request and, on acceptance, debits the mana
// cost, stamps the cooldown expiry, and appends a new Cast in Casting state.
// Both charges happen at acceptance so request spam during the cast window
// cannot double-spend.
func (w *World) RequestCast(casterID, abilityID, targetID string, targetPoint *geom.Vec2, now time.Time) (string, CastRejection) {
	def, ok := w.abilityDefs[abilityID]
	if !ok || def == nil {
		w.logCastRejected(casterID, abilityID, RejectionInvalidAbility)
		return "", RejectionInvalidAbility
	}
	caster := w.entityByID(casterID)
	if caster == nil || !caster.isAlive() {
		w.logCastRejected(casterID, abilityID, RejectionCasterDead)
		return "", RejectionCasterDead
	}
	if caster.cooldowns != nil {
		if expiry, found := caster.cooldowns[abilityID]; found && now.Before(expiry) {
			w.logCastRejected(casterID, abilityID, RejectionOnCooldown)
			return "", RejectionOnCooldown
		}
	}
	if caster.Mana < def.ManaCost {
		w.logCastRejected(casterID, abilityID, RejectionInsufficientResource)
		return "", RejectionInsufficientResource
	}

	var target *actorState
	if targetID != "" {
		target = w.entityByID(targetID)
	}
	if def.RequiresTarget && (target == nil || !target.isAlive()) {
		w.logCastRejected(casterID, abilityID, RejectionNoValidTarget)
		return "", RejectionNoValidTarget
	}
	if def.Range > 0 {
		var aim geom.Vec2
		aimed := false
		if target != nil {
			aim = target.position()
			aimed = true
		} else if targetPoint != nil {
			aim = *targetPoint
			aimed = true
		}
		if aimed && geom.Dist(caster.position(), aim) > def.Range {
			w.logCastRejected(casterID, abilityID, RejectionOutOfRange)
			return "", RejectionOutOfRange
		}
	}

	caster.applyManaDelta(-def.ManaCost)
	if caster.cooldowns == nil {
		caster.cooldowns = make(map[string]time.Time)
	}
	caster.cooldowns[abilityID] = now.Add(def.Cooldown)

	cast := &castState{
		Cast: Cast{
			ID:        uuid.NewString(),
			CasterID:  casterID,
			AbilityID: abilityID,
			State:     CastStateCasting,
			OriginX:   caster.X,
			OriginY:   caster.Y,
			X:         caster.X,
			Y:         caster.Y,
			StartedAt: now.UnixMilli(),
		},
		def:    def,
		hitIDs: make(map[string]struct{}),
	}
	if target != nil {
		cast.TargetID = target.ID
	}
	if targetPoint != nil {
		cast.hasTargetPoint = true
		cast.targetPoint = *targetPoint
	}

	caster.pendingCastID = cast.ID
	w.casts = append(w.casts, cast)
	w.castsByID[cast.ID] = cast
	w.queueCastBroadcast(cast, now)

	loggingcombat.CastAccepted(
		context.Background(),
		w.publisher,
		w.currentTick,
		w.entityRef(casterID),
		loggingcombat.CastAcceptedPayload{CastID: cast.ID, Ability: abilityID},
	)
	return cast.ID, RejectionNone
}

func (w *World) logCastRejected(casterID, abilityID string, reason CastRejection) {
	loggingcombat.CastRejected(
		context.Background(),
		w.publisher,
		w.currentTick,
		w.entityRef(casterID),
		loggingcombat.CastRejectedPayload{Ability: abilityID, Reason: string(reason)},
	)
}

// CancelCast aborts the caster's pending invocation. Only a Cast still in
// Casting can be canceled; once Traveling or Impact the ability executes to
// completion. Spent mana and cooldown are not restored.
func (w *World) CancelCast(casterID string) bool {
	caster := w.entityByID(casterID)
	if caster == nil || caster.pendingCastID == "" {
		return false
	}
	cast, ok := w.castsByID[caster.pendingCastID]
	if !ok || cast.State != CastStateCasting {
		return false
	}
	caster.pendingCastID = ""
	w.removeCast(cast)
	return true
}

// advanceCasts progresses every Casting invocation. A panic while advancing
// one cast is confined to that cast: it is logged and the cast discarded so
// the shared tick never stalls.
func (w *World) advanceCasts(now time.Time, dt time.Duration, out *StepOutput) {
	active := make([]*castState, len(w.casts))
	copy(active, w.casts)
	for _, cast := range active {
		if cast.State != CastStateCasting {
			continue
		}
		w.advanceOneCast(cast, func() {
			w.advanceCasting(cast, now, dt, out)
		})
	}
}

// advanceOneCast isolates a single cast's tick step.
func (w *World) advanceOneCast(cast *castState, step func()) {
	defer func() {
		if r := recover(); r != nil {
			w.publisher.Publish(context.Background(), logging.Event{
				Type:     "combat.cast_fault",
				Tick:     w.currentTick,
				Actor:    w.entityRef(cast.CasterID),
				Targets:  []logging.EntityRef{{ID: cast.ID, Kind: logging.EntityKindCast}},
				Severity: logging.SeverityError,
				Category: logging.CategoryCombat,
				Payload:  map[string]any{"panic": fmt.Sprint(r)},
			})
			w.removeCast(cast)
		}
	}()
	step()
}

func (w *World) advanceCasting(cast *castState, now time.Time, dt time.Duration, out *StepOutput) {
	caster := w.entityByID(cast.CasterID)
	if caster == nil || !caster.isAlive() {
		// The invocation fizzles with its owner.
		w.removeCast(cast)
		return
	}

	cast.elapsedInState += dt
	if cast.elapsedInState < cast.def.CastTime {
		return
	}

	caster.pendingCastID = ""
	// X/Y jump to the launch point; Origin keeps the cast-start position.
	cast.X = caster.X
	cast.Y = caster.Y

	if cast.def.hasProjectile() {
		cast.dirX, cast.dirY = w.initialProjectileDirection(cast, caster)
		cast.State = CastStateTraveling
		cast.elapsedInState = 0
		w.queueCastBroadcast(cast, now)
		return
	}

	point := w.resolveImpactPoint(cast, caster)
	w.resolveImpact(cast, point, now, out)
}

// initialProjectileDirection aims at the bound target (resampled at launch),
// then the explicit point, then the caster's facing. A near-zero aim vector
// also falls back to facing.
func (w *World) initialProjectileDirection(cast *castState, caster *actorState) (float64, float64) {
	var aim geom.Vec2
	aimed := false
	if cast.TargetID != "" {
		if target := w.entityByID(cast.TargetID); target != nil && target.isAlive() {
			aim = target.position()
			aimed = true
		}
	}
	if !aimed && cast.hasTargetPoint {
		aim = cast.targetPoint
		aimed = true
	}
	if aimed {
		if dir, ok := aim.Sub(caster.position()).Normalize(); ok {
			return dir.X, dir.Y
		}
	}
	return facingToVector(caster.Facing)
}

// resolveImpactPoint picks where an instant ability lands: live bound
// target, explicit point, else the caster's own position.
func (w *World) resolveImpactPoint(cast *castState, caster *actorState) geom.Vec2 {
	if cast.TargetID != "" {
		if target := w.entityByID(cast.TargetID); target != nil && target.isAlive() {
			return target.position()
		}
	}
	if cast.hasTargetPoint {
		return cast.targetPoint
	}
	return caster.position()
}

// resolveImpact runs impact side effects exactly once: damage, death
// notification, effect attachment, and the combat-result broadcast. The Cast
// stays in the active set for a grace window afterwards so late joiners see
// the terminal snapshot.
func (w *World) resolveImpact(cast *castState, point geom.Vec2, now time.Time, out *StepOutput) {
	if cast.resolved {
		return
	}
	cast.resolved = true
	cast.resolvedAt = now
	cast.State = CastStateImpact
	cast.elapsedInState = 0
	cast.X = point.X
	cast.Y = point.Y

	if caster := w.entityByID(cast.CasterID); caster != nil && caster.pendingCastID == cast.ID {
		caster.pendingCastID = ""
	}

	targets := make([]*actorState, 0, 4)
	seen := make(map[string]struct{}, 4)
	appendTarget := func(candidate *actorState, excludeCaster bool) {
		if candidate == nil || !candidate.isAlive() {
			return
		}
		if excludeCaster && candidate.ID == cast.CasterID {
			return
		}
		if _, hit := cast.hitIDs[candidate.ID]; hit {
			return
		}
		if _, dup := seen[candidate.ID]; dup {
			return
		}
		seen[candidate.ID] = struct{}{}
		targets = append(targets, candidate)
	}

	// The bound target may be the caster (self-casts); the area sweep
	// never includes the caster.
	if cast.TargetID != "" {
		appendTarget(w.entityByID(cast.TargetID), false)
	}
	if cast.def.AreaRadius > 0 {
		for _, candidate := range w.entitiesInCircle(point, cast.def.AreaRadius) {
			appendTarget(candidate, true)
		}
	}

	result := CombatResult{
		CastID:    cast.ID,
		CasterID:  cast.CasterID,
		AbilityID: cast.AbilityID,
		TargetIDs: make([]string, 0, len(targets)),
		Damage:    make([]float64, 0, len(targets)),
	}
	targetRefs := make([]logging.EntityRef, 0, len(targets))
	for _, target := range targets {
		damage := w.applyCastHit(cast, target, now, out)
		result.TargetIDs = append(result.TargetIDs, target.ID)
		result.Damage = append(result.Damage, damage)
		targetRefs = append(targetRefs, w.entityRef(target.ID))
	}

	out.CombatResults = append(out.CombatResults, result)
	w.queueCastBroadcast(cast, now)

	loggingcombat.CastImpact(
		context.Background(),
		w.publisher,
		w.currentTick,
		w.entityRef(cast.CasterID),
		targetRefs,
		loggingcombat.CastImpactPayload{CastID: cast.ID, Ability: cast.AbilityID, Damage: result.Damage},
	)
}

// applyCastHit damages one target with the cast's deterministic roll,
// attaches the ability's effects, and emits the per-target delta.
func (w *World) applyCastHit(cast *castState, target *actorState, now time.Time, out *StepOutput) float64 {
	seed := castDamageSeed(cast.ID, target.ID)
	damage := rollDamage(cast.def.BaseDamage, w.casterLevel(cast.CasterID), seed)
	if damage > 0 {
		target.applyHealthDelta(-damage)
		if target.Health <= 0 && target.markDead(now) {
			w.onEntityDied(cast.CasterID, target, now)
		}
	}

	if target.isAlive() {
		caster := w.entityByID(cast.CasterID)
		for _, effectID := range cast.def.Effects {
			if inst := w.effectManager.Attach(target, caster, effectID, seed, w.currentTick); inst != nil {
				out.EffectSnapshots = append(out.EffectSnapshots, EffectSnapshot{
					TargetID:    inst.TargetID,
					SourceID:    inst.SourceID,
					EffectID:    string(inst.EffectID),
					Stacks:      inst.Stacks,
					RemainingMs: inst.remaining.Milliseconds(),
					Seed:        inst.Seed,
				})
			}
		}
	}

	out.EntityUpdates = append(out.EntityUpdates, EntityUpdated{
		ID:            target.ID,
		Health:        target.Health,
		Mana:          target.Mana,
		StatusEffects: w.effectManager.SnapshotFor(target.ID),
	})
	return damage
}

func (w *World) casterLevel(casterID string) int {
	if caster := w.entityByID(casterID); caster != nil {
		return caster.Level
	}
	return 1
}

// queueCastBroadcast stages a snapshot for the next tick's state message.
func (w *World) queueCastBroadcast(cast *castState, now time.Time) {
	cast.lastBroadcast = now
	w.pendingCastSnapshots = append(w.pendingCastSnapshots, cast.snapshot())
}

// pruneCasts drops Impact casts once their grace window passes. Removing a
// traveling cast also removes its projectile motion state; they share one
// record, so the invariant that no orphan projectile survives holds by
// construction.
func (w *World) pruneCasts(now time.Time) {
	if len(w.casts) == 0 {
		return
	}
	filtered := w.casts[:0]
	for _, cast := range w.casts {
		if cast.State == CastStateImpact && !cast.resolvedAt.IsZero() && now.Sub(cast.resolvedAt) >= castImpactGrace {
			delete(w.castsByID, cast.ID)
			continue
		}
		filtered = append(filtered, cast)
	}
	w.casts = filtered
}

func (w *World) removeCast(target *castState) {
	if target == nil {
		return
	}
	filtered := w.casts[:0]
	for _, cast := range w.casts {
		if cast == target {
			continue
		}
		filtered = append(filtered, cast)
	}
	w.casts = filtered
	delete(w.castsByID, target.ID)
}
