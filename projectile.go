package server

import (
	"time"

	"emberreach/server/internal/geom"
)

// advanceProjectiles moves every Traveling cast for one tick: re-home,
// travel, collide, and stop. Homing re-derives direction toward a live bound
// target each tick; distance already traveled is never rewound.
func (w *World) advanceProjectiles(now time.Time, dt time.Duration, out *StepOutput) {
	active := make([]*castState, len(w.casts))
	copy(active, w.casts)
	for _, cast := range active {
		if cast.State != CastStateTraveling {
			continue
		}
		w.advanceOneCast(cast, func() {
			w.advanceTraveling(cast, now, dt, out)
		})
	}
}

func (w *World) advanceTraveling(cast *castState, now time.Time, dt time.Duration, out *StepOutput) {
	template := cast.def.Projectile
	if template == nil {
		// A traveling cast without a projectile template is an invariant
		// violation; resolve it in place rather than stalling the set.
		w.resolveImpact(cast, cast.position(), now, out)
		return
	}

	prev := cast.position()

	// Continuous re-homing: only the direction updates, a dead or vanished
	// target leaves the last heading in place.
	if cast.TargetID != "" {
		if target := w.entityByID(cast.TargetID); target != nil && target.isAlive() {
			if dir, ok := target.position().Sub(prev).Normalize(); ok {
				cast.dirX = dir.X
				cast.dirY = dir.Y
			}
		}
	}

	step := template.Speed * dt.Seconds()
	if remaining := template.MaxRange - cast.traveled; step > remaining {
		step = remaining
	}
	if step < 0 {
		step = 0
	}
	next := geom.Vec2{X: prev.X + cast.dirX*step, Y: prev.Y + cast.dirY*step}
	cast.traveled += step
	cast.X = next.X
	cast.Y = next.Y

	// Obstacles stop projectiles at the wall, not past it.
	if rects := w.obstacleRects(); len(rects) > 0 && geom.PathBlocked(prev, next, rects, template.HitRadius) {
		point := geom.FindValidDestination(prev, next, rects, template.HitRadius)
		w.resolveImpact(cast, point, now, out)
		return
	}

	if hit := w.sweepProjectile(cast, prev, next, now, out); hit {
		return
	}

	if cast.hasTargetPoint && geom.Dist(next, cast.targetPoint) <= targetPointEpsilon {
		w.resolveImpact(cast, cast.targetPoint, now, out)
		return
	}
	if cast.traveled >= template.MaxRange {
		w.resolveImpact(cast, next, now, out)
		return
	}

	if now.Sub(cast.lastBroadcast) >= castBroadcastInterval {
		w.queueCastBroadcast(cast, now)
	}
}

// sweepProjectile runs the swept hit test against every candidate near the
// tick's travel segment. Non-piercing projectiles stop at the earliest hit;
// piercing ones damage each new target and keep flying. Reports whether the
// cast left Traveling.
func (w *World) sweepProjectile(cast *castState, prev, next geom.Vec2, now time.Time, out *StepOutput) bool {
	template := cast.def.Projectile
	hitRadius := template.HitRadius + entityHalf
	queryRadius := hitRadius + projectileQueryMargin + geom.Dist(prev, next)

	type pending struct {
		target *actorState
		t      float64
	}
	hits := make([]pending, 0, 2)
	for _, candidate := range w.entitiesInCircle(next, queryRadius) {
		if candidate.ID == cast.CasterID || !candidate.isAlive() {
			continue
		}
		if _, already := cast.hitIDs[candidate.ID]; already {
			continue
		}
		if !geom.SweptHit(prev, next, candidate.position(), hitRadius) {
			continue
		}
		hits = append(hits, pending{
			target: candidate,
			t:      geom.ClosestPointParam(prev, next, candidate.position()),
		})
	}
	if len(hits) == 0 {
		return false
	}

	// Earliest contact along the sweep wins.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].t < hits[j-1].t; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	if !template.Piercing {
		first := hits[0]
		contact := geom.Vec2{
			X: prev.X + (next.X-prev.X)*first.t,
			Y: prev.Y + (next.Y-prev.Y)*first.t,
		}
		cast.TargetID = first.target.ID
		w.resolveImpact(cast, contact, now, out)
		return true
	}

	result := CombatResult{
		CastID:    cast.ID,
		CasterID:  cast.CasterID,
		AbilityID: cast.AbilityID,
	}
	for _, hit := range hits {
		cast.hitIDs[hit.target.ID] = struct{}{}
		damage := w.applyCastHit(cast, hit.target, now, out)
		result.TargetIDs = append(result.TargetIDs, hit.target.ID)
		result.Damage = append(result.Damage, damage)
	}
	out.CombatResults = append(out.CombatResults, result)
	return false
}

func (c *castState) position() geom.Vec2 {
	return geom.Vec2{X: c.X, Y: c.Y}
}
