package server

import (
	"math"

	"emberreach/server/internal/geom"
)

// moveActorWithObstacles advances an actor along its intent, walking the
// destination back when the travel path clips an obstacle and clamping to
// world bounds.
func moveActorWithObstacles(state *actorState, dt float64, obstacles []geom.Rect) {
	dx := state.intentX
	dy := state.intentY
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	dx /= length
	dy /= length

	speed := moveSpeed * state.effectiveSpeedScale()
	start := state.position()
	target := geom.Vec2{X: state.X + dx*speed*dt, Y: state.Y + dy*speed*dt}
	target.X = clampFloat(target.X, entityHalf, worldWidth-entityHalf)
	target.Y = clampFloat(target.Y, entityHalf, worldHeight-entityHalf)

	if geom.PathBlocked(start, target, obstacles, entityHalf) {
		target = geom.FindValidDestination(start, target, obstacles, entityHalf)
	}

	state.X = target.X
	state.Y = target.Y
}

func clampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
