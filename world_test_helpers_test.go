package server

import (
	"testing"
	"time"

	"emberreach/server/logging"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	return newWorld(WorldConfig{Seed: "test"}, logging.NopPublisher())
}

func addTestPlayer(w *World, id string, x, y float64) *playerState {
	state := &playerState{
		actorState: actorState{
			Actor: Actor{
				ID:        id,
				X:         x,
				Y:         y,
				Facing:    defaultFacing,
				Health:    playerMaxHealth,
				MaxHealth: playerMaxHealth,
				Mana:      playerMaxMana,
				MaxMana:   playerMaxMana,
				Level:     playerLevel,
			},
		},
	}
	w.AddPlayer(state)
	return state
}

// stepTicks advances the world n fixed-length ticks and returns the merged
// output plus the time after the last tick.
func stepTicks(w *World, start time.Time, n int) (StepOutput, time.Time) {
	const dt = time.Second / tickRate
	merged := StepOutput{}
	now := start
	for i := 0; i < n; i++ {
		now = now.Add(dt)
		out := w.Step(w.currentTick+1, now, dt, nil)
		merged.CastSnapshots = append(merged.CastSnapshots, out.CastSnapshots...)
		merged.CombatResults = append(merged.CombatResults, out.CombatResults...)
		merged.EntityUpdates = append(merged.EntityUpdates, out.EntityUpdates...)
		merged.EffectSnapshots = append(merged.EffectSnapshots, out.EffectSnapshots...)
		merged.RemovedPlayers = append(merged.RemovedPlayers, out.RemovedPlayers...)
		merged.RemovedEntities = append(merged.RemovedEntities, out.RemovedEntities...)
	}
	return merged, now
}

func combatResultsFor(results []CombatResult, targetID string) int {
	count := 0
	for _, result := range results {
		for _, id := range result.TargetIDs {
			if id == targetID {
				count++
			}
		}
	}
	return count
}
