package server

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"emberreach/server/logging"
	loggingstatuseffects "emberreach/server/logging/statuseffects"
)

type StatusEffectType string

// MagnitudeKind tells the manager how to apply a tick's rolled magnitude.
type MagnitudeKind string

const (
	MagnitudeDamage  MagnitudeKind = "damage"
	MagnitudeHealing MagnitudeKind = "healing"
	MagnitudeMana    MagnitudeKind = "mana"
	MagnitudeStat    MagnitudeKind = "stat"
)

// StatusEffectDefinition is the static description of one effect type. Apply
// is pure: the same level, stat, and seed always produce the same magnitude.
type StatusEffectDefinition struct {
	Type         StatusEffectType
	TickInterval time.Duration
	Duration     time.Duration
	MaxStacks    int
	Apply        func(level int, scalingStat float64, seed uint64) (float64, MagnitudeKind)
}

const (
	StatusEffectBurning  StatusEffectType = "burning"
	StatusEffectRegrowth StatusEffectType = "regrowth"
	StatusEffectChilled  StatusEffectType = "chilled"
	StatusEffectMana     StatusEffectType = "manaspring"
)

// seedRoll maps a seed to a stable multiplier in [0.9, 1.1).
func seedRoll(seed uint64) float64 {
	rng := rand.New(rand.NewSource(int64(seed)))
	return 0.9 + rng.Float64()*0.2
}

func newStatusEffectDefinitions() map[StatusEffectType]*StatusEffectDefinition {
	return map[StatusEffectType]*StatusEffectDefinition{
		StatusEffectBurning: {
			Type:         StatusEffectBurning,
			TickInterval: 500 * time.Millisecond,
			Duration:     3 * time.Second,
			MaxStacks:    3,
			Apply: func(level int, scalingStat float64, seed uint64) (float64, MagnitudeKind) {
				base := 4.0 * (1 + scalingStat)
				return base * seedRoll(seed), MagnitudeDamage
			},
		},
		StatusEffectRegrowth: {
			Type:         StatusEffectRegrowth,
			TickInterval: time.Second,
			Duration:     5 * time.Second,
			MaxStacks:    2,
			Apply: func(level int, scalingStat float64, seed uint64) (float64, MagnitudeKind) {
				base := 6.0 * (1 + levelScaling*float64(level-1))
				return base * seedRoll(seed), MagnitudeHealing
			},
		},
		StatusEffectChilled: {
			Type:      StatusEffectChilled,
			Duration:  2 * time.Second,
			MaxStacks: 2,
			Apply: func(level int, scalingStat float64, seed uint64) (float64, MagnitudeKind) {
				// Magnitude is a speed multiplier held for the effect's
				// lifetime, not a per-interval health delta.
				return 0.6, MagnitudeStat
			},
		},
		StatusEffectMana: {
			Type:         StatusEffectMana,
			TickInterval: time.Second,
			Duration:     6 * time.Second,
			MaxStacks:    1,
			Apply: func(level int, scalingStat float64, seed uint64) (float64, MagnitudeKind) {
				return 5.0 * seedRoll(seed), MagnitudeMana
			},
		},
	}
}

// statusEffectInstance is one application of an effect on one target.
type statusEffectInstance struct {
	ID        string
	EffectID  StatusEffectType
	TargetID  string
	SourceID  string
	Stacks    int
	Seed      uint64
	remaining time.Duration
	untilTick time.Duration
	// Captured at attach so magnitude stays stable if the source despawns.
	sourceLevel int
	scalingStat float64
	def         *StatusEffectDefinition
}

// statusEffectManager owns every active instance, keyed by target entity.
// Only the tick loop calls into it; other components see snapshots.
type statusEffectManager struct {
	defs      map[StatusEffectType]*StatusEffectDefinition
	active    map[string][]*statusEffectInstance
	publisher logging.Publisher
}

func newStatusEffectManager(pub logging.Publisher) *statusEffectManager {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &statusEffectManager{
		defs:      newStatusEffectDefinitions(),
		active:    make(map[string][]*statusEffectInstance),
		publisher: pub,
	}
}

// Attach applies effectID from source to target. An existing instance with
// the same effect and source refreshes to full duration and gains a stack up
// to the definition cap; otherwise a fresh stack-1 instance is created.
func (m *statusEffectManager) Attach(target *actorState, source *actorState, effectID StatusEffectType, seed uint64, tick uint64) *statusEffectInstance {
	if m == nil || target == nil || !target.isAlive() {
		return nil
	}
	def, ok := m.defs[effectID]
	if !ok || def == nil || def.Duration <= 0 {
		return nil
	}

	sourceID := ""
	sourceLevel := 1
	if source != nil {
		sourceID = source.ID
		if source.Level > 1 {
			sourceLevel = source.Level
		}
	}
	scaling := levelScaling * float64(sourceLevel-1)

	for _, inst := range m.active[target.ID] {
		if inst.EffectID == effectID && inst.SourceID == sourceID {
			// Refresh never shortens what is left and stacking never
			// exceeds the cap.
			inst.remaining = def.Duration
			if inst.Stacks < def.MaxStacks {
				inst.Stacks++
			}
			inst.Seed = seed
			m.logApplied(target, sourceID, inst, tick)
			return inst
		}
	}

	inst := &statusEffectInstance{
		ID:          uuid.NewString(),
		EffectID:    effectID,
		TargetID:    target.ID,
		SourceID:    sourceID,
		Stacks:      1,
		Seed:        seed,
		remaining:   def.Duration,
		untilTick:   def.TickInterval,
		sourceLevel: sourceLevel,
		scalingStat: scaling,
		def:         def,
	}
	m.active[target.ID] = append(m.active[target.ID], inst)
	m.logApplied(target, sourceID, inst, tick)
	return inst
}

func (m *statusEffectManager) logApplied(target *actorState, sourceID string, inst *statusEffectInstance, tick uint64) {
	sourceRef := logging.EntityRef{ID: sourceID, Kind: logging.EntityKindUnknown}
	loggingstatuseffects.Applied(
		context.Background(),
		m.publisher,
		tick,
		sourceRef,
		logging.EntityRef{ID: target.ID, Kind: logging.EntityKindUnknown},
		loggingstatuseffects.AppliedPayload{
			Effect:     string(inst.EffectID),
			SourceID:   sourceID,
			Stacks:     inst.Stacks,
			DurationMs: inst.remaining.Milliseconds(),
		},
	)
}

// Update advances every active instance by dt, applies due ticks, expires
// finished instances, and appends one delta per affected entity to out.
func (m *statusEffectManager) Update(w combatWorld, dt time.Duration, now time.Time, tick uint64, out *StepOutput) {
	if m == nil || dt <= 0 {
		return
	}
	for entityID, instances := range m.active {
		target := w.entityByID(entityID)
		if target == nil || !target.isAlive() {
			if target != nil {
				target.speedScale = 1
			}
			m.RemoveEntity(entityID)
			continue
		}

		prevScale := target.effectiveSpeedScale()
		target.speedScale = 1
		changed := false
		survivors := instances[:0]
		for _, inst := range instances {
			if inst == nil || inst.def == nil {
				continue
			}
			inst.remaining -= dt
			if inst.remaining <= 0 {
				loggingstatuseffects.Expired(
					context.Background(),
					m.publisher,
					tick,
					logging.EntityRef{ID: entityID, Kind: logging.EntityKindUnknown},
					loggingstatuseffects.ExpiredPayload{Effect: string(inst.EffectID), Reason: "duration"},
				)
				changed = true
				continue
			}

			magnitude, kind := inst.def.Apply(inst.sourceLevel, inst.scalingStat, inst.Seed)
			if kind == MagnitudeStat {
				// Stat magnitudes hold for the instance's whole lifetime
				// rather than pulsing on a tick cadence; the strongest slow
				// wins when several apply.
				if scale := statSpeedScale(magnitude, inst.Stacks); scale < target.effectiveSpeedScale() {
					target.speedScale = scale
				}
				survivors = append(survivors, inst)
				continue
			}

			if inst.def.TickInterval > 0 {
				inst.untilTick -= dt
				for inst.untilTick <= 0 && target.isAlive() {
					if m.applyTick(w, target, inst, magnitude, kind, now) {
						changed = true
					}
					// Advance by the interval instead of resetting so
					// variable tick lengths do not drift the cadence.
					inst.untilTick += inst.def.TickInterval
				}
			}
			survivors = append(survivors, inst)

			if !target.isAlive() {
				break
			}
		}

		if target.effectiveSpeedScale() != prevScale {
			changed = true
		}

		if !target.isAlive() {
			target.speedScale = 1
			m.RemoveEntity(entityID)
			out.EntityUpdates = append(out.EntityUpdates, EntityUpdated{
				ID:     entityID,
				Health: target.Health,
				Mana:   target.Mana,
			})
			continue
		}

		if len(survivors) == 0 {
			delete(m.active, entityID)
		} else {
			m.active[entityID] = survivors
		}
		if changed {
			out.EntityUpdates = append(out.EntityUpdates, EntityUpdated{
				ID:            entityID,
				Health:        target.Health,
				Mana:          target.Mana,
				StatusEffects: m.SnapshotFor(entityID),
			})
		}
	}
}

// applyTick applies one due interval tick's magnitude. Returns whether
// entity state changed.
func (m *statusEffectManager) applyTick(w combatWorld, target *actorState, inst *statusEffectInstance, magnitude float64, kind MagnitudeKind, now time.Time) bool {
	switch kind {
	case MagnitudeDamage:
		changed := target.applyHealthDelta(-magnitude * float64(inst.Stacks))
		if changed && target.Health <= 0 && target.markDead(now) {
			w.onEntityDied(inst.SourceID, target, now)
		}
		return changed
	case MagnitudeHealing:
		return target.applyHealthDelta(magnitude * float64(inst.Stacks))
	case MagnitudeMana:
		return target.applyManaDelta(magnitude * float64(inst.Stacks))
	default:
		return false
	}
}

// statSpeedScale converts a stat magnitude into the effective speed
// multiplier, floored so stacked slows never immobilize.
func statSpeedScale(magnitude float64, stacks int) float64 {
	scale := magnitude
	if stacks > 1 {
		scale *= 0.9
	}
	if scale < 0.4 {
		scale = 0.4
	}
	return scale
}

// SnapshotFor returns the cleaned effect list for one entity, suitable for
// broadcast (internal bookkeeping stripped).
func (m *statusEffectManager) SnapshotFor(entityID string) []EffectSnapshot {
	instances := m.active[entityID]
	if len(instances) == 0 {
		return nil
	}
	snapshots := make([]EffectSnapshot, 0, len(instances))
	for _, inst := range instances {
		snapshots = append(snapshots, EffectSnapshot{
			TargetID:    inst.TargetID,
			SourceID:    inst.SourceID,
			EffectID:    string(inst.EffectID),
			Stacks:      inst.Stacks,
			RemainingMs: inst.remaining.Milliseconds(),
			Seed:        inst.Seed,
		})
	}
	return snapshots
}

// SnapshotAll flattens the effect lists of every tracked entity, used to
// seed join and resync snapshots.
func (m *statusEffectManager) SnapshotAll() []EffectSnapshot {
	if len(m.active) == 0 {
		return nil
	}
	snapshots := make([]EffectSnapshot, 0, len(m.active))
	for entityID := range m.active {
		snapshots = append(snapshots, m.SnapshotFor(entityID)...)
	}
	return snapshots
}

// RemoveEntity drops every instance on a despawned or dead entity.
func (m *statusEffectManager) RemoveEntity(entityID string) {
	delete(m.active, entityID)
}

// ActiveCount reports the number of live instances on an entity.
func (m *statusEffectManager) ActiveCount(entityID string) int {
	return len(m.active[entityID])
}

func (m *statusEffectManager) instance(entityID string, effectID StatusEffectType, sourceID string) *statusEffectInstance {
	for _, inst := range m.active[entityID] {
		if inst.EffectID == effectID && inst.SourceID == sourceID {
			return inst
		}
	}
	return nil
}
