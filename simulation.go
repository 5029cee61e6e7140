package server

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"emberreach/server/internal/geom"
	"emberreach/server/logging"
	loggingcombat "emberreach/server/logging/combat"
	logginglifecycle "emberreach/server/logging/lifecycle"
)

// CommandType enumerates the staged simulation commands.
type CommandType string

const (
	CommandMove       CommandType = "Move"
	CommandHeartbeat  CommandType = "Heartbeat"
	CommandCancelCast CommandType = "CancelCast"
)

// Command represents an intent captured for processing on the next tick.
type Command struct {
	ActorID   string
	Type      CommandType
	IssuedAt  time.Time
	Move      *MoveCommand
	Heartbeat *HeartbeatCommand
}

// MoveCommand carries the desired movement vector and facing.
type MoveCommand struct {
	DX     float64
	DY     float64
	Facing FacingDirection
}

// HeartbeatCommand updates connectivity metadata for an actor.
type HeartbeatCommand struct {
	ReceivedAt time.Time
	RTT        time.Duration
}

// StepOutput accumulates everything one tick wants broadcast.
type StepOutput struct {
	CastSnapshots   []Cast
	CombatResults   []CombatResult
	EntityUpdates   []EntityUpdated
	EffectSnapshots []EffectSnapshot
	RemovedPlayers  []string
	RemovedEntities []string
}

// combatWorld is the narrow world surface the cast machine and status-effect
// manager depend on; World is its only production implementation.
type combatWorld interface {
	entityByID(id string) *actorState
	entitiesInCircle(center geom.Vec2, radius float64) []*actorState
	onEntityDied(killerID string, victim *actorState, now time.Time)
}

// DeathHook is the external collaborator invoked once per defeated entity.
// It must not re-enter the cast or effect collections.
type DeathHook func(killerID, victimID string)

// World owns the authoritative simulation state. The tick loop is the only
// writer of casts, projectiles, and effect instances; sessions merely stage
// commands and cast requests.
type World struct {
	players       map[string]*playerState
	npcs          map[string]*npcState
	casts         []*castState
	castsByID     map[string]*castState
	abilityDefs   map[string]*AbilityDefinition
	effectManager *statusEffectManager
	obstacles     []Obstacle
	config        WorldConfig
	seed          string
	publisher     logging.Publisher
	currentTick   uint64
	deathHook     DeathHook
	nextNPCID     uint64

	// pendingCastSnapshots stages cast transitions until drained by Step.
	pendingCastSnapshots []Cast
}

var _ combatWorld = (*World)(nil)

// newWorld constructs a world with generated obstacles and seeded NPCs.
func newWorld(cfg WorldConfig, publisher logging.Publisher) *World {
	normalized := cfg.normalized()
	if publisher == nil {
		publisher = logging.NopPublisher()
	}

	w := &World{
		players:     make(map[string]*playerState),
		npcs:        make(map[string]*npcState),
		casts:       make([]*castState, 0),
		castsByID:   make(map[string]*castState),
		abilityDefs: newAbilityDefinitions(),
		config:      normalized,
		seed:        normalized.Seed,
		publisher:   publisher,
	}
	w.effectManager = newStatusEffectManager(publisher)
	if normalized.Obstacles {
		w.obstacles = w.generateObstacles(normalized.ObstacleCount)
	}
	if normalized.NPCs {
		w.spawnInitialNPCs()
	}
	return w
}

// subsystemRNG derives a deterministic RNG stream from the world seed and a
// subsystem label so layouts reproduce under the same seed.
func (w *World) subsystemRNG(label string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(w.seed))
	h.Write([]byte{'/'})
	h.Write([]byte(label))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func (w *World) spawnInitialNPCs() {
	w.spawnNPC(NPCTypeDummy, defaultSpawnX+180, defaultSpawnY, 200, 3)
	w.spawnNPC(NPCTypeDummy, defaultSpawnX-180, defaultSpawnY+60, 200, 3)
	w.spawnNPC(NPCTypeMarauder, defaultSpawnX, defaultSpawnY-220, 60, 2)
}

func (w *World) spawnNPC(kind NPCType, x, y, maxHealth float64, level int) *npcState {
	w.nextNPCID++
	npc := &npcState{
		actorState: actorState{
			Actor: Actor{
				ID:        fmt.Sprintf("npc-%s-%d", kind, w.nextNPCID),
				X:         x,
				Y:         y,
				Facing:    defaultFacing,
				Health:    maxHealth,
				MaxHealth: maxHealth,
				Level:     level,
			},
		},
		Type: kind,
	}
	w.npcs[npc.ID] = npc
	return npc
}

// HasPlayer reports whether the world currently tracks the given player.
func (w *World) HasPlayer(id string) bool {
	_, ok := w.players[id]
	return ok
}

// AddPlayer registers a new player state with the world.
func (w *World) AddPlayer(state *playerState) {
	if state == nil {
		return
	}
	w.players[state.ID] = state
}

// RemovePlayer drops a player and its combat bookkeeping, returning whether
// it was present.
func (w *World) RemovePlayer(id string) bool {
	if _, ok := w.players[id]; !ok {
		return false
	}
	delete(w.players, id)
	w.effectManager.RemoveEntity(id)
	w.dropCastsByCaster(id)
	return true
}

func (w *World) dropCastsByCaster(casterID string) {
	filtered := w.casts[:0]
	for _, cast := range w.casts {
		if cast.CasterID == casterID && cast.State == CastStateCasting {
			delete(w.castsByID, cast.ID)
			continue
		}
		filtered = append(filtered, cast)
	}
	w.casts = filtered
}

// entityByID resolves a player or NPC to its mutable combat state.
func (w *World) entityByID(id string) *actorState {
	if player, ok := w.players[id]; ok {
		return &player.actorState
	}
	if npc, ok := w.npcs[id]; ok {
		return &npc.actorState
	}
	return nil
}

// entitiesInCircle returns every entity whose body overlaps the circle.
func (w *World) entitiesInCircle(center geom.Vec2, radius float64) []*actorState {
	reach := radius + entityHalf
	found := make([]*actorState, 0, 8)
	for _, player := range w.players {
		if geom.Dist(center, player.position()) <= reach {
			found = append(found, &player.actorState)
		}
	}
	for _, npc := range w.npcs {
		if geom.Dist(center, npc.position()) <= reach {
			found = append(found, &npc.actorState)
		}
	}
	return found
}

func (w *World) entityRef(id string) logging.EntityRef {
	if _, ok := w.players[id]; ok {
		return logging.EntityRef{ID: id, Kind: logging.EntityKindPlayer}
	}
	if _, ok := w.npcs[id]; ok {
		return logging.EntityRef{ID: id, Kind: logging.EntityKindNPC}
	}
	return logging.EntityRef{ID: id, Kind: logging.EntityKindUnknown}
}

// onEntityDied runs the once-per-victim death path: combat log plus the
// external loot/XP hook. Callers gate on markDead so this never fires twice.
func (w *World) onEntityDied(killerID string, victim *actorState, now time.Time) {
	if victim == nil {
		return
	}
	victim.speedScale = 1
	w.effectManager.RemoveEntity(victim.ID)
	loggingcombat.Defeated(
		context.Background(),
		w.publisher,
		w.currentTick,
		w.entityRef(killerID),
		w.entityRef(victim.ID),
		loggingcombat.DefeatedPayload{},
	)
	if w.deathHook != nil {
		w.deathHook(killerID, victim.ID)
	}
}

// Step advances the simulation by a single tick applying all staged commands.
func (w *World) Step(tick uint64, now time.Time, dt time.Duration, commands []Command) StepOutput {
	if dt <= 0 {
		dt = time.Second / tickRate
	}
	w.currentTick = tick

	out := StepOutput{}

	for _, cmd := range commands {
		switch cmd.Type {
		case CommandMove:
			if cmd.Move == nil {
				continue
			}
			w.applyMoveCommand(cmd, now)
		case CommandHeartbeat:
			if cmd.Heartbeat == nil {
				continue
			}
			if player, ok := w.players[cmd.ActorID]; ok {
				player.lastHeartbeat = cmd.Heartbeat.ReceivedAt
				player.lastRTT = cmd.Heartbeat.RTT
			}
		case CommandCancelCast:
			w.CancelCast(cmd.ActorID)
		}
	}

	// Movement system.
	rects := w.obstacleRects()
	for _, player := range w.players {
		if player.isAlive() && (player.intentX != 0 || player.intentY != 0) {
			moveActorWithObstacles(&player.actorState, dt.Seconds(), rects)
		}
	}

	// Combat systems.
	w.advanceCasts(now, dt, &out)
	w.advanceProjectiles(now, dt, &out)
	w.effectManager.Update(w, dt, now, tick, &out)
	w.pruneCasts(now)
	w.pruneDefeatedNPCs(&out)

	// Lifecycle system: remove stale players.
	cutoff := now.Add(-disconnectAfter)
	for id, player := range w.players {
		if player.lastHeartbeat.IsZero() || !player.lastHeartbeat.Before(cutoff) {
			continue
		}
		logginglifecycle.PlayerDisconnected(
			context.Background(),
			w.publisher,
			w.currentTick,
			w.entityRef(id),
			logginglifecycle.PlayerDisconnectedPayload{Reason: "timeout"},
		)
		w.RemovePlayer(id)
		out.RemovedPlayers = append(out.RemovedPlayers, id)
		out.RemovedEntities = append(out.RemovedEntities, id)
	}

	out.CastSnapshots = append(out.CastSnapshots, w.drainCastSnapshots()...)
	return out
}

func (w *World) applyMoveCommand(cmd Command, now time.Time) {
	player, ok := w.players[cmd.ActorID]
	if !ok {
		return
	}
	dx := cmd.Move.DX
	dy := cmd.Move.DY
	length := math.Hypot(dx, dy)
	if length > 1 {
		dx /= length
		dy /= length
	}
	player.intentX = dx
	player.intentY = dy
	nextFacing := deriveFacing(dx, dy, player.Facing)
	if dx == 0 && dy == 0 && cmd.Move.Facing != "" {
		nextFacing = cmd.Move.Facing
	}
	player.Facing = nextFacing
	if !cmd.IssuedAt.IsZero() {
		player.lastInput = cmd.IssuedAt
	} else {
		player.lastInput = now
	}
}

func (w *World) drainCastSnapshots() []Cast {
	if len(w.pendingCastSnapshots) == 0 {
		return nil
	}
	drained := make([]Cast, len(w.pendingCastSnapshots))
	copy(drained, w.pendingCastSnapshots)
	w.pendingCastSnapshots = w.pendingCastSnapshots[:0]
	return drained
}

func (w *World) pruneDefeatedNPCs(out *StepOutput) {
	if len(w.npcs) == 0 {
		return
	}
	for id, npc := range w.npcs {
		if npc.Health > 0 {
			continue
		}
		delete(w.npcs, id)
		w.effectManager.RemoveEntity(id)
		out.RemovedEntities = append(out.RemovedEntities, id)
	}
}

// Snapshot copies players, NPCs, and cast states into broadcast structs.
func (w *World) Snapshot() ([]Actor, []NPC, []Cast) {
	players := make([]Actor, 0, len(w.players))
	for _, player := range w.players {
		players = append(players, player.snapshot())
	}
	npcs := make([]NPC, 0, len(w.npcs))
	for _, npc := range w.npcs {
		npcs = append(npcs, npc.snapshot())
	}
	casts := make([]Cast, 0, len(w.casts))
	for _, cast := range w.casts {
		casts = append(casts, cast.snapshot())
	}
	return players, npcs, casts
}

// transforms builds the per-tick snapshot samples remote interpolation
// buffers consume.
func (w *World) transforms(now time.Time) []EntityTransform {
	stamped := now.UnixMilli()
	entities := make([]EntityTransform, 0, len(w.players)+len(w.npcs))
	appendActor := func(a *actorState) {
		speed := moveSpeed * a.effectiveSpeedScale()
		dx, dy := a.intentX, a.intentY
		if length := math.Hypot(dx, dy); length > 1 {
			dx /= length
			dy /= length
		}
		fx, fy := facingToVector(a.Facing)
		entities = append(entities, EntityTransform{
			ID:       a.ID,
			X:        a.X,
			Y:        a.Y,
			Rotation: math.Atan2(fy, fx),
			VelX:     dx * speed,
			VelY:     dy * speed,
			Time:     stamped,
		})
	}
	for _, player := range w.players {
		appendActor(&player.actorState)
	}
	for _, npc := range w.npcs {
		appendActor(&npc.actorState)
	}
	return entities
}
