package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"emberreach/server/internal/geom"
	"emberreach/server/internal/interp"
	"emberreach/server/logging"
	logginglifecycle "emberreach/server/logging/lifecycle"
)

// subscriber wraps one websocket session. The per-subscriber mutex serializes
// writes between the tick broadcast and the session's own acks.
type subscriber struct {
	playerID string
	conn     *websocket.Conn
	mu       sync.Mutex
}

func (s *subscriber) writeMessage(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *subscriber) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.writeMessage(data)
}

// Hub owns the world and fans state out to subscribers. All world access goes
// through mu; sessions stage commands and the tick loop drains them.
type Hub struct {
	mu          sync.Mutex
	world       *World
	subscribers map[string]*subscriber
	commands    []Command
	publisher   logging.Publisher
	currentTick uint64
	nextID      uint64

	// remote mirrors the broadcast stream through the same snapshot buffers a
	// client runs, so diagnostics can report the smoothed view next to the
	// authoritative one.
	remote *interp.Registry
}

// NewHub constructs a hub with a freshly generated world.
func NewHub(cfg WorldConfig, publisher logging.Publisher) *Hub {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Hub{
		world:       newWorld(cfg, publisher),
		subscribers: make(map[string]*subscriber),
		publisher:   publisher,
		remote:      interp.NewRegistry(),
	}
}

// Join registers a new player and returns the full snapshot that seeds its
// session.
func (h *Hub) Join() joinResponse {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	playerID := fmt.Sprintf("player-%s", uuid.NewString()[:8])
	spawn := h.spawnPosition(h.nextID)

	state := &playerState{
		actorState: actorState{
			Actor: Actor{
				ID:        playerID,
				X:         spawn.X,
				Y:         spawn.Y,
				Facing:    defaultFacing,
				Health:    playerMaxHealth,
				MaxHealth: playerMaxHealth,
				Mana:      playerMaxMana,
				MaxMana:   playerMaxMana,
				Level:     playerLevel,
			},
		},
		lastHeartbeat: time.Now(),
	}
	h.world.AddPlayer(state)

	logginglifecycle.PlayerJoined(
		context.Background(),
		h.publisher,
		h.currentTick,
		logging.EntityRef{ID: playerID, Kind: logging.EntityKindPlayer},
		logginglifecycle.PlayerJoinedPayload{Spawn: [2]float64{spawn.X, spawn.Y}},
	)
	return h.snapshotLocked(playerID, false)
}

// spawnPosition rings joiners around the spawn point so they do not stack.
func (h *Hub) spawnPosition(ordinal uint64) geom.Vec2 {
	offsets := [...]geom.Vec2{
		{X: 0, Y: 0},
		{X: 3 * entityHalf, Y: 0},
		{X: -3 * entityHalf, Y: 0},
		{X: 0, Y: 3 * entityHalf},
		{X: 0, Y: -3 * entityHalf},
		{X: 3 * entityHalf, Y: 3 * entityHalf},
		{X: -3 * entityHalf, Y: -3 * entityHalf},
		{X: -3 * entityHalf, Y: 3 * entityHalf},
	}
	offset := offsets[ordinal%uint64(len(offsets))]
	return geom.Vec2{X: defaultSpawnX + offset.X, Y: defaultSpawnY + offset.Y}
}

func (h *Hub) snapshotLocked(playerID string, resync bool) joinResponse {
	players, npcs, casts := h.world.Snapshot()
	return joinResponse{
		Ver:       ProtocolVersion,
		ID:        playerID,
		Players:   players,
		NPCs:      npcs,
		Obstacles: h.world.obstacles,
		Casts:     casts,
		Effects:   h.world.effectManager.SnapshotAll(),
		Config:    h.world.config,
		Resync:    resync,
	}
}

// Resync rebuilds the full snapshot for a session that detected a gap.
func (h *Hub) Resync(playerID string) (joinResponse, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.world.HasPlayer(playerID) {
		return joinResponse{}, false
	}
	return h.snapshotLocked(playerID, true), true
}

// Subscribe attaches a websocket session for playerID. An existing session
// for the same player is displaced.
func (h *Hub) Subscribe(playerID string, conn *websocket.Conn) (*subscriber, joinResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.world.HasPlayer(playerID) {
		return nil, joinResponse{}, fmt.Errorf("subscribe: unknown player %q", playerID)
	}
	if prev, ok := h.subscribers[playerID]; ok {
		prev.conn.Close()
	}
	sub := &subscriber{playerID: playerID, conn: conn}
	h.subscribers[playerID] = sub
	return sub, h.snapshotLocked(playerID, false), nil
}

// Disconnect removes the session and its player from the world.
func (h *Hub) Disconnect(playerID string) {
	h.mu.Lock()
	sub, subOK := h.subscribers[playerID]
	if subOK {
		delete(h.subscribers, playerID)
	}
	removed := h.world.RemovePlayer(playerID)
	if removed {
		h.remote.Remove(playerID)
	}
	tick := h.currentTick
	h.mu.Unlock()

	if subOK {
		sub.conn.Close()
	}
	if removed {
		logginglifecycle.PlayerDisconnected(
			context.Background(),
			h.publisher,
			tick,
			logging.EntityRef{ID: playerID, Kind: logging.EntityKindPlayer},
			logginglifecycle.PlayerDisconnectedPayload{Reason: "closed"},
		)
	}
}

// UpdateIntent stages a movement command for the next tick.
func (h *Hub) UpdateIntent(playerID string, dx, dy float64, facing string) {
	parsed, _ := parseFacing(facing)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, Command{
		ActorID:  playerID,
		Type:     CommandMove,
		IssuedAt: time.Now(),
		Move:     &MoveCommand{DX: dx, DY: dy, Facing: parsed},
	})
}

// Heartbeat stages a liveness update and reports the observed round trip.
// The round trip is derived from the client's send stamp when it is sane.
func (h *Hub) Heartbeat(playerID string, clientSent int64, receivedAt time.Time) time.Duration {
	var rtt time.Duration
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt = receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, Command{
		ActorID:  playerID,
		Type:     CommandHeartbeat,
		IssuedAt: receivedAt,
		Heartbeat: &HeartbeatCommand{
			ReceivedAt: receivedAt,
			RTT:        rtt,
		},
	})
	return rtt
}

// CancelCast stages a cancellation of the player's pending cast.
func (h *Hub) CancelCast(playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, Command{
		ActorID:  playerID,
		Type:     CommandCancelCast,
		IssuedAt: time.Now(),
	})
}

// HandleCastRequest validates synchronously so the requester learns the
// typed verdict immediately; accepted casts enter the world before the call
// returns, which also makes the debit and cooldown stamp exactly-once.
func (h *Hub) HandleCastRequest(playerID string, msg clientMessage) (string, CastRejection) {
	var targetPoint *geom.Vec2
	if msg.TargetX != nil && msg.TargetY != nil {
		targetPoint = &geom.Vec2{X: *msg.TargetX, Y: *msg.TargetY}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.RequestCast(playerID, msg.AbilityID, msg.TargetID, targetPoint, time.Now())
}

// RunSimulation drives the fixed-cadence tick loop until ctx is done.
func (h *Hub) RunSimulation(ctx context.Context) {
	ticker := time.NewTicker(time.Second / tickRate)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			h.advance(now, dt)
		}
	}
}

// advance runs one tick and broadcasts its output.
func (h *Hub) advance(now time.Time, dt time.Duration) {
	h.mu.Lock()
	h.currentTick++
	tick := h.currentTick

	staged := h.commands
	h.commands = nil

	out := h.world.Step(tick, now, dt, staged)
	entities := h.world.transforms(now)
	h.observeTransforms(entities, out.RemovedEntities)

	payload, err := json.Marshal(stateMessage{
		Ver:             ProtocolVersion,
		Type:            "state",
		Tick:            tick,
		ServerTime:      now.UnixMilli(),
		Entities:        entities,
		Casts:           out.CastSnapshots,
		CombatResults:   out.CombatResults,
		EntityUpdates:   out.EntityUpdates,
		EffectSnapshots: out.EffectSnapshots,
		Removed:         out.RemovedEntities,
	})
	subs := make([]*subscriber, 0, len(h.subscribers))
	orphaned := make([]*subscriber, 0)
	for id, sub := range h.subscribers {
		if h.world.HasPlayer(id) {
			subs = append(subs, sub)
			continue
		}
		delete(h.subscribers, id)
		orphaned = append(orphaned, sub)
	}
	h.mu.Unlock()

	for _, sub := range orphaned {
		sub.conn.Close()
	}

	if err != nil {
		h.publisher.Publish(context.Background(), logging.Event{
			Type:     "system.broadcast_failed",
			Tick:     tick,
			Actor:    logging.EntityRef{ID: "world", Kind: logging.EntityKindWorld},
			Severity: logging.SeverityError,
			Category: logging.CategorySystem,
			Payload:  map[string]any{"error": err.Error()},
		})
		return
	}

	for _, sub := range subs {
		if werr := sub.writeMessage(payload); werr != nil {
			h.Disconnect(sub.playerID)
		}
	}
}

// observeTransforms feeds the tick's samples into the mirrored snapshot
// buffers. Callers hold mu.
func (h *Hub) observeTransforms(entities []EntityTransform, removed []string) {
	for _, id := range removed {
		h.remote.Remove(id)
	}
	for _, e := range entities {
		h.remote.Ensure(e.ID).Push(interp.Sample{
			Time:        time.UnixMilli(e.Time),
			X:           e.X,
			Z:           e.Y,
			Rotation:    e.Rotation,
			VelX:        e.VelX,
			VelZ:        e.VelY,
			HasVelocity: true,
		})
	}
}

// SampleEntity returns the smoothed transform for an entity at renderTime.
func (h *Hub) SampleEntity(entityID string, renderTime time.Time) (interp.Result, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf, ok := h.remote.Lookup(entityID)
	if !ok {
		return interp.Result{}, false
	}
	return buf.Sample(renderTime)
}

// DiagnosticsSnapshot reports per-player connectivity for the ops endpoint.
func (h *Hub) DiagnosticsSnapshot() []diagnosticsPlayer {
	h.mu.Lock()
	defer h.mu.Unlock()
	players := make([]diagnosticsPlayer, 0, len(h.world.players))
	for id, player := range h.world.players {
		entry := diagnosticsPlayer{
			ID:        id,
			RTTMillis: player.lastRTT.Milliseconds(),
		}
		if !player.lastHeartbeat.IsZero() {
			entry.LastHeartbeat = player.lastHeartbeat.UnixMilli()
		}
		players = append(players, entry)
	}
	return players
}

// Tick reports the current simulation tick.
func (h *Hub) Tick() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentTick
}
