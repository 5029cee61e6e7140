package server

// joinResponse seeds a new session with the full authoritative state.
type joinResponse struct {
	Ver       int              `json:"ver"`
	ID        string           `json:"id"`
	Players   []Actor          `json:"players"`
	NPCs      []NPC            `json:"npcs"`
	Obstacles []Obstacle       `json:"obstacles"`
	Casts     []Cast           `json:"casts,omitempty"`
	Effects   []EffectSnapshot `json:"effects,omitempty"`
	Config    WorldConfig      `json:"config"`
	Resync    bool             `json:"resync,omitempty"`
}

// stateMessage is the per-tick broadcast. Entity transforms double as the
// snapshot samples remote interpolation buffers ingest.
type stateMessage struct {
	Ver             int               `json:"ver"`
	Type            string            `json:"type"`
	Tick            uint64            `json:"t"`
	ServerTime      int64             `json:"serverTime"`
	Entities        []EntityTransform `json:"entities,omitempty"`
	Casts           []Cast            `json:"casts,omitempty"`
	CombatResults   []CombatResult    `json:"combatResults,omitempty"`
	EntityUpdates   []EntityUpdated   `json:"entityUpdates,omitempty"`
	EffectSnapshots []EffectSnapshot  `json:"effectSnapshots,omitempty"`
	Removed         []string          `json:"removed,omitempty"`
	Resync          bool              `json:"resync,omitempty"`
}

// EntityTransform is one timestamped observation of an entity's transform.
type EntityTransform struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	VelX     float64 `json:"velX"`
	VelY     float64 `json:"velY"`
	Time     int64   `json:"time"` // unix milliseconds at production
}

// CombatResult reports one resolved impact: who was hit and for how much.
type CombatResult struct {
	CastID    string    `json:"castId"`
	CasterID  string    `json:"casterId"`
	AbilityID string    `json:"abilityId"`
	TargetIDs []string  `json:"targetIds"`
	Damage    []float64 `json:"damagePerTarget"`
}

// EntityUpdated carries the post-mutation vitals and cleaned effect list for
// one entity.
type EntityUpdated struct {
	ID            string           `json:"id"`
	Health        float64          `json:"health"`
	Mana          float64          `json:"mana,omitempty"`
	StatusEffects []EffectSnapshot `json:"statusEffects,omitempty"`
}

// EffectSnapshot is the effect-aware-UI view of one active instance.
type EffectSnapshot struct {
	TargetID    string `json:"targetId"`
	SourceID    string `json:"sourceId,omitempty"`
	EffectID    string `json:"effectId"`
	Stacks      int    `json:"stacks"`
	RemainingMs int64  `json:"remainingMs"`
	Seed        uint64 `json:"seed"`
}

// castFailedMessage answers a rejected cast request on the requesting
// session only.
type castFailedMessage struct {
	Ver            int    `json:"ver"`
	Type           string `json:"type"`
	ClientSequence uint64 `json:"clientSequence"`
	Reason         string `json:"reason"`
}

// castAcceptedMessage confirms an accepted request to the requester; every
// subscriber additionally receives the CastSnapshot broadcast.
type castAcceptedMessage struct {
	Ver            int    `json:"ver"`
	Type           string `json:"type"`
	ClientSequence uint64 `json:"clientSequence"`
	CastID         string `json:"castId"`
}

// clientMessage is the envelope for everything a session sends upstream.
type clientMessage struct {
	Type           string   `json:"type"`
	DX             float64  `json:"dx,omitempty"`
	DY             float64  `json:"dy,omitempty"`
	Facing         string   `json:"facing,omitempty"`
	AbilityID      string   `json:"abilityId,omitempty"`
	TargetID       string   `json:"targetId,omitempty"`
	TargetX        *float64 `json:"targetX,omitempty"`
	TargetY        *float64 `json:"targetY,omitempty"`
	ClientSequence uint64   `json:"clientSequence,omitempty"`
	SentAt         int64    `json:"sentAt,omitempty"`
	RTTMillis      int64    `json:"rtt,omitempty"`
}

type heartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

type diagnosticsPlayer struct {
	ID            string `json:"id"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
}
