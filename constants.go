package server

import "time"

const (
	ProtocolVersion = 1

	writeWait         = 10 * time.Second
	tickRate          = 20 // ticks per second
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval

	worldWidth    = 1600.0
	worldHeight   = 1200.0
	defaultSpawnX = worldWidth / 2
	defaultSpawnY = worldHeight / 2

	entityHalf = 14.0 // collision radius of players and NPCs
	moveSpeed  = 160.0

	obstacleMinSize     = 60.0
	obstacleMaxSize     = 140.0
	obstacleSpawnMargin = 100.0
	defaultObstacles    = 6

	// Traveling casts rebroadcast their position at most this often; the
	// simulation itself still advances them every tick.
	castBroadcastInterval = 100 * time.Millisecond
	// Resolved casts linger so late-joining clients can reconcile.
	castImpactGrace = 600 * time.Millisecond
	// Projectiles aimed at a bare point stop when they get this close to it.
	targetPointEpsilon = 4.0
	// Area queries around a moving projectile use this margin so fast
	// targets on the edge of a tick's sweep still become candidates.
	projectileQueryMargin = 48.0

	playerMaxHealth = 100.0
	playerMaxMana   = 80.0
	playerLevel     = 1
)
