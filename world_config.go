package server

import "strings"

const defaultWorldSeed = "emberreach"

// WorldConfig captures the toggles used when generating a world. It is
// echoed to clients in the join response so their prediction matches.
type WorldConfig struct {
	Obstacles     bool   `json:"obstacles"`
	NPCs          bool   `json:"npcs"`
	ObstacleCount int    `json:"obstacleCount"`
	Seed          string `json:"seed"`
}

// normalized returns a config with defaults applied.
func (cfg WorldConfig) normalized() WorldConfig {
	normalized := cfg
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = defaultWorldSeed
	}
	if normalized.ObstacleCount < 0 {
		normalized.ObstacleCount = 0
	}
	return normalized
}

// DefaultWorldConfig enables every world feature with the default seed.
func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		Obstacles:     true,
		NPCs:          true,
		ObstacleCount: defaultObstacles,
		Seed:          defaultWorldSeed,
	}
}
