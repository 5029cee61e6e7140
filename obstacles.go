package server

import (
	"fmt"

	"emberreach/server/internal/geom"
)

// Obstacle is a static impassable rectangle.
type Obstacle struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (o Obstacle) rect() geom.Rect {
	return geom.Rect{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height}
}

// generateObstacles places count rectangles inside the spawn margins while
// keeping the spawn point clear. Placement draws from the world RNG so a
// seed reproduces the same layout.
func (w *World) generateObstacles(count int) []Obstacle {
	if count <= 0 {
		return nil
	}
	rng := w.subsystemRNG("obstacles")
	obstacles := make([]Obstacle, 0, count)
	for i := 0; i < count; i++ {
		width := obstacleMinSize + rng.Float64()*(obstacleMaxSize-obstacleMinSize)
		height := obstacleMinSize + rng.Float64()*(obstacleMaxSize-obstacleMinSize)
		for attempt := 0; attempt < 16; attempt++ {
			x := obstacleSpawnMargin + rng.Float64()*(worldWidth-2*obstacleSpawnMargin-width)
			y := obstacleSpawnMargin + rng.Float64()*(worldHeight-2*obstacleSpawnMargin-height)
			candidate := Obstacle{
				ID:     fmt.Sprintf("obstacle-%d", len(obstacles)+1),
				X:      x,
				Y:      y,
				Width:  width,
				Height: height,
			}
			if geom.CircleRectOverlap(defaultSpawnX, defaultSpawnY, obstacleSpawnMargin, candidate.rect()) {
				continue
			}
			obstacles = append(obstacles, candidate)
			break
		}
	}
	return obstacles
}

func (w *World) obstacleRects() []geom.Rect {
	rects := make([]geom.Rect, 0, len(w.obstacles))
	for _, obs := range w.obstacles {
		rects = append(rects, obs.rect())
	}
	return rects
}
