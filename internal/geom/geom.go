package geom

import "math"

// Vec2 is a point or direction on the ground plane.
type Vec2 struct {
	X float64
	Y float64
}

// Rect represents an axis-aligned rectangle used by collision helpers.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

const parallelEpsilon = 1e-9

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

// Scale returns v scaled by s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{X: v.X * s, Y: v.Y * s} }

// Length returns the euclidean magnitude of v.
func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Y) }

// Dist returns the distance between two points.
func Dist(a, b Vec2) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

// Normalize returns a unit vector pointing along v. The second return is
// false when the magnitude is too small to produce a stable direction;
// callers must fall back to a known-good facing in that case.
func (v Vec2) Normalize() (Vec2, bool) {
	length := v.Length()
	if length < parallelEpsilon {
		return Vec2{}, false
	}
	return Vec2{X: v.X / length, Y: v.Y / length}, true
}

// ClosestPointParam returns the clamped projection parameter t in [0,1] of
// point onto the segment from start to end. A degenerate segment yields 0.
func ClosestPointParam(start, end, point Vec2) float64 {
	dx := end.X - start.X
	dy := end.Y - start.Y
	lengthSq := dx*dx + dy*dy
	if lengthSq < parallelEpsilon {
		return 0
	}
	t := ((point.X-start.X)*dx + (point.Y-start.Y)*dy) / lengthSq
	return clamp(t, 0, 1)
}

// SegmentPointDistance returns the minimum distance from point to the
// segment between start and end.
func SegmentPointDistance(start, end, point Vec2) float64 {
	t := ClosestPointParam(start, end, point)
	closest := Vec2{X: start.X + (end.X-start.X)*t, Y: start.Y + (end.Y-start.Y)*t}
	return Dist(closest, point)
}

// SegmentIntersectsCircle reports whether the segment from start to end
// passes within radius of center.
func SegmentIntersectsCircle(start, end, center Vec2, radius float64) bool {
	if radius < 0 {
		return false
	}
	return SegmentPointDistance(start, end, center) <= radius
}

// SegmentIntersectsSegment reports whether segments a1-a2 and b1-b2 cross.
// Near-parallel segments are treated as non-intersecting.
func SegmentIntersectsSegment(a1, a2, b1, b2 Vec2) bool {
	d1 := a2.Sub(a1)
	d2 := b2.Sub(b1)
	denom := d1.X*d2.Y - d1.Y*d2.X
	if math.Abs(denom) < parallelEpsilon {
		return false
	}
	diff := b1.Sub(a1)
	t := (diff.X*d2.Y - diff.Y*d2.X) / denom
	u := (diff.X*d1.Y - diff.Y*d1.X) / denom
	return t >= 0 && t <= 1 && u >= 0 && u <= 1
}

// SweptHit reports whether something traveling from prev to curr in one tick
// came within hitRadius of target. Both endpoints get a direct distance check
// before the closest-approach test so zero-length sweeps (point-blank casts)
// still register.
func SweptHit(prev, curr, target Vec2, hitRadius float64) bool {
	if hitRadius < 0 {
		return false
	}
	if Dist(prev, target) <= hitRadius || Dist(curr, target) <= hitRadius {
		return true
	}
	return SegmentPointDistance(prev, curr, target) <= hitRadius
}

// CircleRectOverlap reports whether a circle intersects the rectangle.
func CircleRectOverlap(cx, cy, radius float64, rect Rect) bool {
	closestX := clamp(cx, rect.X, rect.X+rect.Width)
	closestY := clamp(cy, rect.Y, rect.Y+rect.Height)
	dx := cx - closestX
	dy := cy - closestY
	return dx*dx+dy*dy < radius*radius
}

// rectEdges returns the four corner points of rect inflated by margin.
func rectEdges(rect Rect, margin float64) [4]Vec2 {
	minX := rect.X - margin
	minY := rect.Y - margin
	maxX := rect.X + rect.Width + margin
	maxY := rect.Y + rect.Height + margin
	return [4]Vec2{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}
}

// PathBlocked reports whether a body of the given radius moving in a straight
// line from start to end would clip any obstacle.
func PathBlocked(start, end Vec2, obstacles []Rect, radius float64) bool {
	for _, obs := range obstacles {
		if CircleRectOverlap(start.X, start.Y, radius, obs) || CircleRectOverlap(end.X, end.Y, radius, obs) {
			return true
		}
		corners := rectEdges(obs, radius)
		for i := 0; i < 4; i++ {
			if SegmentIntersectsSegment(start, end, corners[i], corners[(i+1)%4]) {
				return true
			}
		}
	}
	return false
}

// FindValidDestination walks the requested path back toward start until the
// whole travel segment is obstacle-free, returning the furthest reachable
// point. Start itself is always considered valid.
func FindValidDestination(start, target Vec2, obstacles []Rect, radius float64) Vec2 {
	if !PathBlocked(start, target, obstacles, radius) {
		return target
	}
	const steps = 16
	delta := target.Sub(start)
	for i := steps - 1; i > 0; i-- {
		candidate := start.Add(delta.Scale(float64(i) / steps))
		if !PathBlocked(start, candidate, obstacles, radius) {
			return candidate
		}
	}
	return start
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
