// Package interp reconstructs smooth entity motion from discrete,
// possibly reordered network snapshots.
package interp

import (
	"math"
	"sort"
	"time"
)

const (
	// maxRewind bounds how far back the buffer keeps history; anything
	// older than the second-newest retained sample by this much is evicted.
	maxRewind = 1500 * time.Millisecond
	// maxExtrapolation clamps forward prediction when updates stop arriving.
	maxExtrapolation = 120 * time.Millisecond
	// maxSamples is a hard cap independent of the rewind window.
	maxSamples = 64

	duplicateEpsilon = 1e-6
)

// Sample is one network-delivered observation of an entity transform.
type Sample struct {
	Time     time.Time
	X        float64
	Z        float64
	Rotation float64
	VelX     float64
	VelZ     float64
	// HasVelocity gates Hermite blending; samples from older clients may
	// omit velocity entirely.
	HasVelocity bool
}

// Result is a continuously sampled render transform.
type Result struct {
	X        float64
	Z        float64
	Rotation float64
}

// Buffer holds the time-ordered snapshot history for a single entity.
type Buffer struct {
	samples []Sample
	last    Result
	hasLast bool
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{samples: make([]Sample, 0, 8)}
}

// Len reports the number of retained samples.
func (b *Buffer) Len() int { return len(b.samples) }

// Push inserts a sample in timestamp order. Non-finite coordinates and exact
// duplicates of an already-buffered (timestamp, position) pair are rejected;
// the return value reports whether the sample was accepted.
func (b *Buffer) Push(s Sample) bool {
	if b == nil {
		return false
	}
	if !finite(s.X) || !finite(s.Z) || !finite(s.Rotation) {
		return false
	}
	if s.HasVelocity && (!finite(s.VelX) || !finite(s.VelZ)) {
		s.VelX, s.VelZ, s.HasVelocity = 0, 0, false
	}
	if s.Time.IsZero() {
		return false
	}

	idx := sort.Search(len(b.samples), func(i int) bool {
		return !b.samples[i].Time.Before(s.Time)
	})
	if idx < len(b.samples) && b.samples[idx].Time.Equal(s.Time) {
		existing := b.samples[idx]
		if math.Abs(existing.X-s.X) < duplicateEpsilon && math.Abs(existing.Z-s.Z) < duplicateEpsilon {
			return false
		}
		// Same timestamp, different position: keep the later arrival,
		// it supersedes the stale observation.
		b.samples[idx] = s
		b.trim()
		return true
	}

	b.samples = append(b.samples, Sample{})
	copy(b.samples[idx+1:], b.samples[idx:])
	b.samples[idx] = s
	b.trim()
	return true
}

// trim enforces the rewind window and the hard sample cap.
func (b *Buffer) trim() {
	if len(b.samples) > maxSamples {
		drop := len(b.samples) - maxSamples
		b.samples = append(b.samples[:0], b.samples[drop:]...)
	}
	if len(b.samples) < 2 {
		return
	}
	newest := b.samples[len(b.samples)-1].Time
	cutoff := newest.Add(-maxRewind)
	first := 0
	// Keep one sample at or before the cutoff so interpolation close to the
	// window edge still has a bracketing pair.
	for first < len(b.samples)-1 && b.samples[first+1].Time.Before(cutoff) {
		first++
	}
	if first > 0 {
		b.samples = append(b.samples[:0], b.samples[first:]...)
	}
}

// Sample produces the render transform for renderTime. Before the oldest
// sample it clamps, after the newest it extrapolates for at most
// maxExtrapolation, otherwise it interpolates the bracketing pair. The most
// recent good result is cached and served when the buffer is empty so callers
// never observe a hard failure mid-session.
func (b *Buffer) Sample(renderTime time.Time) (Result, bool) {
	if b == nil || len(b.samples) == 0 {
		if b != nil && b.hasLast {
			return b.last, true
		}
		return Result{}, false
	}

	oldest := b.samples[0]
	newest := b.samples[len(b.samples)-1]

	var out Result
	switch {
	case !renderTime.After(oldest.Time):
		out = Result{X: oldest.X, Z: oldest.Z, Rotation: oldest.Rotation}
	case !renderTime.Before(newest.Time):
		ahead := renderTime.Sub(newest.Time)
		if ahead > maxExtrapolation {
			ahead = maxExtrapolation
		}
		dt := ahead.Seconds()
		out = Result{
			X:        newest.X + newest.VelX*dt,
			Z:        newest.Z + newest.VelZ*dt,
			Rotation: newest.Rotation,
		}
	default:
		idx := sort.Search(len(b.samples), func(i int) bool {
			return b.samples[i].Time.After(renderTime)
		})
		// idx is the first sample strictly after renderTime; the earlier
		// branches guarantee 1 <= idx <= len-1.
		if idx <= 0 || idx >= len(b.samples) {
			if b.hasLast {
				return b.last, true
			}
			return Result{X: newest.X, Z: newest.Z, Rotation: newest.Rotation}, true
		}
		a := b.samples[idx-1]
		c := b.samples[idx]
		span := c.Time.Sub(a.Time).Seconds()
		if span <= 0 {
			out = Result{X: c.X, Z: c.Z, Rotation: c.Rotation}
			break
		}
		t := renderTime.Sub(a.Time).Seconds() / span
		if a.HasVelocity && c.HasVelocity {
			out.X = hermite(a.X, a.VelX*span, c.X, c.VelX*span, t)
			out.Z = hermite(a.Z, a.VelZ*span, c.Z, c.VelZ*span, t)
		} else {
			out.X = a.X + (c.X-a.X)*t
			out.Z = a.Z + (c.Z-a.Z)*t
		}
		out.Rotation = lerpAngle(a.Rotation, c.Rotation, t)
	}

	if !finite(out.X) || !finite(out.Z) || !finite(out.Rotation) {
		if b.hasLast {
			return b.last, true
		}
		return Result{}, false
	}
	b.last = out
	b.hasLast = true
	return out, true
}

// hermite evaluates a cubic Hermite spline at t in [0,1] with endpoint
// tangents already scaled by the segment duration.
func hermite(p0, m0, p1, m1, t float64) float64 {
	t2 := t * t
	t3 := t2 * t
	return (2*t3-3*t2+1)*p0 + (t3-2*t2+t)*m0 + (-2*t3+3*t2)*p1 + (t3-t2)*m1
}

// lerpAngle interpolates along the shortest angular path, wrapping at ±π so
// rotation never spins the long way around the 0/2π boundary.
func lerpAngle(a, b, t float64) float64 {
	diff := math.Mod(b-a, 2*math.Pi)
	if diff > math.Pi {
		diff -= 2 * math.Pi
	} else if diff < -math.Pi {
		diff += 2 * math.Pi
	}
	return normalizeAngle(a + diff*t)
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
