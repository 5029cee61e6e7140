package interp

import (
	"math"
	"testing"
	"time"
)

func at(ms int64) time.Time {
	return time.UnixMilli(1_700_000_000_000 + ms)
}

func TestPushRejectsBadSamples(t *testing.T) {
	t.Parallel()

	buf := NewBuffer()

	if buf.Push(Sample{Time: at(0), X: math.NaN(), Z: 0}) {
		t.Fatal("expected NaN position to be rejected")
	}
	if buf.Push(Sample{Time: at(0), X: math.Inf(1), Z: 0}) {
		t.Fatal("expected infinite position to be rejected")
	}
	if buf.Push(Sample{X: 1, Z: 1}) {
		t.Fatal("expected zero timestamp to be rejected")
	}
	if !buf.Push(Sample{Time: at(0), X: 1, Z: 1}) {
		t.Fatal("expected valid sample to be accepted")
	}
	if buf.Push(Sample{Time: at(0), X: 1, Z: 1}) {
		t.Fatal("expected exact duplicate to be rejected")
	}
	if buf.Len() != 1 {
		t.Fatalf("expected one retained sample, got %d", buf.Len())
	}
}

func TestPushSupersedesSameTimestampDifferentPosition(t *testing.T) {
	t.Parallel()

	buf := NewBuffer()
	buf.Push(Sample{Time: at(0), X: 1, Z: 1})
	if !buf.Push(Sample{Time: at(0), X: 5, Z: 5}) {
		t.Fatal("expected corrected sample to be accepted")
	}
	if buf.Len() != 1 {
		t.Fatalf("expected replacement, not insertion, got %d samples", buf.Len())
	}
	result, ok := buf.Sample(at(0))
	if !ok {
		t.Fatal("expected sample to succeed")
	}
	if result.X != 5 || result.Z != 5 {
		t.Fatalf("expected superseding position (5,5), got (%v,%v)", result.X, result.Z)
	}
}

func TestPushKeepsSamplesOrderedUnderReordering(t *testing.T) {
	t.Parallel()

	buf := NewBuffer()
	// Network-reordered arrival.
	for _, ms := range []int64{300, 100, 200, 50} {
		if !buf.Push(Sample{Time: at(ms), X: float64(ms), Z: 0}) {
			t.Fatalf("expected sample at %dms to be accepted", ms)
		}
	}

	// Midpoints must interpolate between their true temporal neighbors.
	result, ok := buf.Sample(at(150))
	if !ok {
		t.Fatal("expected sample to succeed")
	}
	if math.Abs(result.X-150) > 1e-9 {
		t.Fatalf("expected linear interpolation to 150, got %v", result.X)
	}
}

func TestSampleClampsBeforeOldest(t *testing.T) {
	t.Parallel()

	buf := NewBuffer()
	buf.Push(Sample{Time: at(1000), X: 10, Z: 20, Rotation: 1})
	buf.Push(Sample{Time: at(1100), X: 30, Z: 40, Rotation: 2})

	result, ok := buf.Sample(at(0))
	if !ok {
		t.Fatal("expected sample to succeed")
	}
	if result.X != 10 || result.Z != 20 || result.Rotation != 1 {
		t.Fatalf("expected clamp to oldest sample, got %+v", result)
	}
}

func TestSampleExtrapolationIsClamped(t *testing.T) {
	t.Parallel()

	buf := NewBuffer()
	buf.Push(Sample{Time: at(0), X: 0, Z: 0, VelX: 100, VelZ: 0, HasVelocity: true})
	buf.Push(Sample{Time: at(100), X: 10, Z: 0, VelX: 100, VelZ: 0, HasVelocity: true})

	// 50ms past the newest sample: velocity carries the position forward.
	result, ok := buf.Sample(at(150))
	if !ok {
		t.Fatal("expected sample to succeed")
	}
	if math.Abs(result.X-15) > 1e-9 {
		t.Fatalf("expected extrapolation to 15, got %v", result.X)
	}

	// Far past the newest sample the prediction freezes at the cap.
	capped, ok := buf.Sample(at(5000))
	if !ok {
		t.Fatal("expected sample to succeed")
	}
	want := 10 + 100*maxExtrapolation.Seconds()
	if math.Abs(capped.X-want) > 1e-9 {
		t.Fatalf("expected capped extrapolation to %v, got %v", want, capped.X)
	}
}

func TestSampleInterpolationStaysBounded(t *testing.T) {
	t.Parallel()

	buf := NewBuffer()
	buf.Push(Sample{Time: at(0), X: 0, Z: 0})
	buf.Push(Sample{Time: at(100), X: 10, Z: -10})

	for ms := int64(0); ms <= 100; ms += 5 {
		result, ok := buf.Sample(at(ms))
		if !ok {
			t.Fatalf("expected sample at %dms to succeed", ms)
		}
		if result.X < 0 || result.X > 10 {
			t.Fatalf("linear X %v left [0,10] at %dms", result.X, ms)
		}
		if result.Z < -10 || result.Z > 0 {
			t.Fatalf("linear Z %v left [-10,0] at %dms", result.Z, ms)
		}
	}
}

func TestSampleHermiteMatchesEndpoints(t *testing.T) {
	t.Parallel()

	buf := NewBuffer()
	buf.Push(Sample{Time: at(0), X: 0, Z: 0, VelX: 50, VelZ: 0, HasVelocity: true})
	buf.Push(Sample{Time: at(200), X: 20, Z: 0, VelX: 50, VelZ: 0, HasVelocity: true})

	start, _ := buf.Sample(at(0))
	end, _ := buf.Sample(at(200))
	if math.Abs(start.X) > 1e-9 {
		t.Fatalf("expected spline to pass through start, got %v", start.X)
	}
	if math.Abs(end.X-20) > 1e-9 {
		t.Fatalf("expected spline to pass through end, got %v", end.X)
	}
}

func TestSampleRotationTakesShortestPath(t *testing.T) {
	t.Parallel()

	buf := NewBuffer()
	// 170° to -170°: the short way crosses ±180°, never 0°.
	buf.Push(Sample{Time: at(0), X: 0, Z: 0, Rotation: 170 * math.Pi / 180})
	buf.Push(Sample{Time: at(100), X: 0, Z: 0, Rotation: -170 * math.Pi / 180})

	result, ok := buf.Sample(at(50))
	if !ok {
		t.Fatal("expected sample to succeed")
	}
	if math.Abs(math.Abs(result.Rotation)-math.Pi) > 1e-6 {
		t.Fatalf("expected midpoint rotation at ±180°, got %v rad", result.Rotation)
	}
}

func TestTrimEnforcesRewindWindowAndCap(t *testing.T) {
	t.Parallel()

	buf := NewBuffer()
	for i := 0; i < maxSamples*2; i++ {
		buf.Push(Sample{Time: at(int64(i) * 10), X: float64(i), Z: 0})
	}
	if buf.Len() > maxSamples {
		t.Fatalf("expected at most %d samples, got %d", maxSamples, buf.Len())
	}

	old := NewBuffer()
	old.Push(Sample{Time: at(0), X: 1, Z: 0})
	old.Push(Sample{Time: at(10), X: 2, Z: 0})
	old.Push(Sample{Time: at(10_000), X: 3, Z: 0})
	// The first sample is far outside the rewind window of the newest; one
	// bracketing predecessor is retained.
	if old.Len() != 2 {
		t.Fatalf("expected stale samples evicted down to 2, got %d", old.Len())
	}
}

func TestSampleEmptyBufferFallsBackToLastResult(t *testing.T) {
	t.Parallel()

	buf := NewBuffer()
	if _, ok := buf.Sample(at(0)); ok {
		t.Fatal("expected empty buffer with no history to fail")
	}

	buf.Push(Sample{Time: at(0), X: 7, Z: 9})
	if _, ok := buf.Sample(at(0)); !ok {
		t.Fatal("expected sample to succeed")
	}

	drained := NewBuffer()
	drained.samples = buf.samples[:0]
	drained.last = buf.last
	drained.hasLast = buf.hasLast
	result, ok := drained.Sample(at(50))
	if !ok {
		t.Fatal("expected cached result after buffer drained")
	}
	if result.X != 7 || result.Z != 9 {
		t.Fatalf("expected cached (7,9), got (%v,%v)", result.X, result.Z)
	}
}

func TestRegistryLifecycle(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
	buf := reg.Ensure("npc-1")
	if buf == nil {
		t.Fatal("expected Ensure to create a buffer")
	}
	if again := reg.Ensure("npc-1"); again != buf {
		t.Fatal("expected Ensure to return the existing buffer")
	}
	if _, ok := reg.Lookup("npc-2"); ok {
		t.Fatal("expected Lookup to miss for unknown entity")
	}
	reg.Remove("npc-1")
	if reg.Len() != 0 {
		t.Fatalf("expected registry emptied, got %d", reg.Len())
	}
}
