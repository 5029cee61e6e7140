package logging

import (
	"context"
	"sync"
	"testing"
	"time"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *captureSink) Write(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestRouterForwardsEnrichedEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	stamp := time.UnixMilli(1_700_000_000_000)
	cfg := DefaultConfig()
	cfg.Fields = map[string]any{"region": "test"}

	router := NewRouter(ClockFunc(func() time.Time { return stamp }), cfg, []NamedSink{{Name: "capture", Sink: sink}})

	router.Publish(context.Background(), Event{
		Type:     "combat.cast_accepted",
		Tick:     7,
		Severity: SeverityInfo,
	}.WithExtra("client", "harness"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected one forwarded event, got %d", len(events))
	}
	got := events[0]
	if got.Type != "combat.cast_accepted" || got.Tick != 7 {
		t.Fatalf("unexpected event %+v", got)
	}
	if !got.Time.Equal(stamp) {
		t.Fatalf("expected clock-stamped time %v, got %v", stamp, got.Time)
	}
	if got.Extra["region"] != "test" {
		t.Fatalf("expected enrichment field, got %v", got.Extra)
	}
	if got.Extra["client"] != "harness" {
		t.Fatalf("expected the event's own extra preserved, got %v", got.Extra)
	}
	if !sink.closed {
		t.Fatal("expected the sink closed with the router")
	}

	stats := router.Stats()
	if stats.EventsTotal != 1 || stats.DroppedTotal != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	cfg := DefaultConfig()
	cfg.MinimumSeverity = SeverityWarn

	router := NewRouter(SystemClock{}, cfg, []NamedSink{{Name: "capture", Sink: sink}})
	router.Publish(context.Background(), Event{Type: "combat.cast_rejected", Severity: SeverityDebug})
	router.Publish(context.Background(), Event{Type: "combat.cast_impact", Severity: SeverityInfo})
	router.Publish(context.Background(), Event{Type: "system.fault", Severity: SeverityError})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected only the error event forwarded, got %d", len(events))
	}
	if events[0].Type != "system.fault" {
		t.Fatalf("unexpected surviving event %q", events[0].Type)
	}
}

func TestRouterDropsInsteadOfBlockingWhenFull(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	blocking := &blockingSink{release: release}
	cfg := DefaultConfig()
	cfg.BufferSize = 1

	router := NewRouter(SystemClock{}, cfg, []NamedSink{{Name: "slow", Sink: blocking}})

	// Saturate the single-slot queue while the sink is stuck; every Publish
	// must return immediately.
	for i := 0; i < 20; i++ {
		router.Publish(context.Background(), Event{Type: "combat.cast_impact", Severity: SeverityInfo})
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	stats := router.Stats()
	if stats.DroppedTotal == 0 {
		t.Fatal("expected drops under sustained backpressure")
	}
	if stats.EventsTotal+stats.DroppedTotal != 20 {
		t.Fatalf("expected every publish accounted for, got forwarded=%d dropped=%d",
			stats.EventsTotal, stats.DroppedTotal)
	}
}

func TestRouterIgnoresPublishAfterClose(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	router := NewRouter(SystemClock{}, DefaultConfig(), []NamedSink{{Name: "capture", Sink: sink}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	router.Publish(context.Background(), Event{Type: "combat.cast_impact", Severity: SeverityInfo})

	if got := len(sink.snapshot()); got != 0 {
		t.Fatalf("expected no events after close, got %d", got)
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Write(Event) error {
	<-s.release
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }
