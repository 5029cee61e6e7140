package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"emberreach/server/internal/geom"
	"emberreach/server/logging"
	loggingcombat "emberreach/server/logging/combat"
)

func TestRequestCastRejections(t *testing.T) {
	t.Parallel()

	base := time.UnixMilli(1_700_000_000_000)

	cases := []struct {
		name    string
		prepare func(w *World)
		ability string
		target  string
		point   *geom.Vec2
		want    CastRejection
	}{
		{
			name:    "unknown ability",
			ability: "meteor",
			target:  "target-1",
			want:    RejectionInvalidAbility,
		},
		{
			name: "dead caster",
			prepare: func(w *World) {
				w.entityByID("caster-1").Health = 0
			},
			ability: "smite",
			target:  "target-1",
			want:    RejectionCasterDead,
		},
		{
			name: "cooling down",
			prepare: func(w *World) {
				w.RequestCast("caster-1", "smite", "target-1", nil, base.Add(-time.Second))
			},
			ability: "smite",
			target:  "target-1",
			want:    RejectionOnCooldown,
		},
		{
			name: "insufficient mana",
			prepare: func(w *World) {
				w.entityByID("caster-1").Mana = 5
			},
			ability: "firebolt",
			target:  "target-1",
			want:    RejectionInsufficientResource,
		},
		{
			name:    "missing required target",
			ability: "smite",
			want:    RejectionNoValidTarget,
		},
		{
			name: "dead required target",
			prepare: func(w *World) {
				w.entityByID("target-1").Health = 0
			},
			ability: "smite",
			target:  "target-1",
			want:    RejectionNoValidTarget,
		},
		{
			name: "target out of range",
			prepare: func(w *World) {
				w.entityByID("target-1").X = 800 + 61
			},
			ability: "smite",
			target:  "target-1",
			want:    RejectionOutOfRange,
		},
		{
			name:    "point out of range",
			ability: "frostlance",
			point:   &geom.Vec2{X: 800 + 700, Y: 600},
			want:    RejectionOutOfRange,
		},
		{
			name:    "accepted",
			ability: "smite",
			target:  "target-1",
			want:    RejectionNone,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			w := newTestWorld(t)
			addTestPlayer(w, "caster-1", 800, 600)
			addTestPlayer(w, "target-1", 850, 600)
			if tc.prepare != nil {
				tc.prepare(w)
			}

			castID, rejection := w.RequestCast("caster-1", tc.ability, tc.target, tc.point, base)
			if rejection != tc.want {
				t.Fatalf("expected rejection %q, got %q", tc.want, rejection)
			}
			if tc.want == RejectionNone && castID == "" {
				t.Fatal("expected an accepted cast to return an id")
			}
			if tc.want != RejectionNone && castID != "" {
				t.Fatalf("expected no cast id on rejection, got %q", castID)
			}
		})
	}
}

func TestRequestCastChargesResourcesExactlyOnce(t *testing.T) {
	t.Parallel()

	w := newTestWorld(t)
	caster := addTestPlayer(w, "caster-1", 800, 600)
	addTestPlayer(w, "target-1", 850, 600)
	now := time.UnixMilli(1_700_000_000_000)

	castID, rejection := w.RequestCast("caster-1", "firebolt", "target-1", nil, now)
	if rejection != RejectionNone {
		t.Fatalf("expected acceptance, got %q", rejection)
	}
	if caster.Mana != playerMaxMana-12 {
		t.Fatalf("expected mana debited to %v, got %v", playerMaxMana-12, caster.Mana)
	}
	expiry, ok := caster.cooldowns["firebolt"]
	if !ok {
		t.Fatal("expected cooldown stamped at acceptance")
	}
	if !expiry.Equal(now.Add(1500 * time.Millisecond)) {
		t.Fatalf("expected cooldown expiry %v, got %v", now.Add(1500*time.Millisecond), expiry)
	}

	// Spamming the request while casting cannot double-spend.
	if _, rejection := w.RequestCast("caster-1", "firebolt", "target-1", nil, now.Add(10*time.Millisecond)); rejection != RejectionOnCooldown {
		t.Fatalf("expected repeat request on cooldown, got %q", rejection)
	}
	if caster.Mana != playerMaxMana-12 {
		t.Fatalf("expected mana unchanged after rejected repeat, got %v", caster.Mana)
	}

	// Canceling refunds nothing.
	if !w.CancelCast("caster-1") {
		t.Fatal("expected cancel to succeed during the casting phase")
	}
	if caster.Mana != playerMaxMana-12 {
		t.Fatalf("expected no refund on cancel, got %v", caster.Mana)
	}
	if castID == "" {
		t.Fatal("expected cast id")
	}
	if _, tracked := w.castsByID[castID]; tracked {
		t.Fatal("expected canceled cast removed from the active set")
	}
}

func TestCastRunsThroughImpact(t *testing.T) {
	t.Parallel()

	w := newTestWorld(t)
	addTestPlayer(w, "caster-1", 800, 600)
	target := addTestPlayer(w, "target-1", 850, 600)
	start := time.UnixMilli(1_700_000_000_000)

	castID, rejection := w.RequestCast("caster-1", "smite", "target-1", nil, start)
	if rejection != RejectionNone {
		t.Fatalf("expected acceptance, got %q", rejection)
	}

	// Nine 50ms ticks: still casting.
	out, now := stepTicks(w, start, 9)
	if len(out.CombatResults) != 0 {
		t.Fatalf("expected no impact before the cast time elapses, got %d results", len(out.CombatResults))
	}
	if got := w.castsByID[castID].State; got != CastStateCasting {
		t.Fatalf("expected state casting, got %q", got)
	}

	// The tenth tick crosses the 500ms cast time.
	out, now = stepTicks(w, now, 1)
	if len(out.CombatResults) != 1 {
		t.Fatalf("expected exactly one combat result at impact, got %d", len(out.CombatResults))
	}
	result := out.CombatResults[0]
	if result.CastID != castID || result.CasterID != "caster-1" || result.AbilityID != "smite" {
		t.Fatalf("unexpected combat result header: %+v", result)
	}
	if len(result.TargetIDs) != 1 || result.TargetIDs[0] != "target-1" {
		t.Fatalf("expected the bound target hit, got %v", result.TargetIDs)
	}
	damage := result.Damage[0]
	if damage < 18*0.9 || damage > 18*1.1 {
		t.Fatalf("expected damage within ±10%% of 18, got %v", damage)
	}
	if target.Health != playerMaxHealth-damage {
		t.Fatalf("expected target health %v, got %v", playerMaxHealth-damage, target.Health)
	}
	if got := w.castsByID[castID].State; got != CastStateImpact {
		t.Fatalf("expected state impact, got %q", got)
	}

	// Further ticks never resolve the same cast again.
	out, now = stepTicks(w, now, 3)
	if len(out.CombatResults) != 0 {
		t.Fatalf("expected no further combat results, got %d", len(out.CombatResults))
	}

	// The resolved cast lingers for the grace window, then is pruned.
	_, _ = stepTicks(w, now, int(castImpactGrace/(time.Second/tickRate))+1)
	if _, tracked := w.castsByID[castID]; tracked {
		t.Fatal("expected the impacted cast pruned after the grace window")
	}
	if len(w.casts) != 0 {
		t.Fatalf("expected no active casts, got %d", len(w.casts))
	}
}

func TestCastDamageIsDeterministicPerTarget(t *testing.T) {
	t.Parallel()

	seed := castDamageSeed("cast-abc", "target-1")
	first := rollDamage(22, 3, seed)
	second := rollDamage(22, 3, seed)
	if first != second {
		t.Fatalf("expected identical rolls for one seed, got %v and %v", first, second)
	}

	scaled := 22 * (1 + levelScaling*2)
	if first < scaled*0.9 || first > scaled*1.1 {
		t.Fatalf("expected roll within ±10%% of %v, got %v", scaled, first)
	}

	if rollDamage(0, 3, seed) != 0 {
		t.Fatal("expected zero base damage to roll zero")
	}

	other := rollDamage(22, 3, castDamageSeed("cast-abc", "target-2"))
	if other < scaled*0.9 || other > scaled*1.1 {
		t.Fatalf("expected sibling roll within variance bounds, got %v", other)
	}
}

func TestCancelCastFailsOncePastCasting(t *testing.T) {
	t.Parallel()

	w := newTestWorld(t)
	addTestPlayer(w, "caster-1", 800, 600)
	addTestPlayer(w, "target-1", 900, 600)
	start := time.UnixMilli(1_700_000_000_000)

	castID, rejection := w.RequestCast("caster-1", "firebolt", "target-1", nil, start)
	if rejection != RejectionNone {
		t.Fatalf("expected acceptance, got %q", rejection)
	}

	// 16 ticks cross the 800ms cast time; the projectile launches.
	_, _ = stepTicks(w, start, 16)
	if got := w.castsByID[castID].State; got != CastStateTraveling {
		t.Fatalf("expected state traveling, got %q", got)
	}
	if w.CancelCast("caster-1") {
		t.Fatal("expected cancel to fail once the projectile launched")
	}
}

func TestCastFizzlesWhenCasterDies(t *testing.T) {
	t.Parallel()

	w := newTestWorld(t)
	caster := addTestPlayer(w, "caster-1", 800, 600)
	target := addTestPlayer(w, "target-1", 850, 600)
	start := time.UnixMilli(1_700_000_000_000)

	castID, rejection := w.RequestCast("caster-1", "smite", "target-1", nil, start)
	if rejection != RejectionNone {
		t.Fatalf("expected acceptance, got %q", rejection)
	}

	_, now := stepTicks(w, start, 3)
	caster.Health = 0

	out, _ := stepTicks(w, now, 12)
	if len(out.CombatResults) != 0 {
		t.Fatalf("expected the cast to fizzle, got %d combat results", len(out.CombatResults))
	}
	if _, tracked := w.castsByID[castID]; tracked {
		t.Fatal("expected the fizzled cast removed")
	}
	if target.Health != playerMaxHealth {
		t.Fatalf("expected target untouched, got health %v", target.Health)
	}
}

func TestSelfCastHealsTheCaster(t *testing.T) {
	t.Parallel()

	w := newTestWorld(t)
	caster := addTestPlayer(w, "caster-1", 800, 600)
	caster.Health = 40
	start := time.UnixMilli(1_700_000_000_000)

	_, rejection := w.RequestCast("caster-1", "mend", "caster-1", nil, start)
	if rejection != RejectionNone {
		t.Fatalf("expected self-target acceptance, got %q", rejection)
	}

	// 14 ticks cross the 700ms cast time; regrowth attaches on impact.
	_, now := stepTicks(w, start, 14)
	if got := w.effectManager.ActiveCount("caster-1"); got != 1 {
		t.Fatalf("expected regrowth attached to the caster, got %d instances", got)
	}

	// The first heal tick lands one second after attachment.
	_, _ = stepTicks(w, now, tickRate)
	if caster.Health <= 40 {
		t.Fatalf("expected regrowth to heal above 40, got %v", caster.Health)
	}
}

func TestRequestCastPublishesVerdictEvents(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var events []logging.Event
	capture := logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
	})

	w := newWorld(WorldConfig{Seed: "test"}, capture)
	addTestPlayer(w, "caster-1", 800, 600)
	addTestPlayer(w, "target-1", 850, 600)
	start := time.UnixMilli(1_700_000_000_000)

	if _, rejection := w.RequestCast("caster-1", "smite", "target-1", nil, start); rejection != RejectionNone {
		t.Fatalf("expected acceptance, got %q", rejection)
	}
	if _, rejection := w.RequestCast("caster-1", "no-such-ability", "target-1", nil, start); rejection != RejectionInvalidAbility {
		t.Fatalf("expected unknown-ability rejection, got %q", rejection)
	}

	mu.Lock()
	defer mu.Unlock()
	byType := make(map[logging.EventType]int, len(events))
	for _, event := range events {
		byType[event.Type]++
	}
	if byType[loggingcombat.CastAcceptedEventType] != 1 {
		t.Fatalf("expected one acceptance event, got %d", byType[loggingcombat.CastAcceptedEventType])
	}
	if byType[loggingcombat.CastRejectedEventType] != 1 {
		t.Fatalf("expected one rejection event, got %d", byType[loggingcombat.CastRejectedEventType])
	}
}

func TestCastOriginStaysAtCastStart(t *testing.T) {
	t.Parallel()

	w := newTestWorld(t)
	caster := addTestPlayer(w, "caster-1", 200, 600)
	addTestPlayer(w, "target-1", 650, 600)
	start := time.UnixMilli(1_700_000_000_000)

	castID, rejection := w.RequestCast("caster-1", "firebolt", "target-1", nil, start)
	if rejection != RejectionNone {
		t.Fatalf("expected acceptance, got %q", rejection)
	}

	// The caster strafes right through the whole 800ms cast window.
	caster.intentX = 1
	_, _ = stepTicks(w, start, 16)

	cast := w.castsByID[castID]
	if cast.State != CastStateTraveling {
		t.Fatalf("expected the cast traveling, got %q", cast.State)
	}
	if cast.OriginX != 200 || cast.OriginY != 600 {
		t.Fatalf("expected the origin pinned to the cast-start position, got (%v, %v)", cast.OriginX, cast.OriginY)
	}
	if cast.X <= 300 {
		t.Fatalf("expected the launch point to follow the caster, got x %v", cast.X)
	}
}
