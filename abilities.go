package server

import "time"

// AbilityDefinition is the immutable description of one castable ability.
// The struct doubles as the designer-facing catalog document, so the fields
// carry jsonschema metadata for the exported validation schema (cmd/schema).
type AbilityDefinition struct {
	ID             string              `json:"id" jsonschema:"title=Ability id,pattern=^[a-z0-9\\-]+$,description=Identifier referenced by cast requests"`
	Name           string              `json:"name" jsonschema:"title=Display name"`
	ManaCost       float64             `json:"manaCost" jsonschema:"minimum=0"`
	Cooldown       time.Duration       `json:"cooldown" jsonschema:"description=Cooldown in nanoseconds,minimum=0"`
	CastTime       time.Duration       `json:"castTime" jsonschema:"description=Cast duration in nanoseconds,minimum=0"`
	BaseDamage     float64             `json:"baseDamage" jsonschema:"minimum=0"`
	Range          float64             `json:"range" jsonschema:"description=Maximum distance between caster and target at request time,minimum=0"`
	AreaRadius     float64             `json:"areaRadius,omitempty" jsonschema:"description=Impact area radius; zero means single target,minimum=0"`
	RequiresTarget bool                `json:"requiresTarget,omitempty"`
	Projectile     *ProjectileTemplate `json:"projectile,omitempty"`
	Effects        []StatusEffectType  `json:"effects,omitempty" jsonschema:"description=Status effects attached to every impacted target"`
}

// ProjectileTemplate describes the traveling phase of a projectile ability.
type ProjectileTemplate struct {
	Speed     float64 `json:"speed" jsonschema:"minimum=1"`
	MaxRange  float64 `json:"maxRange" jsonschema:"minimum=1"`
	HitRadius float64 `json:"hitRadius" jsonschema:"minimum=0"`
	Piercing  bool    `json:"piercing,omitempty"`
}

// AbilityCatalogDocument models the canonical array format of the catalog as
// tooling reflects over it; the runtime table below is the same data.
type AbilityCatalogDocument []AbilityDefinition

func (d AbilityDefinition) hasProjectile() bool {
	return d.Projectile != nil
}

// newAbilityDefinitions builds the load-time-immutable ability catalog.
func newAbilityDefinitions() map[string]*AbilityDefinition {
	defs := []*AbilityDefinition{
		{
			ID:             "smite",
			Name:           "Smite",
			ManaCost:       0,
			Cooldown:       2 * time.Second,
			CastTime:       500 * time.Millisecond,
			BaseDamage:     18,
			Range:          60,
			AreaRadius:     2 * entityHalf,
			RequiresTarget: true,
		},
		{
			ID:             "firebolt",
			Name:           "Firebolt",
			ManaCost:       12,
			Cooldown:       1500 * time.Millisecond,
			CastTime:       800 * time.Millisecond,
			BaseDamage:     22,
			Range:          480,
			RequiresTarget: true,
			Projectile:     &ProjectileTemplate{Speed: 320, MaxRange: 520, HitRadius: 12},
			Effects:        []StatusEffectType{StatusEffectBurning},
		},
		{
			ID:         "frostlance",
			Name:       "Frost Lance",
			ManaCost:   18,
			Cooldown:   4 * time.Second,
			CastTime:   900 * time.Millisecond,
			BaseDamage: 16,
			Range:      600,
			Projectile: &ProjectileTemplate{Speed: 420, MaxRange: 640, HitRadius: 10, Piercing: true},
			Effects:    []StatusEffectType{StatusEffectChilled},
		},
		{
			ID:         "emberwave",
			Name:       "Emberwave",
			ManaCost:   30,
			Cooldown:   6 * time.Second,
			CastTime:   1200 * time.Millisecond,
			BaseDamage: 26,
			Range:      0,
			AreaRadius: 160,
		},
		{
			ID:             "mend",
			Name:           "Mend",
			ManaCost:       20,
			Cooldown:       5 * time.Second,
			CastTime:       700 * time.Millisecond,
			BaseDamage:     0,
			Range:          360,
			RequiresTarget: true,
			Effects:        []StatusEffectType{StatusEffectRegrowth},
		},
	}

	catalog := make(map[string]*AbilityDefinition, len(defs))
	for _, def := range defs {
		catalog[def.ID] = def
	}
	return catalog
}
