// Package systems carries the built-in gameplay systems and the component
// schemas they operate on. Gameplay code stays typed through the accessor
// helpers here while the managers underneath stay type-erased.
package systems

import (
	"github.com/simforge/simforge/internal/core/config"
	"github.com/simforge/simforge/internal/core/ecs"
	"github.com/simforge/simforge/internal/core/schema/registry"
)

// Component type tags.
const (
	TypeCharacterInfo = "character_info"
	TypeHunger        = "hunger"
	TypePosition      = "position"
	TypeVelocity      = "velocity"
)

// Event types.
const (
	EventStarving = "character.starving"
)

// RegisterGameComponents binds the built-in component schemas. Safe to call
// more than once against the same registry.
func RegisterGameComponents(reg *registry.Registry) error {
	if _, err := reg.Register(TypeCharacterInfo, &registry.Schema{
		Fields: []registry.FieldSchema{
			{Name: "name", Kind: registry.KindString, Required: true},
		},
	}); err != nil {
		return err
	}
	if _, err := reg.Register(TypeHunger, &registry.Schema{
		Fields: []registry.FieldSchema{
			{Name: "current", Kind: registry.KindNumber, Required: true, Min: registry.Bound(0)},
			{Name: "maximum", Kind: registry.KindNumber, Required: true, Min: registry.Bound(1)},
		},
		Default: func() map[string]any {
			return map[string]any{"current": 100.0, "maximum": 100.0}
		},
	}); err != nil {
		return err
	}
	if _, err := reg.Register(TypePosition, &registry.Schema{
		Fields: []registry.FieldSchema{
			{Name: "x", Kind: registry.KindNumber, Required: true},
			{Name: "y", Kind: registry.KindNumber, Required: true},
		},
	}); err != nil {
		return err
	}
	_, err := reg.Register(TypeVelocity, &registry.Schema{
		Fields: []registry.FieldSchema{
			{Name: "dx", Kind: registry.KindNumber, Required: true},
			{Name: "dy", Kind: registry.KindNumber, Required: true},
		},
	})
	return err
}

// GameRules returns the archetype defaulting rules for the built-in schema:
// character entities from old snapshots get a hunger stat synthesized.
func GameRules() *config.DefaultRules {
	return &config.DefaultRules{Rules: []config.ArchetypeRule{
		{Marker: TypeCharacterInfo, Defaults: []string{TypeHunger}},
	}}
}

// numField reads a numeric field out of a map payload.
func numField(cm *ecs.ComponentManager, id ecs.EntityID, typeName, field string) (float64, bool) {
	data, ok := cm.GetComponent(id, typeName)
	if !ok {
		return 0, false
	}
	m, ok := data.(map[string]any)
	if !ok {
		return 0, false
	}
	n, ok := m[field].(float64)
	return n, ok
}

func setNumField(cm *ecs.ComponentManager, id ecs.EntityID, typeName, field string, value float64) {
	data, ok := cm.GetComponent(id, typeName)
	if !ok {
		return
	}
	if m, ok := data.(map[string]any); ok {
		m[field] = value
	}
}
