package ecs

// EntityID is a unique identifier for an entity. IDs are strictly increasing
// within a World and are never reused, including across a save/load cycle.
type EntityID uint64

// Entity is an opaque handle grouping zero or more components. It carries no
// behavior; all state lives in components owned by the ComponentManager.
type Entity struct {
	ID EntityID
}
