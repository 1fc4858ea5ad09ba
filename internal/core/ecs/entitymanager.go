package ecs

import (
	"sort"
	"sync"
)

const firstEntityID EntityID = 1

// EntityManager owns entity creation and destruction. It leans on the
// ComponentManager for membership checks when answering multi-component
// queries.
type EntityManager struct {
	mu         sync.RWMutex
	entities   map[EntityID]Entity
	nextID     EntityID
	components *ComponentManager
}

func NewEntityManager(components *ComponentManager) *EntityManager {
	return &EntityManager{
		entities:   make(map[EntityID]Entity),
		nextID:     firstEntityID,
		components: components,
	}
}

// CreateEntity creates an entity with the next free id.
func (m *EntityManager) CreateEntity() Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(m.nextID)
}

// CreateEntityWithID creates an entity with the supplied id when it is not in
// use, otherwise it falls back to the next free id. The id counter always
// stays above every issued id so later creates never collide.
func (m *EntityManager) CreateEntityWithID(id EntityID) Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == 0 {
		id = m.nextID
	} else if _, taken := m.entities[id]; taken {
		id = m.nextID
	}
	return m.createLocked(id)
}

func (m *EntityManager) createLocked(id EntityID) Entity {
	e := Entity{ID: id}
	m.entities[id] = e
	if id >= m.nextID {
		m.nextID = id + 1
	}
	return e
}

// DestroyEntity removes the entity and all its components. Returns false when
// the entity did not exist.
func (m *EntityManager) DestroyEntity(id EntityID) bool {
	m.mu.Lock()
	_, ok := m.entities[id]
	if ok {
		delete(m.entities, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.components.RemoveAllComponents(id)
	return true
}

func (m *EntityManager) Entity(id EntityID) (Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	return e, ok
}

// AllEntities returns every live entity sorted by id.
func (m *EntityManager) AllEntities() []Entity {
	m.mu.RLock()
	out := make([]Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EntitiesWith returns the ids of entities holding every listed component
// type. The intersection starts from the smallest per-type index and filters
// the rest through membership checks. Result is sorted by id, so repeated
// calls over unchanged state are stable.
func (m *EntityManager) EntitiesWith(types ...string) []EntityID {
	if len(types) == 0 {
		return nil
	}
	smallest := types[0]
	for _, t := range types[1:] {
		if m.components.typeIndexSize(t) < m.components.typeIndexSize(smallest) {
			smallest = t
		}
	}

	var out []EntityID
	for _, id := range m.components.entitiesWithType(smallest) {
		if !m.exists(id) {
			continue
		}
		match := true
		for _, t := range types {
			if t == smallest {
				continue
			}
			if !m.components.HasComponent(id, t) {
				match = false
				break
			}
		}
		if match {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *EntityManager) exists(id EntityID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entities[id]
	return ok
}

func (m *EntityManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

// NextEntityID returns the id the next CreateEntity call would issue.
func (m *EntityManager) NextEntityID() EntityID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextID
}

// SetNextEntityID moves the id counter. The load path uses this to restore
// the counter from a snapshot; it never moves backwards past an issued id.
func (m *EntityManager) SetNextEntityID(id EntityID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for existing := range m.entities {
		if existing >= id {
			id = existing + 1
		}
	}
	if id < firstEntityID {
		id = firstEntityID
	}
	m.nextID = id
}

// Clear resets all entity state, including the id counter. Used on full
// shutdown, not on load; load restores the counter explicitly.
func (m *EntityManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = make(map[EntityID]Entity)
	m.nextID = firstEntityID
}
