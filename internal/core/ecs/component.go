package ecs

import (
	"sort"
	"sync"
)

// ComponentManager owns the entity→(type tag→data) storage. Component
// payloads are type-erased at this layer; gameplay code stays typed through
// accessor wrappers around GetComponent.
//
// AddComponent does not check that the entity exists; callers are expected
// to create the entity first. This is a documented precondition, not an
// enforced invariant.
type ComponentManager struct {
	mu         sync.RWMutex
	components map[EntityID]map[string]any
	// typeIndex tracks which entities hold each component type, backing the
	// multi-component queries in EntityManager.
	typeIndex map[string]map[EntityID]struct{}
	count     int
}

func NewComponentManager() *ComponentManager {
	return &ComponentManager{
		components: make(map[EntityID]map[string]any),
		typeIndex:  make(map[string]map[EntityID]struct{}),
	}
}

// AddComponent attaches data to the entity under the given type tag,
// overwriting any existing component of that type.
func (m *ComponentManager) AddComponent(id EntityID, typeName string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byType, ok := m.components[id]
	if !ok {
		byType = make(map[string]any)
		m.components[id] = byType
	}
	if _, exists := byType[typeName]; !exists {
		m.count++
		if m.typeIndex[typeName] == nil {
			m.typeIndex[typeName] = make(map[EntityID]struct{})
		}
		m.typeIndex[typeName][id] = struct{}{}
	}
	byType[typeName] = data
}

func (m *ComponentManager) GetComponent(id EntityID, typeName string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.components[id][typeName]
	return data, ok
}

func (m *ComponentManager) RemoveComponent(id EntityID, typeName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(id, typeName)
}

func (m *ComponentManager) HasComponent(id EntityID, typeName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.components[id][typeName]
	return ok
}

// ComponentTypes returns the type tags attached to the entity, sorted for
// deterministic iteration.
func (m *ComponentManager) ComponentTypes(id EntityID) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byType := m.components[id]
	if len(byType) == 0 {
		return nil
	}
	out := make([]string, 0, len(byType))
	for typeName := range byType {
		out = append(out, typeName)
	}
	sort.Strings(out)
	return out
}

// RemoveAllComponents drops every component attached to the entity and
// returns how many were removed. Called by EntityManager on destroy.
func (m *ComponentManager) RemoveAllComponents(id EntityID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	byType := m.components[id]
	removed := 0
	for typeName := range byType {
		if m.removeLocked(id, typeName) {
			removed++
		}
	}
	return removed
}

// ComponentCount returns the total number of component instances across all
// entities. Diagnostics only.
func (m *ComponentManager) ComponentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

func (m *ComponentManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = make(map[EntityID]map[string]any)
	m.typeIndex = make(map[string]map[EntityID]struct{})
	m.count = 0
}

func (m *ComponentManager) removeLocked(id EntityID, typeName string) bool {
	byType, ok := m.components[id]
	if !ok {
		return false
	}
	if _, exists := byType[typeName]; !exists {
		return false
	}
	delete(byType, typeName)
	if len(byType) == 0 {
		delete(m.components, id)
	}
	if idx := m.typeIndex[typeName]; idx != nil {
		delete(idx, id)
		if len(idx) == 0 {
			delete(m.typeIndex, typeName)
		}
	}
	m.count--
	return true
}

// entitiesWithType returns a copy of the index set for one type tag.
func (m *ComponentManager) entitiesWithType(typeName string) []EntityID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := m.typeIndex[typeName]
	if len(idx) == 0 {
		return nil
	}
	out := make([]EntityID, 0, len(idx))
	for id := range idx {
		out = append(out, id)
	}
	return out
}

// typeIndexSize reports how many entities hold the given type. Used by query
// planning to start the intersection from the smallest set.
func (m *ComponentManager) typeIndexSize(typeName string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.typeIndex[typeName])
}
