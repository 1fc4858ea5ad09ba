package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddGetComponent(t *testing.T) {
	cm := NewComponentManager()
	cm.AddComponent(1, "health", map[string]any{"current": 50.0})

	data, ok := cm.GetComponent(1, "health")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"current": 50.0}, data)

	_, ok = cm.GetComponent(1, "position")
	assert.False(t, ok)
	_, ok = cm.GetComponent(2, "health")
	assert.False(t, ok)
}

func TestAddComponentOverwrites(t *testing.T) {
	cm := NewComponentManager()
	cm.AddComponent(1, "health", map[string]any{"current": 50.0})
	cm.AddComponent(1, "health", map[string]any{"current": 10.0})

	data, _ := cm.GetComponent(1, "health")
	assert.Equal(t, map[string]any{"current": 10.0}, data)
	assert.Equal(t, 1, cm.ComponentCount(), "overwrite must not grow the count")
}

func TestRemoveComponent(t *testing.T) {
	cm := NewComponentManager()
	cm.AddComponent(1, "health", nil)

	assert.True(t, cm.RemoveComponent(1, "health"))
	assert.False(t, cm.RemoveComponent(1, "health"))
	assert.False(t, cm.HasComponent(1, "health"))
	assert.Zero(t, cm.ComponentCount())
}

func TestRemoveAllComponents(t *testing.T) {
	cm := NewComponentManager()
	cm.AddComponent(1, "health", nil)
	cm.AddComponent(1, "position", nil)
	cm.AddComponent(2, "health", nil)

	assert.Equal(t, 2, cm.RemoveAllComponents(1))
	assert.False(t, cm.HasComponent(1, "health"))
	assert.True(t, cm.HasComponent(2, "health"))
	assert.Equal(t, 1, cm.ComponentCount())
}

func TestComponentTypesSorted(t *testing.T) {
	cm := NewComponentManager()
	cm.AddComponent(1, "position", nil)
	cm.AddComponent(1, "ai", nil)
	cm.AddComponent(1, "health", nil)

	assert.Equal(t, []string{"ai", "health", "position"}, cm.ComponentTypes(1))
	assert.Nil(t, cm.ComponentTypes(2))
}

func TestClearDropsStorage(t *testing.T) {
	cm := NewComponentManager()
	cm.AddComponent(1, "health", nil)
	cm.AddComponent(2, "health", nil)

	cm.Clear()
	assert.Zero(t, cm.ComponentCount())
	assert.False(t, cm.HasComponent(1, "health"))
	assert.Empty(t, cm.entitiesWithType("health"))
}
