package ecs

import (
	"fmt"

	"github.com/simforge/simforge/internal/core/events/bus"
	"github.com/simforge/simforge/internal/core/observability/log"
)

// World is the composition root: one EntityManager, one ComponentManager,
// one EventBus, and an ordered system registry. One external driver calls
// Update(dt) once per frame; there is no parallel system execution.
type World struct {
	entities   *EntityManager
	components *ComponentManager
	events     bus.EventBus

	systems     []System
	systemNames map[string]struct{}

	logger log.Log
}

// Option configures a World at construction time.
type Option func(*World)

func WithLogger(l log.Log) Option {
	return func(w *World) { w.logger = l }
}

// WithEventBus replaces the default bus, e.g. to install a custom error sink.
func WithEventBus(b bus.EventBus) Option {
	return func(w *World) { w.events = b }
}

func NewWorld(opts ...Option) *World {
	w := &World{
		systemNames: make(map[string]struct{}),
		logger:      log.Nop{},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.components = NewComponentManager()
	w.entities = NewEntityManager(w.components)
	if w.events == nil {
		w.events = bus.New(bus.WithLogger(w.logger))
	}
	return w
}

// Update runs one tick: the deferred event queue is drained first, then every
// system in registration order. Systems therefore never observe an event
// queued in an earlier tick as still pending.
func (w *World) Update(deltaTime float64) {
	w.events.ProcessQueue()
	for _, s := range w.systems {
		s.Update(deltaTime)
	}
}

// AddSystem registers and initializes a system. Duplicate names are a caller
// bug and fail.
func (w *World) AddSystem(s System) error {
	if _, dup := w.systemNames[s.Name()]; dup {
		return fmt.Errorf("world: system %q already registered", s.Name())
	}
	if err := s.Initialize(w.entities, w.components, w.events); err != nil {
		return fmt.Errorf("world: initialize system %q: %w", s.Name(), err)
	}
	w.systems = append(w.systems, s)
	w.systemNames[s.Name()] = struct{}{}
	w.logger.Debug("system registered", log.String("system", s.Name()))
	return nil
}

// RemoveSystem shuts the named system down and drops it from the update
// order. Returns false when no such system is registered.
func (w *World) RemoveSystem(name string) bool {
	for i, s := range w.systems {
		if s.Name() == name {
			s.Shutdown()
			w.systems = append(w.systems[:i:i], w.systems[i+1:]...)
			delete(w.systemNames, name)
			return true
		}
	}
	return false
}

func (w *World) System(name string) (System, bool) {
	for _, s := range w.systems {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Entity/component facade

func (w *World) CreateEntity() Entity                 { return w.entities.CreateEntity() }
func (w *World) CreateEntityWithID(id EntityID) Entity { return w.entities.CreateEntityWithID(id) }
func (w *World) DestroyEntity(id EntityID) bool       { return w.entities.DestroyEntity(id) }

func (w *World) Entity(id EntityID) (Entity, bool) { return w.entities.Entity(id) }
func (w *World) AllEntities() []Entity             { return w.entities.AllEntities() }

func (w *World) EntitiesWith(types ...string) []EntityID { return w.entities.EntitiesWith(types...) }

func (w *World) AddComponent(id EntityID, typeName string, data any) {
	w.components.AddComponent(id, typeName, data)
}

func (w *World) GetComponent(id EntityID, typeName string) (any, bool) {
	return w.components.GetComponent(id, typeName)
}

func (w *World) RemoveComponent(id EntityID, typeName string) bool {
	return w.components.RemoveComponent(id, typeName)
}

func (w *World) HasComponent(id EntityID, typeName string) bool {
	return w.components.HasComponent(id, typeName)
}

// Event facade

func (w *World) Emit(event bus.Event)  { w.events.Emit(event) }
func (w *World) Queue(event bus.Event) { w.events.Queue(event) }

func (w *World) Subscribe(eventType string, handler bus.EventHandler) bus.Subscription {
	return w.events.Subscribe(eventType, handler)
}

func (w *World) Unsubscribe(sub bus.Subscription) bool { return w.events.Unsubscribe(sub) }

// Manager access for the persistence layer.

func (w *World) EntityManager() *EntityManager       { return w.entities }
func (w *World) ComponentManager() *ComponentManager { return w.components }
func (w *World) Events() bus.EventBus                { return w.events }

// Stats is a point-in-time census of the world.
type Stats struct {
	Entities     int
	Components   int
	Systems      int
	QueuedEvents int
}

func (w *World) Stats() Stats {
	return Stats{
		Entities:     w.entities.Count(),
		Components:   w.components.ComponentCount(),
		Systems:      len(w.systems),
		QueuedEvents: w.events.QueueSize(),
	}
}

// Shutdown stops all systems in reverse registration order and clears every
// manager. The World must not be used afterwards.
func (w *World) Shutdown() {
	for i := len(w.systems) - 1; i >= 0; i-- {
		w.systems[i].Shutdown()
	}
	w.systems = nil
	w.systemNames = make(map[string]struct{})
	w.events.Clear()
	w.components.Clear()
	w.entities.Clear()
	w.logger.Debug("world shut down")
}
