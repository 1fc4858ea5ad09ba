package ecs

import (
	"fmt"

	"github.com/simforge/simforge/internal/core/events/bus"
)

// System is a unit of per-tick logic operating on entities matching a
// component signature. Systems own no entities or components; they read and
// write through the managers they were initialized with.
//
// Lifecycle: Uninitialized → Initialized → ShutDown (terminal). Update is
// driven strictly once per World.Update call, never concurrently with itself.
type System interface {
	Name() string
	RequiredComponents() []string
	Initialize(entities *EntityManager, components *ComponentManager, events bus.EventBus) error
	Update(deltaTime float64)
	Shutdown()
}

// SystemState tracks a system's lifecycle.
type SystemState uint8

const (
	StateUninitialized SystemState = iota
	StateInitialized
	StateShutDown
)

func (s SystemState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateShutDown:
		return "shutdown"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// BaseSystem carries the lifecycle bookkeeping shared by concrete systems.
// Embed it and wrap Initialize/Shutdown for setup and cleanup:
//
//	func (s *HungerSystem) Initialize(em *ecs.EntityManager, cm *ecs.ComponentManager, ev bus.EventBus) error {
//		if err := s.BaseSystem.Initialize(em, cm, ev); err != nil {
//			return err
//		}
//		s.sub = ev.Subscribe("meal.eaten", s.onMeal)
//		return nil
//	}
type BaseSystem struct {
	name     string
	required []string
	state    SystemState

	entities   *EntityManager
	components *ComponentManager
	events     bus.EventBus
}

func NewBaseSystem(name string, required ...string) BaseSystem {
	return BaseSystem{name: name, required: required}
}

func (s *BaseSystem) Name() string { return s.name }

func (s *BaseSystem) RequiredComponents() []string { return s.required }

func (s *BaseSystem) State() SystemState { return s.state }

// Initialize wires the manager handles and moves the system to Initialized.
// Initializing twice, or after shutdown, is a caller bug.
func (s *BaseSystem) Initialize(entities *EntityManager, components *ComponentManager, events bus.EventBus) error {
	if s.state != StateUninitialized {
		return fmt.Errorf("system %q: initialize in state %s", s.name, s.state)
	}
	s.entities = entities
	s.components = components
	s.events = events
	s.state = StateInitialized
	return nil
}

// Shutdown moves the system to its terminal state. A system must not be
// reused afterwards.
func (s *BaseSystem) Shutdown() {
	s.state = StateShutDown
}

// Matching returns the entities holding every required component.
func (s *BaseSystem) Matching() []EntityID {
	return s.entities.EntitiesWith(s.required...)
}

func (s *BaseSystem) Entities() *EntityManager       { return s.entities }
func (s *BaseSystem) Components() *ComponentManager  { return s.components }
func (s *BaseSystem) Events() bus.EventBus           { return s.events }
