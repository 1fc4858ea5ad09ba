package systems

import (
	"github.com/simforge/simforge/internal/core/ecs"
	"github.com/simforge/simforge/internal/core/events/bus"
)

// HungerSystem depletes the hunger stat of every character entity each tick
// and queues a starving event the moment a character bottoms out. The event
// goes through the deferred queue so subscribers see it at the start of the
// next tick, never mid-update.
type HungerSystem struct {
	ecs.BaseSystem
	// depletion is hunger lost per second.
	depletion float64
	starving  map[ecs.EntityID]bool
}

func NewHungerSystem(depletionPerSecond float64) *HungerSystem {
	return &HungerSystem{
		BaseSystem: ecs.NewBaseSystem("hunger", TypeCharacterInfo, TypeHunger),
		depletion:  depletionPerSecond,
		starving:   make(map[ecs.EntityID]bool),
	}
}

func (s *HungerSystem) Update(deltaTime float64) {
	cm := s.Components()
	for _, id := range s.Matching() {
		current, ok := numField(cm, id, TypeHunger, "current")
		if !ok {
			continue
		}
		current -= s.depletion * deltaTime
		if current < 0 {
			current = 0
		}
		setNumField(cm, id, TypeHunger, "current", current)

		if current == 0 && !s.starving[id] {
			s.starving[id] = true
			s.Events().Queue(bus.NewEvent(EventStarving, s.Name(), id))
		} else if current > 0 {
			delete(s.starving, id)
		}
	}
}
