package systems

import (
	"github.com/simforge/simforge/internal/core/ecs"
)

// MovementSystem integrates velocity into position for every entity holding
// both components.
type MovementSystem struct {
	ecs.BaseSystem
}

func NewMovementSystem() *MovementSystem {
	return &MovementSystem{
		BaseSystem: ecs.NewBaseSystem("movement", TypePosition, TypeVelocity),
	}
}

func (s *MovementSystem) Update(deltaTime float64) {
	cm := s.Components()
	for _, id := range s.Matching() {
		dx, okX := numField(cm, id, TypeVelocity, "dx")
		dy, okY := numField(cm, id, TypeVelocity, "dy")
		if !okX || !okY {
			continue
		}
		x, _ := numField(cm, id, TypePosition, "x")
		y, _ := numField(cm, id, TypePosition, "y")
		setNumField(cm, id, TypePosition, "x", x+dx*deltaTime)
		setNumField(cm, id, TypePosition, "y", y+dy*deltaTime)
	}
}
