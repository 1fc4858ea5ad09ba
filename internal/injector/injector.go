//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/simforge/simforge/internal/core/ecs"
	"github.com/simforge/simforge/internal/core/observability/log"
)

func ProvideLogger() *log.Logger {
	wire.Build(log.Provide)
	return log.New(log.LevelDebug)
}

func ProvideWorld() *ecs.World {
	wire.Build(log.Provide, newWorld)
	return nil
}

func newWorld(l *log.Logger) *ecs.World {
	return ecs.NewWorld(ecs.WithLogger(l))
}
