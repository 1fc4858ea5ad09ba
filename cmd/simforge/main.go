package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"golang.org/x/sync/errgroup"

	"github.com/simforge/simforge/internal/core/config"
	"github.com/simforge/simforge/internal/core/ecs"
	"github.com/simforge/simforge/internal/core/events/bus"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/save"
	"github.com/simforge/simforge/internal/core/schema/registry"
	"github.com/simforge/simforge/internal/core/systems"
)

func main() {
	var (
		savesDir   = flag.String("saves", "saves", "directory for local save files")
		rulesPath  = flag.String("rules", "", "archetype rules file (.yaml/.toml); built-in rules when empty")
		slot       = flag.String("slot", "autosave", "save slot key")
		tickEvery  = flag.Duration("tick", 50*time.Millisecond, "tick interval")
		saveEvery  = flag.Duration("autosave", 30*time.Second, "autosave interval")
		cloudWS    = flag.String("cloud-ws", "", "websocket cloud save endpoint (ws://...)")
		cloudPG    = flag.String("cloud-pg", "", "postgres cloud save DSN")
		profileCPU = flag.Bool("profile", false, "write a CPU profile to the working directory")
	)
	flag.Parse()

	if *profileCPU {
		defer profile.Start(profile.ProfilePath(".")).Stop()
	}

	logger := log.New(log.LevelInfo)
	if err := run(logger, *savesDir, *rulesPath, *slot, *tickEvery, *saveEvery, *cloudWS, *cloudPG); err != nil {
		logger.Error("simforge exited", log.Error(err))
		os.Exit(1)
	}
}

func run(logger log.Log, savesDir, rulesPath, slot string, tickEvery, saveEvery time.Duration, cloudWS, cloudPG string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := registry.New()
	if err := systems.RegisterGameComponents(reg); err != nil {
		return err
	}

	rules := systems.GameRules()
	if rulesPath != "" {
		loaded, err := config.LoadFile(rulesPath)
		if err != nil {
			return err
		}
		rules = loaded
	}
	if err := rules.Validate(reg); err != nil {
		return err
	}

	store, err := save.NewFileStore(savesDir)
	if err != nil {
		return err
	}

	opts := []save.Option{save.WithRules(rules), save.WithLogger(logger)}
	switch {
	case cloudWS != "":
		backend, err := save.DialWS(ctx, cloudWS)
		if err != nil {
			return err
		}
		defer backend.Close()
		opts = append(opts, save.WithCloud(backend))
	case cloudPG != "":
		backend, err := save.NewPGBackend(ctx, cloudPG)
		if err != nil {
			return err
		}
		defer backend.Close()
		opts = append(opts, save.WithCloud(backend))
	}
	saves := save.New(reg, store, opts...)

	world, err := saves.LoadLocal(ctx, slot, save.LoadOptions{VerifyChecksum: true})
	switch {
	case err == nil:
		logger.Info("world restored", log.String("slot", slot), log.Int("entities", world.Stats().Entities))
	case errors.Is(err, save.ErrNoValidSave):
		world = seedWorld(logger)
		logger.Info("starting fresh world", log.Int("entities", world.Stats().Entities))
	default:
		return err
	}

	if err = world.AddSystem(systems.NewHungerSystem(1.0)); err != nil {
		return err
	}
	if err = world.AddSystem(systems.NewMovementSystem()); err != nil {
		return err
	}
	world.Subscribe(systems.EventStarving, func(ev bus.Event) error {
		logger.Warn("character starving", log.Any("entity", ev.Data()))
		return nil
	})

	g, ctx := errgroup.WithContext(ctx)

	// Tick loop. The world is single-writer: every mutation, including the
	// periodic local autosave, happens on this goroutine.
	g.Go(func() error {
		ticker := time.NewTicker(tickEvery)
		defer ticker.Stop()
		last := time.Now()
		nextSave := time.Now().Add(saveEvery)
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				world.Update(now.Sub(last).Seconds())
				last = now
				if now.After(nextSave) {
					nextSave = now.Add(saveEvery)
					if err := saves.SaveLocal(ctx, world, slot, save.SaveOptions{Compress: true, Checksum: true}); err != nil {
						logger.Error("autosave failed", log.Error(err))
					}
				}
			}
		}
	})

	// Stats reporter; reads only the locked counters.
	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				stats := world.Stats()
				logger.Info("world stats",
					log.Int("entities", stats.Entities),
					log.Int("components", stats.Components),
					log.Int("systems", stats.Systems),
					log.Int("queued_events", stats.QueuedEvents),
				)
			}
		}
	})

	if err = g.Wait(); err != nil {
		return err
	}

	// Final save with a fresh context; the signal context is already done.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer saveCancel()
	if err = saves.SaveLocal(saveCtx, world, slot, save.SaveOptions{Compress: true, Checksum: true}); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	logger.Info("world saved", log.String("slot", slot))
	world.Shutdown()
	return nil
}

// seedWorld builds the demo scene used when no save exists yet.
func seedWorld(logger log.Log) *ecs.World {
	w := ecs.NewWorld(ecs.WithLogger(logger))

	hero := w.CreateEntity()
	w.AddComponent(hero.ID, systems.TypeCharacterInfo, map[string]any{"name": "Aldric"})
	w.AddComponent(hero.ID, systems.TypeHunger, map[string]any{"current": 100.0, "maximum": 100.0})
	w.AddComponent(hero.ID, systems.TypePosition, map[string]any{"x": 0.0, "y": 0.0})
	w.AddComponent(hero.ID, systems.TypeVelocity, map[string]any{"dx": 0.5, "dy": 0.25})

	crate := w.CreateEntity()
	w.AddComponent(crate.ID, systems.TypePosition, map[string]any{"x": 4.0, "y": 4.0})

	return w
}
