package di

import (
	"context"
	"fmt"

	"github.com/aristath/capitol/internal/config"
	"github.com/aristath/capitol/internal/work"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container.
// The work processor and scheduler are built but not started.
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	// Step 1: Initialize databases
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, err
	}

	// Step 2: Initialize repositories
	InitializeRepositories(container, log)

	// Step 3: Initialize services
	if err := InitializeServices(ctx, container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Step 4: Work processor and scheduler
	container.WorkRegistry = work.NewRegistry()
	container.WorkCompletion = work.NewCompletionTracker()
	container.WorkProcessor = work.NewProcessor(container.WorkRegistry, container.WorkCompletion)
	RegisterWorkTypes(container, log)

	if err := InitializeScheduler(container, cfg.Schedules, log); err != nil {
		container.Close()
		return nil, err
	}

	log.Info().Msg("Dependency injection wiring completed")
	return container, nil
}

// Start runs the work processor in the background and starts the scheduler.
func (c *Container) Start() {
	go c.WorkProcessor.Run()
	c.started = true
	c.Scheduler.Start()
}

// Close stops background work and releases every resource held by the container.
func (c *Container) Close() {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.started {
		c.WorkProcessor.Stop()
		c.started = false
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
	closeDatabases(c)
}
