package di

import (
	"context"
	"fmt"

	"github.com/aristath/capitol/internal/clientdata"
	"github.com/aristath/capitol/internal/config"
	"github.com/aristath/capitol/internal/events"
	"github.com/aristath/capitol/internal/modules/cycle"
	"github.com/aristath/capitol/internal/modules/portfolio"
	"github.com/aristath/capitol/internal/reliability"
	"github.com/aristath/capitol/internal/scheduler"
	"github.com/aristath/capitol/internal/work"
	"github.com/rs/zerolog"
)

// RegisterWorkTypes registers every background work type with the container's registry.
func RegisterWorkTypes(container *Container, log zerolog.Logger) {
	registry := container.WorkRegistry

	// A failed cycle is not retried; the next tick picks up whatever it missed.
	registry.Register(&work.WorkType{
		ID:         cycle.WorkTypeRun,
		Priority:   work.PriorityHigh,
		MaxRetries: 0,
		Execute: func(ctx context.Context) error {
			_, err := container.CycleRunner.RunCycle(cycle.WithTrigger(ctx, "queue"))
			return err
		},
	})

	registry.Register(&work.WorkType{
		ID:         portfolio.WorkTypeRefresh,
		Priority:   work.PriorityMedium,
		MaxRetries: 1,
		Execute: func(ctx context.Context) error {
			result := container.PortfolioService.Refresh(ctx)
			container.EventManager.EmitTyped("portfolio", &events.PricesRefreshedData{
				Updated:     result.Updated,
				Unavailable: result.Unavailable,
				TotalValue:  container.PortfolioService.Snapshot().TotalValue,
			})
			return ctx.Err()
		},
	})

	registry.Register(&work.WorkType{
		ID:         reliability.WorkTypeBackup,
		Priority:   work.PriorityLow,
		MaxRetries: 2,
		Execute: func(ctx context.Context) error {
			_, err := container.BackupService.Run(ctx)
			return err
		},
	})

	cleanup := clientdata.NewCleanupJob(container.ClientDataRepo, log)
	registry.Register(&work.WorkType{
		ID:       clientdata.WorkTypeCleanup,
		Priority: work.PriorityLow,
		Execute:  cleanup.Run,
	})

	log.Info().Int("work_types", registry.Count()).Msg("Work types registered")
}

// InitializeScheduler maps each cron expression onto an enqueue of its work type.
// An empty expression disables that schedule.
func InitializeScheduler(container *Container, schedules config.ScheduleConfig, log zerolog.Logger) error {
	container.Scheduler = scheduler.New(log)

	entries := []struct {
		schedule string
		typeID   string
	}{
		{schedules.Cycle, cycle.WorkTypeRun},
		{schedules.Refresh, portfolio.WorkTypeRefresh},
		{schedules.Backup, reliability.WorkTypeBackup},
		{schedules.CacheCleanup, clientdata.WorkTypeCleanup},
	}

	for _, e := range entries {
		if e.schedule == "" {
			continue
		}
		if err := container.Scheduler.AddJob(e.schedule, scheduler.NewEnqueueJob(e.typeID, container.WorkProcessor)); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", e.typeID, err)
		}
	}

	log.Info().Int("jobs", container.Scheduler.JobCount()).Msg("Scheduler configured")
	return nil
}
