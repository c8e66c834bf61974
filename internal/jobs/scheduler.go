// Package jobs runs the periodic maintenance tasks: expiring idle
// sessions and sweeping synthesized audio clips.
package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Runner wraps the gocron scheduler for fixed-interval jobs.
type Runner struct {
	scheduler gocron.Scheduler
}

func NewRunner() (*Runner, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Runner{scheduler: scheduler}, nil
}

// Every registers a task to run at a fixed interval.
func (r *Runner) Every(name string, interval time.Duration, task func()) error {
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	log.Printf("⏰ [JOBS] Scheduled %s every %v", name, interval)
	return nil
}

// Start begins running registered jobs.
func (r *Runner) Start() {
	r.scheduler.Start()
	log.Println("✅ [JOBS] Scheduler started")
}

// Stop shuts the scheduler down and waits for running jobs.
func (r *Runner) Stop() error {
	log.Println("⏹️ [JOBS] Stopping scheduler...")
	return r.scheduler.Shutdown()
}
