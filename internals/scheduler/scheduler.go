// Package scheduler owns the process-wide cron runner for background jobs.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron *cron.Cron
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
	}
}

// Add registers fn under a cron spec such as "@every 60s" or "15 2 * * *".
func (s *Scheduler) Add(name, spec string, fn func()) error {
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	log.Printf("[SCHEDULER] %s scheduled %q", name, spec)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[SCHEDULER] started")
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		log.Println("[SCHEDULER] stopped")
	case <-ctx.Done():
		log.Println("[SCHEDULER] stop timed out, jobs still running")
	}
}
