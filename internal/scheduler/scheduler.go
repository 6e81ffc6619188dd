// Package scheduler wires up the cron job that periodically reloads every
// job from the remote store, correcting drift left by failed optimistic
// mutations.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// Reloader is the full reload the scheduler triggers.
type Reloader interface {
	LoadAll(ctx context.Context) error
}

// Scheduler wraps robfig/cron and manages the reload loop.
type Scheduler struct {
	cron   *cron.Cron
	reload Reloader
	spec   string // cron spec, e.g. "@every 15m"; empty disables ticks

	runs atomic.Int64
}

// New creates a Scheduler that fires every intervalMinutes minutes.
// Zero disables the periodic reload; Start still loads once.
func New(reload Reloader, intervalMinutes int) *Scheduler {
	spec := ""
	if intervalMinutes > 0 {
		spec = fmt.Sprintf("@every %dm", intervalMinutes)
	}
	return NewWithSpec(reload, spec)
}

// NewWithSpec creates a Scheduler with an arbitrary cron spec.
func NewWithSpec(reload Reloader, spec string) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cron.DefaultLogger),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		reload: reload,
		spec:   spec,
	}
}

// Start registers the job and starts the scheduler. Also runs one reload
// immediately so the cache is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.spec != "" {
		if _, err := s.cron.AddFunc(s.spec, func() { s.runReload(ctx) }); err != nil {
			return fmt.Errorf("cron.AddFunc: %w", err)
		}
		s.cron.Start()
		log.Printf("[scheduler] Cron started, spec: %s", s.spec)
	} else {
		log.Println("[scheduler] Periodic reload disabled")
	}

	// Run immediately on startup (non-blocking)
	go s.runReload(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for a running reload.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[scheduler] Cron stopped")
}

// Runs returns how many reloads have completed, successful or not.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

func (s *Scheduler) runReload(ctx context.Context) {
	defer s.runs.Add(1)
	if ctx.Err() != nil {
		return
	}
	if err := s.reload.LoadAll(ctx); err != nil {
		log.Printf("[scheduler] Reload error: %v", err)
		return
	}
	log.Println("[scheduler] Reload complete")
}
