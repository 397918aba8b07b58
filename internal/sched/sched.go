// Package sched runs the bot's periodic maintenance jobs on a cron
// schedule: the user-cache write-back flush and the storage liveness
// probe.
package sched

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pixelbot/pkg/logx"
)

// Job is a maintenance task executed on a schedule.
type Job func(ctx context.Context) error

type jobDef struct {
	name    string
	spec    string
	timeout time.Duration
	run     Job
}

// Runner wraps a cron scheduler with named jobs and per-run timeouts.
// Jobs are registered before Start; a job whose previous run is still
// in flight is skipped.
type Runner struct {
	log logx.Logger

	mu      sync.Mutex
	defs    []jobDef
	c       *cron.Cron
	running map[string]bool
}

func New(log logx.Logger) *Runner {
	return &Runner{log: log, running: make(map[string]bool)}
}

// Add registers a named job. spec accepts standard five-field cron
// expressions and the @every / @hourly descriptors.
func (r *Runner) Add(name, spec string, timeout time.Duration, job Job) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("sched: name required")
	}
	if strings.TrimSpace(spec) == "" {
		return errors.New("sched: spec required")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return errors.New("sched: runner already started")
	}
	r.defs = append(r.defs, jobDef{name: name, spec: spec, timeout: timeout, run: job})
	return nil
}

// Start schedules every registered job and begins firing them. Jobs run
// until Stop or until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return errors.New("sched: runner already started")
	}
	c := cron.New()
	for _, d := range r.defs {
		d := d
		if _, err := c.AddFunc(d.spec, func() { r.fire(ctx, d) }); err != nil {
			return err
		}
		r.log.Debug("job scheduled", logx.String("name", d.name), logx.String("spec", d.spec))
	}
	c.Start()
	r.c = c
	return nil
}

// Stop halts the scheduler and waits for in-flight runs to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

func (r *Runner) fire(ctx context.Context, d jobDef) {
	r.mu.Lock()
	if r.running[d.name] {
		r.mu.Unlock()
		r.log.Debug("job still running, skipped", logx.String("name", d.name))
		return
	}
	r.running[d.name] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.running, d.name)
		r.mu.Unlock()
	}()

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if d.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d.timeout)
	}
	defer cancel()

	start := time.Now()
	if err := d.run(runCtx); err != nil {
		r.log.Warn("job failed", logx.String("name", d.name), logx.Err(err))
		return
	}
	r.log.Debug("job done", logx.String("name", d.name), logx.Duration("took", time.Since(start)))
}
