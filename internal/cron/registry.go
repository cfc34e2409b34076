package cron

import (
	"context"
	"fmt"
	"time"
)

// Job is one maintenance task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule binds a job to its cadence. A zero Every runs the job on every
// cycle.
type Schedule struct {
	Job   Job
	Every time.Duration
}

type entry struct {
	Schedule
	lastRun time.Time
}

// Registry remembers when each job last ran in this process.
type Registry struct {
	entries []*entry
	names   map[string]struct{}
}

func NewRegistry(schedules ...Schedule) (*Registry, error) {
	r := &Registry{names: map[string]struct{}{}}
	for _, s := range schedules {
		if err := r.Add(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a schedule. Job names must be unique; they label metrics.
func (r *Registry) Add(s Schedule) error {
	if s.Job == nil {
		return fmt.Errorf("schedule without job")
	}
	if s.Every < 0 {
		return fmt.Errorf("job %s: negative cadence", s.Job.Name())
	}
	if _, dup := r.names[s.Job.Name()]; dup {
		return fmt.Errorf("job %s registered twice", s.Job.Name())
	}
	r.names[s.Job.Name()] = struct{}{}
	r.entries = append(r.entries, &entry{Schedule: s})
	return nil
}

// Due lists the jobs whose cadence has elapsed at now, in registration order.
func (r *Registry) Due(now time.Time) []Job {
	var due []Job
	for _, e := range r.entries {
		if e.lastRun.IsZero() || e.Every == 0 || now.Sub(e.lastRun) >= e.Every {
			due = append(due, e.Job)
		}
	}
	return due
}

// MarkRan records a finished attempt. Failed attempts count too so a broken
// job does not run on every tick.
func (r *Registry) MarkRan(name string, at time.Time) {
	for _, e := range r.entries {
		if e.Job.Name() == name {
			e.lastRun = at
			return
		}
	}
}

func (r *Registry) Len() int { return len(r.entries) }
