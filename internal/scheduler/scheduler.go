// Package scheduler fires router triggers on cron schedules.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/abrezinsky/lunchbot/internal/errors"
	"github.com/abrezinsky/lunchbot/internal/logger"
	"github.com/abrezinsky/lunchbot/internal/router"
)

// Triggerer runs a named trigger
type Triggerer interface {
	Trigger(ctx context.Context, name string) router.TriggerResult
}

// Entry describes one scheduled trigger
type Entry struct {
	Trigger string
	Spec    string
	Next    time.Time
}

// Scheduler runs triggers on cron specs in a fixed time zone
type Scheduler struct {
	log      logger.Logger
	triggers Triggerer
	cron     *cron.Cron
	loc      *time.Location

	mu      sync.Mutex
	entries map[cron.EntryID]Entry

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler. A nil loc means UTC.
func New(log logger.Logger, triggers Triggerer, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log:      log,
		triggers: triggers,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		loc:     loc,
		entries: make(map[cron.EntryID]Entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add schedules trigger on spec, a standard 5-field cron expression or a
// descriptor like @daily. Only names in router.Triggers are accepted.
func (s *Scheduler) Add(trigger, spec string) error {
	if !known(trigger) {
		return errors.Validationf("unknown trigger %q", trigger)
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(trigger) })
	if err != nil {
		return errors.Validationf("%s schedule %q: %v", trigger, spec, err)
	}

	s.mu.Lock()
	s.entries[id] = Entry{Trigger: trigger, Spec: spec}
	s.mu.Unlock()
	return nil
}

// AddAll schedules every non-empty spec in schedules
func (s *Scheduler) AddAll(schedules map[string]string) error {
	names := make([]string, 0, len(schedules))
	for name := range schedules {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if schedules[name] == "" {
			continue
		}
		if err := s.Add(name, schedules[name]); err != nil {
			return err
		}
	}
	return nil
}

// Entries lists scheduled triggers ordered by next run
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, e := range s.cron.Entries() {
		entry, ok := s.entries[e.ID]
		if !ok {
			continue
		}
		entry.Next = e.Next
		if entry.Next.IsZero() {
			entry.Next = e.Schedule.Next(time.Now().In(s.loc))
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Next.Before(out[j].Next) })
	return out
}

func (s *Scheduler) Start() {
	for _, e := range s.Entries() {
		s.log.Info("Trigger scheduled", "trigger", e.Trigger, "spec", e.Spec, "next", e.Next)
	}
	s.cron.Start()
}

// Stop halts scheduling, cancels running triggers and waits for them to return
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
}

func (s *Scheduler) run(trigger string) {
	result := s.triggers.Trigger(s.ctx, trigger)
	if result.Err != nil {
		s.log.Warn("Scheduled trigger failed", "trigger", trigger, "error", result.Err)
		return
	}
	s.log.Info("Scheduled trigger ran", "trigger", trigger, "destination", result.Destination, "delivered", result.Delivered)
}

func known(trigger string) bool {
	for _, name := range router.Triggers() {
		if name == trigger {
			return true
		}
	}
	return false
}

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
