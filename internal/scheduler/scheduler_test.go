package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/abrezinsky/lunchbot/internal/errors"
	"github.com/abrezinsky/lunchbot/internal/router"
	"github.com/abrezinsky/lunchbot/internal/scheduler"
	"github.com/abrezinsky/lunchbot/internal/testutil"
)

type fakeTriggerer struct {
	fired chan string
}

func newFakeTriggerer() *fakeTriggerer {
	return &fakeTriggerer{fired: make(chan string, 16)}
}

func (f *fakeTriggerer) Trigger(ctx context.Context, name string) router.TriggerResult {
	f.fired <- name
	return router.TriggerResult{Name: name, Delivered: true}
}

func TestAdd_Validation(t *testing.T) {
	s := scheduler.New(testutil.NewLogger(), newFakeTriggerer(), time.UTC)

	tests := []struct {
		name    string
		trigger string
		spec    string
		wantErr bool
	}{
		{"weekly", "start-survey", "0 9 * * MON", false},
		{"descriptor", "nag", "@daily", false},
		{"unknown trigger", "reboot", "0 9 * * MON", true},
		{"bad spec", "booked", "tomorrow", true},
		{"seconds field", "stop-survey", "0 0 12 * * THU", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Add(tt.trigger, tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Add() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.IsKind(err, errors.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAddAll_SkipsDisabled(t *testing.T) {
	s := scheduler.New(testutil.NewLogger(), newFakeTriggerer(), time.UTC)

	err := s.AddAll(map[string]string{
		"start-survey": "0 9 * * MON",
		"stop-survey":  "0 12 * * THU",
		"nag":          "",
	})
	if err != nil {
		t.Fatalf("AddAll failed: %v", err)
	}

	entries := s.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	for _, e := range entries {
		if e.Next.IsZero() {
			t.Errorf("expected next run for %s", e.Trigger)
		}
	}
	if !entries[0].Next.Before(entries[1].Next) && !entries[0].Next.Equal(entries[1].Next) {
		t.Errorf("entries not ordered by next run: %+v", entries)
	}
}

func TestEntries_UsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Skipf("time zone data unavailable: %v", err)
	}
	s := scheduler.New(testutil.NewLogger(), newFakeTriggerer(), loc)
	if err := s.Add("start-survey", "0 9 * * MON"); err != nil {
		t.Fatal(err)
	}

	next := s.Entries()[0].Next.In(loc)
	if next.Weekday() != time.Monday || next.Hour() != 9 || next.Minute() != 0 {
		t.Errorf("expected Monday 09:00 Sydney time, got %s", next)
	}
}

func TestStart_RunsTrigger(t *testing.T) {
	fake := newFakeTriggerer()
	s := scheduler.New(testutil.NewLogger(), fake, nil)
	if err := s.Add("nag", "@every 1s"); err != nil {
		t.Fatal(err)
	}

	s.Start()
	defer s.Stop()

	select {
	case name := <-fake.fired:
		if name != "nag" {
			t.Errorf("expected nag, got %s", name)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("trigger did not fire")
	}
}

func TestStop_WithoutStart(t *testing.T) {
	s := scheduler.New(testutil.NewLogger(), newFakeTriggerer(), nil)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked")
	}
}
