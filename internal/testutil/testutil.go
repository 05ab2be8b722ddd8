package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/abrezinsky/lunchbot/internal/logger"
	"github.com/abrezinsky/lunchbot/internal/models"
	"github.com/abrezinsky/lunchbot/internal/repository"
	"github.com/abrezinsky/lunchbot/internal/store"
	"github.com/abrezinsky/lunchbot/internal/weekclock"
)

// Friday of week 42 in 2026
var DefaultNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

// NewTestRepository creates a new repository on a fresh in-memory store.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	s := store.NewMemory()
	t.Cleanup(func() {
		s.Close()
	})

	return repository.New(s)
}

// SeedCatalog writes the given id -> name pairs into the option catalog.
func SeedCatalog(t *testing.T, repo repository.CatalogRepository, options map[string]string) {
	t.Helper()

	ctx := context.Background()
	for id, name := range options {
		if err := repo.SaveOption(ctx, models.Option{ID: id, Name: name}); err != nil {
			t.Fatalf("failed to seed option %s: %v", id, err)
		}
	}
}

// NewClock returns a fixed clock set to DefaultNow.
func NewClock() *weekclock.FixedClock {
	return weekclock.Fixed(DefaultNow)
}

// NewLogger returns a logger that discards everything.
func NewLogger() logger.Logger {
	return logger.Discard()
}
