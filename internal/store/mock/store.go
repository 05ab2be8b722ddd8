package mock

import (
	"context"
	"sync"

	"github.com/abrezinsky/lunchbot/internal/store"
)

// Store wraps a real store and allows injecting errors for testing.
//
// Usage:
//
//	mockStore := mock.NewStore(store.NewMemory())
//	mockStore.SetError = errors.New("disk full")
//	repo := repository.New(mockStore)
//	// every write through repo now fails with the injected error
type Store struct {
	store.Store

	mu sync.Mutex

	GetError    error
	SetError    error
	UpdateError error

	// Block makes every call wait for its context to end and return ctx.Err()
	Block bool

	// Calls counts operations by name ("get", "set", "update")
	Calls map[string]int
}

// NewStore creates a mock store wrapping a real one
func NewStore(real store.Store) *Store {
	return &Store{Store: real, Calls: make(map[string]int)}
}

func (m *Store) record(op string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[op]++
	return m.Block
}

// CallCount returns how many times op was invoked
func (m *Store) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[op]
}

func (m *Store) Get(ctx context.Context, path string) (any, error) {
	if m.record("get") {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.GetError != nil {
		return nil, m.GetError
	}
	return m.Store.Get(ctx, path)
}

func (m *Store) Set(ctx context.Context, path string, value any) error {
	if m.record("set") {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.SetError != nil {
		return m.SetError
	}
	return m.Store.Set(ctx, path, value)
}

func (m *Store) Update(ctx context.Context, path string, fn store.UpdateFunc) error {
	if m.record("update") {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.UpdateError != nil {
		return m.UpdateError
	}
	return m.Store.Update(ctx, path, fn)
}
