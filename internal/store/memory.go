package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Used in tests and for single-process
// deployments that can afford to lose state on restart.
type Memory struct {
	mu   sync.Mutex
	rows map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{rows: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, path string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return build(Clean(path), m.rows)
}

func (m *Memory) Set(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set(Clean(path), value)
}

func (m *Memory) Update(ctx context.Context, path string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := build(path, m.rows)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return m.set(path, next)
}

func (m *Memory) Close() error { return nil }

func (m *Memory) set(path string, value any) error {
	leaves, err := flatten(path, value)
	if err != nil {
		return err
	}
	existing := make([]string, 0, len(m.rows))
	for row := range m.rows {
		existing = append(existing, row)
	}
	for _, row := range replaced(path, existing) {
		delete(m.rows, row)
	}
	for row, raw := range leaves {
		m.rows[row] = raw
	}
	return nil
}
