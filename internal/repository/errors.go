package repository

import "errors"

// ErrNotFound is returned when a requested document is not in the store.
// This abstracts away the underlying storage implementation (memory, SQLite,
// Redis) from the service layer.
var ErrNotFound = errors.New("record not found")
