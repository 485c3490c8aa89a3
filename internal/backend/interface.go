package backend

import (
	"context"

	"budget/internal/storage"
)

// Backend is the local store behind the persistence adapter.
type Backend interface {
	storage.KV
	storage.TaxonomyReader
}

// CleanupFunc releases whatever the backend holds open (the SQLite pool).
type CleanupFunc func() error

// BackendResult pairs a store with its optional cleanup.
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config selects and locates the local store.
type Config struct {
	Type BackendType

	SQLiteDBPath string

	// DataDirectory holds seed_categories.txt for the memory store.
	DataDirectory string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
