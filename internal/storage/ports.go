package storage

import "context"

// Ports for the local key-value store behind the persistence adapter.
type (
	// KV is a flat key-value store. Get reports whether the key exists.
	KV interface {
		Get(ctx context.Context, key string) (value []byte, found bool, err error)
		Set(ctx context.Context, key string, value []byte) error
	}

	// TaxonomyReader lists the categories offered to users.
	TaxonomyReader interface {
		Categories(ctx context.Context) ([]string, error)
	}
)
