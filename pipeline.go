package bovespa

import (
	"context"
	"io"
)

// Store is the interface for the object storage that holds both the raw
// snapshots and the refined partitions. Keys are slash separated and relative
// to whatever root the Store was configured with.
type Store interface {
	// Put writes the full contents of r to key. A Put must be atomic: readers
	// see either the previous object or the new one, never a partial write.
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns every key under prefix, recursively, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, keys ...string) error

	// Location returns the physical URI for key, e.g. s3://bucket/key.
	Location(key string) string

	// Key is the inverse of Location.
	Key(location string) (string, error)
}

// Encoder is the interface for serializing refined records into a columnar
// object.
type Encoder interface {
	Encode(w io.Writer, recs []OutputRecord) error
}

// Ledger is the interface for durably recording run results.
type Ledger interface {
	Record(res Result) error
}
