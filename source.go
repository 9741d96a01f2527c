package bovespa

import (
	"context"
)

// Source is the interface for getting every raw snapshot record that has
// ever been written. Implementations read the whole raw history on each call;
// a refine run never reads incrementally.
type Source interface {
	Records(ctx context.Context) ([]RawRecord, error)
}

// SourceFunc can be wrapped around a function to make it implement the Source
// interface. Similar to http.HandlerFunc.
type SourceFunc func(ctx context.Context) ([]RawRecord, error)

// Records implements Source for SourceFunc.
func (f SourceFunc) Records(ctx context.Context) ([]RawRecord, error) {
	return f(ctx)
}
