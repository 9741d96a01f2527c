package bovespa

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies the way a run failed or degraded.
type Kind string

const (
	KindNone                      Kind = ""
	KindSource                    Kind = "SourceError"
	KindMalformedNumber           Kind = "MalformedNumberError"
	KindMalformedDate             Kind = "MalformedDateError"
	KindPublish                   Kind = "PublishError"
	KindCatalog                   Kind = "CatalogError"
	KindPartitionDiscoveryWarning Kind = "PartitionDiscoveryWarning"
)

// ErrNotFound is returned by a Catalog when a database or table doesn't exist.
var ErrNotFound = errors.New("not found")

var (
	errNegative  = errors.New("negative value")
	errNotFinite = errors.New("value out of range")
)

// MalformedNumberError is returned when a numeric field can't be coerced into
// a non-negative finite number.
type MalformedNumberError struct {
	Row   int
	Field string
	Value string
}

func (e *MalformedNumberError) Error() string {
	return fmt.Sprintf("row %d: malformed number in %s: %q", e.Row, e.Field, e.Value)
}

// MalformedDateError is returned when the snapshot date isn't an ISO calendar
// date.
type MalformedDateError struct {
	Row   int
	Field string
	Value string
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("row %d: malformed date in %s: %q", e.Row, e.Field, e.Value)
}

// NormalizeErrors holds every field error found while normalizing a batch.
type NormalizeErrors []error

func (errs NormalizeErrors) Error() string {
	errstrings := make([]string, len(errs))
	for i, err := range errs {
		errstrings[i] = err.Error()
	}
	return fmt.Sprintf("%d malformed fields: %s", len(errs), strings.Join(errstrings, "; "))
}

// Kind reports the kind of the first error in the list.
func (errs NormalizeErrors) Kind() Kind {
	if len(errs) == 0 {
		return KindNone
	}
	return KindOf(errs[0])
}

// SourceError wraps a failure to read the raw history.
type SourceError struct{ Err error }

func (e *SourceError) Error() string { return "reading raw snapshots: " + e.Err.Error() }

// PublishError wraps any failure to write the output partition.
type PublishError struct {
	Location string
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publishing %s: %v", e.Location, e.Err)
}

// CatalogError wraps a failed catalog database or table upsert.
type CatalogError struct {
	Op  string
	Err error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

// PartitionDiscoveryWarning wraps a failed partition discovery. It never
// fails a run.
type PartitionDiscoveryWarning struct {
	Table string
	Err   error
}

func (e *PartitionDiscoveryWarning) Error() string {
	return fmt.Sprintf("discovering partitions of %s: %v", e.Table, e.Err)
}

// KindOf classifies err, looking through any pkg/errors wrapping.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	switch e := errors.Cause(err).(type) {
	case *SourceError:
		return KindSource
	case *MalformedNumberError:
		return KindMalformedNumber
	case *MalformedDateError:
		return KindMalformedDate
	case NormalizeErrors:
		return e.Kind()
	case *PublishError:
		return KindPublish
	case *CatalogError:
		return KindCatalog
	case *PartitionDiscoveryWarning:
		return KindPartitionDiscoveryWarning
	}
	return KindNone
}
