package bovespa

import (
	"bytes"
	"context"
	"path"
	"sort"

	"github.com/golang-sql/civil"
	"github.com/pkg/errors"
)

const (
	// DefaultRefinedRoot is the key prefix all refined partitions are written
	// under.
	DefaultRefinedRoot = "refined"

	// DefaultPartFile is the name of the single object in each partition.
	DefaultPartFile = "part-00000.snappy.parquet"

	locationPrefix = "bovespa_refined_data_"
)

// Partition describes a published output partition.
type Partition struct {
	ProcessingDate civil.Date

	// Prefix is the store key of the partition's table location.
	Prefix string

	// Location is the physical URI of Prefix, used as the catalog table
	// location.
	Location string

	// Key is the store key of the data object.
	Key  string
	Rows int
}

// PartitionPrefix returns the table location key for processing date d under
// root.
func PartitionPrefix(root string, d civil.Date) string {
	return path.Join(root, locationPrefix+d.String())
}

// Publisher writes enriched records to the output partition for a processing
// date, replacing anything previously published there.
type Publisher struct {
	Store   Store
	Encoder Encoder

	// Root is the refined root key. Empty means DefaultRefinedRoot.
	Root string

	// File is the data object name. Empty means DefaultPartFile.
	File string

	Log Logger
}

func (p *Publisher) root() string {
	if p.Root == "" {
		return DefaultRefinedRoot
	}
	return p.Root
}

func (p *Publisher) file() string {
	if p.File == "" {
		return DefaultPartFile
	}
	return p.File
}

// Publish stamps every record with date and replaces the partition for date.
// The object is encoded completely in memory and written with a single Put,
// so a failure leaves whatever was there before intact. Stale objects under
// the partition are removed only after the Put succeeds.
func (p *Publisher) Publish(ctx context.Context, recs []EnrichedRecord, date civil.Date) (Partition, error) {
	log := p.Log
	if log == nil {
		log = NopLogger{}
	}
	prefix := PartitionPrefix(p.root(), date)
	part := Partition{
		ProcessingDate: date,
		Prefix:         prefix,
		Location:       p.Store.Location(prefix),
		Key:            path.Join(prefix, ColProcessingDate+"="+date.String(), p.file()),
		Rows:           len(recs),
	}
	fail := func(err error, msg string) (Partition, error) {
		return part, &PublishError{Location: part.Location, Err: errors.Wrap(err, msg)}
	}

	out := make([]OutputRecord, len(recs))
	for i, r := range recs {
		out[i] = OutputRecord{EnrichedRecord: r, ProcessingDate: date}
	}
	sort.SliceStable(out, func(i, j int) bool { return lessOutput(out[i], out[j]) })

	buf := &bytes.Buffer{}
	if err := p.Encoder.Encode(buf, out); err != nil {
		return fail(err, "encoding")
	}
	if err := p.Store.Put(ctx, part.Key, buf); err != nil {
		return fail(err, "writing "+part.Key)
	}
	log.Debugf("wrote %d rows to %s", part.Rows, part.Key)

	keys, err := p.Store.List(ctx, prefix+"/")
	if err != nil {
		return fail(err, "listing")
	}
	stale := make([]string, 0)
	for _, k := range keys {
		if k != part.Key {
			stale = append(stale, k)
		}
	}
	if len(stale) > 0 {
		if err := p.Store.Delete(ctx, stale...); err != nil {
			return fail(err, "removing stale objects")
		}
		log.Printf("removed %d stale objects from %s", len(stale), part.Location)
	}
	return part, nil
}
