// Package trigger launches refine runs when new raw snapshot objects land in
// object storage. It understands S3 event notifications, delivered either as
// a single document or as messages on a Kafka topic.
package trigger

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/pilosa/bovespa"
	"github.com/pkg/errors"
)

// Event is the part of an S3 event notification a run needs.
type Event struct {
	Bucket string
	Key    string
}

type notification struct {
	Records []struct {
		S3 struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// Parse decodes an S3 event notification and returns its first record.
// Object keys arrive URL encoded and are decoded.
func Parse(data []byte) (Event, error) {
	var n notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Event{}, errors.Wrap(err, "decoding event")
	}
	if len(n.Records) == 0 {
		return Event{}, errors.New("event has no records")
	}
	rec := n.Records[0].S3
	if rec.Bucket.Name == "" || rec.Object.Key == "" {
		return Event{}, errors.New("event record has no bucket or key")
	}
	key, err := url.QueryUnescape(rec.Object.Key)
	if err != nil {
		return Event{}, errors.Wrapf(err, "unescaping key %s", rec.Object.Key)
	}
	return Event{Bucket: rec.Bucket.Name, Key: key}, nil
}

// RawPath is the s3:// URI of the event's object.
func (e Event) RawPath() string {
	return "s3://" + e.Bucket + "/" + e.Key
}

// Partition returns the folder the object sits in, which the extractor names
// after the snapshot date: raw/2024-01-02/bovespa_2024-01-02.parquet gives
// 2024-01-02.
func (e Event) Partition() (string, error) {
	parts := strings.Split(e.Key, "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" {
		return "", errors.Errorf("key %s has no partition folder", e.Key)
	}
	return parts[len(parts)-2], nil
}

// Override builds the run override for the event.
func (e Event) Override() (bovespa.Override, error) {
	p, err := e.Partition()
	if err != nil {
		return bovespa.Override{}, err
	}
	return bovespa.Override{RawPath: e.RawPath(), PartitionDate: p}, nil
}

// Runner runs a refine. *bovespa.Job implements it.
type Runner interface {
	Run(ctx context.Context, o bovespa.Override) bovespa.Result
}

// Handler turns event documents into refine runs.
type Handler struct {
	Runner Runner

	// Prefix and Suffix, if set, restrict which object keys start a run.
	Prefix string
	Suffix string

	Log bovespa.Logger
}

// ErrIgnored is returned by Handle for events whose key doesn't pass the
// Handler's filters.
var ErrIgnored = errors.New("event ignored")

// Handle parses data as an S3 event notification and runs a refine for it.
// An error means no run was started; a failed run is reported in the Result.
func (h *Handler) Handle(ctx context.Context, data []byte) (bovespa.Result, error) {
	log := h.Log
	if log == nil {
		log = bovespa.NopLogger{}
	}
	ev, err := Parse(data)
	if err != nil {
		return bovespa.Result{}, err
	}
	if !strings.HasPrefix(ev.Key, h.Prefix) || !strings.HasSuffix(ev.Key, h.Suffix) {
		log.Debugf("ignoring %s", ev.RawPath())
		return bovespa.Result{}, ErrIgnored
	}
	o, err := ev.Override()
	if err != nil {
		return bovespa.Result{}, err
	}
	log.Printf("new raw object %s, starting refine", o.RawPath)
	return h.Runner.Run(ctx, o), nil
}
