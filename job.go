package bovespa

import (
	"context"
	"time"

	"github.com/golang-sql/civil"
)

// Status is the outcome of a run.
type Status string

const (
	Success             Status = "Success"
	SuccessWithWarnings Status = "SuccessWithWarnings"
	Failed              Status = "Failed"
)

// Override carries the raw object that triggered a run. The run still reads
// the full raw history; the override is logged and kept in the Result.
type Override struct {
	RawPath       string `json:"rawPath,omitempty"`
	PartitionDate string `json:"partitionDate,omitempty"`
}

// IsZero reports whether o carries nothing.
func (o Override) IsZero() bool {
	return o.RawPath == "" && o.PartitionDate == ""
}

// Result is the report of one run.
type Result struct {
	ProcessingDate string    `json:"processingDate"`
	Status         Status    `json:"status"`
	Kind           Kind      `json:"kind,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	RawRows        int       `json:"rawRows"`
	Rows           int       `json:"rows"`
	Location       string    `json:"location,omitempty"`
	Warnings       []string  `json:"warnings,omitempty"`
	Trigger        *Override `json:"trigger,omitempty"`
	Started        time.Time `json:"started"`
	Finished       time.Time `json:"finished"`
}

// Job runs the refine pipeline end to end.
type Job struct {
	Source     Source
	Normalizer Normalizer
	Aggregator Aggregator
	Publisher  *Publisher
	Registrar  *Registrar

	// Ledger, if set, records every Result.
	Ledger Ledger

	Stats Statter
	Log   Logger

	// Now defaults to time.Now and Location to UTC; together they determine
	// the processing date.
	Now      func() time.Time
	Location *time.Location
}

func (j *Job) setup() {
	if j.Log == nil {
		j.Log = NopLogger{}
	}
	if j.Stats == nil {
		j.Stats = NopStatter{}
	}
	if j.Now == nil {
		j.Now = time.Now
	}
	if j.Location == nil {
		j.Location = time.UTC
	}
	if j.Publisher.Log == nil {
		j.Publisher.Log = j.Log
	}
	if j.Registrar.Log == nil {
		j.Registrar.Log = j.Log
	}
}

// ProcessingDate is the calendar date of t in j's location.
func (j *Job) ProcessingDate(t time.Time) civil.Date {
	loc := j.Location
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(t.In(loc))
}

// Run reads every raw snapshot, refines it, publishes the partition for
// today's processing date and registers it in the catalog. Run never
// returns early without a Result; failures are reported in it.
func (j *Job) Run(ctx context.Context, o Override) Result {
	j.setup()
	started := j.Now()
	date := j.ProcessingDate(started)
	res := Result{
		ProcessingDate: date.String(),
		Started:        started,
	}
	if !o.IsZero() {
		trig := o
		res.Trigger = &trig
		j.Log.Printf("run triggered by %s (partition %s)", o.RawPath, o.PartitionDate)
	}
	j.Log.Printf("refining for processing date %s", res.ProcessingDate)

	err := j.run(ctx, date, o, &res)
	res.Finished = j.Now()
	switch {
	case err != nil:
		res.Status = Failed
		res.Kind = KindOf(err)
		res.Detail = err.Error()
		j.Log.Printf("run %s failed: %s: %v", res.ProcessingDate, res.Kind, err)
	case len(res.Warnings) > 0:
		res.Status = SuccessWithWarnings
		res.Kind = KindPartitionDiscoveryWarning
		j.Log.Printf("run %s succeeded with %d warnings", res.ProcessingDate, len(res.Warnings))
	default:
		res.Status = Success
		j.Log.Printf("run %s succeeded: %d rows at %s", res.ProcessingDate, res.Rows, res.Location)
	}
	j.Stats.Count("run."+string(res.Status), 1, 1)
	j.Stats.Timing("run", res.Finished.Sub(started), 1)

	if j.Ledger != nil {
		if err := j.Ledger.Record(res); err != nil {
			j.Log.Printf("recording run result: %v", err)
		}
	}
	if f, ok := j.Stats.(Flusher); ok {
		if err := f.Flush(); err != nil {
			j.Log.Printf("flushing stats: %v", err)
		}
	}
	return res
}

func (j *Job) run(ctx context.Context, date civil.Date, o Override, res *Result) error {
	var raws []RawRecord
	err := j.timed("read", func() (err error) {
		raws, err = j.Source.Records(ctx)
		if err != nil {
			return &SourceError{Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}
	res.RawRows = len(raws)
	j.Stats.Count("records.raw", int64(len(raws)), 1)
	j.Log.Debugf("read %d raw records", len(raws))

	var recs []Record
	err = j.timed("normalize", func() (err error) {
		recs, err = j.Normalizer.Normalize(raws)
		return err
	})
	if err != nil {
		return err
	}
	if o.PartitionDate != "" && !hasSnapshot(recs, o.PartitionDate) {
		j.Log.Printf("WARNING triggering partition %s has no snapshot in the raw history", o.PartitionDate)
	}

	start := j.Now()
	enriched := j.Aggregator.Aggregate(recs)
	j.Stats.Timing("step.aggregate", j.Now().Sub(start), 1)

	var part Partition
	err = j.timed("publish", func() (err error) {
		part, err = j.Publisher.Publish(ctx, enriched, date)
		return err
	})
	if err != nil {
		return err
	}
	res.Rows = part.Rows
	res.Location = part.Location
	j.Stats.Count("records.published", int64(part.Rows), 1)

	var reg Registration
	err = j.timed("register", func() (err error) {
		reg, err = j.Registrar.Register(ctx, part)
		return err
	})
	if err != nil {
		return err
	}
	if reg.Warning != nil {
		res.Warnings = append(res.Warnings, reg.Warning.Error())
	}
	return nil
}

func (j *Job) timed(step string, fn func() error) error {
	start := j.Now()
	err := fn()
	j.Stats.Timing("step."+step, j.Now().Sub(start), 1)
	return err
}

func hasSnapshot(recs []Record, date string) bool {
	for _, r := range recs {
		if r.SnapshotDate.String() == date {
			return true
		}
	}
	return false
}
