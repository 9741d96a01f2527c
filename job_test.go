package bovespa_test

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/pilosa/bovespa"
	"github.com/pilosa/bovespa/mock"
	"github.com/pilosa/bovespa/test"
	"github.com/pkg/errors"
)

type memLedger struct {
	results []bovespa.Result
}

func (l *memLedger) Record(res bovespa.Result) error {
	l.results = append(l.results, res)
	return nil
}

type jobFixture struct {
	job    *bovespa.Job
	store  *mock.Store
	cat    *mock.Catalog
	stats  *mock.RecordingStatter
	ledger *memLedger
	logs   *bytes.Buffer
}

func newJobFixture(raws []bovespa.RawRecord) *jobFixture {
	f := &jobFixture{
		store:  mock.NewStore(),
		cat:    mock.NewCatalog(),
		stats:  &mock.RecordingStatter{},
		ledger: &memLedger{},
		logs:   &bytes.Buffer{},
	}
	now := time.Date(2024, 3, 1, 21, 30, 0, 0, time.UTC)
	f.job = &bovespa.Job{
		Source: bovespa.SourceFunc(func(ctx context.Context) ([]bovespa.RawRecord, error) {
			return raws, nil
		}),
		Publisher: &bovespa.Publisher{Store: f.store, Encoder: mock.Encoder{}},
		Registrar: &bovespa.Registrar{Catalog: f.cat},
		Ledger:    f.ledger,
		Stats:     f.stats,
		Log:       bovespa.StdLogger{Logger: log.New(f.logs, "", 0)},
		Now:       func() time.Time { return now },
	}
	return f
}

func history() []bovespa.RawRecord {
	return []bovespa.RawRecord{
		test.Raw("PETR4", "PETR4", "ON", "7,8", "100", "2024-01-01"),
		test.Raw("PETR4", "PETR4", "ON", "7,9", "300", "2024-01-02"),
		test.Raw("VALE3", "VALE3", "ON", "12,345", "10", "2024-01-02"),
		test.Raw("VALE3", "VALE3", "ON", "12,345", "20", "2024-01-02"),
		test.Raw("VALE3", "VALE3", "ON", "12,345", "30", "2024-01-02"),
	}
}

func TestJobRunSuccess(t *testing.T) {
	f := newJobFixture(history())
	res := f.job.Run(context.Background(), bovespa.Override{})

	test.MustBe(t, bovespa.Success, res.Status, res.Detail)
	test.MustBe(t, "2024-03-01", res.ProcessingDate)
	test.MustBe(t, 5, res.RawRows)
	test.MustBe(t, 5, res.Rows)
	test.MustBe(t, "mem://refined/bovespa_refined_data_2024-03-01", res.Location)
	if res.Trigger != nil {
		t.Errorf("unexpected trigger %v", res.Trigger)
	}

	data, ok := f.store.Object("refined/bovespa_refined_data_2024-03-01/dataproc=2024-03-01/part-00000.snappy.parquet")
	if !ok {
		t.Fatal("partition not published")
	}
	for _, want := range []string{
		"PETR4|PETR4|ON|7.8|100|2024-01-01|1|400|2024-03-01",
		"PETR4|PETR4|ON|7.9|300|2024-01-02|1|400|2024-03-01",
		"VALE3|VALE3|ON|12.345|10|2024-01-02|3|60|2024-03-01",
	} {
		if !strings.Contains(string(data), want+"\n") {
			t.Errorf("missing row %s in\n%s", want, data)
		}
	}

	test.MustBe(t, "mem://refined/bovespa_refined_data_2024-03-01", f.cat.Tables["bovespa_db.tb_refined_data"].Location)
	test.MustBe(t, int64(5), f.stats.Counts["records.raw"])
	test.MustBe(t, int64(5), f.stats.Counts["records.published"])
	test.MustBe(t, int64(1), f.stats.Counts["run.Success"])
	test.MustBe(t, 1, f.stats.Timings["step.aggregate"])
	test.MustBe(t, 1, f.stats.Timings["step.publish"])
	test.MustBe(t, 1, f.stats.Flushes)
	test.MustBe(t, 1, len(f.ledger.results))
	test.MustBe(t, res, f.ledger.results[0])
}

func TestJobRunTwiceIsIdempotent(t *testing.T) {
	f := newJobFixture(history())
	f.job.Run(context.Background(), bovespa.Override{})
	key := "refined/bovespa_refined_data_2024-03-01/dataproc=2024-03-01/part-00000.snappy.parquet"
	first, _ := f.store.Object(key)
	res := f.job.Run(context.Background(), bovespa.Override{})
	test.MustBe(t, bovespa.Success, res.Status)
	second, _ := f.store.Object(key)
	test.MustBe(t, string(first), string(second))
	test.MustBe(t, 1, len(f.cat.Tables))
}

func TestJobRunOverride(t *testing.T) {
	f := newJobFixture(history())
	o := bovespa.Override{RawPath: "s3://raw/raw/2024-01-09/bovespa_2024-01-09.parquet", PartitionDate: "2024-01-09"}
	res := f.job.Run(context.Background(), o)
	test.MustBe(t, bovespa.Success, res.Status)
	test.MustBe(t, &o, res.Trigger)
	test.MustBe(t, 5, res.Rows, "full history is still read")
	if !strings.Contains(f.logs.String(), "2024-01-09 has no snapshot") {
		t.Errorf("expected missing snapshot warning in logs:\n%s", f.logs)
	}
}

func TestJobRunFailures(t *testing.T) {
	tests := []struct {
		name    string
		raws    []bovespa.RawRecord
		mutate  func(f *jobFixture)
		kind    bovespa.Kind
		written bool
	}{
		{
			name: "source",
			mutate: func(f *jobFixture) {
				f.job.Source = bovespa.SourceFunc(func(ctx context.Context) ([]bovespa.RawRecord, error) {
					return nil, errors.New("no bucket")
				})
			},
			kind: bovespa.KindSource,
		},
		{
			name: "malformed number",
			raws: append(history(), test.Raw("X", "X", "ON", "1", "many", "2024-01-02")),
			kind: bovespa.KindMalformedNumber,
		},
		{
			name: "malformed date",
			raws: append(history(), test.Raw("X", "X", "ON", "1", "1", "02/01/2024")),
			kind: bovespa.KindMalformedDate,
		},
		{
			name:   "publish",
			raws:   history(),
			mutate: func(f *jobFixture) { f.store.FailPut = errors.New("denied") },
			kind:   bovespa.KindPublish,
		},
		{
			name:    "catalog",
			raws:    history(),
			mutate:  func(f *jobFixture) { f.cat.FailCreateTable = errors.New("denied") },
			kind:    bovespa.KindCatalog,
			written: true,
		},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			f := newJobFixture(tst.raws)
			if tst.mutate != nil {
				tst.mutate(f)
			}
			res := f.job.Run(context.Background(), bovespa.Override{})
			test.MustBe(t, bovespa.Failed, res.Status)
			test.MustBe(t, tst.kind, res.Kind, res.Detail)
			test.MustBe(t, tst.written, f.store.Puts > 0, "written")
			if tst.kind != bovespa.KindCatalog {
				test.MustBe(t, 0, len(f.cat.Tables), "registered after failure")
			}
			test.MustBe(t, int64(1), f.stats.Counts["run.Failed"])
			test.MustBe(t, bovespa.Failed, f.ledger.results[0].Status)
		})
	}
}

func TestJobRunDiscoveryWarning(t *testing.T) {
	f := newJobFixture(history())
	f.cat.FailDiscover = errors.New("repair timed out")
	res := f.job.Run(context.Background(), bovespa.Override{})
	test.MustBe(t, bovespa.SuccessWithWarnings, res.Status)
	test.MustBe(t, bovespa.KindPartitionDiscoveryWarning, res.Kind)
	test.MustBe(t, 1, len(res.Warnings))
	test.MustBe(t, 5, res.Rows)
}

func TestJobProcessingDateLocation(t *testing.T) {
	f := newJobFixture(history())
	sp, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}
	f.job.Location = sp
	// 21:30 UTC on 2024-03-01 is still 2024-03-01 in Sao Paulo, 01:30 UTC is not.
	f.job.Now = func() time.Time { return time.Date(2024, 3, 2, 1, 30, 0, 0, time.UTC) }
	res := f.job.Run(context.Background(), bovespa.Override{})
	test.MustBe(t, "2024-03-01", res.ProcessingDate)
}
