package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pilosa/bovespa"
	"github.com/pilosa/bovespa/parquetio"
	"github.com/pilosa/bovespa/test"
)

func newTestMain(t *testing.T) (*Main, *bytes.Buffer, func()) {
	t.Helper()
	dir, cleanup := test.TempDir(t, "refine")
	out := &bytes.Buffer{}
	m := NewMain()
	m.Dir = filepath.Join(dir, "data")
	m.CatalogPath = filepath.Join(dir, "catalog.db")
	m.LedgerPath = filepath.Join(dir, "ledger")
	m.LogPath = filepath.Join(dir, "bovespa.log")
	m.Stats = "none"
	m.Stdout = out
	return m, out, func() { m.Close(); cleanup() }
}

func putRaw(t *testing.T, m *Main, key string, rows ...parquetio.RawRow) {
	t.Helper()
	buf := &bytes.Buffer{}
	test.ErrNil(t, parquetio.WriteRaw(buf, rows), "writing raw")
	test.ErrNil(t, m.ObjectStore().Put(context.Background(), key, buf), "putting raw")
}

func TestRefine(t *testing.T) {
	m, out, cleanup := newTestMain(t)
	defer cleanup()
	test.ErrNil(t, m.Setup(), "setup")
	putRaw(t, m, "raw/2024-01-01/bovespa_2024-01-01.parquet",
		parquetio.RawRow{Cod: "PETR4", Asset: "PETROBRAS", Type: "PN", Part: "7,8", TheoricalQty: "100", PregaoDate: "2024-01-01"})
	putRaw(t, m, "raw/2024-01-02/bovespa_2024-01-02.parquet",
		parquetio.RawRow{Cod: "PETR4", Asset: "PETROBRAS", Type: "PN", Part: "7,9", TheoricalQty: "300", PregaoDate: "2024-01-02"},
		parquetio.RawRow{Cod: "VALE3", Asset: "VALE", Type: "ON", Part: "12,3", TheoricalQty: "50", PregaoDate: "2024-01-02"})

	res, err := m.Refine(context.Background(), bovespa.Override{})
	test.ErrNil(t, err, "refining")
	test.MustBe(t, bovespa.Success, res.Status, res.Detail)
	test.MustBe(t, 3, res.Rows)
	if !strings.HasPrefix(res.Location, "file://") || !strings.Contains(res.Location, "refined/bovespa_refined_data_"+res.ProcessingDate) {
		t.Fatalf("unexpected location %s", res.Location)
	}

	var printed bovespa.Result
	test.ErrNil(t, json.Unmarshal(out.Bytes(), &printed), "decoding printed result")
	test.MustBe(t, res.ProcessingDate, printed.ProcessingDate)
	test.MustBe(t, bovespa.Success, printed.Status)

	job, err := m.Job()
	test.ErrNil(t, err, "getting job")
	part := filepath.Join("refined", "bovespa_refined_data_"+res.ProcessingDate, "dataproc="+res.ProcessingDate, bovespa.DefaultPartFile)
	data, err := job.Publisher.Store.Get(context.Background(), filepath.ToSlash(part))
	test.ErrNil(t, err, "reading partition")
	rows, err := parquetio.Decode(data)
	test.ErrNil(t, err, "decoding partition")
	test.MustBe(t, 3, len(rows))
}

func TestRefineFailureIsError(t *testing.T) {
	m, out, cleanup := newTestMain(t)
	defer cleanup()
	test.ErrNil(t, m.Setup(), "setup")
	putRaw(t, m, "raw/2024-01-01/bovespa_2024-01-01.parquet",
		parquetio.RawRow{Cod: "PETR4", Asset: "PETROBRAS", Type: "PN", Part: "a lot", TheoricalQty: "100", PregaoDate: "2024-01-01"})

	res, err := m.Refine(context.Background(), bovespa.Override{})
	if err == nil {
		t.Fatal("expected failed run to be an error")
	}
	test.MustBe(t, bovespa.KindMalformedNumber, res.Kind)
	if !strings.Contains(out.String(), `"status":"Failed"`) {
		t.Fatalf("failed result not printed: %s", out)
	}
}

func TestSetupValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Main)
	}{
		{name: "store", mutate: func(m *Main) { m.Store = "ftp" }},
		{name: "s3 without bucket", mutate: func(m *Main) { m.Store = "s3" }},
		{name: "timezone", mutate: func(m *Main) { m.Timezone = "Mars/Olympus" }},
		{name: "catalog", mutate: func(m *Main) { m.Catalog = "hive" }},
		{name: "entity", mutate: func(m *Main) { m.Entity = "ticker" }},
		{name: "stats", mutate: func(m *Main) { m.Stats = "graphite" }},
		{name: "raw format", mutate: func(m *Main) { m.RawFormat = "avro" }},
		{name: "csv comma", mutate: func(m *Main) { m.RawFormat, m.CsvComma = "csv", ";;" }},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			m, _, cleanup := newTestMain(t)
			defer cleanup()
			tst.mutate(m)
			if _, err := m.Job(); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}

func TestRefineCSV(t *testing.T) {
	m, _, cleanup := newTestMain(t)
	defer cleanup()
	m.RawFormat = "csv"
	m.CsvComma = ";"
	test.ErrNil(t, m.Setup(), "setup")
	raw := "cod;asset;type;part;theoricalQty;pregao_date\nPETR4;PETROBRAS;PN;7,8;4.376.500.312;2024-01-01\n"
	test.ErrNil(t, m.ObjectStore().Put(context.Background(), "raw/2024-01-01/bovespa_2024-01-01.csv", strings.NewReader(raw)), "putting raw")

	res, err := m.Refine(context.Background(), bovespa.Override{})
	test.ErrNil(t, err, "refining")
	test.MustBe(t, 1, res.Rows)
}
