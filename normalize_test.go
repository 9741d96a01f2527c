package bovespa_test

import (
	"testing"

	"github.com/golang-sql/civil"
	"github.com/pilosa/bovespa"
	"github.com/pilosa/bovespa/test"
	"github.com/pkg/errors"
)

func TestParseWeight(t *testing.T) {
	tests := []struct {
		in  string
		exp float64
		err bool
	}{
		{in: "12,345", exp: 12.345},
		{in: "12.345", exp: 12.345},
		{in: " 0,5 ", exp: 0.5},
		{in: "3", exp: 3},
		{in: "0", exp: 0},
		{in: "1,2,3", err: true},
		{in: "", err: true},
		{in: "abc", err: true},
		{in: "-1,5", err: true},
		{in: "NaN", err: true},
		{in: "Inf", err: true},
	}
	for i, tst := range tests {
		got, err := bovespa.ParseWeight(tst.in)
		if tst.err {
			if err == nil {
				t.Errorf("test %d: expected error for %q, got %v", i, tst.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("test %d: parsing %q: %v", i, tst.in, err)
			continue
		}
		if got != tst.exp {
			t.Errorf("test %d: %q: expected %v, got %v", i, tst.in, tst.exp, got)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in  string
		exp float64
		err bool
	}{
		{in: "100", exp: 100},
		{in: "4376500312", exp: 4376500312},
		{in: "4.376.500.312", exp: 4376500312},
		{in: "4,376,500,312", exp: 4376500312},
		{in: "1.234,5", exp: 1234.5},
		{in: "1,234.5", exp: 1234.5},
		{in: "4 376 500", exp: 4376500},
		{in: "4\u00a0376\u00a0500", exp: 4376500},
		{in: "4_376_500", exp: 4376500},
		{in: "12.5", exp: 12.5},
		{in: "12.345", exp: 12.345},
		{in: "1.500", exp: 1.5},
		{in: "100.250", exp: 100.25},
		{in: "1.500.000", exp: 1500000},
		{in: "", err: true},
		{in: "1.2.3", err: true},
		{in: "12,5,1", err: true},
		{in: "-300", err: true},
		{in: "1e400", err: true},
		{in: "lots", err: true},
	}
	for i, tst := range tests {
		got, err := bovespa.ParseQuantity(tst.in)
		if tst.err {
			if err == nil {
				t.Errorf("test %d: expected error for %q, got %v", i, tst.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("test %d: parsing %q: %v", i, tst.in, err)
			continue
		}
		if got != tst.exp {
			t.Errorf("test %d: %q: expected %v, got %v", i, tst.in, tst.exp, got)
		}
	}
}

func TestParseSnapshotDate(t *testing.T) {
	tests := []struct {
		in  string
		exp civil.Date
		err bool
	}{
		{in: "2024-01-02", exp: civil.Date{Year: 2024, Month: 1, Day: 2}},
		{in: " 2024-01-02 ", exp: civil.Date{Year: 2024, Month: 1, Day: 2}},
		{in: "2024-01-02T15:04:05Z", exp: civil.Date{Year: 2024, Month: 1, Day: 2}},
		{in: "2024-01-02 15:04:05", exp: civil.Date{Year: 2024, Month: 1, Day: 2}},
		{in: "02/01/2024", err: true},
		{in: "2024-13-01", err: true},
		{in: "2024-01-02X", err: true},
		{in: "", err: true},
	}
	for i, tst := range tests {
		got, err := bovespa.ParseSnapshotDate(tst.in)
		if tst.err {
			if err == nil {
				t.Errorf("test %d: expected error for %q, got %v", i, tst.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("test %d: parsing %q: %v", i, tst.in, err)
			continue
		}
		test.MustBe(t, tst.exp, got, tst.in)
	}
}

func TestNormalize(t *testing.T) {
	raws := []bovespa.RawRecord{
		test.Raw("PETR4", "PETROBRAS", "PN  N2", "7,812", "4376500312", "2024-01-02"),
		test.Raw(" VALE3", "VALÉ", "ON  NM", "12.345", "4.196.924.316", "2024-01-02"),
	}
	recs, err := bovespa.Normalizer{}.Normalize(raws)
	test.ErrNil(t, err, "normalizing")

	test.MustBe(t, []bovespa.Record{
		{Code: "PETR4", Name: "PETROBRAS", Category: "PN  N2", Weight: 7.812, Quantity: 4376500312, SnapshotDate: civil.Date{Year: 2024, Month: 1, Day: 2}},
		{Code: "VALE3", Name: "VALÉ", Category: "ON  NM", Weight: 12.345, Quantity: 4196924316, SnapshotDate: civil.Date{Year: 2024, Month: 1, Day: 2}},
	}, recs)
}

func TestNormalizeCustomFields(t *testing.T) {
	n := bovespa.Normalizer{Fields: map[string]string{
		"ticker": bovespa.ColCode,
		"w":      bovespa.ColWeight,
		"q":      bovespa.ColQuantity,
		"d":      bovespa.ColSnapshotDate,
	}}
	recs, err := n.Normalize([]bovespa.RawRecord{{"ticker": "ITUB4", "w": "1", "q": "2", "d": "2024-05-06", "asset": "ignored"}})
	test.ErrNil(t, err, "normalizing")
	test.MustBe(t, 1, len(recs))
	test.MustBe(t, "ITUB4", recs[0].Code)
	test.MustBe(t, "", recs[0].Name)
}

func TestNormalizeReportsEveryMalformedField(t *testing.T) {
	raws := []bovespa.RawRecord{
		test.Raw("PETR4", "PETROBRAS", "PN", "1,0", "100", "2024-01-01"),
		test.Raw("VALE3", "VALE", "ON", "x", "100", "2024-01-01"),
		test.Raw("ITUB4", "ITAUUNIBANCO", "PN", "1", "-5", "yesterday"),
	}
	recs, err := bovespa.Normalizer{}.Normalize(raws)
	if err == nil {
		t.Fatal("expected error")
	}
	test.MustBe(t, 0, len(recs), "records on failure")

	errs, ok := errors.Cause(err).(bovespa.NormalizeErrors)
	if !ok {
		t.Fatalf("expected NormalizeErrors, got %T", err)
	}
	test.MustBe(t, 3, len(errs))
	test.MustBe(t, &bovespa.MalformedNumberError{Row: 1, Field: bovespa.ColWeight, Value: "x"}, errs[0])
	test.MustBe(t, &bovespa.MalformedNumberError{Row: 2, Field: bovespa.ColQuantity, Value: "-5"}, errs[1])
	test.MustBe(t, &bovespa.MalformedDateError{Row: 2, Field: bovespa.ColSnapshotDate, Value: "yesterday"}, errs[2])
	test.MustBe(t, bovespa.KindMalformedNumber, bovespa.KindOf(err))
}

func TestNormalizeMissingField(t *testing.T) {
	raw := test.Raw("PETR4", "PETROBRAS", "PN", "1", "100", "2024-01-01")
	delete(raw, bovespa.RawDate)
	_, err := bovespa.Normalizer{}.Normalize([]bovespa.RawRecord{raw})
	test.MustBe(t, bovespa.KindMalformedDate, bovespa.KindOf(err))
}
