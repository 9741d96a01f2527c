// Package csv reads raw snapshots stored as delimited text with a header
// line naming the raw columns.
package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/pilosa/bovespa"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Decoder turns one delimited object into raw records.
type Decoder struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune

	// Latin1 decodes the object from ISO 8859-1, which is what B3's own
	// downloads use.
	Latin1 bool

	Log bovespa.Logger
}

// Decode reads the header and every following non-blank line of data.
// Empty values are left out of the record.
func (d Decoder) Decode(data []byte) ([]bovespa.RawRecord, error) {
	var r io.Reader = bytes.NewReader(data)
	if d.Latin1 {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}
	cr := csv.NewReader(r)
	if d.Comma != 0 {
		cr.Comma = d.Comma
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("no header line")
	} else if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	if err := validateHeader(header); err != nil {
		return nil, errors.Wrap(err, "validating header")
	}

	recs := make([]bovespa.RawRecord, 0)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return recs, nil
		} else if err != nil {
			return nil, errors.Wrap(err, "reading row")
		}
		if blank(row) {
			continue
		}
		line, _ := cr.FieldPos(0)
		rec, err := d.parseRecord(header, row)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing line %d", line)
		}
		recs = append(recs, rec)
	}
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func validateHeader(header []string) error {
	fields := make(map[string]int)
	for i, h := range header {
		if h == "" {
			return errors.Errorf("header contains empty string at %d: %v", i, header)
		}
		if pos, exists := fields[h]; exists {
			return errors.Errorf("%s appeared at both %d and %d in header", h, pos, i)
		}
		fields[h] = i
	}
	return nil
}

func (d Decoder) parseRecord(header []string, row []string) (bovespa.RawRecord, error) {
	if len(header) > len(row) {
		return nil, errors.Errorf("header/row len mismatch: %d vs %d, %v and %v", len(header), len(row), header, row)
	} else if len(row) > len(header) {
		for i := len(header); i < len(row); i++ {
			if strings.TrimSpace(row[i]) != "" && d.Log != nil {
				d.Log.Printf("data in non headered field: %v, %d", row, i)
			}
		}
	}
	ret := make(bovespa.RawRecord, len(header))
	for i := 0; i < len(header); i++ {
		if row[i] == "" {
			continue
		}
		ret[header[i]] = row[i]
	}
	return ret, nil
}

// Source reads every .csv object under Prefix in Store. It implements
// bovespa.Source.
type Source struct {
	Store   bovespa.Store
	Prefix  string
	Decoder Decoder
	Log     bovespa.Logger
}

// NewSource returns a Source over everything under prefix.
func NewSource(store bovespa.Store, prefix string) *Source {
	return &Source{Store: store, Prefix: prefix, Log: bovespa.NopLogger{}}
}

// Records implements bovespa.Source. Objects are read in key order.
func (s *Source) Records(ctx context.Context) ([]bovespa.RawRecord, error) {
	keys, err := s.Store.List(ctx, folder(s.Prefix))
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", s.Prefix)
	}
	dec := s.Decoder
	if dec.Log == nil {
		dec.Log = s.Log
	}
	recs := make([]bovespa.RawRecord, 0)
	for _, key := range keys {
		if !strings.HasSuffix(key, ".csv") {
			continue
		}
		data, err := s.Store.Get(ctx, key)
		if err != nil {
			return nil, errors.Wrapf(err, "getting %s", key)
		}
		part, err := dec.Decode(data)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s", key)
		}
		s.Log.Debugf("read %d rows from %s", len(part), key)
		recs = append(recs, part...)
	}
	s.Log.Printf("read %d raw rows under %s", len(recs), s.Store.Location(s.Prefix))
	return recs, nil
}

// folder turns prefix into a folder prefix so that sibling keys sharing its
// leading characters are not listed.
func folder(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}
