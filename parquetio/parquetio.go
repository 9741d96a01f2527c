// Package parquetio reads raw snapshot objects and writes refined partitions
// in the parquet columnar format.
package parquetio

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/golang-sql/civil"
	"github.com/parquet-go/parquet-go"
	"github.com/pilosa/bovespa"
	"github.com/pkg/errors"
)

var epoch = civil.Date{Year: 1970, Month: 1, Day: 1}

// RawRow is the layout of a raw snapshot object as the extractor writes it.
type RawRow struct {
	Segment      string `parquet:"segment"`
	Cod          string `parquet:"cod"`
	Asset        string `parquet:"asset"`
	Type         string `parquet:"type"`
	Part         string `parquet:"part"`
	PartAcum     string `parquet:"partAcum"`
	TheoricalQty string `parquet:"theoricalQty"`
	PregaoDate   string `parquet:"pregao_date"`
}

// refinedRow is the layout of a refined partition object. The processing date
// isn't stored in the file; it is carried by the dataproc= folder.
type refinedRow struct {
	Codigo             string  `parquet:"codigo"`
	Acao               string  `parquet:"acao"`
	Tipo               string  `parquet:"tipo"`
	PartPorcentagem    float64 `parquet:"part_porcentagem"`
	QtdeTeorica        float64 `parquet:"qtde_teorica"`
	PregaoData         int32   `parquet:"pregao_data,date"`
	FrequenciaAcaoTipo int32   `parquet:"frequencia_acao_tipo"`
	TotalQtdeTeorica   float64 `parquet:"total_qtde_teorica"`
}

// Encoder writes refined records as a snappy compressed parquet object. It
// implements bovespa.Encoder.
type Encoder struct{}

// Encode implements bovespa.Encoder. Rows are written in the order given.
func (Encoder) Encode(w io.Writer, recs []bovespa.OutputRecord) error {
	rows := make([]refinedRow, len(recs))
	for i, r := range recs {
		rows[i] = refinedRow{
			Codigo:             r.Code,
			Acao:               r.Name,
			Tipo:               r.Category,
			PartPorcentagem:    r.Weight,
			QtdeTeorica:        r.Quantity,
			PregaoData:         int32(r.SnapshotDate.DaysSince(epoch)),
			FrequenciaAcaoTipo: r.GroupFrequency,
			TotalQtdeTeorica:   r.EntityTotalQuantity,
		}
	}
	pw := parquet.NewGenericWriter[refinedRow](w, parquet.Compression(&parquet.Snappy))
	if _, err := pw.Write(rows); err != nil {
		return errors.Wrap(err, "writing rows")
	}
	return errors.Wrap(pw.Close(), "closing writer")
}

// WriteRaw writes raw snapshot rows as a parquet object.
func WriteRaw(w io.Writer, rows []RawRow) error {
	pw := parquet.NewGenericWriter[RawRow](w, parquet.Compression(&parquet.Snappy))
	if _, err := pw.Write(rows); err != nil {
		return errors.Wrap(err, "writing rows")
	}
	return errors.Wrap(pw.Close(), "closing writer")
}

// Decode reads every row of a parquet object into string maps keyed by
// column name. Any flat schema is accepted: numbers are formatted in their
// shortest form and DATE columns as YYYY-MM-DD. Null values are left out.
func Decode(data []byte) ([]bovespa.RawRecord, error) {
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "opening parquet file")
	}
	schema := f.Schema()
	paths := schema.Columns()
	names := make([]string, len(paths))
	dates := make([]bool, len(paths))
	for i, p := range paths {
		names[i] = strings.Join(p, ".")
		if leaf, ok := schema.Lookup(p...); ok {
			if lt := leaf.Node.Type().LogicalType(); lt != nil && lt.Date != nil {
				dates[i] = true
			}
		}
	}

	recs := make([]bovespa.RawRecord, 0, f.NumRows())
	buf := make([]parquet.Row, 128)
	for _, rg := range f.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				rec := make(bovespa.RawRecord, len(names))
				for _, v := range row {
					if v.IsNull() {
						continue
					}
					c := v.Column()
					rec[names[c]] = valueString(v, dates[c])
				}
				recs = append(recs, rec)
			}
			if err == io.EOF {
				break
			} else if err != nil {
				rows.Close()
				return nil, errors.Wrap(err, "reading rows")
			}
		}
		if err := rows.Close(); err != nil {
			return nil, errors.Wrap(err, "closing rows")
		}
	}
	return recs, nil
}

func valueString(v parquet.Value, date bool) string {
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		if date {
			return epoch.AddDays(int(v.Int32())).String()
		}
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	}
	return v.String()
}

// Source reads every parquet object under Prefix in Store. It implements
// bovespa.Source.
type Source struct {
	Store  bovespa.Store
	Prefix string
	Log    bovespa.Logger
}

// NewSource returns a Source over everything under prefix.
func NewSource(store bovespa.Store, prefix string) *Source {
	return &Source{Store: store, Prefix: prefix, Log: bovespa.NopLogger{}}
}

// Records implements bovespa.Source. Objects are read in key order, so the
// result is the same for the same stored history.
func (s *Source) Records(ctx context.Context) ([]bovespa.RawRecord, error) {
	keys, err := s.Store.List(ctx, folder(s.Prefix))
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", s.Prefix)
	}
	recs := make([]bovespa.RawRecord, 0)
	objects := 0
	for _, key := range keys {
		if !strings.HasSuffix(key, ".parquet") {
			continue
		}
		data, err := s.Store.Get(ctx, key)
		if err != nil {
			return nil, errors.Wrapf(err, "getting %s", key)
		}
		part, err := Decode(data)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s", key)
		}
		recs = append(recs, part...)
		objects++
		if s.Log != nil {
			s.Log.Debugf("read %d rows from %s", len(part), key)
		}
	}
	if s.Log != nil {
		s.Log.Printf("read %d raw rows from %d objects under %s", len(recs), objects, s.Location())
	}
	return recs, nil
}

// Location is the physical URI of the raw root.
func (s *Source) Location() string {
	return s.Store.Location(s.Prefix)
}

// folder turns prefix into a folder prefix so that sibling keys sharing its
// leading characters are not listed.
func folder(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}
