package bovespa

import (
	"math"
	"regexp"
	"strings"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// DefaultFields maps raw column names to canonical ones.
var DefaultFields = map[string]string{
	RawCode:     ColCode,
	RawName:     ColName,
	RawCategory: ColCategory,
	RawWeight:   ColWeight,
	RawQuantity: ColQuantity,
	RawDate:     ColSnapshotDate,
}

var (
	// A single ".ddd" group with no decimal part is a plain decimal number.
	ptBRGrouping = regexp.MustCompile(`^\d{1,3}((\.\d{3}){2,}(,\d+)?|\.\d{3},\d+)$`)
	enUSGrouping = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)

	groupingStripper = strings.NewReplacer(" ", "", "\u00a0", "", "_", "")
)

// Normalizer turns raw records into typed canonical Records. It does no I/O.
type Normalizer struct {
	// Fields maps raw column names to canonical column names. Raw columns not
	// in Fields are dropped. Nil means DefaultFields.
	Fields map[string]string
}

// Normalize renames and coerces every raw record. Output order matches input
// order. If any field of any record can't be coerced, Normalize returns no
// records and a NormalizeErrors holding one error per offending field.
func (n Normalizer) Normalize(raws []RawRecord) ([]Record, error) {
	fields := n.Fields
	if fields == nil {
		fields = DefaultFields
	}
	recs := make([]Record, 0, len(raws))
	var errs NormalizeErrors
	for i, raw := range raws {
		canon := make(map[string]string, len(fields))
		for k, v := range raw {
			if name, ok := fields[k]; ok {
				canon[name] = v
			}
		}
		rec := Record{
			Code:     text(canon[ColCode]),
			Name:     text(canon[ColName]),
			Category: text(canon[ColCategory]),
		}
		var err error
		if rec.Weight, err = ParseWeight(canon[ColWeight]); err != nil {
			errs = append(errs, &MalformedNumberError{Row: i, Field: ColWeight, Value: canon[ColWeight]})
		}
		if rec.Quantity, err = ParseQuantity(canon[ColQuantity]); err != nil {
			errs = append(errs, &MalformedNumberError{Row: i, Field: ColQuantity, Value: canon[ColQuantity]})
		}
		if rec.SnapshotDate, err = ParseSnapshotDate(canon[ColSnapshotDate]); err != nil {
			errs = append(errs, &MalformedDateError{Row: i, Field: ColSnapshotDate, Value: canon[ColSnapshotDate]})
		}
		recs = append(recs, rec)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return recs, nil
}

func text(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// ParseWeight parses a weight percentage which may use a comma as its
// decimal separator.
func ParseWeight(s string) (float64, error) {
	return parseNonNegative(strings.Replace(strings.TrimSpace(s), ",", ".", -1))
}

// ParseQuantity parses a theoretical quantity, stripping any digit grouping
// first. Values grouped the pt-BR way ("1.234.567,5") and the en-US way
// ("1,234,567.5") are both understood; anything else must be a plain number,
// so "1.500" is one and a half.
func ParseQuantity(s string) (float64, error) {
	s = groupingStripper.Replace(strings.TrimSpace(s))
	switch {
	case ptBRGrouping.MatchString(s):
		s = strings.Replace(strings.Replace(s, ".", "", -1), ",", ".", 1)
	case enUSGrouping.MatchString(s):
		s = strings.Replace(s, ",", "", -1)
	}
	return parseNonNegative(s)
}

func parseNonNegative(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, errNegative
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errNotFinite
	}
	return f, nil
}

// ParseSnapshotDate parses an ISO calendar date. A trailing time part
// separated by 'T' or a space is ignored.
func ParseSnapshotDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		s = s[:10]
	}
	return civil.ParseDate(s)
}
