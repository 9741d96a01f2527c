package bovespa

import (
	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"
)

// EntityKey selects which Record field identifies an entity for windowing.
type EntityKey int

const (
	// EntityName groups by the asset name column.
	EntityName EntityKey = iota
	// EntityCode groups by the ticker code column.
	EntityCode
)

func (k EntityKey) of(r Record) string {
	if k == EntityCode {
		return r.Code
	}
	return r.Name
}

// ParseEntityKey maps "name" or "code" to an EntityKey.
func ParseEntityKey(s string) (EntityKey, bool) {
	switch s {
	case "", "name":
		return EntityName, true
	case "code":
		return EntityCode, true
	}
	return EntityName, false
}

type groupKey struct {
	entity   string
	category string
	date     civil.Date
}

// Aggregator attaches window values to records without collapsing rows.
type Aggregator struct {
	Entity EntityKey
}

// Aggregate returns one EnrichedRecord per input record, in input order.
//
// GroupFrequency counts records sharing {entity, category, snapshot date}.
// EntityTotalQuantity sums Quantity over every record of the entity, whatever
// its snapshot date, so it covers all history present in recs. The sum is
// accumulated in decimal so it doesn't depend on the order of recs.
func (a Aggregator) Aggregate(recs []Record) []EnrichedRecord {
	counts := make(map[groupKey]int32)
	totals := make(map[string]decimal.Decimal)
	for _, r := range recs {
		e := a.Entity.of(r)
		counts[groupKey{entity: e, category: r.Category, date: r.SnapshotDate}]++
		totals[e] = totals[e].Add(decimal.NewFromFloat(r.Quantity))
	}

	sums := make(map[string]float64, len(totals))
	for e, d := range totals {
		sums[e], _ = d.Float64()
	}

	out := make([]EnrichedRecord, len(recs))
	for i, r := range recs {
		e := a.Entity.of(r)
		out[i] = EnrichedRecord{
			Record:              r,
			GroupFrequency:      counts[groupKey{entity: e, category: r.Category, date: r.SnapshotDate}],
			EntityTotalQuantity: sums[e],
		}
	}
	return out
}
