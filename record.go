package bovespa

import (
	"github.com/golang-sql/civil"
)

// Raw column names as written by the extractor.
const (
	RawCode     = "cod"
	RawName     = "asset"
	RawCategory = "type"
	RawWeight   = "part"
	RawQuantity = "theoricalQty"
	RawDate     = "pregao_date"
)

// Canonical column names of the refined dataset.
const (
	ColCode                = "codigo"
	ColName                = "acao"
	ColCategory            = "tipo"
	ColWeight              = "part_porcentagem"
	ColQuantity            = "qtde_teorica"
	ColSnapshotDate        = "pregao_data"
	ColGroupFrequency      = "frequencia_acao_tipo"
	ColEntityTotalQuantity = "total_qtde_teorica"
	ColProcessingDate      = "dataproc"
)

// DateLayout is the text form of every date the pipeline writes.
const DateLayout = "2006-01-02"

// RawRecord is one row of a raw snapshot: raw column name to text value.
type RawRecord map[string]string

// Record is a normalized snapshot row.
type Record struct {
	Code         string
	Name         string
	Category     string
	Weight       float64
	Quantity     float64
	SnapshotDate civil.Date
}

// EnrichedRecord is a Record with its window values attached.
type EnrichedRecord struct {
	Record

	// GroupFrequency is the number of records sharing this record's entity,
	// category and snapshot date.
	GroupFrequency int32

	// EntityTotalQuantity is the sum of Quantity over every record of this
	// record's entity, across all snapshot dates of the run.
	EntityTotalQuantity float64
}

// OutputRecord is an EnrichedRecord stamped with the run's processing date.
type OutputRecord struct {
	EnrichedRecord
	ProcessingDate civil.Date
}

// lessOutput orders output records canonically so that encoding the same
// set always yields the same bytes.
func lessOutput(a, b OutputRecord) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.Code != b.Code {
		return a.Code < b.Code
	}
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	if a.SnapshotDate != b.SnapshotDate {
		return a.SnapshotDate.Before(b.SnapshotDate)
	}
	if a.Quantity != b.Quantity {
		return a.Quantity < b.Quantity
	}
	return a.Weight < b.Weight
}
