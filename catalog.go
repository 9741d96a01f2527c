package bovespa

import (
	"context"

	"github.com/pkg/errors"
)

// Catalog is the interface for the metadata catalog the refined table is
// registered in. GetDatabase and GetTable return ErrNotFound (possibly
// wrapped) when the entity doesn't exist.
type Catalog interface {
	GetDatabase(ctx context.Context, name string) error
	CreateDatabase(ctx context.Context, name string) error
	GetTable(ctx context.Context, database, name string) (TableDescriptor, error)
	CreateTable(ctx context.Context, td TableDescriptor) error
	UpdateTable(ctx context.Context, td TableDescriptor) error

	// DiscoverPartitions scans the table location and registers any
	// partitions the catalog doesn't know about yet.
	DiscoverPartitions(ctx context.Context, database, name string) error
}

// Column is a named, typed catalog column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableDescriptor describes an external table.
type TableDescriptor struct {
	Database         string            `json:"database"`
	Name             string            `json:"name"`
	Columns          []Column          `json:"columns"`
	PartitionKeys    []Column          `json:"partitionKeys"`
	Location         string            `json:"location"`
	InputFormat      string            `json:"inputFormat"`
	OutputFormat     string            `json:"outputFormat"`
	SerDeLibrary     string            `json:"serdeLibrary"`
	SerDeParameters  map[string]string `json:"serdeParameters"`
	TableType        string            `json:"tableType"`
	Compressed       bool              `json:"compressed"`
	StorageFormatTag string            `json:"storageFormat"`
}

// Catalog names and storage classes of the refined table.
const (
	DefaultDatabase = "bovespa_db"
	DefaultTable    = "tb_refined_data"

	ExternalTable = "EXTERNAL_TABLE"

	ParquetInputFormat  = "org.apache.hadoop.hive.ql.io.parquet.MapredParquetInputFormat"
	ParquetOutputFormat = "org.apache.hadoop.hive.ql.io.parquet.MapredParquetOutputFormat"
	ParquetSerDe        = "org.apache.hadoop.hive.ql.io.parquet.serde.ParquetHiveSerDe"
)

// RefinedColumns is the ordered column list of the refined table.
var RefinedColumns = []Column{
	{Name: ColCode, Type: "string"},
	{Name: ColName, Type: "string"},
	{Name: ColCategory, Type: "string"},
	{Name: ColWeight, Type: "double"},
	{Name: ColQuantity, Type: "double"},
	{Name: ColSnapshotDate, Type: "date"},
	{Name: ColGroupFrequency, Type: "int"},
	{Name: ColEntityTotalQuantity, Type: "double"},
}

// NewTableDescriptor returns the refined table descriptor pointing at
// location.
func NewTableDescriptor(database, table, location string) TableDescriptor {
	cols := make([]Column, len(RefinedColumns))
	copy(cols, RefinedColumns)
	return TableDescriptor{
		Database:         database,
		Name:             table,
		Columns:          cols,
		PartitionKeys:    []Column{{Name: ColProcessingDate, Type: "string"}},
		Location:         location,
		InputFormat:      ParquetInputFormat,
		OutputFormat:     ParquetOutputFormat,
		SerDeLibrary:     ParquetSerDe,
		SerDeParameters:  map[string]string{"serialization.format": "1"},
		TableType:        ExternalTable,
		StorageFormatTag: "parquet",
	}
}

// RegistrarState is a step of catalog registration.
type RegistrarState int

const (
	CheckDatabase RegistrarState = iota
	CreateDatabase
	CheckTable
	CreateTable
	UpdateTable
	Registered
	DiscoverPartitions
)

func (s RegistrarState) String() string {
	switch s {
	case CheckDatabase:
		return "CheckDatabase"
	case CreateDatabase:
		return "CreateDatabase"
	case CheckTable:
		return "CheckTable"
	case CreateTable:
		return "CreateTable"
	case UpdateTable:
		return "UpdateTable"
	case Registered:
		return "Registered"
	case DiscoverPartitions:
		return "DiscoverPartitions"
	}
	return "Unknown"
}

// Registration reports what a Register call did.
type Registration struct {
	Table  TableDescriptor
	States []RegistrarState

	// Warning is non-nil when partition discovery failed.
	Warning *PartitionDiscoveryWarning
}

// Registrar upserts the refined table descriptor and triggers partition
// discovery.
type Registrar struct {
	Catalog  Catalog
	Database string
	Table    string
	Log      Logger
}

func (r *Registrar) names() (string, string) {
	db, table := r.Database, r.Table
	if db == "" {
		db = DefaultDatabase
	}
	if table == "" {
		table = DefaultTable
	}
	return db, table
}

// Register makes sure the database and table exist and describe part, then
// discovers partitions. Create and update failures are returned as
// CatalogErrors. A discovery failure is not an error; it is logged and
// reported in Registration.Warning.
func (r *Registrar) Register(ctx context.Context, part Partition) (Registration, error) {
	log := r.Log
	if log == nil {
		log = NopLogger{}
	}
	db, table := r.names()
	reg := Registration{Table: NewTableDescriptor(db, table, part.Location)}
	step := func(s RegistrarState) {
		reg.States = append(reg.States, s)
		log.Debugf("catalog: %v %s.%s", s, db, table)
	}

	step(CheckDatabase)
	err := r.Catalog.GetDatabase(ctx, db)
	if errors.Cause(err) == ErrNotFound {
		step(CreateDatabase)
		if err := r.Catalog.CreateDatabase(ctx, db); err != nil {
			return reg, &CatalogError{Op: "create database " + db, Err: err}
		}
		log.Printf("created catalog database %s", db)
	} else if err != nil {
		return reg, &CatalogError{Op: "get database " + db, Err: err}
	}

	step(CheckTable)
	_, err = r.Catalog.GetTable(ctx, db, table)
	switch {
	case errors.Cause(err) == ErrNotFound:
		step(CreateTable)
		if err := r.Catalog.CreateTable(ctx, reg.Table); err != nil {
			return reg, &CatalogError{Op: "create table " + table, Err: err}
		}
		log.Printf("created catalog table %s.%s at %s", db, table, part.Location)
	case err != nil:
		return reg, &CatalogError{Op: "get table " + table, Err: err}
	default:
		step(UpdateTable)
		if err := r.Catalog.UpdateTable(ctx, reg.Table); err != nil {
			return reg, &CatalogError{Op: "update table " + table, Err: err}
		}
		log.Printf("updated catalog table %s.%s to %s", db, table, part.Location)
	}
	step(Registered)

	step(DiscoverPartitions)
	if err := r.Catalog.DiscoverPartitions(ctx, db, table); err != nil {
		reg.Warning = &PartitionDiscoveryWarning{Table: db + "." + table, Err: err}
		log.Printf("WARNING %v", reg.Warning)
	}
	return reg, nil
}
