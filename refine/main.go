// Package refine builds a configured bovespa.Job from command line settings.
// Its Main is embedded by every command which needs storage, a catalog, a
// ledger or stats.
package refine

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pilosa/bovespa"
	"github.com/pilosa/bovespa/aws/glue"
	"github.com/pilosa/bovespa/aws/s3"
	"github.com/pilosa/bovespa/boltdb"
	"github.com/pilosa/bovespa/csv"
	"github.com/pilosa/bovespa/dogstatsd"
	"github.com/pilosa/bovespa/file"
	"github.com/pilosa/bovespa/leveldb"
	"github.com/pilosa/bovespa/parquetio"
	"github.com/pilosa/bovespa/prompush"
	"github.com/pilosa/bovespa/termstat"
	"github.com/pkg/errors"
)

// Main holds all config shared by the bovespa commands.
type Main struct {
	Store       string `help:"Object store holding raw and refined data: s3 or file."`
	Bucket      string `help:"S3 bucket (s3 store)."`
	Region      string `help:"AWS region."`
	Endpoint    string `help:"Custom S3 endpoint, e.g. for minio or localstack. Forces path style addressing."`
	Dir         string `help:"Root directory (file store)."`
	RawPrefix   string `help:"Key prefix of the raw snapshots."`
	RefinedRoot string `help:"Key prefix under which refined partitions are published."`
	RawFormat   string `help:"Format of the raw snapshots: parquet or csv."`
	CsvComma    string `help:"Field delimiter of csv raw snapshots."`
	CsvLatin1   bool   `help:"Decode csv raw snapshots from ISO 8859-1."`

	Catalog     string `help:"Metadata catalog: glue or bolt."`
	CatalogPath string `help:"Database file (bolt catalog)."`
	QueryOutput string `help:"S3 location for Athena query results (glue catalog)."`
	WorkGroup   string `help:"Athena workgroup (glue catalog)."`
	Database    string `help:"Catalog database name."`
	Table       string `help:"Catalog table name."`

	Entity   string `help:"Field identifying an entity for the all-time totals: name or code."`
	Timezone string `help:"IANA time zone in which the processing date is taken."`

	LedgerPath string `help:"Directory of the run ledger. Empty disables it."`

	Stats       string `help:"Stats backend: term, dogstatsd, prompush or none."`
	StatsAddr   string `help:"Address of the DogStatsD agent."`
	PushGateway string `help:"URL of the Prometheus Pushgateway."`

	LogPath string `help:"Log file to write to. Empty means stderr."`
	Verbose bool   `help:"Enable verbose logging."`

	Stdout io.Writer `flag:"-"`

	log     bovespa.Logger
	store   bovespa.Store
	job     *bovespa.Job
	loc     *time.Location
	closers []io.Closer
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Store:       "file",
		Region:      "us-east-1",
		Dir:         "data",
		RawPrefix:   "raw",
		RefinedRoot: bovespa.DefaultRefinedRoot,
		RawFormat:   "parquet",
		CsvComma:    ",",
		Catalog:     "bolt",
		CatalogPath: "bovespa-catalog.db",
		Database:    bovespa.DefaultDatabase,
		Table:       bovespa.DefaultTable,
		Entity:      "name",
		Timezone:    "UTC",
		LedgerPath:  "bovespa-ledger",
		Stats:       "term",
		StatsAddr:   "localhost:8125",
		PushGateway: "http://localhost:9091",
		Stdout:      os.Stdout,
	}
}

// Run refines the full raw history into today's partition.
func (m *Main) Run() error {
	_, err := m.Refine(context.Background(), bovespa.Override{})
	return err
}

// Refine runs one refine and writes its Result as JSON to Stdout. A failed
// run is returned as an error along with the Result.
func (m *Main) Refine(ctx context.Context, o bovespa.Override) (bovespa.Result, error) {
	job, err := m.Job()
	if err != nil {
		return bovespa.Result{}, errors.Wrap(err, "setting up")
	}
	res := job.Run(ctx, o)
	if err := m.WriteResult(res); err != nil {
		return res, err
	}
	if res.Status == bovespa.Failed {
		return res, errors.Errorf("run %s failed: %s", res.ProcessingDate, res.Kind)
	}
	return res, nil
}

// WriteResult writes res to Stdout as one line of JSON.
func (m *Main) WriteResult(res bovespa.Result) error {
	if m.Stdout == nil {
		return nil
	}
	err := json.NewEncoder(m.Stdout).Encode(res)
	return errors.Wrap(err, "writing result")
}

// Job returns the configured Job, setting everything up on first use.
func (m *Main) Job() (*bovespa.Job, error) {
	if m.job != nil {
		return m.job, nil
	}
	if err := m.Setup(); err != nil {
		return nil, err
	}
	entity, ok := bovespa.ParseEntityKey(m.Entity)
	if !ok {
		return nil, errors.Errorf("unknown entity key '%s'", m.Entity)
	}
	cat, err := m.newCatalog()
	if err != nil {
		return nil, errors.Wrap(err, "getting catalog")
	}
	source, err := m.newSource()
	if err != nil {
		return nil, errors.Wrap(err, "getting source")
	}
	stats, err := m.newStats()
	if err != nil {
		return nil, errors.Wrap(err, "getting stats")
	}
	job := &bovespa.Job{
		Source:     source,
		Aggregator: bovespa.Aggregator{Entity: entity},
		Publisher: &bovespa.Publisher{
			Store:   m.store,
			Encoder: parquetio.Encoder{},
			Root:    m.RefinedRoot,
		},
		Registrar: &bovespa.Registrar{
			Catalog:  cat,
			Database: m.Database,
			Table:    m.Table,
		},
		Stats:    stats,
		Log:      m.log,
		Location: m.loc,
	}
	if m.LedgerPath != "" {
		ledger, err := leveldb.NewLedger(m.LedgerPath)
		if err != nil {
			return nil, errors.Wrap(err, "opening ledger")
		}
		m.closers = append(m.closers, ledger)
		job.Ledger = ledger
	}
	m.job = job
	return job, nil
}

// Setup validates the configuration and opens the log and the store. It is
// enough for commands which only need to read or write objects.
func (m *Main) Setup() (err error) {
	if m.store != nil {
		return nil
	}
	if m.loc, err = time.LoadLocation(m.Timezone); err != nil {
		return errors.Wrapf(err, "loading time zone '%s'", m.Timezone)
	}
	if err := m.setupLog(); err != nil {
		return errors.Wrap(err, "setting up log")
	}
	switch strings.ToLower(m.Store) {
	case "s3":
		opts := []s3.StoreOption{s3.OptStoreBucket(m.Bucket), s3.OptStoreRegion(m.Region)}
		if m.Endpoint != "" {
			opts = append(opts, s3.OptStoreEndpoint(m.Endpoint))
		}
		s, err := s3.NewStore(opts...)
		if err != nil {
			return errors.Wrap(err, "getting s3 store")
		}
		m.store = s
	case "file":
		s, err := file.NewStore(m.Dir)
		if err != nil {
			return errors.Wrap(err, "getting file store")
		}
		m.store = s
	default:
		return errors.Errorf("unknown store '%s'", m.Store)
	}
	return nil
}

func (m *Main) setupLog() error {
	out := io.Writer(os.Stderr)
	if m.LogPath != "" {
		f, err := os.OpenFile(m.LogPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrap(err, "opening log file")
		}
		m.closers = append(m.closers, f)
		out = f
	}
	logger := log.New(out, "", log.LstdFlags)
	if m.Verbose {
		m.log = bovespa.VerboseLogger{Logger: logger}
	} else {
		m.log = bovespa.StdLogger{Logger: logger}
	}
	return nil
}

func (m *Main) newSource() (bovespa.Source, error) {
	switch strings.ToLower(m.RawFormat) {
	case "parquet":
		s := parquetio.NewSource(m.store, m.RawPrefix)
		s.Log = m.log
		return s, nil
	case "csv":
		comma := []rune(m.CsvComma)
		if len(comma) != 1 {
			return nil, errors.Errorf("csv delimiter must be one character, got '%s'", m.CsvComma)
		}
		s := csv.NewSource(m.store, m.RawPrefix)
		s.Decoder = csv.Decoder{Comma: comma[0], Latin1: m.CsvLatin1}
		s.Log = m.log
		return s, nil
	default:
		return nil, errors.Errorf("unknown raw format '%s'", m.RawFormat)
	}
}

func (m *Main) newCatalog() (bovespa.Catalog, error) {
	switch strings.ToLower(m.Catalog) {
	case "glue":
		var sess *session.Session
		if s, ok := m.store.(*s3.Store); ok {
			sess = s.Session()
		}
		if sess == nil {
			var err error
			sess, err = session.NewSession(&aws.Config{Region: aws.String(m.Region)})
			if err != nil {
				return nil, errors.Wrap(err, "getting new session")
			}
		}
		return glue.NewCatalog(sess,
			glue.OptCatalogQueryOutput(m.QueryOutput),
			glue.OptCatalogWorkGroup(m.WorkGroup),
			glue.OptCatalogLogger(m.log),
		)
	case "bolt":
		c, err := boltdb.NewCatalog(m.CatalogPath, m.store, m.log)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, c)
		return c, nil
	default:
		return nil, errors.Errorf("unknown catalog '%s'", m.Catalog)
	}
}

func (m *Main) newStats() (bovespa.Statter, error) {
	switch strings.ToLower(m.Stats) {
	case "term":
		c := termstat.NewCollector(os.Stderr, 0)
		m.closers = append(m.closers, c)
		return c, nil
	case "dogstatsd":
		s, err := dogstatsd.NewStatter(m.StatsAddr, "bovespa.")
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, s)
		return s, nil
	case "prompush":
		return prompush.NewStatter(m.PushGateway, "bovespa_refine", "bovespa")
	case "none", "":
		return bovespa.NopStatter{}, nil
	default:
		return nil, errors.Errorf("unknown stats backend '%s'", m.Stats)
	}
}

// Log returns the logger set up by Setup.
func (m *Main) Log() bovespa.Logger {
	if m.log == nil {
		return bovespa.NopLogger{}
	}
	return m.log
}

// ObjectStore returns the store set up by Setup.
func (m *Main) ObjectStore() bovespa.Store { return m.store }

// Location returns the time zone set up by Setup.
func (m *Main) Location() *time.Location { return m.loc }

// Close releases everything Setup and Job opened, most recent first.
func (m *Main) Close() error {
	var first error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	m.store, m.job = nil, nil
	return errors.Wrap(first, "closing")
}
