// Package glue implements bovespa.Catalog on the AWS Glue Data Catalog, using
// Athena to run partition discovery.
package glue

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/athena"
	"github.com/aws/aws-sdk-go/service/athena/athenaiface"
	"github.com/aws/aws-sdk-go/service/glue"
	"github.com/aws/aws-sdk-go/service/glue/glueiface"
	"github.com/pilosa/bovespa"
	"github.com/pkg/errors"
)

// CatalogOption is a functional option type for glue.Catalog.
type CatalogOption func(c *Catalog)

// OptCatalogClients makes the Catalog use the given clients instead of ones
// created from a session.
func OptCatalogClients(g glueiface.GlueAPI, a athenaiface.AthenaAPI) CatalogOption {
	return func(c *Catalog) {
		c.glue = g
		c.athena = a
	}
}

// OptCatalogQueryOutput sets the s3:// location Athena writes query results
// to. Required unless the workgroup enforces one.
func OptCatalogQueryOutput(location string) CatalogOption {
	return func(c *Catalog) {
		c.output = location
	}
}

// OptCatalogWorkGroup sets the Athena workgroup repairs run in.
func OptCatalogWorkGroup(wg string) CatalogOption {
	return func(c *Catalog) {
		c.workgroup = wg
	}
}

// OptCatalogPollInterval sets how often a running repair query is polled.
func OptCatalogPollInterval(d time.Duration) CatalogOption {
	return func(c *Catalog) {
		c.poll = d
	}
}

// OptCatalogLogger sets the logger.
func OptCatalogLogger(l bovespa.Logger) CatalogOption {
	return func(c *Catalog) {
		c.log = l
	}
}

// Catalog is a bovespa.Catalog backed by Glue. Partition discovery runs
// MSCK REPAIR TABLE through Athena and waits for it to finish.
type Catalog struct {
	glue      glueiface.GlueAPI
	athena    athenaiface.AthenaAPI
	output    string
	workgroup string
	poll      time.Duration
	log       bovespa.Logger
}

// NewCatalog returns a Catalog using sess for any clients not given as
// options. sess may be nil if OptCatalogClients is used.
func NewCatalog(sess *session.Session, opts ...CatalogOption) (*Catalog, error) {
	c := &Catalog{
		poll: time.Second,
		log:  bovespa.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.glue == nil || c.athena == nil {
		if sess == nil {
			return nil, errors.New("no AWS session or clients given")
		}
		c.glue = glue.New(sess)
		c.athena = athena.New(sess)
	}
	return c, nil
}

func notFound(err error) error {
	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == glue.ErrCodeEntityNotFoundException {
		return bovespa.ErrNotFound
	}
	return err
}

// GetDatabase implements bovespa.Catalog.
func (c *Catalog) GetDatabase(ctx context.Context, name string) error {
	_, err := c.glue.GetDatabaseWithContext(ctx, &glue.GetDatabaseInput{Name: aws.String(name)})
	if err != nil {
		return errors.Wrapf(notFound(err), "getting database %s", name)
	}
	return nil
}

// CreateDatabase implements bovespa.Catalog.
func (c *Catalog) CreateDatabase(ctx context.Context, name string) error {
	_, err := c.glue.CreateDatabaseWithContext(ctx, &glue.CreateDatabaseInput{
		DatabaseInput: &glue.DatabaseInput{Name: aws.String(name)},
	})
	return errors.Wrapf(err, "creating database %s", name)
}

// GetTable implements bovespa.Catalog.
func (c *Catalog) GetTable(ctx context.Context, database, name string) (bovespa.TableDescriptor, error) {
	out, err := c.glue.GetTableWithContext(ctx, &glue.GetTableInput{
		DatabaseName: aws.String(database),
		Name:         aws.String(name),
	})
	if err != nil {
		return bovespa.TableDescriptor{}, errors.Wrapf(notFound(err), "getting table %s.%s", database, name)
	}
	return descriptor(database, out.Table), nil
}

// CreateTable implements bovespa.Catalog.
func (c *Catalog) CreateTable(ctx context.Context, td bovespa.TableDescriptor) error {
	_, err := c.glue.CreateTableWithContext(ctx, &glue.CreateTableInput{
		DatabaseName: aws.String(td.Database),
		TableInput:   tableInput(td),
	})
	return errors.Wrapf(err, "creating table %s.%s", td.Database, td.Name)
}

// UpdateTable implements bovespa.Catalog.
func (c *Catalog) UpdateTable(ctx context.Context, td bovespa.TableDescriptor) error {
	_, err := c.glue.UpdateTableWithContext(ctx, &glue.UpdateTableInput{
		DatabaseName: aws.String(td.Database),
		TableInput:   tableInput(td),
	})
	return errors.Wrapf(err, "updating table %s.%s", td.Database, td.Name)
}

// DiscoverPartitions runs MSCK REPAIR TABLE and blocks until Athena reports a
// final state or ctx is done.
func (c *Catalog) DiscoverPartitions(ctx context.Context, database, name string) error {
	in := &athena.StartQueryExecutionInput{
		QueryString:           aws.String(fmt.Sprintf("MSCK REPAIR TABLE `%s`.`%s`", database, name)),
		QueryExecutionContext: &athena.QueryExecutionContext{Database: aws.String(database)},
	}
	if c.output != "" {
		in.ResultConfiguration = &athena.ResultConfiguration{OutputLocation: aws.String(c.output)}
	}
	if c.workgroup != "" {
		in.WorkGroup = aws.String(c.workgroup)
	}
	start, err := c.athena.StartQueryExecutionWithContext(ctx, in)
	if err != nil {
		return errors.Wrap(err, "starting repair query")
	}
	id := aws.StringValue(start.QueryExecutionId)
	c.log.Debugf("repair query %s started for %s.%s", id, database, name)

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		out, err := c.athena.GetQueryExecutionWithContext(ctx, &athena.GetQueryExecutionInput{QueryExecutionId: start.QueryExecutionId})
		if err != nil {
			return errors.Wrapf(err, "polling repair query %s", id)
		}
		status := out.QueryExecution.Status
		switch state := aws.StringValue(status.State); state {
		case athena.QueryExecutionStateSucceeded:
			c.log.Printf("partitions of %s.%s repaired by query %s", database, name, id)
			return nil
		case athena.QueryExecutionStateFailed, athena.QueryExecutionStateCancelled:
			return errors.Errorf("repair query %s %s: %s", id, state, aws.StringValue(status.StateChangeReason))
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "waiting for repair query %s", id)
		case <-ticker.C:
		}
	}
}

func columns(cols []bovespa.Column) []*glue.Column {
	out := make([]*glue.Column, len(cols))
	for i, col := range cols {
		out[i] = &glue.Column{Name: aws.String(col.Name), Type: aws.String(col.Type)}
	}
	return out
}

func tableInput(td bovespa.TableDescriptor) *glue.TableInput {
	return &glue.TableInput{
		Name:      aws.String(td.Name),
		TableType: aws.String(td.TableType),
		Parameters: map[string]*string{
			"EXTERNAL":       aws.String("TRUE"),
			"classification": aws.String(td.StorageFormatTag),
		},
		PartitionKeys: columns(td.PartitionKeys),
		StorageDescriptor: &glue.StorageDescriptor{
			Columns:      columns(td.Columns),
			Location:     aws.String(td.Location),
			InputFormat:  aws.String(td.InputFormat),
			OutputFormat: aws.String(td.OutputFormat),
			Compressed:   aws.Bool(td.Compressed),
			SerdeInfo: &glue.SerDeInfo{
				SerializationLibrary: aws.String(td.SerDeLibrary),
				Parameters:           aws.StringMap(td.SerDeParameters),
			},
		},
	}
}

func descriptor(database string, t *glue.TableData) bovespa.TableDescriptor {
	td := bovespa.TableDescriptor{
		Database:         database,
		Name:             aws.StringValue(t.Name),
		PartitionKeys:    fromColumns(t.PartitionKeys),
		TableType:        aws.StringValue(t.TableType),
		StorageFormatTag: aws.StringValue(t.Parameters["classification"]),
	}
	if sd := t.StorageDescriptor; sd != nil {
		td.Columns = fromColumns(sd.Columns)
		td.Location = aws.StringValue(sd.Location)
		td.InputFormat = aws.StringValue(sd.InputFormat)
		td.OutputFormat = aws.StringValue(sd.OutputFormat)
		td.Compressed = aws.BoolValue(sd.Compressed)
		if sd.SerdeInfo != nil {
			td.SerDeLibrary = aws.StringValue(sd.SerdeInfo.SerializationLibrary)
			td.SerDeParameters = aws.StringValueMap(sd.SerdeInfo.Parameters)
		}
	}
	return td
}

func fromColumns(cols []*glue.Column) []bovespa.Column {
	out := make([]bovespa.Column, len(cols))
	for i, col := range cols {
		out[i] = bovespa.Column{Name: aws.StringValue(col.Name), Type: aws.StringValue(col.Type)}
	}
	return out
}
