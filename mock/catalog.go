package mock

import (
	"context"
	"sync"

	"github.com/pilosa/bovespa"
)

// Catalog is an in memory bovespa.Catalog. Setting one of the Fail* fields
// makes the corresponding operation return that error.
type Catalog struct {
	mu        sync.Mutex
	Databases map[string]bool
	Tables    map[string]bovespa.TableDescriptor

	FailCreateDatabase error
	FailCreateTable    error
	FailUpdateTable    error
	FailDiscover       error

	Creates   int
	Updates   int
	Discovers int
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		Databases: make(map[string]bool),
		Tables:    make(map[string]bovespa.TableDescriptor),
	}
}

// GetDatabase implements bovespa.Catalog.
func (c *Catalog) GetDatabase(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.Databases[name] {
		return bovespa.ErrNotFound
	}
	return nil
}

// CreateDatabase implements bovespa.Catalog.
func (c *Catalog) CreateDatabase(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailCreateDatabase != nil {
		return c.FailCreateDatabase
	}
	c.Databases[name] = true
	return nil
}

// GetTable implements bovespa.Catalog.
func (c *Catalog) GetTable(ctx context.Context, database, name string) (bovespa.TableDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	td, ok := c.Tables[database+"."+name]
	if !ok {
		return td, bovespa.ErrNotFound
	}
	return td, nil
}

// CreateTable implements bovespa.Catalog.
func (c *Catalog) CreateTable(ctx context.Context, td bovespa.TableDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailCreateTable != nil {
		return c.FailCreateTable
	}
	c.Tables[td.Database+"."+td.Name] = td
	c.Creates++
	return nil
}

// UpdateTable implements bovespa.Catalog.
func (c *Catalog) UpdateTable(ctx context.Context, td bovespa.TableDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailUpdateTable != nil {
		return c.FailUpdateTable
	}
	c.Tables[td.Database+"."+td.Name] = td
	c.Updates++
	return nil
}

// DiscoverPartitions implements bovespa.Catalog.
func (c *Catalog) DiscoverPartitions(ctx context.Context, database, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Discovers++
	return c.FailDiscover
}
