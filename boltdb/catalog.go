// Package boltdb provides a bovespa.Catalog stored in a local boltdb file. It
// stands in for a hosted catalog during local development: partition
// discovery lists the table location in a bovespa.Store.
package boltdb

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pilosa/bovespa"
	"github.com/pkg/errors"
)

var (
	dbBucket        = []byte("databases")
	tableBucket     = []byte("tables")
	partitionBucket = []byte("partitions")
)

// Catalog is a bovespa.Catalog which keeps databases, table descriptors and
// discovered partitions in boltdb.
type Catalog struct {
	Db    *bolt.DB
	store bovespa.Store
	log   bovespa.Logger
}

// NewCatalog opens (or creates) the catalog in filename. store is listed
// during partition discovery and must hold the table locations.
func NewCatalog(filename string, store bovespa.Store, log bovespa.Logger) (c *Catalog, err error) {
	if log == nil {
		log = bovespa.NopLogger{}
	}
	c = &Catalog{store: store, log: log}
	c.Db, err = bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	err = c.Db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{dbBucket, tableBucket, partitionBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return errors.Wrapf(err, "creating %s bucket", b)
			}
		}
		return nil
	})
	if err != nil {
		c.Db.Close()
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return c, nil
}

// Close syncs and closes the underlying boltdb.
func (c *Catalog) Close() error {
	err := c.Db.Sync()
	if err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return c.Db.Close()
}

func tableKey(database, name string) []byte {
	return []byte(database + "." + name)
}

// GetDatabase implements bovespa.Catalog.
func (c *Catalog) GetDatabase(ctx context.Context, name string) error {
	return c.Db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(dbBucket).Get([]byte(name)) == nil {
			return errors.Wrapf(bovespa.ErrNotFound, "database %s", name)
		}
		return nil
	})
}

// CreateDatabase implements bovespa.Catalog.
func (c *Catalog) CreateDatabase(ctx context.Context, name string) error {
	return c.Db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(dbBucket)
		if b.Get([]byte(name)) != nil {
			return errors.Errorf("database %s already exists", name)
		}
		return errors.Wrap(b.Put([]byte(name), []byte(time.Now().UTC().Format(time.RFC3339))), "putting database")
	})
}

// GetTable implements bovespa.Catalog.
func (c *Catalog) GetTable(ctx context.Context, database, name string) (td bovespa.TableDescriptor, err error) {
	err = c.Db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(tableBucket).Get(tableKey(database, name))
		if val == nil {
			return errors.Wrapf(bovespa.ErrNotFound, "table %s.%s", database, name)
		}
		return errors.Wrap(json.Unmarshal(val, &td), "decoding table descriptor")
	})
	return td, err
}

// CreateTable implements bovespa.Catalog.
func (c *Catalog) CreateTable(ctx context.Context, td bovespa.TableDescriptor) error {
	return c.putTable(td, true)
}

// UpdateTable implements bovespa.Catalog.
func (c *Catalog) UpdateTable(ctx context.Context, td bovespa.TableDescriptor) error {
	return c.putTable(td, false)
}

func (c *Catalog) putTable(td bovespa.TableDescriptor, create bool) error {
	val, err := json.Marshal(td)
	if err != nil {
		return errors.Wrap(err, "encoding table descriptor")
	}
	return c.Db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(dbBucket).Get([]byte(td.Database)) == nil {
			return errors.Wrapf(bovespa.ErrNotFound, "database %s", td.Database)
		}
		b := tx.Bucket(tableBucket)
		key := tableKey(td.Database, td.Name)
		exists := b.Get(key) != nil
		if create && exists {
			return errors.Errorf("table %s already exists", key)
		}
		if !create && !exists {
			return errors.Wrapf(bovespa.ErrNotFound, "table %s", key)
		}
		return errors.Wrap(b.Put(key, val), "putting table")
	})
}

// DiscoverPartitions lists the table location and records every
// <partition key>=<value> folder found directly beneath it.
func (c *Catalog) DiscoverPartitions(ctx context.Context, database, name string) error {
	td, err := c.GetTable(ctx, database, name)
	if err != nil {
		return err
	}
	if len(td.PartitionKeys) == 0 {
		return nil
	}
	prefix, err := c.store.Key(td.Location)
	if err != nil {
		return errors.Wrap(err, "resolving table location")
	}
	keys, err := c.store.List(ctx, prefix+"/")
	if err != nil {
		return errors.Wrap(err, "listing table location")
	}
	pkey := td.PartitionKeys[0].Name + "="
	found := make(map[string]string)
	for _, k := range keys {
		seg := strings.SplitN(strings.TrimPrefix(k, prefix+"/"), "/", 2)[0]
		if strings.HasPrefix(seg, pkey) {
			found[strings.TrimPrefix(seg, pkey)] = c.store.Location(path.Join(prefix, seg))
		}
	}
	err = c.Db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(partitionBucket).CreateBucketIfNotExists(tableKey(database, name))
		if err != nil {
			return errors.Wrap(err, "creating table partition bucket")
		}
		for val, loc := range found {
			if err := b.Put([]byte(val), []byte(loc)); err != nil {
				return errors.Wrap(err, "putting partition")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.log.Printf("discovered %d partitions of %s.%s", len(found), database, name)
	return nil
}

// Partitions returns the partition values registered for a table, mapped to
// their locations.
func (c *Catalog) Partitions(database, name string) (map[string]string, error) {
	parts := make(map[string]string)
	err := c.Db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(partitionBucket).Bucket(tableKey(database, name))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			parts[string(k)] = string(v)
			return nil
		})
	})
	return parts, err
}
