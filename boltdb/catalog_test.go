// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package boltdb

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-sql/civil"
	"github.com/pilosa/bovespa"
	"github.com/pilosa/bovespa/file"
	"github.com/pilosa/bovespa/mock"
	"github.com/pilosa/bovespa/test"
	"github.com/pkg/errors"
)

func newTestCatalog(t *testing.T) (*Catalog, *file.Store, func()) {
	t.Helper()
	dir, cleanup := test.TempDir(t, "bovespa-bolt")
	store, err := file.NewStore(filepath.Join(dir, "data"))
	test.ErrNil(t, err, "new store")
	c, err := NewCatalog(filepath.Join(dir, "catalog.db"), store, nil)
	test.ErrNil(t, err, "new catalog")
	return c, store, func() {
		c.Close()
		cleanup()
	}
}

func TestCatalogUpsert(t *testing.T) {
	c, _, done := newTestCatalog(t)
	defer done()
	ctx := context.Background()

	err := c.GetDatabase(ctx, "bovespa_db")
	test.MustBe(t, bovespa.ErrNotFound, errors.Cause(err))
	test.ErrNil(t, c.CreateDatabase(ctx, "bovespa_db"), "creating database")
	test.ErrNil(t, c.GetDatabase(ctx, "bovespa_db"), "getting database")
	if err := c.CreateDatabase(ctx, "bovespa_db"); err == nil {
		t.Fatal("expected error creating database twice")
	}

	td := bovespa.NewTableDescriptor("bovespa_db", "tb_refined_data", "file:///x")
	if err := c.UpdateTable(ctx, td); errors.Cause(err) != bovespa.ErrNotFound {
		t.Fatalf("expected not found updating missing table, got %v", err)
	}
	test.ErrNil(t, c.CreateTable(ctx, td), "creating table")
	got, err := c.GetTable(ctx, "bovespa_db", "tb_refined_data")
	test.ErrNil(t, err, "getting table")
	test.MustBe(t, td, got)

	td.Location = "file:///y"
	test.ErrNil(t, c.UpdateTable(ctx, td), "updating table")
	got, _ = c.GetTable(ctx, "bovespa_db", "tb_refined_data")
	test.MustBe(t, "file:///y", got.Location)
}

func TestCatalogDiscoverPublished(t *testing.T) {
	c, store, done := newTestCatalog(t)
	defer done()
	ctx := context.Background()

	pub := &bovespa.Publisher{Store: store, Encoder: mock.Encoder{}}
	recs := bovespa.Aggregator{}.Aggregate([]bovespa.Record{{Code: "PETR4", Name: "PETR4", Category: "ON", Quantity: 1}})
	part, err := pub.Publish(ctx, recs, civil.Date{Year: 2024, Month: 3, Day: 1})
	test.ErrNil(t, err, "publishing")

	reg, err := (&bovespa.Registrar{Catalog: c}).Register(ctx, part)
	test.ErrNil(t, err, "registering")
	if reg.Warning != nil {
		t.Fatalf("unexpected warning: %v", reg.Warning)
	}
	parts, err := c.Partitions(bovespa.DefaultDatabase, bovespa.DefaultTable)
	test.ErrNil(t, err, "partitions")
	test.MustBe(t, 1, len(parts))
	loc := parts["2024-03-01"]
	if !strings.HasSuffix(loc, "refined/bovespa_refined_data_2024-03-01/dataproc=2024-03-01") {
		t.Fatalf("unexpected partition location %s", loc)
	}
}

func TestCatalogDiscoverMissingTable(t *testing.T) {
	c, _, done := newTestCatalog(t)
	defer done()
	err := c.DiscoverPartitions(context.Background(), "db", "t")
	test.MustBe(t, bovespa.ErrNotFound, errors.Cause(err))
}
