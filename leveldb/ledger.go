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

// Package leveldb keeps a durable history of refine run results in leveldb so
// operators can see degraded or failed runs after the fact.
package leveldb

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pilosa/bovespa"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var _ bovespa.Ledger = &Ledger{}

const runPrefix = "run/"

// Ledger is a bovespa.Ledger which stores one JSON document per run, keyed by
// processing date and start time so iteration is chronological.
type Ledger struct {
	mu  sync.Mutex
	db  *leveldb.DB
	seq uint32
}

// NewLedger opens (or creates) a ledger in dirname.
func NewLedger(dirname string) (*Ledger, error) {
	db, err := leveldb.OpenFile(dirname, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %v", dirname)
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying leveldb.
func (l *Ledger) Close() error {
	return errors.Wrap(l.db.Close(), "closing ledger")
}

func (l *Ledger) key(res bovespa.Result) []byte {
	l.seq++
	return []byte(fmt.Sprintf("%s%s/%020d/%08d", runPrefix, res.ProcessingDate, res.Started.UnixNano(), l.seq))
}

// Record implements bovespa.Ledger.
func (l *Ledger) Record(res bovespa.Result) error {
	val, err := json.Marshal(res)
	if err != nil {
		return errors.Wrap(err, "encoding result")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Wrap(l.db.Put(l.key(res), val, &opt.WriteOptions{Sync: true}), "writing result")
}

// Runs returns every recorded run for a processing date (YYYY-MM-DD), or
// every run at all if date is empty, oldest first.
func (l *Ledger) Runs(date string) ([]bovespa.Result, error) {
	prefix := runPrefix
	if date != "" {
		prefix += date + "/"
	}
	iter := l.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	results := make([]bovespa.Result, 0)
	for iter.Next() {
		var res bovespa.Result
		if err := json.Unmarshal(iter.Value(), &res); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", iter.Key())
		}
		results = append(results, res)
	}
	return results, errors.Wrap(iter.Error(), "iterating runs")
}

// Latest returns the most recent recorded run. ok is false if there are none.
func (l *Ledger) Latest() (res bovespa.Result, ok bool, err error) {
	iter := l.db.NewIterator(util.BytesPrefix([]byte(runPrefix)), nil)
	defer iter.Release()
	if !iter.Last() {
		return res, false, errors.Wrap(iter.Error(), "seeking last run")
	}
	if err := json.Unmarshal(iter.Value(), &res); err != nil {
		return res, false, errors.Wrapf(err, "decoding %s", iter.Key())
	}
	return res, true, nil
}
