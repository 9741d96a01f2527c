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

package leveldb

import (
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/pilosa/bovespa"
	"github.com/pilosa/bovespa/test"
)

func tempDirName(t *testing.T) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "bovespa-ledger")
	if err != nil {
		t.Fatalf("getting temp dir: %v", err)
	}
	return dir
}

func TestLedger(t *testing.T) {
	dir := tempDirName(t)
	defer os.RemoveAll(dir)
	l, err := NewLedger(dir)
	test.ErrNil(t, err, "opening ledger")

	if _, ok, err := l.Latest(); ok || err != nil {
		t.Fatalf("empty ledger: ok=%v err=%v", ok, err)
	}

	t0 := time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC)
	runs := []bovespa.Result{
		{ProcessingDate: "2024-03-01", Status: bovespa.Failed, Kind: bovespa.KindPublish, Started: t0, Finished: t0},
		{ProcessingDate: "2024-03-01", Status: bovespa.Success, Rows: 80, Started: t0.Add(time.Hour), Finished: t0.Add(time.Hour)},
		{ProcessingDate: "2024-03-02", Status: bovespa.SuccessWithWarnings, Warnings: []string{"repair failed"}, Started: t0.Add(24 * time.Hour), Finished: t0.Add(24 * time.Hour)},
	}
	for _, r := range runs {
		test.ErrNil(t, l.Record(r), "recording")
	}

	got, err := l.Runs("2024-03-01")
	test.ErrNil(t, err, "runs")
	test.MustBe(t, 2, len(got))
	test.MustBe(t, bovespa.Failed, got[0].Status)
	test.MustBe(t, 80, got[1].Rows)

	all, err := l.Runs("")
	test.ErrNil(t, err, "all runs")
	test.MustBe(t, 3, len(all))

	test.ErrNil(t, l.Close(), "closing")
	l, err = NewLedger(dir)
	test.ErrNil(t, err, "reopening")
	defer l.Close()
	latest, ok, err := l.Latest()
	test.ErrNil(t, err, "latest")
	test.MustBe(t, true, ok)
	test.MustBe(t, runs[2].Warnings, latest.Warnings)
	test.MustBe(t, true, latest.Started.Equal(runs[2].Started))
}
