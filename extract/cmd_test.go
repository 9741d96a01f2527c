package extract

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pilosa/bovespa/test"
)

func TestMainExtract(t *testing.T) {
	srv, _ := b3Server(200)
	defer srv.Close()
	dir, cleanup := test.TempDir(t, "extract")
	defer cleanup()

	out := &bytes.Buffer{}
	m := NewMain()
	m.Dir = dir
	m.LogPath = filepath.Join(dir, "extract.log")
	m.BaseURL = srv.URL + "/indexProxy/indexCall/GetPortfolioDay/"
	m.Stdout = out
	defer m.Close()

	key, err := m.Extract(context.Background())
	test.ErrNil(t, err, "extracting")
	if !strings.HasPrefix(key, "raw/") || !strings.HasSuffix(key, ".parquet") {
		t.Fatalf("unexpected key %s", key)
	}
	if !strings.HasSuffix(out.String(), " 3\n") || !strings.HasPrefix(out.String(), "file://") {
		t.Fatalf("unexpected output %q", out)
	}
	keys, err := m.ObjectStore().List(context.Background(), "raw/")
	test.ErrNil(t, err, "listing")
	test.MustBe(t, []string{key}, keys)
}

func TestMainPageSize(t *testing.T) {
	dir, cleanup := test.TempDir(t, "extract")
	defer cleanup()
	m := NewMain()
	m.Dir = dir
	m.PageSize = 0
	m.Stdout = nil
	defer m.Close()
	if _, err := m.Extractor(); err == nil {
		t.Fatal("expected error for zero page size")
	}
}
