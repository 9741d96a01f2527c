// Package file implements bovespa.Store on a local directory tree.
package file

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Store is a bovespa.Store which keeps each object in a file under a root
// directory. Keys map to slash separated paths relative to the root.
type Store struct {
	root string
}

// NewStore returns a Store rooted at dir, creating dir if needed.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", dir)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", abs)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) path(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if p != s.root && !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", errors.Errorf("key escapes store root: %s", key)
	}
	return p, nil
}

// Put writes r to a temp file next to the target and renames it into place,
// so the object is replaced atomically.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	f, err := ioutil.TempFile(dir, ".tmp-"+filepath.Base(p)+"-")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmp := f.Name()
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "writing %s", key)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "syncing %s", key)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "closing %s", key)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "renaming into %s", key)
	}
	return nil
}

// Get implements bovespa.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := ioutil.ReadFile(p)
	return data, errors.Wrapf(err, "reading %s", key)
}

// List walks the root and returns every key beginning with prefix. Temp files
// of in-flight Puts are skipped.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	err := filepath.Walk(s.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", s.root)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the objects at keys. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		p, err := s.path(key)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing %s", key)
		}
	}
	return nil
}

// Location returns a file:// URI for key.
func (s *Store) Location(key string) string {
	return "file://" + filepath.ToSlash(filepath.Join(s.root, filepath.FromSlash(key)))
}

// Key implements bovespa.Store.
func (s *Store) Key(location string) (string, error) {
	p := strings.TrimPrefix(location, "file://")
	rel, err := filepath.Rel(s.root, filepath.FromSlash(p))
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errors.Errorf("%s is not under %s", location, s.root)
	}
	return filepath.ToSlash(rel), nil
}
