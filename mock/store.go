package mock

import (
	"context"
	"io"
	"io/ioutil"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Store is an in memory bovespa.Store. Setting one of the Fail* fields makes
// the corresponding operation return that error.
type Store struct {
	mu      sync.Mutex
	objects map[string][]byte

	FailPut    error
	FailList   error
	FailDelete error

	Puts    int
	Deletes []string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Put implements bovespa.Store.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) error {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading object body")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPut != nil {
		return s.FailPut
	}
	s.objects[key] = data
	s.Puts++
	return nil
}

// Get implements bovespa.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.Errorf("no such key: %s", key)
	}
	return data, nil
}

// List implements bovespa.Store.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailList != nil {
		return nil, s.FailList
	}
	keys := make([]string, 0)
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete implements bovespa.Store.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete != nil {
		return s.FailDelete
	}
	for _, k := range keys {
		delete(s.objects, k)
		s.Deletes = append(s.Deletes, k)
	}
	return nil
}

// Location implements bovespa.Store.
func (s *Store) Location(key string) string {
	return "mem://" + key
}

// Key implements bovespa.Store.
func (s *Store) Key(location string) (string, error) {
	if !strings.HasPrefix(location, "mem://") {
		return "", errors.Errorf("not a mem location: %s", location)
	}
	return strings.TrimPrefix(location, "mem://"), nil
}

// Object returns the contents of key without going through the Store
// interface.
func (s *Store) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

// SetObject stores data at key without going through the Store interface.
func (s *Store) SetObject(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
}
