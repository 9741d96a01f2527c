package extract

import (
	"context"
	"fmt"

	"github.com/pilosa/bovespa/refine"
	"github.com/pkg/errors"
)

// Main holds the config for the extract command.
type Main struct {
	refine.Main `flag:"!embed"`

	BaseURL  string `help:"URL of the B3 portfolio endpoint. The encoded request is appended to it."`
	Index    string `help:"B3 index whose composition is downloaded."`
	Segment  string `help:"B3 segment code."`
	PageSize int    `help:"Constituents requested per page."`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Main:     *refine.NewMain(),
		BaseURL:  DefaultBaseURL,
		Index:    "IBOV",
		Segment:  "1",
		PageSize: 200,
	}
}

// Extractor returns an Extractor writing to the configured store.
func (m *Main) Extractor() (*Extractor, error) {
	if err := m.Setup(); err != nil {
		return nil, errors.Wrap(err, "setting up")
	}
	if m.PageSize <= 0 {
		return nil, errors.Errorf("page size must be positive, got %d", m.PageSize)
	}
	e := NewExtractor(m.ObjectStore())
	e.BaseURL = m.BaseURL
	e.Index = m.Index
	e.Segment = m.Segment
	e.PageSize = m.PageSize
	e.Prefix = m.RawPrefix
	e.Location = m.Location()
	e.Log = m.Log()
	return e, nil
}

// Run downloads today's composition and writes the raw snapshot.
func (m *Main) Run() error {
	defer m.Close()
	_, err := m.Extract(context.Background())
	return err
}

// Extract downloads today's composition and prints where it was written. It
// returns the key of the raw object.
func (m *Main) Extract(ctx context.Context) (string, error) {
	e, err := m.Extractor()
	if err != nil {
		return "", err
	}
	m.Log().Debugf("extracting from %s", e)
	key, n, err := e.Extract(ctx)
	if err != nil {
		return "", errors.Wrap(err, "extracting")
	}
	if m.Stdout != nil {
		fmt.Fprintf(m.Stdout, "%s %d\n", m.ObjectStore().Location(key), n)
	}
	return key, nil
}
