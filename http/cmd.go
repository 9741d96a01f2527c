package http

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pilosa/bovespa/refine"
	"github.com/pilosa/bovespa/trigger"
	"github.com/pkg/errors"
)

// Main holds the config for the serve command.
type Main struct {
	refine.Main `flag:"!embed"`

	Bind   string `help:"Listen for event notifications posted to /events on this address."`
	Prefix string `help:"Only object keys starting with this start a run."`
	Suffix string `help:"Only object keys ending with this start a run."`
}

// NewMain gets a new Main with default values.
func NewMain() *Main {
	return &Main{
		Main:   *refine.NewMain(),
		Bind:   ":12121",
		Suffix: ".parquet",
	}
}

// Server sets up the refine job and starts an EventServer for it.
func (m *Main) Server(opts ...EventServerOption) (*EventServer, error) {
	if _, err := m.Job(); err != nil {
		return nil, errors.Wrap(err, "setting up")
	}
	h := &trigger.Handler{Runner: trigger.RefineRunner{Main: &m.Main}, Prefix: m.Prefix, Suffix: m.Suffix, Log: m.Log()}
	opts = append([]EventServerOption{WithAddr(m.Bind), WithLogger(m.Log())}, opts...)
	return NewEventServer(h, opts...)
}

// Run serves until interrupted.
func (m *Main) Run() error {
	defer m.Close()
	s, err := m.Server()
	if err != nil {
		return errors.Wrap(err, "starting server")
	}
	m.Log().Printf("listening for events on %s", s.Addr())

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	select {
	case <-signals:
		return s.Close()
	case err := <-s.Err():
		return err
	}
}
