// Package schedule runs extraction followed by a refine once a day.
package schedule

import (
	"context"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/go-co-op/gocron"
	"github.com/pilosa/bovespa"
	"github.com/pilosa/bovespa/extract"
	"github.com/pkg/errors"
)

// Main holds the config for the schedule command.
type Main struct {
	extract.Main `flag:"!embed"`

	At         string `help:"Time of day (HH:MM in the configured time zone) at which to extract and refine."`
	RunOnStart bool   `help:"Also extract and refine once immediately."`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Main: *extract.NewMain(),
		At:   "18:30",
	}
}

// Run schedules the daily work and blocks until interrupted.
func (m *Main) Run() error {
	defer m.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()
	return m.Schedule(ctx)
}

// Schedule runs RunOnce every day at At until ctx is done. Runs never
// overlap; a run still going when the next one is due delays it.
func (m *Main) Schedule(ctx context.Context) error {
	if _, err := m.Job(); err != nil {
		return errors.Wrap(err, "setting up")
	}
	log := m.Log()
	if m.RunOnStart {
		m.runLogged(ctx)
	}
	if ctx.Err() != nil {
		return nil
	}

	s := gocron.NewScheduler(m.Location())
	s.SingletonModeAll()
	job, err := s.Every(1).Day().At(m.At).Do(m.runLogged, ctx)
	if err != nil {
		return errors.Wrapf(err, "scheduling at '%s'", m.At)
	}
	s.StartAsync()
	log.Printf("scheduled daily extract and refine at %s %s, next at %s", m.At, m.Timezone, job.NextRun())
	<-ctx.Done()
	s.Stop()
	log.Printf("scheduler stopped")
	return nil
}

func (m *Main) runLogged(ctx context.Context) {
	if _, err := m.RunOnce(ctx); err != nil {
		m.Log().Printf("scheduled run: %v", err)
	}
}

// RunOnce extracts today's snapshot and refines the full history, passing
// the new raw object along as the run's trigger. If extraction fails no
// refine is attempted.
func (m *Main) RunOnce(ctx context.Context) (bovespa.Result, error) {
	key, err := m.Extract(ctx)
	if err != nil {
		return bovespa.Result{}, err
	}
	o := bovespa.Override{
		RawPath:       m.ObjectStore().Location(key),
		PartitionDate: path.Base(path.Dir(key)),
	}
	return m.Refine(ctx, o)
}
