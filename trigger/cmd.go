package trigger

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"

	"github.com/pilosa/bovespa"
	"github.com/pilosa/bovespa/refine"
	"github.com/pkg/errors"
)

// RefineRunner runs refines through a refine.Main so each Result is printed
// and recorded like a command line refine.
type RefineRunner struct {
	Main *refine.Main
}

// Run implements Runner.
func (r RefineRunner) Run(ctx context.Context, o bovespa.Override) bovespa.Result {
	res, err := r.Main.Refine(ctx, o)
	if err != nil && res.Status == "" {
		res.Status = bovespa.Failed
		res.Detail = err.Error()
	}
	return res
}

// Main holds the config for the trigger command, which runs one refine for
// one S3 event notification.
type Main struct {
	refine.Main `flag:"!embed"`

	Event  string `help:"File holding an S3 event notification. '-' reads it from stdin."`
	Prefix string `help:"Only object keys starting with this start a run."`
	Suffix string `help:"Only object keys ending with this start a run."`

	Stdin io.Reader `flag:"-"`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Main:   *refine.NewMain(),
		Event:  "-",
		Suffix: ".parquet",
		Stdin:  os.Stdin,
	}
}

// Run reads the event and runs a refine for it. An ignored event is not an
// error.
func (m *Main) Run() error {
	defer m.Close()
	var data []byte
	var err error
	if m.Event == "-" {
		data, err = ioutil.ReadAll(m.Stdin)
	} else {
		data, err = ioutil.ReadFile(m.Event)
	}
	if err != nil {
		return errors.Wrap(err, "reading event")
	}
	if err := m.Setup(); err != nil {
		return errors.Wrap(err, "setting up")
	}
	h := &Handler{Runner: RefineRunner{Main: &m.Main}, Prefix: m.Prefix, Suffix: m.Suffix, Log: m.Log()}
	res, err := h.Handle(context.Background(), data)
	switch {
	case err == ErrIgnored:
		return nil
	case err != nil:
		return errors.Wrap(err, "handling event")
	case res.Status == bovespa.Failed:
		return errors.Errorf("run %s failed: %s", res.ProcessingDate, res.Kind)
	}
	return nil
}

// ListenMain holds the config for the listen command, which runs a refine
// for every S3 event notification consumed from Kafka.
type ListenMain struct {
	refine.Main `flag:"!embed"`

	KafkaHosts []string `help:"Comma separated list of host:port pairs for Kafka."`
	Topics     []string `help:"Kafka topics carrying the S3 event notifications."`
	Group      string   `help:"Kafka consumer group."`
	MaxMsgs    int      `help:"Number of messages to consume before stopping. Zero runs until interrupted."`
	Prefix     string   `help:"Only object keys starting with this start a run."`
	Suffix     string   `help:"Only object keys ending with this start a run."`
}

// NewListenMain gets a new ListenMain with the default configuration.
func NewListenMain() *ListenMain {
	l := NewListener()
	return &ListenMain{
		Main:       *refine.NewMain(),
		KafkaHosts: l.Hosts,
		Topics:     l.Topics,
		Group:      l.Group,
		Suffix:     ".parquet",
	}
}

// Listener returns an unopened Listener for the configured cluster.
func (m *ListenMain) Listener() *Listener {
	l := NewListener()
	l.Hosts = m.KafkaHosts
	l.Topics = m.Topics
	l.Group = m.Group
	l.MaxMsgs = m.MaxMsgs
	l.Log = m.Log()
	return l
}

// Handler returns the Handler runs are started through.
func (m *ListenMain) Handler() *Handler {
	return &Handler{Runner: RefineRunner{Main: &m.Main}, Prefix: m.Prefix, Suffix: m.Suffix, Log: m.Log()}
}

// Run consumes events until interrupted or MaxMsgs is reached.
func (m *ListenMain) Run() error {
	defer m.Close()
	if _, err := m.Job(); err != nil {
		return errors.Wrap(err, "setting up")
	}
	l := m.Listener()
	if err := l.Open(); err != nil {
		return errors.Wrap(err, "opening listener")
	}
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()
	m.Log().Printf("listening on %v for raw objects", m.Topics)
	return l.Run(ctx, m.Handler())
}
