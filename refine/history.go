package refine

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pilosa/bovespa"
	"github.com/pilosa/bovespa/leveldb"
	"github.com/pkg/errors"
)

// HistoryMain holds the config for the history command, which prints run
// results from the ledger.
type HistoryMain struct {
	LedgerPath string `help:"Directory of the run ledger."`
	Date       string `help:"Processing date (YYYY-MM-DD) whose runs are shown. Empty shows the latest run."`
	All        bool   `help:"Show every recorded run."`
	Degraded   bool   `help:"Only show runs which failed or had warnings."`

	Stdout io.Writer `flag:"-"`
}

// NewHistoryMain gets a new HistoryMain with the default configuration.
func NewHistoryMain() *HistoryMain {
	return &HistoryMain{
		LedgerPath: "bovespa-ledger",
		Stdout:     os.Stdout,
	}
}

// Run prints the selected runs as JSON, one per line, oldest first.
func (m *HistoryMain) Run() error {
	ledger, err := leveldb.NewLedger(m.LedgerPath)
	if err != nil {
		return errors.Wrap(err, "opening ledger")
	}
	defer ledger.Close()

	var runs []bovespa.Result
	switch {
	case m.All || m.Date != "":
		runs, err = ledger.Runs(m.Date)
	default:
		var res bovespa.Result
		var ok bool
		res, ok, err = ledger.Latest()
		if ok {
			runs = []bovespa.Result{res}
		}
	}
	if err != nil {
		return errors.Wrap(err, "reading ledger")
	}
	enc := json.NewEncoder(m.Stdout)
	for _, res := range runs {
		if m.Degraded && res.Status == bovespa.Success {
			continue
		}
		if err := enc.Encode(res); err != nil {
			return errors.Wrap(err, "writing run")
		}
	}
	return nil
}
