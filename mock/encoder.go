package mock

import (
	"fmt"
	"io"

	"github.com/pilosa/bovespa"
)

// Encoder writes one line of text per record. It's enough to compare outputs
// byte for byte without a columnar codec.
type Encoder struct {
	Fail error
}

// Encode implements bovespa.Encoder.
func (e Encoder) Encode(w io.Writer, recs []bovespa.OutputRecord) error {
	if e.Fail != nil {
		return e.Fail
	}
	for _, r := range recs {
		_, err := fmt.Fprintf(w, "%s|%s|%s|%v|%v|%s|%d|%v|%s\n",
			r.Code, r.Name, r.Category, r.Weight, r.Quantity, r.SnapshotDate,
			r.GroupFrequency, r.EntityTotalQuantity, r.ProcessingDate)
		if err != nil {
			return err
		}
	}
	return nil
}
