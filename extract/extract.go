// Package extract fetches the current IBOVESPA composition from B3 and
// writes it to the raw area of a bovespa.Store as one parquet object per
// snapshot date.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/pilosa/bovespa"
	"github.com/pilosa/bovespa/parquetio"
	"github.com/pkg/errors"
)

// DefaultBaseURL is the B3 portfolio endpoint. The base64 encoded request
// payload is appended as the last path element.
const DefaultBaseURL = "https://sistemaswebb3-listados.b3.com.br/indexProxy/indexCall/GetPortfolioDay/"

type payload struct {
	Language   string `json:"language"`
	PageNumber int    `json:"pageNumber"`
	PageSize   int    `json:"pageSize"`
	Index      string `json:"index"`
	Segment    string `json:"segment"`
}

type page struct {
	Page struct {
		PageNumber   int `json:"pageNumber"`
		PageSize     int `json:"pageSize"`
		TotalRecords int `json:"totalRecords"`
		TotalPages   int `json:"totalPages"`
	} `json:"page"`
	Results []struct {
		Segment      string `json:"segment"`
		Cod          string `json:"cod"`
		Asset        string `json:"asset"`
		Type         string `json:"type"`
		Part         string `json:"part"`
		PartAcum     string `json:"partAcum"`
		TheoricalQty string `json:"theoricalQty"`
	} `json:"results"`
}

// Extractor downloads one day's index composition.
type Extractor struct {
	Client  *http.Client
	BaseURL string
	Index   string
	Segment string

	// PageSize is the number of constituents requested per page.
	PageSize int

	Store bovespa.Store

	// Prefix is the raw root key. Objects are written to
	// <Prefix>/<date>/bovespa_<date>.parquet.
	Prefix string

	// Now and Location determine the snapshot date.
	Now      func() time.Time
	Location *time.Location

	Log bovespa.Logger
}

// NewExtractor returns an Extractor with the defaults used for IBOV.
func NewExtractor(store bovespa.Store) *Extractor {
	return &Extractor{
		Client:   &http.Client{Timeout: 30 * time.Second},
		BaseURL:  DefaultBaseURL,
		Index:    "IBOV",
		Segment:  "1",
		PageSize: 200,
		Store:    store,
		Prefix:   "raw",
		Now:      time.Now,
		Location: time.UTC,
		Log:      bovespa.NopLogger{},
	}
}

// Key returns the raw object key for snapshot date d.
func (e *Extractor) Key(d civil.Date) string {
	return path.Join(e.Prefix, d.String(), "bovespa_"+d.String()+".parquet")
}

// Extract fetches every page of the composition, strips the digit grouping
// from the theoretical quantities, stamps today's date and writes the raw
// object. It returns the key written and the number of rows.
func (e *Extractor) Extract(ctx context.Context) (string, int, error) {
	date := civil.DateOf(e.Now().In(e.Location))
	rows := make([]parquetio.RawRow, 0)
	for n, total := 1, 1; n <= total; n++ {
		p, err := e.fetch(ctx, n)
		if err != nil {
			return "", 0, errors.Wrapf(err, "fetching page %d", n)
		}
		total = p.Page.TotalPages
		for _, r := range p.Results {
			rows = append(rows, parquetio.RawRow{
				Segment:      r.Segment,
				Cod:          r.Cod,
				Asset:        r.Asset,
				Type:         r.Type,
				Part:         r.Part,
				PartAcum:     r.PartAcum,
				TheoricalQty: strings.Replace(r.TheoricalQty, ".", "", -1),
				PregaoDate:   date.String(),
			})
		}
		e.Log.Debugf("page %d/%d: %d constituents", n, total, len(p.Results))
	}
	if len(rows) == 0 {
		return "", 0, errors.New("no constituents returned")
	}

	buf := &bytes.Buffer{}
	if err := parquetio.WriteRaw(buf, rows); err != nil {
		return "", 0, errors.Wrap(err, "encoding raw snapshot")
	}
	key := e.Key(date)
	if err := e.Store.Put(ctx, key, buf); err != nil {
		return "", 0, errors.Wrap(err, "writing raw snapshot")
	}
	e.Log.Printf("wrote %d constituents to %s", len(rows), e.Store.Location(key))
	return key, len(rows), nil
}

func (e *Extractor) fetch(ctx context.Context, n int) (*page, error) {
	body, err := json.Marshal(payload{
		Language:   "pt-br",
		PageNumber: n,
		PageSize:   e.PageSize,
		Index:      e.Index,
		Segment:    e.Segment,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encoding payload")
	}
	url := e.BaseURL + base64.StdEncoding.EncodeToString(body)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "requesting")
	}
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %s: %.200s", resp.Status, data)
	}
	p := &page{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, errors.Wrap(err, "decoding response")
	}
	return p, nil
}

// String describes the request an Extractor makes.
func (e *Extractor) String() string {
	return fmt.Sprintf("%s index=%s segment=%s", e.BaseURL, e.Index, e.Segment)
}
