package test

import (
	"io/ioutil"
	"os"
	"reflect"
	"testing"

	"github.com/pilosa/bovespa"
)

// MustBe uses reflect.DeepEqual to assert that thing1 and thing2 are equal, and
// fails otherwise.
func MustBe(t *testing.T, thing1, thing2 interface{}, context ...string) {
	t.Helper()
	var ctx string
	if len(context) == 0 {
		ctx = ""
	} else {
		ctx = context[0] + ": "
	}
	if !reflect.DeepEqual(thing1, thing2) {
		t.Fatalf("%v'%#v' != '%#v'", ctx, thing1, thing2)
	}
}

// ErrNil asserts that the err is nil and fails otherwise.
func ErrNil(t *testing.T, err error, ctx string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%v: %v", ctx, err)
	}
}

// TempDir creates a temporary directory and returns it along with a function
// that removes it.
func TempDir(t *testing.T, prefix string) (string, func()) {
	t.Helper()
	d, err := ioutil.TempDir("", prefix)
	if err != nil {
		t.Fatalf("getting temp dir: %v", err)
	}
	return d, func() { os.RemoveAll(d) }
}

// Raw builds a raw snapshot record the way the extractor writes them.
func Raw(code, name, category, weight, qty, date string) bovespa.RawRecord {
	return bovespa.RawRecord{
		"segment":           "",
		bovespa.RawCode:     code,
		bovespa.RawName:     name,
		bovespa.RawCategory: category,
		bovespa.RawWeight:   weight,
		"partAcum":          "",
		bovespa.RawQuantity: qty,
		bovespa.RawDate:     date,
	}
}
