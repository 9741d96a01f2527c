package termstat

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestCollectorFlush(t *testing.T) {
	buf := &bytes.Buffer{}
	c := NewCollector(buf, 0)
	defer c.Close()
	c.Count("records.raw", 80, 1)
	c.Count("records.raw", 2, 1)
	c.Count("run.Success", 1, 1)
	c.Timing("step.publish", 2*time.Second, 1)
	c.Timing("step.publish", time.Second, 1)
	c.Gauge("rows", 82, 1)
	if err := c.Flush(); err != nil {
		t.Fatalf("flushing: %v", err)
	}
	exp := "\nrecords.raw: 82\nrows: 82\nrun.Success: 1\nstep.publish: 3s\n"
	if buf.String() != exp {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestCollectorWrite(t *testing.T) {
	buf := &bytes.Buffer{}
	c := NewCollector(buf, 0)
	c.write()
	if buf.Len() != 0 {
		t.Fatalf("wrote without changes: %q", buf.String())
	}
	c.Count("records.published", 3, 1)
	c.write()
	if !strings.Contains(buf.String(), "records.published: 3") {
		t.Fatalf("unexpected output %q", buf.String())
	}
	c.Close()
	c.Close()
}
