package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFlushPushes(t *testing.T) {
	var path, body string
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewStatter(srv.URL, "refine", "bovespa")
	if err != nil {
		t.Fatalf("new statter: %v", err)
	}
	s.Count("records.raw", 82, 1)
	s.Count("records.raw", 1, 1)
	s.Count("records.raw", -1, 1)
	s.Gauge("rows", 82, 1)
	s.Timing("step.publish", 2*time.Second, 1)
	s.Set("status", "Success", 1)
	if err := s.Flush(); err != nil {
		t.Fatalf("flushing: %v", err)
	}

	if method != http.MethodPut {
		t.Errorf("expected PUT, got %s", method)
	}
	if path != "/metrics/job/refine" {
		t.Errorf("unexpected push path %s", path)
	}
	for _, name := range []string{"bovespa_records_raw_total", "bovespa_rows", "bovespa_step_publish_duration_seconds", "bovespa_status_Success"} {
		if !strings.Contains(body, name) {
			t.Errorf("pushed body missing %s", name)
		}
	}
}

func TestFlushGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	s, err := NewStatter(srv.URL, "", "")
	if err != nil {
		t.Fatalf("new statter: %v", err)
	}
	s.Count("x", 1, 1)
	if err := s.Flush(); err == nil {
		t.Fatal("expected push error")
	}
}

func TestNewStatterNeedsURL(t *testing.T) {
	if _, err := NewStatter("", "", ""); err == nil {
		t.Fatal("expected error")
	}
}
