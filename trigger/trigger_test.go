package trigger

import (
	"context"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/pilosa/bovespa"
	"github.com/pilosa/bovespa/test"
)

const s3Event = `{
  "Records": [{
    "eventSource": "aws:s3",
    "eventName": "ObjectCreated:Put",
    "s3": {
      "bucket": {"name": "bovespa-raw"},
      "object": {"key": "raw/2024-01-02/bovespa_2024-01-02.parquet", "size": 4096}
    }
  }]
}`

func TestParse(t *testing.T) {
	ev, err := Parse([]byte(s3Event))
	test.ErrNil(t, err, "parsing")
	test.MustBe(t, Event{Bucket: "bovespa-raw", Key: "raw/2024-01-02/bovespa_2024-01-02.parquet"}, ev)
	o, err := ev.Override()
	test.ErrNil(t, err, "override")
	test.MustBe(t, bovespa.Override{
		RawPath:       "s3://bovespa-raw/raw/2024-01-02/bovespa_2024-01-02.parquet",
		PartitionDate: "2024-01-02",
	}, o)
}

func TestParseErrors(t *testing.T) {
	for _, doc := range []string{
		`not json`,
		`{"Records": []}`,
		`{"Records": [{"s3": {"bucket": {"name": "b"}}}]}`,
		`{"Records": [{"s3": {"bucket": {"name": "b"}, "object": {"key": "%zz"}}}]}`,
	} {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("expected error parsing %s", doc)
		}
	}
}

func TestPartition(t *testing.T) {
	tests := []struct {
		key string
		exp string
		err bool
	}{
		{key: "raw/2024-01-02/bovespa_2024-01-02.parquet", exp: "2024-01-02"},
		{key: "a/b/raw/2024-01-02/x.parquet", exp: "2024-01-02"},
		{key: "bovespa.parquet", err: true},
		{key: "/bovespa.parquet", err: true},
	}
	for _, tst := range tests {
		p, err := Event{Bucket: "b", Key: tst.key}.Partition()
		if tst.err {
			if err == nil {
				t.Errorf("%s: expected error, got %s", tst.key, p)
			}
			continue
		}
		test.ErrNil(t, err, tst.key)
		test.MustBe(t, tst.exp, p, tst.key)
	}
}

type recordingRunner struct {
	overrides []bovespa.Override
}

func (r *recordingRunner) Run(ctx context.Context, o bovespa.Override) bovespa.Result {
	r.overrides = append(r.overrides, o)
	return bovespa.Result{ProcessingDate: "2024-01-02", Status: bovespa.Success, Trigger: &o}
}

func TestHandlerFilters(t *testing.T) {
	r := &recordingRunner{}
	h := &Handler{Runner: r, Prefix: "raw/", Suffix: ".parquet"}
	res, err := h.Handle(context.Background(), []byte(s3Event))
	test.ErrNil(t, err, "handling")
	test.MustBe(t, bovespa.Success, res.Status)

	other := `{"Records": [{"s3": {"bucket": {"name": "b"}, "object": {"key": "refined/x/part.parquet"}}}]}`
	_, err = h.Handle(context.Background(), []byte(other))
	test.MustBe(t, ErrIgnored, err)
	test.MustBe(t, 1, len(r.overrides))
	test.MustBe(t, "2024-01-02", r.overrides[0].PartitionDate)
}

type fakeConsumer struct {
	msgs   chan *sarama.ConsumerMessage
	marked []int64
	closed bool
}

func (f *fakeConsumer) Messages() <-chan *sarama.ConsumerMessage { return f.msgs }

func (f *fakeConsumer) MarkOffset(msg *sarama.ConsumerMessage, metadata string) {
	f.marked = append(f.marked, msg.Offset)
}

func (f *fakeConsumer) Close() error {
	f.closed = true
	return nil
}

func TestListenerRun(t *testing.T) {
	fc := &fakeConsumer{msgs: make(chan *sarama.ConsumerMessage, 3)}
	fc.msgs <- &sarama.ConsumerMessage{Topic: "t", Offset: 0, Value: []byte(s3Event)}
	fc.msgs <- &sarama.ConsumerMessage{Topic: "t", Offset: 1, Value: []byte("garbage")}
	fc.msgs <- &sarama.ConsumerMessage{Topic: "t", Offset: 2, Value: []byte(s3Event)}

	l := NewListener()
	l.MaxMsgs = 3
	l.consumer = fc
	r := &recordingRunner{}
	err := l.Run(context.Background(), &Handler{Runner: r})
	test.ErrNil(t, err, "running")
	test.MustBe(t, []int64{0, 1, 2}, fc.marked)
	test.MustBe(t, 2, len(r.overrides))
	test.ErrNil(t, l.Close(), "closing")
	test.MustBe(t, true, fc.closed)
}

func TestListenerStopsOnContext(t *testing.T) {
	l := NewListener()
	l.consumer = &fakeConsumer{msgs: make(chan *sarama.ConsumerMessage)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.ErrNil(t, l.Run(ctx, &Handler{Runner: &recordingRunner{}}), "running")
}

func TestListenerNotOpen(t *testing.T) {
	if err := NewListener().Run(context.Background(), &Handler{}); err == nil {
		t.Fatal("expected error running unopened listener")
	}
}
