// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package trigger

import (
	"context"
	"io/ioutil"
	"log"

	"github.com/Shopify/sarama"
	cluster "github.com/bsm/sarama-cluster"
	"github.com/pilosa/bovespa"
	"github.com/pkg/errors"
)

// consumer is the part of a cluster.Consumer the Listener uses.
type consumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	MarkOffset(msg *sarama.ConsumerMessage, metadata string)
	Close() error
}

// Listener consumes S3 event notifications from Kafka and hands each to a
// Handler. Runs happen one at a time, in message order.
type Listener struct {
	Hosts  []string
	Topics []string
	Group  string

	// MaxMsgs stops the Listener after that many messages if positive.
	MaxMsgs int

	Log bovespa.Logger

	consumer consumer
}

// NewListener gets a new Listener with default settings.
func NewListener() *Listener {
	return &Listener{
		Hosts:  []string{"localhost:9092"},
		Topics: []string{"bovespa-raw-events"},
		Group:  "bovespa-refine",
		Log:    bovespa.NopLogger{},
	}
}

// Open initializes the kafka consumer.
func (l *Listener) Open() error {
	// init (custom) config, enable errors and notifications
	sarama.Logger = log.New(ioutil.Discard, "", 0)
	config := cluster.NewConfig()
	config.Config.Version = sarama.V0_10_0_0
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Group.Return.Notifications = true

	c, err := cluster.NewConsumer(l.Hosts, l.Group, l.Topics, config)
	if err != nil {
		return errors.Wrap(err, "getting new consumer")
	}
	l.consumer = c

	// consume errors
	go func() {
		for err := range c.Errors() {
			l.Log.Printf("kafka error: %v", err)
		}
	}()

	// consume notifications
	go func() {
		for ntf := range c.Notifications() {
			l.Log.Printf("rebalanced: %+v", ntf)
		}
	}()
	return nil
}

// Run handles messages until ctx is done, the message channel closes, or
// MaxMsgs messages have been handled. Every message is marked as processed
// once handled, whatever the run's outcome; results go to the job's ledger.
func (l *Listener) Run(ctx context.Context, h *Handler) error {
	if l.consumer == nil {
		return errors.New("listener not open")
	}
	for n := 0; l.MaxMsgs <= 0 || n < l.MaxMsgs; n++ {
		var msg *sarama.ConsumerMessage
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case msg, ok = <-l.consumer.Messages():
			if !ok {
				return errors.New("messages channel closed")
			}
		}
		res, err := h.Handle(ctx, msg.Value)
		switch {
		case err == ErrIgnored:
		case err != nil:
			l.Log.Printf("skipping message %s/%d/%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
		default:
			l.Log.Printf("run %s: %s", res.ProcessingDate, res.Status)
		}
		l.consumer.MarkOffset(msg, "") // mark message as processed
	}
	return nil
}

// Close closes the underlying kafka consumer.
func (l *Listener) Close() error {
	if l.consumer == nil {
		return nil
	}
	err := l.consumer.Close()
	return errors.Wrap(err, "closing kafka consumer")
}
