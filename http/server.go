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

// Package http runs refines for S3 event notifications POSTed to it, e.g. by
// an SNS HTTP subscription or an EventBridge API destination.
package http

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pilosa/bovespa"
	"github.com/pilosa/bovespa/trigger"
	"github.com/pkg/errors"
)

// EventServer accepts S3 event notifications on POST /events and runs a
// refine for each one through its Handler. Runs never overlap; requests
// which arrive during a run wait for it.
type EventServer struct {
	addr     string
	listener net.Listener
	server   *http.Server
	handler  *trigger.Handler
	log      bovespa.Logger

	mu   sync.Mutex
	errs chan error
}

// EventServerOption is a functional option type for EventServer.
type EventServerOption func(s *EventServer)

// WithAddr is an option for the EventServer which causes it to bind to the
// given address.
func WithAddr(addr string) EventServerOption {
	return func(s *EventServer) {
		s.addr = addr
	}
}

// WithListener is an option for EventServer which causes it to use the given
// listener. It will infer the address from the listener.
func WithListener(l net.Listener) EventServerOption {
	return func(s *EventServer) {
		s.listener = l
		s.addr = l.Addr().String()
	}
}

// WithLogger sets the EventServer's logger.
func WithLogger(l bovespa.Logger) EventServerOption {
	return func(s *EventServer) {
		s.log = l
	}
}

// NewEventServer starts serving events for h.
func NewEventServer(h *trigger.Handler, opts ...EventServerOption) (*EventServer, error) {
	s := &EventServer{
		handler: h,
		log:     bovespa.NopLogger{},
		errs:    make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.listener == nil {
		var err error
		s.listener, err = net.Listen("tcp", s.addr)
		if err != nil {
			return nil, errors.Wrap(err, "listening")
		}
	}
	if tl, ok := s.listener.(*net.TCPListener); ok {
		s.listener = tcpKeepAliveListener{tl}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvent)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		err := s.server.Serve(s.listener)
		if err != nil && err != http.ErrServerClosed {
			s.errs <- errors.Wrap(err, "serving")
		}
		close(s.errs)
	}()
	return s, nil
}

// Addr gets the address that the EventServer is listening on.
func (s *EventServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Err returns a channel which receives the error that stopped the server,
// if any, and is closed once it has stopped.
func (s *EventServer) Err() <-chan error {
	return s.errs
}

// Close stops the server.
func (s *EventServer) Close() error {
	return errors.Wrap(s.server.Close(), "closing server")
}

func (s *EventServer) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "unsupported method: "+r.Method, http.StatusMethodNotAllowed)
		return
	}
	data, err := ioutil.ReadAll(r.Body)
	if err != nil {
		http.Error(w, errors.Wrap(err, "reading body").Error(), http.StatusBadRequest)
		return
	}

	msg, err := unwrapSNS(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if msg.Type == "SubscriptionConfirmation" {
		s.log.Printf("SNS subscription for %s needs confirming at %s", msg.TopicArn, msg.SubscribeURL)
		w.WriteHeader(http.StatusOK)
		return
	}
	if msg.Type == "Notification" {
		data = []byte(msg.Message)
	}

	// the run outlives a client which gives up waiting
	ctx := context.WithoutCancel(r.Context())
	s.mu.Lock()
	res, err := s.handler.Handle(ctx, data)
	s.mu.Unlock()
	switch {
	case err == trigger.ErrIgnored:
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		s.log.Printf("bad event from %s: %v", r.RemoteAddr, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := http.StatusOK
	if res.Status == bovespa.Failed {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		s.log.Printf("writing response: %v", err)
	}
}

// snsMessage is the envelope SNS wraps notifications in for HTTP
// subscriptions.
type snsMessage struct {
	Type         string
	TopicArn     string
	Message      string
	SubscribeURL string
}

// unwrapSNS returns the SNS envelope around data. Type is empty if data is
// not an SNS message.
func unwrapSNS(data []byte) (snsMessage, error) {
	var msg snsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, errors.Wrap(err, "decoding body")
	}
	return msg, nil
}

// tcpKeepAliveListener is copied from net/http

type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (ln tcpKeepAliveListener) Accept() (c net.Conn, err error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return
	}
	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(3 * time.Minute)
	return tc, nil
}
