/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/Comcast/oscroute/dispatch"
	"github.com/Comcast/oscroute/method"
	"github.com/Comcast/oscroute/osc"
)

var (
	// DefaultMaxBatch is the initial MaxBatch for a new Router.
	DefaultMaxBatch = 64

	// DefaultMaxLoopback is the initial MaxLoopback for a new
	// Router.
	DefaultMaxLoopback = 8
)

// Emitter is implemented by methods that can emit packets (for
// example, script.Method).
type Emitter interface {
	Emitted() []osc.Packet
}

// Failer is implemented by methods that accumulate errors that
// Accept can't return.
type Failer interface {
	Err() error
}

// Recorder gets every batch a Router processes.  See Capture.
type Recorder interface {
	Record([]osc.Packet) error
}

// Router is a collection of named methods and a Dispatcher, with I/O
// coupled via two channels (in and out).
type Router struct {
	// Dispatcher delivers batches to the methods.
	Dispatcher *dispatch.Dispatcher

	// Verbose turns on logging.
	Verbose bool

	// MaxBatch is the most packets Loop gathers for one batch.
	MaxBatch int

	// MaxDrain is the most messages drained from each
	// queue-backed method per batch.  Zero means no limit.
	MaxDrain int

	// Loopback, when true, dispatches emitted packets back to
	// the methods before the batch's Result is returned.
	Loopback bool

	// MaxLoopback limits rounds of Loopback dispatching for one
	// batch.
	MaxLoopback int

	// HaltOnInputEOF stops Loop when the Couplings report that
	// their input is done.
	HaltOnInputEOF bool

	// Recorder, if not nil, records every batch.
	Recorder Recorder

	methods map[string]method.Method
	names   []string

	in   chan osc.Packet
	out  chan *Result
	done chan bool

	sync.Mutex
}

// NewRouter makes a Router with the given Dispatcher and couplings.
//
// The coupling's IO() method is called to obtain the Router's in/out
// channels.  The couplings can be nil if the caller only uses
// ProcessBatch.
func NewRouter(ctx context.Context, d *dispatch.Dispatcher, couplings Couplings) (*Router, error) {
	r := &Router{
		Dispatcher:  d,
		MaxBatch:    DefaultMaxBatch,
		MaxLoopback: DefaultMaxLoopback,
		methods:     make(map[string]method.Method),
	}

	if couplings != nil {
		in, out, done, err := couplings.IO(ctx)
		if err != nil {
			return nil, err
		}
		r.in, r.out, r.done = in, out, done
	}

	return r, nil
}

// Logf logs if r.Verbose.
func (r *Router) Logf(format string, args ...interface{}) {
	if !r.Verbose {
		return
	}
	log.Printf(format, args...)
}

// Errorf writes a log line with "ERROR" prepended and returns the
// message.
func (r *Router) Errorf(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	log.Println("ERROR " + msg)
	return msg
}

// SetMethod adds or replaces the method with the given name.
func (r *Router) SetMethod(name string, m method.Method) {
	r.Lock()
	defer r.Unlock()

	if _, have := r.methods[name]; !have {
		r.names = append(r.names, name)
		sort.Strings(r.names)
	}
	r.methods[name] = m
}

// DeleteMethod removes the named method.
func (r *Router) DeleteMethod(name string) {
	r.Lock()
	defer r.Unlock()

	if _, have := r.methods[name]; !have {
		return
	}
	delete(r.methods, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
}

// Methods returns the Router's methods by name.
func (r *Router) Methods() map[string]method.Method {
	r.Lock()
	defer r.Unlock()

	acc := make(map[string]method.Method, len(r.methods))
	for name, m := range r.methods {
		acc[name] = m
	}
	return acc
}

// ProcessBatch dispatches the given packets and returns the results,
// which can then be processed by the Router's Result coupling.
//
// The returned error reports messages that were skipped.  The Result
// is complete regardless.
func (r *Router) ProcessBatch(ctx context.Context, ps []osc.Packet) (*Result, error) {
	if r.Verbose {
		r.Logf("ProcessBatch %d packets %s", len(ps), JShort(ps))
	}

	r.Lock()
	defer r.Unlock()

	if r.Recorder != nil && 0 < len(ps) {
		if err := r.Recorder.Record(ps); err != nil {
			r.Errorf("ProcessBatch Record %s", err)
		}
	}

	ms := make([]method.Method, 0, len(r.names))
	for _, name := range r.names {
		ms = append(ms, r.methods[name])
	}

	res := &Result{}

	var errs []string

	// Emitted packets routed back are dispatched breadth-first:
	// every method sees one round before the next round starts.
	pending := ps
	for round := 0; 0 < len(pending); round++ {
		if err := r.Dispatcher.Dispatch(pending, ms); err != nil {
			errs = append(errs, r.Errorf("ProcessBatch %s", err))
		}

		emitted := r.collect(&errs)
		res.Emitted = append(res.Emitted, emitted...)

		pending = nil
		if r.Loopback && 0 < len(emitted) {
			if r.MaxLoopback <= round {
				errs = append(errs, r.Errorf("ProcessBatch loopback limit %d reached", r.MaxLoopback))
				break
			}
			pending = emitted
		}
	}

	for _, name := range r.names {
		g, is := r.methods[name].(method.Getter)
		if !is {
			continue
		}
		for i := 0; r.MaxDrain <= 0 || i < r.MaxDrain; i++ {
			msg, ok := g.Get()
			if !ok {
				break
			}
			res.Deliveries = append(res.Deliveries, &Delivery{
				Method:  name,
				Message: msg,
			})
		}
	}

	var err error
	if 0 < len(errs) {
		res.Err = errs[0]
		for _, e := range errs[1:] {
			res.Err += "; " + e
		}
		err = errors.New(res.Err)
	}

	return res, err
}

// collect gathers what Emitters emitted and what Failers failed.
func (r *Router) collect(errs *[]string) []osc.Packet {
	var emitted []osc.Packet
	for _, name := range r.names {
		m := r.methods[name]
		if e, is := m.(Emitter); is {
			emitted = append(emitted, e.Emitted()...)
		}
		if f, is := m.(Failer); is {
			if err := f.Err(); err != nil {
				*errs = append(*errs, r.Errorf("method %s: %s", name, err))
			}
		}
	}
	return emitted
}

// Loop starts the input processing loop in the current goroutine.
//
// This loop waits for a packet, gathers any others that are already
// waiting (up to MaxBatch), and calls ProcessBatch.  The loop halts
// when ctx.Done() or, with HaltOnInputEOF, when input is done.
func (r *Router) Loop(ctx context.Context) error {
	r.Logf("Router.Loop starting")

	done := r.done
LOOP:
	for {
		select {
		case <-done:
			if r.HaltOnInputEOF {
				r.Logf("Router.Loop shutting down (done)")
				break LOOP
			}
			// Don't spin on a closed channel.
			done = nil
		case <-ctx.Done():
			r.Logf("Router.Loop shutting down (ctx.Done)")
			break LOOP
		case p, ok := <-r.in:
			if !ok {
				break LOOP
			}
			batch := r.gather(p)
			res, err := r.ProcessBatch(ctx, batch)
			if err != nil {
				r.Logf("Router.Loop ProcessBatch %s", err)
			}
			select {
			case <-ctx.Done():
				break LOOP
			case r.out <- res:
			}
		}
	}

	r.Logf("Router.Loop done")
	return nil
}

// gather starts a batch with p and adds packets that are already
// waiting.
func (r *Router) gather(p osc.Packet) []osc.Packet {
	batch := []osc.Packet{p}
	for len(batch) < r.MaxBatch {
		select {
		case p, ok := <-r.in:
			if !ok {
				return batch
			}
			batch = append(batch, p)
		default:
			return batch
		}
	}
	return batch
}
