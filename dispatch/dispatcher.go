/* Copyright 2024 Comcast Cable Communications Management, LLC
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

package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/Comcast/oscroute/method"
	"github.com/Comcast/oscroute/osc"
	"github.com/Comcast/oscroute/pattern"

	"go.uber.org/multierr"
)

// Dispatcher delivers batches of packets to Methods.
//
// A Dispatcher owns a pattern.Cache, so make one Dispatcher per
// session and pass it to whatever drives dispatching.  Resolve holds
// the Dispatcher's lock while it uses the cache; delivery doesn't.
type Dispatcher struct {
	sync.Mutex

	cache   *pattern.Cache
	metrics Metrics

	// Logf, if not nil, is called to report skipped messages.
	Logf func(format string, args ...interface{})

	batches    atomic.Uint64
	messages   atomic.Uint64
	deliveries atomic.Uint64
	malformed  atomic.Uint64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithCache uses the given cache instead of a new unbounded one.
func WithCache(c *pattern.Cache) Option {
	return func(d *Dispatcher) error {
		d.cache = c
		return nil
	}
}

// WithCacheLimit gives the Dispatcher an LRU-bounded cache.  See
// pattern.WithLimit.
func WithCacheLimit(n int) Option {
	return func(d *Dispatcher) error {
		c, err := pattern.NewCache(pattern.WithLimit(n))
		if err != nil {
			return err
		}
		d.cache = c
		return nil
	}
}

// WithMetrics reports to the given Metrics.
func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) error {
		d.metrics = m
		return nil
	}
}

// WithLogf sets Logf.
func WithLogf(f func(format string, args ...interface{})) Option {
	return func(d *Dispatcher) error {
		d.Logf = f
		return nil
	}
}

// New makes a Dispatcher with an empty cache.
func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		metrics: NopMetrics,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.cache == nil {
		c, err := pattern.NewCache()
		if err != nil {
			return nil, err
		}
		d.cache = c
	}
	return d, nil
}

// Cache returns the Dispatcher's cache.  Don't use it while a Resolve
// might be running.
func (d *Dispatcher) Cache() *pattern.Cache {
	return d.cache
}

// Delivery pairs a message with the compiled form of its address.
type Delivery struct {
	Matcher *pattern.Matcher
	Message *osc.Message
}

// Batch is the resolved form of a batch of packets: its messages in
// order, each with its Matcher.
//
// A Batch isn't modified after Resolve returns it, so it can be
// delivered to disjoint sets of Methods concurrently.
type Batch struct {
	Deliveries []Delivery

	d *Dispatcher
}

// Len returns the number of deliverable messages.
func (b *Batch) Len() int {
	return len(b.Deliveries)
}

// Resolve unpacks the packets and finds (or compiles) a Matcher for
// each message.
//
// A message whose address can't be compiled is left out of the Batch.
// The returned error combines a *MalformedPattern for each one of
// those; the Batch is still usable.
func (d *Dispatcher) Resolve(ps []osc.Packet) (*Batch, error) {
	b := &Batch{
		d: d,
	}

	msgs := UnpackAll(ps)
	if len(msgs) == 0 {
		return b, nil
	}

	d.batches.Add(1)
	d.messages.Add(uint64(len(msgs)))
	d.metrics.Batch(len(msgs))

	b.Deliveries = make([]Delivery, 0, len(msgs))

	var errs error

	d.Lock()
	for i, msg := range msgs {
		matcher, err := d.cache.Resolve(msg.Address)
		if err != nil {
			d.malformed.Add(1)
			d.metrics.Malformed()
			d.logf("dispatch skipping message %d: %s", i, err)
			errs = multierr.Append(errs, &MalformedPattern{
				Index:   i,
				Message: msg,
				Err:     err,
			})
			continue
		}
		b.Deliveries = append(b.Deliveries, Delivery{
			Matcher: matcher,
			Message: msg,
		})
	}
	size := d.cache.Len()
	d.Unlock()

	d.metrics.CacheSize(size)

	return b, errs
}

// Deliver offers every message in the Batch, in order, to every
// Method.  Returns the number of acceptances.
func (b *Batch) Deliver(ms []method.Method) int {
	return DeliverTo(b, ms)
}

// DeliverTo is Batch.Deliver for a slice of any Method type, which
// saves building a []method.Method for a homogeneous set.
func DeliverTo[M method.Method](b *Batch, ms []M) int {
	if len(b.Deliveries) == 0 || len(ms) == 0 {
		return 0
	}
	n := 0
	for _, dl := range b.Deliveries {
		for _, m := range ms {
			if method.Match(m, dl.Matcher, dl.Message) {
				n++
			}
		}
	}
	if b.d != nil {
		b.d.deliveries.Add(uint64(n))
		b.d.metrics.Delivered(n)
	}
	return n
}

// Dispatch delivers the packets' messages to the Methods.
//
// Packets are unpacked in order, and each message is offered to
// every Method.  The order in which Methods see a given message isn't
// specified, but every Method sees messages in batch order.
//
// A message with a malformed address is skipped and the rest of the
// batch is still delivered.  The returned error reports every skipped
// message (see Resolve).
func (d *Dispatcher) Dispatch(ps []osc.Packet, ms []method.Method) error {
	b, err := d.Resolve(ps)
	b.Deliver(ms)
	return err
}

// Stats summarizes a Dispatcher's work so far.
type Stats struct {
	Batches    uint64 `json:"batches"`
	Messages   uint64 `json:"messages"`
	Deliveries uint64 `json:"deliveries"`
	Malformed  uint64 `json:"malformed"`
	Compiles   uint64 `json:"compiles"`
	Cached     int    `json:"cached"`
}

// Stats returns the current Stats.
func (d *Dispatcher) Stats() Stats {
	d.Lock()
	compiles, cached := d.cache.Compiles(), d.cache.Len()
	d.Unlock()

	return Stats{
		Batches:    d.batches.Load(),
		Messages:   d.messages.Load(),
		Deliveries: d.deliveries.Load(),
		Malformed:  d.malformed.Load(),
		Compiles:   compiles,
		Cached:     cached,
	}
}

func (d *Dispatcher) logf(format string, args ...interface{}) {
	if d.Logf != nil {
		d.Logf(format, args...)
	}
}
