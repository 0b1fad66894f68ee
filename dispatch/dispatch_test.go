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
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/Comcast/oscroute/method"
	"github.com/Comcast/oscroute/osc"
	"github.com/Comcast/oscroute/pattern"
	"github.com/Comcast/oscroute/util/testutil"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

func newDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	d, err := New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestUnpackOrder(t *testing.T) {
	m := func(n int32) *osc.Message {
		return osc.NewMessage("/m", n)
	}

	tests := []struct {
		name   string
		packet osc.Packet
		want   []interface{}
	}{
		{
			name:   "message",
			packet: m(1),
			want:   []interface{}{int32(1)},
		},
		{
			name:   "flat",
			packet: osc.NewBundle(osc.Immediately, m(1), m(2), m(3)),
			want:   []interface{}{int32(1), int32(2), int32(3)},
		},
		{
			name: "nested",
			packet: osc.NewBundle(osc.Immediately,
				m(1),
				osc.NewBundle(osc.Immediately, m(2), m(3))),
			want: []interface{}{int32(1), int32(2), int32(3)},
		},
		{
			name: "nested first",
			packet: osc.NewBundle(osc.Immediately,
				osc.NewBundle(osc.Immediately,
					osc.NewBundle(osc.Immediately, m(1)),
					m(2)),
				m(3)),
			want: []interface{}{int32(1), int32(2), int32(3)},
		},
		{
			name: "empty bundles",
			packet: osc.NewBundle(osc.Immediately,
				osc.NewBundle(osc.Immediately),
				m(1),
				osc.NewBundle(osc.Immediately, osc.NewBundle(osc.Immediately))),
			want: []interface{}{int32(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testutil.Firsts(Unpack(tt.packet))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnpackAll(t *testing.T) {
	ps := []osc.Packet{
		osc.NewMessage("/a"),
		nil,
		osc.NewBundle(osc.Immediately, osc.NewMessage("/b"), osc.NewMessage("/c")),
		osc.NewMessage("/d"),
	}
	got := testutil.Addresses(UnpackAll(ps))
	if want := []string{"/a", "/b", "/c", "/d"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
	if got := UnpackAll(nil); len(got) != 0 {
		t.Fatal(got)
	}
}

func TestDispatchBundle(t *testing.T) {
	d := newDispatcher(t)
	var (
		singles []*method.Single
		ms      []method.Method
	)
	for _, addr := range []string{"/entity1/value", "/entity2/value", "/entity3/value"} {
		s, err := method.NewSingle(addr)
		if err != nil {
			t.Fatal(err)
		}
		singles = append(singles, s)
		ms = append(ms, s)
	}

	b := osc.NewBundle(osc.Immediately,
		osc.NewMessage("/entity1/value", int32(1)),
		osc.NewBundle(osc.Immediately,
			osc.NewMessage("/entity2/value", int32(2)),
			osc.NewMessage("/entity3/value", int32(3))))

	if err := d.Dispatch([]osc.Packet{b}, ms); err != nil {
		t.Fatal(err)
	}

	for i, s := range singles {
		msg, ok := s.Get()
		if !ok {
			t.Fatalf("receiver %d queue is empty", i)
		}
		if want := int32(i + 1); msg.Address != s.Address().String() || msg.Arguments[0] != want {
			t.Fatalf("receiver %d got %s", i, msg)
		}
		if _, ok = s.Get(); ok {
			t.Fatalf("receiver %d has more than one message", i)
		}
	}
}

func TestDispatchClassStaysInSegment(t *testing.T) {
	d := newDispatcher(t)
	gain, err := method.NewSingle("/mixer/gain")
	if err != nil {
		t.Fatal(err)
	}
	ps := []osc.Packet{
		osc.NewMessage("/mixer[!x]gain", int32(1)),
		osc.NewMessage("/mixer/[!x]ain", int32(2)),
	}
	if err := d.Dispatch(ps, []method.Method{gain}); err != nil {
		t.Fatal(err)
	}
	if n := gain.Len(); n != 1 {
		t.Fatalf("queued %d", n)
	}
	if msg, _ := gain.Get(); msg.Arguments[0] != int32(2) {
		t.Fatalf("got %s", msg)
	}
}

func TestDispatchWildcardFanOut(t *testing.T) {
	d := newDispatcher(t)
	var singles []*method.Single
	for _, addr := range []string{"/entity1/value", "/entity2/value", "/entity3/value", "/other/value"} {
		s, err := method.NewSingle(addr)
		if err != nil {
			t.Fatal(err)
		}
		singles = append(singles, s)
	}

	b, err := d.Resolve([]osc.Packet{osc.NewMessage("/entity*/value", "on")})
	if err != nil {
		t.Fatal(err)
	}
	if n := DeliverTo(b, singles); n != 3 {
		t.Fatalf("delivered %d", n)
	}
	for _, s := range singles[:3] {
		if s.Len() != 1 {
			t.Fatalf("%s queued %d", s.Address(), s.Len())
		}
	}
	if n := singles[3].Len(); n != 0 {
		t.Fatalf("/other/value queued %d", n)
	}
}

func TestDispatchAtMostOnce(t *testing.T) {
	d := newDispatcher(t)
	m, err := method.NewMulti("/a", "/a", "/b")
	if err != nil {
		t.Fatal(err)
	}
	ps := []osc.Packet{
		osc.NewMessage("/a"),
		osc.NewMessage("/{a,b}"),
	}
	if err := d.Dispatch(ps, []method.Method{m}); err != nil {
		t.Fatal(err)
	}
	if n := m.Len(); n != 2 {
		t.Fatalf("queued %d", n)
	}
}

func TestDispatchMessageOrder(t *testing.T) {
	d := newDispatcher(t)
	r := testutil.NewRecorder(t, "/x", "/y")
	ps := []osc.Packet{
		osc.NewMessage("/x", int32(1)),
		osc.NewBundle(osc.Immediately,
			osc.NewMessage("/y", int32(2)),
			osc.NewBundle(osc.Immediately, osc.NewMessage("/x", int32(3)))),
		osc.NewMessage("/?", int32(4)),
	}
	if err := d.Dispatch(ps, []method.Method{r}); err != nil {
		t.Fatal(err)
	}
	got := testutil.Firsts(r.Got())
	if want := []interface{}{int32(1), int32(2), int32(3), int32(4)}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
}

func TestDispatchCacheIdempotence(t *testing.T) {
	compiles := 0
	c, err := pattern.NewCache(pattern.WithCompiler(func(p string) (*pattern.Matcher, error) {
		compiles++
		return pattern.Compile(p)
	}))
	if err != nil {
		t.Fatal(err)
	}
	d := newDispatcher(t, WithCache(c))
	r := testutil.NewRecorder(t, "/a/1")

	for i := 0; i < 10; i++ {
		ps := []osc.Packet{osc.NewMessage("/a/*"), osc.NewMessage("/a/*")}
		if err := d.Dispatch(ps, []method.Method{r}); err != nil {
			t.Fatal(err)
		}
	}
	if compiles != 1 {
		t.Fatalf("compiled %d times", compiles)
	}
	if n := len(r.Got()); n != 20 {
		t.Fatalf("delivered %d", n)
	}

	s := d.Stats()
	if s.Batches != 10 || s.Messages != 20 || s.Deliveries != 20 || s.Compiles != 1 || s.Cached != 1 {
		t.Fatalf("stats %s", testutil.JS(s))
	}
}

func TestDispatchEmpty(t *testing.T) {
	compiles := 0
	c, _ := pattern.NewCache(pattern.WithCompiler(func(p string) (*pattern.Matcher, error) {
		compiles++
		return pattern.Compile(p)
	}))
	d := newDispatcher(t, WithCache(c))
	s, _ := method.NewSingle("/a")

	for _, ps := range [][]osc.Packet{nil, {}, {osc.NewBundle(osc.Immediately)}} {
		if err := d.Dispatch(ps, []method.Method{s}); err != nil {
			t.Fatal(err)
		}
	}
	if compiles != 0 {
		t.Fatalf("compiled %d times", compiles)
	}
	if s.Len() != 0 {
		t.Fatal(s.Len())
	}
	if n := d.Stats().Batches; n != 0 {
		t.Fatalf("counted %d batches", n)
	}
}

func TestDispatchMalformedIsolated(t *testing.T) {
	var logged []string
	d := newDispatcher(t, WithLogf(func(format string, args ...interface{}) {
		logged = append(logged, format)
	}))
	r := testutil.NewRecorder(t, "/a", "/b")

	ps := []osc.Packet{
		osc.NewMessage("/a", int32(1)),
		osc.NewMessage("/a/[", int32(2)),
		osc.NewBundle(osc.Immediately,
			osc.NewMessage("no-slash", int32(3)),
			osc.NewMessage("/b", int32(4))),
	}
	err := d.Dispatch(ps, []method.Method{r})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, pattern.ErrMalformed) {
		t.Fatalf("err %v isn't ErrMalformed", err)
	}

	errs := multierr.Errors(err)
	if len(errs) != 2 {
		t.Fatalf("got %d errors: %v", len(errs), errs)
	}
	for i, want := range []int{1, 2} {
		var mp *MalformedPattern
		if !errors.As(errs[i], &mp) {
			t.Fatalf("%T isn't a MalformedPattern", errs[i])
		}
		if mp.Index != want {
			t.Fatalf("index %d, want %d", mp.Index, want)
		}
	}

	got := testutil.Firsts(r.Got())
	if want := []interface{}{int32(1), int32(4)}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
	if len(logged) != 2 {
		t.Fatalf("logged %v", logged)
	}
	if n := d.Stats().Malformed; n != 2 {
		t.Fatal(n)
	}
	if d.Cache().Has("/a/[") {
		t.Fatal("malformed pattern cached")
	}
}

func TestBatchDisjointConcurrent(t *testing.T) {
	d := newDispatcher(t)

	var (
		singles []*method.Single
		multis  []*method.Multi
	)
	for _, addr := range []string{"/s/1", "/s/2"} {
		s, _ := method.NewSingle(addr)
		singles = append(singles, s)
	}
	m, _ := method.NewMulti("/s/1", "/m/1")
	multis = append(multis, m)

	var ps []osc.Packet
	for i := 0; i < 100; i++ {
		ps = append(ps, osc.NewMessage("/*/1", int32(i)))
	}
	b, err := d.Resolve(ps)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		DeliverTo(b, singles)
	}()
	go func() {
		defer wg.Done()
		DeliverTo(b, multis)
	}()
	wg.Wait()

	if n := singles[0].Len(); n != 100 {
		t.Fatal(n)
	}
	if n := singles[1].Len(); n != 0 {
		t.Fatal(n)
	}
	msgs := m.Drain(0)
	if len(msgs) != 100 {
		t.Fatal(len(msgs))
	}
	for i, msg := range msgs {
		if msg.Arguments[0] != int32(i) {
			t.Fatalf("out of order at %d: %v", i, msg)
		}
	}
	if n := d.Stats().Deliveries; n != 200 {
		t.Fatal(n)
	}
}

func TestDeliverNoMethods(t *testing.T) {
	d := newDispatcher(t)
	b, err := d.Resolve([]osc.Packet{osc.NewMessage("/a")})
	if err != nil {
		t.Fatal(err)
	}
	if b.Len() != 1 {
		t.Fatal(b.Len())
	}
	if n := b.Deliver(nil); n != 0 {
		t.Fatal(n)
	}
}

func TestWithCacheLimit(t *testing.T) {
	d := newDispatcher(t, WithCacheLimit(2))
	for _, p := range []string{"/a", "/b", "/c"} {
		if _, err := d.Resolve([]osc.Packet{osc.NewMessage(p)}); err != nil {
			t.Fatal(err)
		}
	}
	if n := d.Stats().Cached; n != 2 {
		t.Fatal(n)
	}

	unbounded := newDispatcher(t, WithCacheLimit(0))
	for _, p := range []string{"/a", "/b", "/c"} {
		unbounded.Resolve([]osc.Packet{osc.NewMessage(p)})
	}
	if n := unbounded.Stats().Cached; n != 3 {
		t.Fatal(n)
	}
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := newDispatcher(t, WithMetrics(NewPrometheusMetrics(reg)))
	r := testutil.NewRecorder(t, "/a/1", "/a/2")

	ps := []osc.Packet{
		osc.NewBundle(osc.Immediately,
			osc.NewMessage("/a/*"),
			osc.NewMessage("/a/{")),
	}
	if err := d.Dispatch(ps, []method.Method{r}); err == nil {
		t.Fatal("expected an error")
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]float64, len(mfs))
	for _, mf := range mfs {
		m := mf.GetMetric()[0]
		if c := m.GetCounter(); c != nil {
			got[mf.GetName()] = c.GetValue()
		} else {
			got[mf.GetName()] = m.GetGauge().GetValue()
		}
	}

	want := map[string]float64{
		"oscroute_dispatch_batches_total":    1,
		"oscroute_dispatch_messages_total":   2,
		"oscroute_dispatch_deliveries_total": 1,
		"oscroute_dispatch_malformed_total":  1,
		"oscroute_pattern_cache_size":        1,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
}
