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

package sio

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Comcast/oscroute/osc"
)

func openCapture(t *testing.T) *Capture {
	t.Helper()
	c := NewCapture(filepath.Join(t.TempDir(), "capture.db"))
	if err := c.Open(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
	})
	return c
}

func TestCaptureReplay(t *testing.T) {
	c := openCapture(t)

	if err := c.Record([]osc.Packet{osc.NewMessage("/a")}); err != ErrNoSession {
		t.Fatal(err)
	}

	first, err := c.StartSession()
	if err != nil {
		t.Fatal(err)
	}

	batches := [][]osc.Packet{
		{osc.NewMessage("/a", int32(1)), osc.NewMessage("/b", "two")},
		{osc.NewBundle(osc.Immediately, osc.NewMessage("/c", float32(3)))},
		{osc.NewMessage("/d")},
	}
	for _, b := range batches {
		if err := c.Record(b); err != nil {
			t.Fatal(err)
		}
	}

	second, err := c.StartSession()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Record([]osc.Packet{osc.NewMessage("/z")}); err != nil {
		t.Fatal(err)
	}

	ss, err := c.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(ss) != 2 || ss[0].Id != first || ss[1].Id != second {
		t.Fatalf("sessions %s", JS(ss))
	}
	if ss[0].Batches != 3 || ss[1].Batches != 1 {
		t.Fatalf("sessions %s", JS(ss))
	}

	var got [][]osc.Packet
	err = c.Replay(context.Background(), first, func(ps []osc.Packet) error {
		got = append(got, ps)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, batches) {
		t.Fatalf("replayed %s", JS(got))
	}

	err = c.Replay(context.Background(), "nope", func([]osc.Packet) error { return nil })
	if err != ErrNoSession {
		t.Fatal(err)
	}
}

func TestCaptureRouter(t *testing.T) {
	c := openCapture(t)
	session, err := c.StartSession()
	if err != nil {
		t.Fatal(err)
	}

	r := newTestRouter(t, nil, testConf)
	r.Recorder = c
	r.ProcessBatch(context.Background(), []osc.Packet{osc.NewMessage("/light/1", int32(1))})
	r.ProcessBatch(context.Background(), []osc.Packet{osc.NewMessage("/light/1", int32(2))})

	// Replay into a fresh Router.
	cc := &chanCouplings{
		out: make(chan *Result, 8),
	}
	again := newTestRouter(t, cc, testConf)
	if err = again.Replay(context.Background(), c, session); err != nil {
		t.Fatal(err)
	}
	close(cc.out)

	var args []interface{}
	for res := range cc.out {
		for _, d := range res.Deliveries {
			args = append(args, d.Message.Arguments[0])
		}
	}
	if want := []interface{}{int32(1), int32(2)}; !reflect.DeepEqual(args, want) {
		t.Fatalf("got %v", args)
	}

	if err = r.Replay(context.Background(), c, session); err == nil {
		t.Fatal("replayed into the recording capture")
	}
}

// chanCouplings just hands out channels.
type chanCouplings struct {
	in   chan osc.Packet
	out  chan *Result
	done chan bool
}

func (c *chanCouplings) Start(ctx context.Context) error { return nil }
func (c *chanCouplings) Stop(ctx context.Context) error  { return nil }

func (c *chanCouplings) IO(ctx context.Context) (chan osc.Packet, chan *Result, chan bool, error) {
	return c.in, c.out, c.done, nil
}
