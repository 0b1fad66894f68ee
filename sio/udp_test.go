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
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/Comcast/oscroute/osc"
)

func TestImpl(t *testing.T) {
	// Just confirm that this code compiles.
	var _ Couplings = &UDP{}
	var _ Couplings = &Stdio{}
	var _ Recorder = &Capture{}
}

func TestUDPRoundTrip(t *testing.T) {
	// Something to receive emitted packets.
	sink, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	u := &UDP{
		Listen: "127.0.0.1:0",
		SendTo: sink.LocalAddr().String(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := u.Start(ctx); err != nil {
		t.Fatal(err)
	}
	in, out, _, err := u.IO(ctx)
	if err != nil {
		t.Fatal(err)
	}

	client, err := NewUDPClient(u.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	// Garbage is dropped.
	garbage, err := net.Dial("udp", u.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	garbage.Write([]byte("nope"))
	garbage.Close()

	sent := osc.NewMessage("/light/1", float32(0.25), "on")
	if err := client.Send(sent); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ctx.Done():
		t.Fatal("nothing received")
	case p := <-in:
		if !reflect.DeepEqual(p, sent) {
			t.Fatalf("got %s", PacketJS(p))
		}
	}

	emitted := osc.NewMessage("/echoed", int32(7))
	out <- &Result{
		Emitted: []osc.Packet{emitted},
	}

	sink.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, osc.MaxPacketSize)
	n, _, err := sink.ReadFrom(buf)
	if err != nil {
		t.Fatal(err)
	}
	p, err := osc.Decode(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p, emitted) {
		t.Fatalf("got %s", PacketJS(p))
	}

	cancel()
	if err := u.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestUDPBadGroup(t *testing.T) {
	u := &UDP{
		Listen: "127.0.0.1:0",
		Group:  "10.0.0.1",
	}
	if err := u.Start(context.Background()); err == nil {
		u.Stop(context.Background())
		t.Fatal("expected an error for a unicast group")
	}
}
