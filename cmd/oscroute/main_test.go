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

package main

import (
	"reflect"
	"testing"

	"github.com/Comcast/oscroute/osc"
	"github.com/Comcast/oscroute/sio"
)

func TestParseTopic(t *testing.T) {
	tests := []struct {
		in    string
		topic string
		qos   byte
	}{
		{"osc/in", "osc/in", 0},
		{"osc/in:1", "osc/in", 1},
		{" osc/in:2", "osc/in", 2},
		{"osc/in:7", "osc/in:7", 0},
		{"a:b", "a:b", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		topic, qos := parseTopic(tt.in)
		if topic != tt.topic || qos != tt.qos {
			t.Fatalf("%q: got %q %d", tt.in, topic, qos)
		}
	}
}

func TestOutTopic(t *testing.T) {
	m := osc.NewMessage("/light/1")
	b := osc.NewBundle(osc.Immediately, m)
	if got := outTopic("out", "", m); got != "out" {
		t.Fatal(got)
	}
	if got := outTopic("out", "osc/", m); got != "osc/light/1" {
		t.Fatal(got)
	}
	if got := outTopic("out", "osc/", b); got != "out" {
		t.Fatal(got)
	}
}

func TestDecodePayload(t *testing.T) {
	m := osc.NewMessage("/light/1", int32(3))
	bs, err := osc.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	p, err := decodePayload(bs)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p, m) {
		t.Fatal(sio.PacketJS(p))
	}

	if p, err = decodePayload([]byte(`{address: /light/1, args: [3]}`)); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p, m) {
		t.Fatal(sio.PacketJS(p))
	}

	if _, err = decodePayload([]byte(`[1`)); err == nil {
		t.Fatal("expected an error")
	}
}

func TestFlagSets(t *testing.T) {
	u, _ := NewUDPCouplings([]string{"-listen", "127.0.0.1:0", "-send-to", "127.0.0.1:9000"})
	if u.Listen != "127.0.0.1:0" || u.SendTo != "127.0.0.1:9000" {
		t.Fatal(u)
	}
	std, _ := NewStdCouplings([]string{"-tags=false", "-deliveries=false"})
	if std.Tags || std.PrintDeliveries {
		t.Fatal("flags ignored")
	}
	if ws, fs := NewWebSocketCouplings(nil); ws != nil || fs.Lookup("url") == nil {
		t.Fatal("expected only the usage FlagSet")
	}
}
