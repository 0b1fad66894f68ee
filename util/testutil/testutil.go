/* Copyright 2018 Comcast Cable Communications Management, LLC
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

// Package testutil has helpers for tests that push OSC messages
// through methods.
package testutil

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"testing"

	"github.com/Comcast/oscroute/osc"
)

// JS renders its argument as JSON or as a string indicating an error.
func JS(x interface{}) string {
	bs, err := json.Marshal(&x)
	if err != nil {
		log.Printf("warning: testutil.JS error %s for %#v", err, x)
		return fmt.Sprintf("%#v", x)
	}
	return string(bs)
}

// Recorder is a method that remembers every message it accepts.
type Recorder struct {
	sync.Mutex

	addrs []osc.Address
	got   []*osc.Message
}

// NewRecorder makes a Recorder with the given addresses, failing the
// test if any address is invalid.
func NewRecorder(t testing.TB, addrs ...string) *Recorder {
	t.Helper()
	as, err := osc.NewAddresses(addrs...)
	if err != nil {
		t.Fatal(err)
	}
	return &Recorder{
		addrs: as,
	}
}

func (r *Recorder) Addresses() []osc.Address {
	return r.addrs
}

func (r *Recorder) Accept(msg *osc.Message) {
	r.Lock()
	r.got = append(r.got, msg)
	r.Unlock()
}

// Got returns the accepted messages in order.
func (r *Recorder) Got() []*osc.Message {
	r.Lock()
	defer r.Unlock()
	acc := make([]*osc.Message, len(r.got))
	copy(acc, r.got)
	return acc
}

// Firsts returns the first argument of each message, or nil for a
// message without arguments.
func Firsts(msgs []*osc.Message) []interface{} {
	acc := make([]interface{}, len(msgs))
	for i, m := range msgs {
		if 0 < len(m.Arguments) {
			acc[i] = m.Arguments[0]
		}
	}
	return acc
}

// Addresses returns each message's address.
func Addresses(msgs []*osc.Message) []string {
	acc := make([]string, len(msgs))
	for i, m := range msgs {
		acc[i] = m.Address
	}
	return acc
}
