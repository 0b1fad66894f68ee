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

// Package osc provides the Open Sound Control data model used by the
// router: addresses, messages, bundles, and a wire codec.
package osc

import (
	"fmt"
	"time"
)

// Packet is either a *Message or a *Bundle.
type Packet interface {
	packet()
}

// Message is an OSC message.
//
// Address is whatever the sender put on the wire.  It may be an
// address pattern ("/mixer/*/gain"), so it's a string rather than an
// Address.
//
// Arguments are carried through the router without interpretation.
type Message struct {
	Address   string        `json:"address" yaml:"address"`
	Arguments []interface{} `json:"args,omitempty" yaml:"args,omitempty"`
}

// NewMessage makes a Message.
func NewMessage(addr string, args ...interface{}) *Message {
	return &Message{
		Address:   addr,
		Arguments: args,
	}
}

func (*Message) packet() {}

// Copy returns a new Message with its own argument slice.  The
// argument values themselves aren't copied.
func (m *Message) Copy() *Message {
	var args []interface{}
	if m.Arguments != nil {
		args = make([]interface{}, len(m.Arguments))
		copy(args, m.Arguments)
	}
	return &Message{
		Address:   m.Address,
		Arguments: args,
	}
}

func (m *Message) String() string {
	return fmt.Sprintf("%s %v", m.Address, m.Arguments)
}

// Immediately is the special time tag that means "now".
const Immediately uint64 = 1

// Bundle is an OSC bundle: a time tag and an ordered list of packets,
// each of which can be another bundle.
type Bundle struct {
	// Timetag is an NTP time tag (seconds since 1900 in the high
	// 32 bits, fractional seconds in the low 32 bits).
	Timetag uint64 `json:"time,omitempty" yaml:"time,omitempty"`

	Elements []Packet `json:"-" yaml:"-"`
}

// NewBundle makes a Bundle with the given time tag and elements.
func NewBundle(timetag uint64, elements ...Packet) *Bundle {
	return &Bundle{
		Timetag:  timetag,
		Elements: elements,
	}
}

func (*Bundle) packet() {}

// Append adds packets to the end of the bundle.
func (b *Bundle) Append(ps ...Packet) *Bundle {
	b.Elements = append(b.Elements, ps...)
	return b
}

// Time returns the time tag as a time.Time.
func (b *Bundle) Time() time.Time {
	return TimetagTime(b.Timetag)
}

// secondsFrom1900To1970 is the NTP epoch offset.
const secondsFrom1900To1970 = 2208988800

// TimetagTime converts an NTP time tag to a time.Time.
func TimetagTime(tt uint64) time.Time {
	secs := int64(tt>>32) - secondsFrom1900To1970
	nanos := (int64(tt&0xffffffff) * int64(time.Second)) >> 32
	return time.Unix(secs, nanos).UTC()
}

// NewTimetag converts a time.Time to an NTP time tag.
func NewTimetag(t time.Time) uint64 {
	secs := uint64(t.Unix() + secondsFrom1900To1970)
	frac := (uint64(t.Nanosecond()) << 32) / uint64(time.Second)
	return secs<<32 | frac
}
