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

package osc

import (
	"errors"
	"fmt"
	"math"

	gosc "github.com/hypebeast/go-osc/osc"
)

// MaxPacketSize is the largest UDP payload we'll try to read.
//
// Nothing here limits bundle nesting depth, so transports should
// never hand over more than this many bytes as a single packet.
const MaxPacketSize = 65507

// ErrEmptyPacket is returned by Decode when given no data.
var ErrEmptyPacket = errors.New("empty OSC packet")

// Decode parses the binary form of an OSC packet.
//
// The wire codec is github.com/hypebeast/go-osc, which keeps a
// bundle's messages and its nested bundles in separate lists.  As a
// consequence a decoded Bundle lists its direct messages before its
// nested bundles.
func Decode(bs []byte) (Packet, error) {
	if len(bs) == 0 {
		return nil, ErrEmptyPacket
	}
	p, err := gosc.ParsePacket(string(bs))
	if err != nil {
		return nil, err
	}
	return fromWire(p)
}

// Encode renders a packet in binary form.
func Encode(p Packet) ([]byte, error) {
	w, err := toWire(p)
	if err != nil {
		return nil, err
	}
	return w.MarshalBinary()
}

func fromWire(p gosc.Packet) (Packet, error) {
	switch vv := p.(type) {
	case *gosc.Message:
		return &Message{
			Address:   vv.Address,
			Arguments: fromWireArgs(vv.Arguments),
		}, nil
	case *gosc.Bundle:
		return fromWireBundle(vv), nil
	default:
		return nil, fmt.Errorf("unknown OSC packet type %T", p)
	}
}

func fromWireBundle(b *gosc.Bundle) *Bundle {
	tt := b.Timetag.TimeTag()
	if tt == 0 {
		tt = Immediately
	}
	acc := &Bundle{
		Timetag:  tt,
		Elements: make([]Packet, 0, len(b.Messages)+len(b.Bundles)),
	}
	for _, m := range b.Messages {
		acc.Elements = append(acc.Elements, &Message{
			Address:   m.Address,
			Arguments: fromWireArgs(m.Arguments),
		})
	}
	for _, nested := range b.Bundles {
		acc.Elements = append(acc.Elements, fromWireBundle(nested))
	}
	return acc
}

// fromWireArgs makes no arguments nil.
func fromWireArgs(args []interface{}) []interface{} {
	if len(args) == 0 {
		return nil
	}
	return args
}

func toWire(p Packet) (gosc.Packet, error) {
	switch vv := p.(type) {
	case *Message:
		return toWireMessage(vv)
	case *Bundle:
		return toWireBundle(vv)
	case nil:
		return nil, ErrEmptyPacket
	default:
		return nil, fmt.Errorf("unknown OSC packet type %T", p)
	}
}

func toWireMessage(m *Message) (*gosc.Message, error) {
	w := gosc.NewMessage(m.Address)
	for i, x := range m.Arguments {
		arg, err := wireArg(x)
		if err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i, m.Address, err)
		}
		w.Append(arg)
	}
	return w, nil
}

func toWireBundle(b *Bundle) (*gosc.Bundle, error) {
	tt := b.Timetag
	if tt == 0 {
		tt = Immediately
	}
	w := gosc.NewBundle(TimetagTime(tt))
	for _, e := range b.Elements {
		if e == nil {
			continue
		}
		x, err := toWire(e)
		if err != nil {
			return nil, err
		}
		if err = w.Append(x); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// wireArg narrows Go values that the codec doesn't know (typically
// numbers that came from YAML or JSON) to OSC argument types.
func wireArg(x interface{}) (interface{}, error) {
	switch vv := x.(type) {
	case nil, bool, int32, int64, float32, float64, string, []byte:
		return x, nil
	case int:
		if math.MinInt32 <= vv && vv <= math.MaxInt32 {
			return int32(vv), nil
		}
		return int64(vv), nil
	case uint8:
		return int32(vv), nil
	case uint16:
		return int32(vv), nil
	case uint32:
		return int64(vv), nil
	case int8:
		return int32(vv), nil
	case int16:
		return int32(vv), nil
	default:
		return nil, fmt.Errorf("unsupported OSC argument type %T", x)
	}
}
