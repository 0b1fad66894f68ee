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
	"errors"
	"fmt"
	"math"

	"github.com/Comcast/oscroute/osc"

	"github.com/jsccast/yaml"
)

// ErrBadPacket is returned when a structured value doesn't describe
// a packet.
var ErrBadPacket = errors.New("bad packet")

// ParsePacket parses YAML (or JSON) text into a packet.
//
// A message looks like
//
//	{address: /light/1, args: [1, 0.5, "on"]}
//
// and a bundle looks like
//
//	{bundle: [{address: /a}, {address: /b}], time: 1}
//
// where time is an NTP timetag that defaults to immediately.
func ParsePacket(bs []byte) (osc.Packet, error) {
	var x interface{}
	if err := yaml.Unmarshal(bs, &x); err != nil {
		return nil, err
	}
	return AsPacket(x)
}

// AsPacket converts a generic structured value, as parsed from YAML
// or JSON, into a packet.
//
// Integers become int32, and floats become float32.
func AsPacket(x interface{}) (osc.Packet, error) {
	m, is := asMap(x)
	if !is {
		return nil, fmt.Errorf("%w: %T isn't a map", ErrBadPacket, x)
	}

	if elements, have := m["bundle"]; have {
		return asBundle(m, elements)
	}

	addr, is := m["address"].(string)
	if !is {
		return nil, fmt.Errorf("%w: no address", ErrBadPacket)
	}

	msg := osc.NewMessage(addr)
	switch vv := m["args"].(type) {
	case nil:
	case []interface{}:
		for _, a := range vv {
			arg, err := asArg(a)
			if err != nil {
				return nil, err
			}
			msg.Arguments = append(msg.Arguments, arg)
		}
	default:
		arg, err := asArg(vv)
		if err != nil {
			return nil, err
		}
		msg.Arguments = []interface{}{arg}
	}

	return msg, nil
}

func asBundle(m map[string]interface{}, elements interface{}) (*osc.Bundle, error) {
	tt := osc.Immediately
	switch vv := m["time"].(type) {
	case nil:
	case int:
		tt = uint64(vv)
	case int64:
		tt = uint64(vv)
	case uint64:
		tt = vv
	case float64:
		tt = uint64(vv)
	default:
		return nil, fmt.Errorf("%w: bad time %#v", ErrBadPacket, vv)
	}

	xs, is := elements.([]interface{})
	if !is {
		return nil, fmt.Errorf("%w: bundle elements %T isn't a list", ErrBadPacket, elements)
	}

	b := osc.NewBundle(tt)
	for _, x := range xs {
		p, err := AsPacket(x)
		if err != nil {
			return nil, err
		}
		b.Append(p)
	}
	return b, nil
}

func asMap(x interface{}) (map[string]interface{}, bool) {
	switch vv := x.(type) {
	case map[string]interface{}:
		return vv, true
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(vv))
		for k, v := range vv {
			s, is := k.(string)
			if !is {
				return nil, false
			}
			m[s] = v
		}
		return m, true
	}
	return nil, false
}

func asArg(x interface{}) (interface{}, error) {
	switch vv := x.(type) {
	case int:
		return asInt(int64(vv)), nil
	case int64:
		return asInt(vv), nil
	case float64:
		return float32(vv), nil
	case string, bool, nil, int32, float32:
		return vv, nil
	default:
		return nil, fmt.Errorf("%w: unsupported argument %#v (%T)", ErrBadPacket, x, x)
	}
}

// asInt narrows to an int32 when that loses nothing.
func asInt(n int64) interface{} {
	if math.MinInt32 <= n && n <= math.MaxInt32 {
		return int32(n)
	}
	return n
}

// PacketMap renders a packet in the structure that AsPacket accepts.
func PacketMap(p osc.Packet) interface{} {
	switch vv := p.(type) {
	case *osc.Message:
		m := map[string]interface{}{
			"address": vv.Address,
		}
		if 0 < len(vv.Arguments) {
			m["args"] = vv.Arguments
		}
		return m
	case *osc.Bundle:
		elements := make([]interface{}, 0, len(vv.Elements))
		for _, e := range vv.Elements {
			elements = append(elements, PacketMap(e))
		}
		return map[string]interface{}{
			"bundle": elements,
			"time":   vv.Timetag,
		}
	}
	return nil
}
