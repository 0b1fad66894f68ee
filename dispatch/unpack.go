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
	"github.com/Comcast/oscroute/osc"
)

// Unpack flattens a packet into its messages.
//
// A message unpacks to itself.  A bundle unpacks to the depth-first,
// left-to-right concatenation of its elements, so nested bundles are
// unpacked in place.  Nil packets contribute nothing.
//
// There's no limit on nesting depth.  Callers that accept packets from
// the network should bound packet size instead.
func Unpack(p osc.Packet) []*osc.Message {
	return unpack(p, nil)
}

// UnpackAll unpacks each packet in order and concatenates the results.
func UnpackAll(ps []osc.Packet) []*osc.Message {
	var acc []*osc.Message
	for _, p := range ps {
		acc = unpack(p, acc)
	}
	return acc
}

func unpack(p osc.Packet, acc []*osc.Message) []*osc.Message {
	switch vv := p.(type) {
	case *osc.Message:
		if vv != nil {
			acc = append(acc, vv)
		}
	case *osc.Bundle:
		if vv != nil {
			for _, e := range vv.Elements {
				acc = unpack(e, acc)
			}
		}
	}
	return acc
}
