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

// Package dispatch routes OSC messages to methods.
//
// A Dispatcher takes a batch of packets, flattens bundles into their
// messages (see Unpack), compiles each message's address pattern
// (once per distinct pattern, via a pattern.Cache), and offers each
// message to every method.  A method accepts a message at most once
// regardless of how many of its addresses match.
//
//	d, _ := dispatch.New()
//	light, _ := method.NewSingle("/light/1/level")
//	err := d.Dispatch(packets, []method.Method{light})
//	for msg, ok := light.Get(); ok; msg, ok = light.Get() {
//		...
//	}
//
// Timetags are carried through but not honored: a bundle's messages
// are delivered when the bundle is dispatched.
package dispatch
