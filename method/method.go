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

// Package method defines OSC methods: the receivers that a dispatcher
// delivers matching messages to.
//
// Anything that implements Method can receive messages.  Single and
// Multi are queue-backed Methods for one or several addresses, and
// Func adapts a plain function.
package method

import (
	"github.com/Comcast/oscroute/osc"
	"github.com/Comcast/oscroute/pattern"
)

// Method is something that can receive OSC messages at one or more
// addresses.
type Method interface {
	// Addresses returns the addresses this Method answers to.
	//
	// Called for every dispatch, so it should be cheap.
	Addresses() []osc.Address

	// Accept receives a message that has already been matched.
	// Typically the message goes into a queue.
	Accept(msg *osc.Message)
}

// Matching is an optional interface for Methods that want to do their
// own matching.  Match calls MatchMessage instead of its standard
// logic when a Method implements Matching.
//
// An implementation must only call Accept after it has decided that
// the message matches.
type Matching interface {
	MatchMessage(matcher *pattern.Matcher, msg *osc.Message) bool
}

// Match offers a message to a Method.
//
// The matcher is the compiled form of msg.Address.  The Method's
// addresses are tested in order, and the message is accepted at the
// first match.  A message is therefore accepted at most once even if
// several of the Method's addresses match (or if the Method lists the
// same address twice).
//
// Returns true if the Method accepted the message.
func Match(m Method, matcher *pattern.Matcher, msg *osc.Message) bool {
	if mm, is := m.(Matching); is {
		return mm.MatchMessage(matcher, msg)
	}
	for _, addr := range m.Addresses() {
		if matcher.Match(addr) {
			m.Accept(msg.Copy())
			return true
		}
	}
	return false
}

// Getter is implemented by queue-backed Methods.
type Getter interface {
	// Get pops the oldest queued message.
	Get() (*osc.Message, bool)
}
