/* Copyright 2019 Comcast Cable Communications Management, LLC
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

	"github.com/Comcast/oscroute/osc"
)

// Couplings provide channels for packet input and results output.
//
// For example, an implementation could couple a Router to a UDP
// socket for input and an MQTT broker for output.
type Couplings interface {
	// Start initializes the Couplings.
	Start(context.Context) error

	// IO returns the input and result channels along with a
	// channel that's closed when input is exhausted.
	IO(context.Context) (chan osc.Packet, chan *Result, chan bool, error)

	// Stop shuts down the Couplings.
	Stop(context.Context) error
}

// Delivery reports a message that a named method accepted.
type Delivery struct {
	Method  string       `json:"method"`
	Message *osc.Message `json:"msg"`
}

// Result represents all visible output from processing a batch.
type Result struct {
	// Deliveries are the messages drained from queue-backed
	// methods after dispatching, in method name order and then
	// in queue order.
	Deliveries []*Delivery

	// Emitted are the packets that scripted methods emitted
	// while processing the batch.  Couplings typically send
	// these somewhere.
	Emitted []osc.Packet

	// Err, if not empty, reports trouble processing the batch.
	// Messages that could be delivered were still delivered.
	Err string `json:",omitempty"`
}
