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

package method

import (
	"sync"

	"github.com/Comcast/oscroute/osc"
)

// Queue is an unbounded FIFO of messages.
//
// The zero value is an empty Queue.  A Queue is safe for concurrent
// use, but the usual arrangement is that dispatch and draining happen
// one after the other on the same goroutine.
type Queue struct {
	sync.Mutex

	msgs []*osc.Message

	// head indexes the oldest message in msgs.
	head int
}

// Push appends a message.
func (q *Queue) Push(msg *osc.Message) {
	q.Lock()
	q.msgs = append(q.msgs, msg)
	q.Unlock()
}

// Get pops the oldest message.  Never blocks.
func (q *Queue) Get() (*osc.Message, bool) {
	q.Lock()
	defer q.Unlock()

	if q.head == len(q.msgs) {
		return nil, false
	}
	msg := q.msgs[q.head]
	q.msgs[q.head] = nil
	q.head++

	if q.head == len(q.msgs) {
		// Empty: reuse the backing array.
		q.msgs = q.msgs[:0]
		q.head = 0
	}

	return msg, true
}

// Drain pops up to n messages (all of them if n <= 0) in FIFO order.
func (q *Queue) Drain(n int) []*osc.Message {
	q.Lock()
	defer q.Unlock()

	available := len(q.msgs) - q.head
	if n <= 0 || available < n {
		n = available
	}
	if n == 0 {
		return nil
	}

	acc := make([]*osc.Message, n)
	copy(acc, q.msgs[q.head:q.head+n])
	for i := q.head; i < q.head+n; i++ {
		q.msgs[i] = nil
	}
	q.head += n

	if q.head == len(q.msgs) {
		q.msgs = q.msgs[:0]
		q.head = 0
	}

	return acc
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.Lock()
	n := len(q.msgs) - q.head
	q.Unlock()
	return n
}
