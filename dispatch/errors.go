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
	"fmt"

	"github.com/Comcast/oscroute/osc"
	"github.com/Comcast/oscroute/pattern"
)

// MalformedPattern reports a message that was skipped because its
// address couldn't be compiled.
type MalformedPattern struct {
	// Index is the message's position in the flattened batch.
	Index int

	Message *osc.Message

	Err error
}

func (e *MalformedPattern) Error() string {
	return fmt.Sprintf("message %d skipped: %s", e.Index, e.Err)
}

// Is allows errors.Is to match MalformedPattern with
// pattern.ErrMalformed.
func (e *MalformedPattern) Is(target error) bool {
	return target == pattern.ErrMalformed
}

func (e *MalformedPattern) Unwrap() error {
	return e.Err
}
