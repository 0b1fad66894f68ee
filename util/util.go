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

// Package util has logging switches shared by the commands and their
// couplings.
package util

import (
	"fmt"
	"log"
)

// Logging is a clumsy switch that affects what Logf does.
//
// If Logging is true, then Logf calls log.Printf.
var Logging = false

// Logf calls log.Printf if Logging is true.
func Logf(format string, args ...interface{}) {
	if !Logging {
		return
	}
	log.Printf(format, args...)
}

// Warnf always logs, with a "warning" prefix, and returns the
// message as an error.
func Warnf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	log.Printf("warning: %s", err)
	return err
}
