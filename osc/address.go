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
)

// ErrInvalidAddress is matched (via errors.Is) by every
// *InvalidAddress.
var ErrInvalidAddress = errors.New("invalid OSC address")

// InvalidAddress occurs when a string can't be used as a concrete OSC
// address.
type InvalidAddress struct {
	Address string

	// Reason says what's wrong.
	Reason string
}

func (e *InvalidAddress) Error() string {
	return fmt.Sprintf("invalid OSC address %q: %s", e.Address, e.Reason)
}

// Is allows errors.Is to match InvalidAddress with ErrInvalidAddress.
func (e *InvalidAddress) Is(target error) bool {
	return target == ErrInvalidAddress
}

// Address is a concrete (non-pattern) OSC address such as
// "/mixer/channel/1/gain".
//
// The zero value isn't valid.  Use NewAddress.
type Address struct {
	s string
}

// reserved holds the characters that can't appear in an address
// because they mean something in an address pattern (or in the
// message type tag string).
var reserved = [128]bool{
	' ': true,
	'#': true,
	'*': true,
	',': true,
	'?': true,
	'[': true,
	']': true,
	'{': true,
	'}': true,
}

// NewAddress validates the given string as an OSC address.
//
// An address must start with a '/' and can only contain printable
// ASCII characters except for ' ', '#', '*', ',', '?', '[', ']', '{',
// and '}'.  The input is never corrected or truncated.
func NewAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, &InvalidAddress{Address: s, Reason: "empty"}
	}
	if s[0] != '/' {
		return Address{}, &InvalidAddress{Address: s, Reason: "doesn't start with '/'"}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || 0x7e < c {
			return Address{}, &InvalidAddress{
				Address: s,
				Reason:  fmt.Sprintf("non-printable byte 0x%02x at %d", c, i),
			}
		}
		if reserved[c] {
			return Address{}, &InvalidAddress{
				Address: s,
				Reason:  fmt.Sprintf("reserved character %q at %d", c, i),
			}
		}
	}
	return Address{s: s}, nil
}

// MustAddress is NewAddress that panics on error.
func MustAddress(s string) Address {
	a, err := NewAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// NewAddresses validates all of the given strings.  The first failure
// is returned.
func NewAddresses(ss ...string) ([]Address, error) {
	acc := make([]Address, 0, len(ss))
	for _, s := range ss {
		a, err := NewAddress(s)
		if err != nil {
			return nil, err
		}
		acc = append(acc, a)
	}
	return acc, nil
}

// String returns the address.
func (a Address) String() string {
	return a.s
}

// IsZero reports whether the Address wasn't made by NewAddress.
func (a Address) IsZero() bool {
	return a.s == ""
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and validates the
// address.
func (a *Address) UnmarshalText(bs []byte) error {
	x, err := NewAddress(string(bs))
	if err != nil {
		return err
	}
	*a = x
	return nil
}
