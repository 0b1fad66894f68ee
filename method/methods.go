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
	"errors"

	"github.com/Comcast/oscroute/osc"
)

var (
	// ErrNoAddresses is returned by NewMulti when given no addresses.
	ErrNoAddresses = errors.New("method needs at least one address")

	// ErrNoFunc is returned by NewFunc when given a nil function.
	ErrNoFunc = errors.New("method needs a function")
)

// Single is a queue-backed Method with one address.
type Single struct {
	address osc.Address

	Queue
}

// NewSingle makes a Single for the given address, which must be a
// valid osc.Address.  On error no Single is returned.
func NewSingle(address string) (*Single, error) {
	a, err := osc.NewAddress(address)
	if err != nil {
		return nil, err
	}
	return &Single{
		address: a,
	}, nil
}

// Address returns the Single's address.
func (s *Single) Address() osc.Address {
	return s.address
}

// Addresses implements Method.
func (s *Single) Addresses() []osc.Address {
	return []osc.Address{s.address}
}

// Accept implements Method by queuing the message.
func (s *Single) Accept(msg *osc.Message) {
	s.Push(msg)
}

// Multi is a queue-backed Method with several addresses.
//
// A message that matches more than one of the addresses is still only
// queued once.
type Multi struct {
	addresses []osc.Address

	Queue
}

// NewMulti makes a Multi for the given addresses.  Every address must
// be valid, and there must be at least one.  On error no Multi is
// returned.
func NewMulti(addresses ...string) (*Multi, error) {
	if len(addresses) == 0 {
		return nil, ErrNoAddresses
	}
	as, err := osc.NewAddresses(addresses...)
	if err != nil {
		return nil, err
	}
	return &Multi{
		addresses: as,
	}, nil
}

// Addresses implements Method.
func (m *Multi) Addresses() []osc.Address {
	acc := make([]osc.Address, len(m.addresses))
	copy(acc, m.addresses)
	return acc
}

// Accept implements Method by queuing the message.
func (m *Multi) Accept(msg *osc.Message) {
	m.Push(msg)
}

// Func is a Method that calls a function for each accepted message
// instead of queuing it.
type Func struct {
	addresses []osc.Address
	f         func(*osc.Message)
}

// NewFunc makes a Func for the given addresses.
func NewFunc(f func(*osc.Message), addresses ...string) (*Func, error) {
	if f == nil {
		return nil, ErrNoFunc
	}
	if len(addresses) == 0 {
		return nil, ErrNoAddresses
	}
	as, err := osc.NewAddresses(addresses...)
	if err != nil {
		return nil, err
	}
	return &Func{
		addresses: as,
		f:         f,
	}, nil
}

// Addresses implements Method.
func (f *Func) Addresses() []osc.Address {
	acc := make([]osc.Address, len(f.addresses))
	copy(acc, f.addresses)
	return acc
}

// Accept implements Method.
func (f *Func) Accept(msg *osc.Message) {
	f.f(msg)
}
