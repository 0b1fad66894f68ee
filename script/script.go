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

// Package script provides methods written in ECMAScript.
//
// A script must define a function receive(msg), which is called for
// each message the method accepts.  msg has two properties: address
// and args.  A script may also define accepts(msg), which is called
// after an address matches and can refuse the message by returning
// false.
//
// The following functions are available to scripts:
//
//	emit(address, args...): queue a message for the router to send.
//	cronNext(expr): the next time (RFC3339) for the cron expression.
//	log(x): log x as JSON.
//
// Scripts run in Goja.  See https://github.com/dop251/goja.
package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Comcast/oscroute/method"
	"github.com/Comcast/oscroute/osc"
	"github.com/Comcast/oscroute/pattern"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
	"go.uber.org/multierr"
)

var (
	// ErrNoReceive is returned by New if the script doesn't define
	// a receive function.
	ErrNoReceive = errors.New("script doesn't define receive(msg)")

	// ErrTimeout is reported when a call into the script runs
	// longer than the Method's Timeout.
	ErrTimeout = errors.New("script timeout")

	// DefaultTimeout is the initial Timeout for a new Method.
	DefaultTimeout = 100 * time.Millisecond
)

// Method is a method.Method backed by a script.
//
// Calls into the script are serialized.
type Method struct {
	sync.Mutex

	// Timeout bounds each call into the script.  Zero means no
	// limit.
	Timeout time.Duration

	// Logf, if not nil, reports script errors and log() calls.
	Logf func(format string, args ...interface{})

	addresses []osc.Address
	rt        *goja.Runtime
	receive   goja.Callable
	accepts   goja.Callable

	emitted []osc.Packet
	errs    error
}

// New compiles and runs the given source, which should define a
// receive function.
func New(src string, addresses ...string) (*Method, error) {
	if len(addresses) == 0 {
		return nil, method.ErrNoAddresses
	}
	as, err := osc.NewAddresses(addresses...)
	if err != nil {
		return nil, err
	}

	p, err := goja.Compile("", src, true)
	if err != nil {
		return nil, err
	}

	m := &Method{
		Timeout:   DefaultTimeout,
		addresses: as,
		rt:        goja.New(),
	}

	m.bind()

	if err = m.run(func() error {
		_, err := m.rt.RunProgram(p)
		return err
	}); err != nil {
		return nil, err
	}

	var ok bool
	if m.receive, ok = goja.AssertFunction(m.rt.Get("receive")); !ok {
		return nil, ErrNoReceive
	}
	if f, ok := goja.AssertFunction(m.rt.Get("accepts")); ok {
		m.accepts = f
	}

	return m, nil
}

func (m *Method) protest(x interface{}) {
	panic(m.rt.ToValue(x))
}

func (m *Method) bind() {
	rt := m.rt

	rt.Set("emit", func(call goja.FunctionCall) goja.Value {
		addr := call.Argument(0).String()
		if _, err := pattern.Compile(addr); err != nil {
			panic(rt.NewGoError(err))
		}
		var args []interface{}
		for i := 1; i < len(call.Arguments); i++ {
			args = append(args, call.Arguments[i].Export())
		}
		m.emitted = append(m.emitted, osc.NewMessage(addr, args...))
		return goja.Undefined()
	})

	rt.Set("cronNext", func(x goja.Value) interface{} {
		expr, is := x.Export().(string)
		if !is {
			m.protest("not a string")
		}
		c, err := cronexpr.Parse(expr)
		if err != nil {
			m.protest(err.Error())
		}
		return c.Next(time.Now()).UTC().Format(time.RFC3339Nano)
	})

	rt.Set("log", func(x goja.Value) goja.Value {
		v := x.Export()
		js, err := json.Marshal(&v)
		if err != nil {
			m.logf("script log (can't marshal: %s)", err)
		} else {
			m.logf("script log %s", js)
		}
		return x
	})
}

// run calls f with the Timeout in force.
func (m *Method) run(f func() error) error {
	if 0 < m.Timeout {
		timer := time.AfterFunc(m.Timeout, func() {
			m.rt.Interrupt(ErrTimeout.Error())
		})
		defer func() {
			timer.Stop()
			m.rt.ClearInterrupt()
		}()
	}

	err := f()
	if err != nil {
		var ie *goja.InterruptedError
		if errors.As(err, &ie) {
			return ErrTimeout
		}
	}
	return err
}

func (m *Method) logf(format string, args ...interface{}) {
	if m.Logf != nil {
		m.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// fail records an error from a call into the script.
func (m *Method) fail(what string, err error) {
	err = fmt.Errorf("script %s: %w", what, err)
	m.logf("ERROR %s", err)
	m.errs = multierr.Append(m.errs, err)
}

func jsMessage(msg *osc.Message) map[string]interface{} {
	args := msg.Arguments
	if args == nil {
		args = []interface{}{}
	}
	return map[string]interface{}{
		"address": msg.Address,
		"args":    args,
	}
}

func (m *Method) Addresses() []osc.Address {
	acc := make([]osc.Address, len(m.addresses))
	copy(acc, m.addresses)
	return acc
}

// Accept calls the script's receive function.  An error from the
// script is logged and reported later by Err.
func (m *Method) Accept(msg *osc.Message) {
	m.Lock()
	defer m.Unlock()

	js := m.rt.ToValue(jsMessage(msg))
	if err := m.run(func() error {
		_, err := m.receive(goja.Undefined(), js)
		return err
	}); err != nil {
		m.fail("receive", err)
	}
}

// MatchMessage implements method.Matching.  A message is accepted if
// one of the Method's addresses matches and the script's accepts
// function, if any, doesn't refuse it.
func (m *Method) MatchMessage(matcher *pattern.Matcher, msg *osc.Message) bool {
	matched := false
	for _, a := range m.addresses {
		if matcher.Match(a) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	if m.accepts != nil && !m.check(msg) {
		return false
	}

	m.Accept(msg)
	return true
}

func (m *Method) check(msg *osc.Message) bool {
	m.Lock()
	defer m.Unlock()

	var v goja.Value
	if err := m.run(func() error {
		var err error
		v, err = m.accepts(goja.Undefined(), m.rt.ToValue(jsMessage(msg)))
		return err
	}); err != nil {
		m.fail("accepts", err)
		return false
	}
	return v.ToBoolean()
}

// Emitted returns and forgets the messages the script has emitted.
func (m *Method) Emitted() []osc.Packet {
	m.Lock()
	ps := m.emitted
	m.emitted = nil
	m.Unlock()
	return ps
}

// Err returns and forgets the errors from calls into the script.
func (m *Method) Err() error {
	m.Lock()
	err := m.errs
	m.errs = nil
	m.Unlock()
	return err
}
