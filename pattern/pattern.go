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

// Package pattern compiles OSC address patterns into reusable
// matchers and caches them.
//
// Pattern syntax follows OSC 1.0:
//
//	?        any single character except '/'
//	*        zero or more characters except '/'
//	[abc]    one of the listed characters; ranges like [a-z]; [!a-z] negates
//	{a,bc}   one of the comma-separated strings
//
// Compilation is done by github.com/gobwas/glob with '/' as the
// separator.
package pattern

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Comcast/oscroute/osc"

	"github.com/gobwas/glob"
)

// ErrMalformed is matched (via errors.Is) by every *Malformed.
var ErrMalformed = errors.New("malformed OSC address pattern")

// Malformed occurs when an address pattern can't be compiled.
type Malformed struct {
	Pattern string
	Reason  string

	// Err is the compiler's error, if any.
	Err error
}

func (e *Malformed) Error() string {
	return fmt.Sprintf("malformed OSC address pattern %q: %s", e.Pattern, e.Reason)
}

// Is allows errors.Is to match Malformed with ErrMalformed.
func (e *Malformed) Is(target error) bool {
	return target == ErrMalformed
}

func (e *Malformed) Unwrap() error {
	return e.Err
}

// Matcher is a compiled address pattern.
//
// A Matcher is immutable and safe for concurrent use.
type Matcher struct {
	pattern string

	// literal is true when the pattern has no wildcards, in
	// which case g is nil and matching is string equality.
	literal bool

	g glob.Glob

	// slashes counts the '/' characters in the pattern.
	slashes int
}

// wildcards are the characters that make a pattern more than a
// literal address.
const wildcards = "*?[]{}"

// Compile checks and compiles an OSC address pattern.
func Compile(pattern string) (*Matcher, error) {
	if err := check(pattern); err != nil {
		return nil, err
	}

	if !strings.ContainsAny(pattern, wildcards) {
		return &Matcher{
			pattern: pattern,
			literal: true,
		}, nil
	}

	g, err := glob.Compile(globSyntax(pattern), '/')
	if err != nil {
		return nil, &Malformed{
			Pattern: pattern,
			Reason:  err.Error(),
			Err:     err,
		}
	}

	return &Matcher{
		pattern: pattern,
		g:       g,
		slashes: strings.Count(pattern, "/"),
	}, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(pattern string) *Matcher {
	m, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Pattern returns the raw pattern string.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// IsLiteral reports whether the pattern has no wildcards.
func (m *Matcher) IsLiteral() bool {
	return m.literal
}

// Match reports whether the given address is in the set of addresses
// described by the pattern.
func (m *Matcher) Match(addr osc.Address) bool {
	return m.MatchString(addr.String())
}

// MatchString is Match for an unvalidated address string.
func (m *Matcher) MatchString(addr string) bool {
	if m.literal {
		return m.pattern == addr
	}
	// Wildcards stay within a segment, so the '/' characters must
	// line up one-to-one.  The glob only keeps '*' and '?' from
	// crossing a '/'.
	if strings.Count(addr, "/") != m.slashes {
		return false
	}
	return m.g.Match(addr)
}

func (m *Matcher) String() string {
	return m.pattern
}

// check does the syntax checking that doesn't depend on the glob
// compiler: a leading '/', printable ASCII without ' ', '#', or ',',
// and balanced brackets and braces that don't span a '/'.
func check(pattern string) error {
	malformed := func(format string, args ...interface{}) error {
		return &Malformed{
			Pattern: pattern,
			Reason:  fmt.Sprintf(format, args...),
		}
	}

	if pattern == "" {
		return malformed("empty")
	}
	if pattern[0] != '/' {
		return malformed("doesn't start with '/'")
	}

	var (
		open   byte // '[' or '{' when inside one
		openAt int
	)
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c < 0x20 || 0x7e < c {
			return malformed("non-printable byte 0x%02x at %d", c, i)
		}
		switch c {
		case ' ', '#':
			return malformed("reserved character %q at %d", c, i)
		case ',':
			if open != '{' {
				return malformed("',' outside of braces at %d", i)
			}
		case '/':
			if open != 0 {
				return malformed("'%c' not closed before '/' at %d", open, i)
			}
		case '[', '{':
			if open != 0 {
				return malformed("nested '%c' at %d", c, i)
			}
			open, openAt = c, i
		case ']':
			if open != '[' {
				return malformed("unexpected ']' at %d", i)
			}
			if i == openAt+1 {
				return malformed("empty '[]' at %d", openAt)
			}
			open = 0
		case '}':
			if open != '{' {
				return malformed("unexpected '}' at %d", i)
			}
			if i == openAt+1 {
				return malformed("empty '{}' at %d", openAt)
			}
			open = 0
		case '*', '?':
			if open != 0 {
				return malformed("wildcard %q inside '%c' at %d", c, open, i)
			}
		}
	}
	if open != 0 {
		return malformed("'%c' not closed", open)
	}
	return nil
}

// globSyntax adapts an OSC pattern to the glob compiler.
//
// Backslashes are literal in OSC but escapes for the compiler, and a
// run of '*' is just '*' in OSC but would cross separators as '**'.
func globSyntax(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) + 4)
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '*':
			if 0 < i && pattern[i-1] == '*' {
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
