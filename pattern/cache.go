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

package pattern

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Compiler turns a raw pattern into a Matcher.  Compile is the
// standard Compiler.
type Compiler func(pattern string) (*Matcher, error)

// Cache maps raw pattern strings to their Matchers.
//
// A pattern is compiled the first time it's resolved, and the same
// *Matcher is returned for every later Resolve of the identical
// string.  Keys are exact strings: "/a/{b,c}" and "/a/{c,b}" are
// cached separately.
//
// By default a Cache never evicts, so it grows by one entry per
// distinct address string ever resolved.  A sender that makes up new
// addresses all the time will make the Cache grow without bound.
// WithLimit trades that for an LRU bound.
//
// Not thread-safe.
type Cache struct {
	compiler Compiler

	matchers map[string]*Matcher

	// bounded replaces matchers when the Cache has a limit.
	bounded *lru.Cache[string, *Matcher]

	compiles uint64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache) error

// WithCompiler replaces Compile.  Mostly useful for instrumentation.
func WithCompiler(compiler Compiler) CacheOption {
	return func(c *Cache) error {
		c.compiler = compiler
		return nil
	}
}

// WithLimit bounds the Cache to n entries, evicting the least
// recently resolved pattern when full.  Zero means no limit.
//
// With a limit, a pattern that was evicted is compiled again when it
// shows up again, so the one-Matcher-per-pattern guarantee no longer
// holds.
func WithLimit(n int) CacheOption {
	return func(c *Cache) error {
		if n <= 0 {
			c.bounded = nil
			return nil
		}
		b, err := lru.New[string, *Matcher](n)
		if err != nil {
			return err
		}
		c.bounded = b
		return nil
	}
}

// NewCache makes an empty Cache.
func NewCache(opts ...CacheOption) (*Cache, error) {
	c := &Cache{
		compiler: Compile,
		matchers: make(map[string]*Matcher, 64),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Resolve returns the Matcher for the given pattern, compiling it if
// this Cache hasn't seen the pattern before.
//
// Compilation errors aren't cached, so a malformed pattern is
// re-checked each time it shows up.
func (c *Cache) Resolve(pattern string) (*Matcher, error) {
	if m, have := c.get(pattern); have {
		return m, nil
	}

	c.compiles++
	m, err := c.compiler(pattern)
	if err != nil {
		return nil, err
	}

	if c.bounded != nil {
		c.bounded.Add(pattern, m)
	} else {
		c.matchers[pattern] = m
	}

	return m, nil
}

func (c *Cache) get(pattern string) (*Matcher, bool) {
	if c.bounded != nil {
		return c.bounded.Get(pattern)
	}
	m, have := c.matchers[pattern]
	return m, have
}

// Has reports whether the pattern is currently cached.
func (c *Cache) Has(pattern string) bool {
	if c.bounded != nil {
		return c.bounded.Contains(pattern)
	}
	_, have := c.matchers[pattern]
	return have
}

// Len returns the number of cached Matchers.
func (c *Cache) Len() int {
	if c.bounded != nil {
		return c.bounded.Len()
	}
	return len(c.matchers)
}

// Compiles returns the number of times the Cache has called its
// Compiler, including calls that failed.
func (c *Cache) Compiles() uint64 {
	return c.compiles
}
