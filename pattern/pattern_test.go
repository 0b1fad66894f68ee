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
	"errors"
	"testing"

	"github.com/Comcast/oscroute/osc"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		addr    string
		want    bool
	}{
		{"/foo", "/foo", true},
		{"/foo", "/foo/bar", false},
		{"/foo", "/fo", false},
		{"/entity*/value", "/entity1/value", true},
		{"/entity*/value", "/entity/value", true},
		{"/entity*/value", "/other/value", false},
		{"/*/value", "/entity2/value", true},
		{"/*", "/a/b", false},
		{"/**/b", "/a/x/b", false},
		{"/**", "/abc", true},
		{"/a?c", "/abc", true},
		{"/a?c", "/ac", false},
		{"/a?c", "/a/c", false},
		{"/ch[0-9]", "/ch7", true},
		{"/ch[0-9]", "/chx", false},
		{"/ch[!0-9]", "/chx", true},
		{"/ch[!0-9]", "/ch7", false},
		{"/ch[abc]", "/chb", true},
		{"/a[!b]c", "/a/c", false},
		{"/a[!x]", "/a/", false},
		{"/a[.-0]c", "/a/c", false},
		{"/a[.-0]c", "/a.c", true},
		{"/a*", "/a/b", false},
		{"/a?", "/a/", false},
		{"/{a,b}*", "/a/c", false},
		{"/x/[!y]/z", "/x/q/z", true},
		{"/{foo,bar}/x", "/bar/x", true},
		{"/{foo,bar}/x", "/baz/x", false},
		{"/mixer/{gain,pan}/[1-3]", "/mixer/pan/2", true},
		{`/back\slash`, `/back\slash`, true},
		{`/back\*`, `/back\zz`, true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.addr, func(t *testing.T) {
			m, err := Compile(tt.pattern)
			if err != nil {
				t.Fatal(err)
			}
			if got := m.MatchString(tt.addr); got != tt.want {
				t.Fatalf("Match(%q) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestMatchAddress(t *testing.T) {
	m := MustCompile("/entity*/value")
	if !m.Match(osc.MustAddress("/entity3/value")) {
		t.Fatal("should have matched")
	}
	if m.IsLiteral() {
		t.Fatal("not literal")
	}
	if !MustCompile("/entity3/value").IsLiteral() {
		t.Fatal("literal")
	}
}

func TestMalformed(t *testing.T) {
	for _, p := range []string{
		"",
		"no-slash",
		"/a b",
		"/#a",
		"/a,b",
		"/a[",
		"/a[b",
		"/a]",
		"/a{b",
		"/a}",
		"/a[b/c]",
		"/a{b/c}",
		"/a[]",
		"/a{}",
		"/a[[b]]",
		"/a[*]",
		"/a\x01",
	} {
		t.Run(p, func(t *testing.T) {
			m, err := Compile(p)
			if err == nil {
				t.Fatalf("%q compiled to %v", p, m)
			}
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("%v isn't ErrMalformed", err)
			}
		})
	}
}

func TestCacheIdempotent(t *testing.T) {
	var calls int
	counting := func(p string) (*Matcher, error) {
		calls++
		return Compile(p)
	}

	c, err := NewCache(WithCompiler(counting))
	if err != nil {
		t.Fatal(err)
	}

	first, err := c.Resolve("/entity*/value")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		m, err := c.Resolve("/entity*/value")
		if err != nil {
			t.Fatal(err)
		}
		if m != first {
			t.Fatalf("resolve %d returned a different matcher", i)
		}
	}

	if calls != 1 {
		t.Fatalf("compiler called %d times", calls)
	}
	if c.Compiles() != 1 {
		t.Fatalf("Compiles() = %d", c.Compiles())
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d", c.Len())
	}
}

func TestCacheExactStringKeys(t *testing.T) {
	c, err := NewCache()
	if err != nil {
		t.Fatal(err)
	}
	a, _ := c.Resolve("/a/{b,c}")
	b, _ := c.Resolve("/a/{c,b}")
	if a == b {
		t.Fatal("equivalent patterns share a matcher")
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d", c.Len())
	}
}

func TestCacheMalformedNotCached(t *testing.T) {
	c, err := NewCache()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.Resolve("/a[b"); !errors.Is(err, ErrMalformed) {
			t.Fatal(err)
		}
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d", c.Len())
	}
	if c.Has("/a[b") {
		t.Fatal("malformed pattern cached")
	}
	if c.Compiles() != 3 {
		t.Fatalf("Compiles() = %d", c.Compiles())
	}
}

func TestCacheLimit(t *testing.T) {
	c, err := NewCache(WithLimit(2))
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"/a", "/b", "/c"} {
		if _, err := c.Resolve(p); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d", c.Len())
	}
	if c.Has("/a") {
		t.Fatal("/a should have been evicted")
	}
	if _, err := c.Resolve("/a"); err != nil {
		t.Fatal(err)
	}
	if c.Compiles() != 4 {
		t.Fatalf("Compiles() = %d", c.Compiles())
	}
}
