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

package sio

import (
	"fmt"
	"io"
	"strings"

	md "github.com/russross/blackfriday/v2"
)

// RoutesMarkdown writes a Markdown table of the configured methods.
func RoutesMarkdown(c *Conf) string {
	var b strings.Builder
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	f("# Routes")
	f("")
	f("| Method | Kind | Addresses | Doc |")
	f("|---|---|---|---|")
	for _, mc := range c.Methods {
		addrs := make([]string, len(mc.Addresses))
		for i, a := range mc.Addresses {
			addrs[i] = "`" + a + "`"
		}
		f("| %s | %s | %s | %s |",
			mc.Name, mc.Kind, strings.Join(addrs, " "), cell(mc.Doc))
	}

	return b.String()
}

// cell makes text safe for a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// RenderRoutesHTML writes an HTML document describing the configured
// methods.
func RenderRoutesHTML(c *Conf, out io.Writer) error {
	f := func(format string, args ...interface{}) error {
		_, err := fmt.Fprintf(out, format+"\n", args...)
		return err
	}

	if err := f(`<div class="routes doc">`); err != nil {
		return err
	}
	if _, err := out.Write(md.Run([]byte(RoutesMarkdown(c)))); err != nil {
		return err
	}
	return f(`</div>`)
}
