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
	"io/ioutil"
	"path/filepath"
	"time"

	"github.com/Comcast/oscroute/method"
	"github.com/Comcast/oscroute/script"

	"gopkg.in/yaml.v2"
)

// Conf is a Router configuration.
//
//	maxBatch: 64
//	cacheLimit: 0
//	loopback: false
//	methods:
//	  - name: light
//	    kind: single
//	    addresses: [/light/1/level]
//	  - name: mixer
//	    kind: multi
//	    addresses: [/mixer/1, /mixer/2]
//	  - name: echo
//	    kind: script
//	    addresses: [/echo]
//	    timeout: 50ms
//	    script: |
//	      function receive(msg) { emit("/echoed", msg.args[0]); }
type Conf struct {
	MaxBatch   int  `yaml:"maxBatch,omitempty"`
	MaxDrain   int  `yaml:"maxDrain,omitempty"`
	CacheLimit int  `yaml:"cacheLimit,omitempty"`
	Loopback   bool `yaml:"loopback,omitempty"`

	Methods []*MethodConf `yaml:"methods"`

	// dir is used to resolve relative script filenames.
	dir string
}

// MethodConf describes one method.
type MethodConf struct {
	Name      string   `yaml:"name"`
	Kind      string   `yaml:"kind"`
	Doc       string   `yaml:"doc,omitempty"`
	Addresses []string `yaml:"addresses"`

	// Script is inline source for kind "script".
	Script string `yaml:"script,omitempty"`

	// ScriptFile names a file with source for kind "script".
	ScriptFile string `yaml:"scriptFile,omitempty"`

	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// ParseConf parses YAML, rejecting unknown fields.
func ParseConf(bs []byte) (*Conf, error) {
	var c Conf
	if err := yaml.UnmarshalStrict(bs, &c); err != nil {
		return nil, err
	}
	if err := c.Check(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ReadConf reads and parses the given file.
func ReadConf(filename string) (*Conf, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	c, err := ParseConf(bs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	c.dir = filepath.Dir(filename)
	return c, nil
}

// Check looks for duplicate or missing names and unknown kinds.
//
// Addresses are checked when methods are built.
func (c *Conf) Check() error {
	seen := make(map[string]bool, len(c.Methods))
	for i, mc := range c.Methods {
		if mc.Name == "" {
			return fmt.Errorf("method %d has no name", i)
		}
		if seen[mc.Name] {
			return fmt.Errorf("duplicate method name '%s'", mc.Name)
		}
		seen[mc.Name] = true

		switch mc.Kind {
		case "single":
			if len(mc.Addresses) != 1 {
				return fmt.Errorf("single method '%s' has %d addresses", mc.Name, len(mc.Addresses))
			}
		case "multi":
		case "script":
			if (mc.Script == "") == (mc.ScriptFile == "") {
				return fmt.Errorf("script method '%s' needs one of script or scriptFile", mc.Name)
			}
		default:
			return fmt.Errorf("method '%s' has unknown kind '%s'", mc.Name, mc.Kind)
		}
	}
	return nil
}

// Build makes the configured methods.
func (c *Conf) Build() (map[string]method.Method, error) {
	ms := make(map[string]method.Method, len(c.Methods))
	for _, mc := range c.Methods {
		m, err := c.build(mc)
		if err != nil {
			return nil, fmt.Errorf("method '%s': %w", mc.Name, err)
		}
		ms[mc.Name] = m
	}
	return ms, nil
}

func (c *Conf) build(mc *MethodConf) (method.Method, error) {
	switch mc.Kind {
	case "single":
		if len(mc.Addresses) != 1 {
			return nil, fmt.Errorf("%d addresses", len(mc.Addresses))
		}
		m, err := method.NewSingle(mc.Addresses[0])
		if err != nil {
			return nil, err
		}
		return m, nil
	case "multi":
		m, err := method.NewMulti(mc.Addresses...)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "script":
		src := mc.Script
		if mc.ScriptFile != "" {
			filename := mc.ScriptFile
			if !filepath.IsAbs(filename) && c.dir != "" {
				filename = filepath.Join(c.dir, filename)
			}
			bs, err := ioutil.ReadFile(filename)
			if err != nil {
				return nil, err
			}
			src = string(bs)
		}
		m, err := script.New(src, mc.Addresses...)
		if err != nil {
			return nil, err
		}
		if mc.Timeout != 0 {
			m.Timeout = mc.Timeout
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown kind '%s'", mc.Kind)
	}
}

// Configure applies the Conf to a Router, adding the built methods.
func (c *Conf) Configure(r *Router) error {
	ms, err := c.Build()
	if err != nil {
		return err
	}
	if 0 < c.MaxBatch {
		r.MaxBatch = c.MaxBatch
	}
	r.MaxDrain = c.MaxDrain
	r.Loopback = c.Loopback
	for name, m := range ms {
		r.SetMethod(name, m)
	}
	return nil
}
