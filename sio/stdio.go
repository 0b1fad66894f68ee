/* Copyright 2019 Comcast Cable Communications Management, LLC
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
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Comcast/oscroute/osc"
)

// Stdio is a fairly simple Couplings that uses stdin for input and
// stdout for output.
//
// Each input line is a packet written in YAML or JSON (see
// ParsePacket).  Lines starting with '#' are ignored, and "quit" ends
// input.
type Stdio struct {
	// In is coupled to Router input.
	In io.Reader

	// Out is coupled to Router output.
	Out io.Writer

	// ShellExpand enables input to include inline shell commands
	// delimited by '<<' and '>>'.  Use at your own risk, of
	// course!
	ShellExpand bool

	// Timestamps prepends a timestamp to each output line.
	Timestamps bool

	// EchoInput writes input lines (prepended with "input") to
	// the output.
	EchoInput bool

	// Tags prefixes tags indicating type of output ("input",
	// "deliver", "emit", "error").
	Tags bool

	// PadTags adds some padding to tags used in output.
	PadTags bool

	// PrintDeliveries writes each delivered message.
	PrintDeliveries bool

	// InputEOF will be closed on EOF from stdin.
	InputEOF chan bool

	WG sync.WaitGroup
}

// NewStdio creates a new Stdio.
//
// In and Out are initialized with os.Stdin and os.Stdout
// respectively.
func NewStdio(shellExpand bool) *Stdio {
	return &Stdio{
		In:              os.Stdin,
		Out:             os.Stdout,
		ShellExpand:     shellExpand,
		PrintDeliveries: true,
		InputEOF:        make(chan bool),
	}
}

// Start does nothing.
func (s *Stdio) Start(ctx context.Context) error {
	return nil
}

// Stop waits until IO is complete or was terminated via its context.
func (s *Stdio) Stop(ctx context.Context) error {
	s.WG.Wait()
	return nil
}

func (s *Stdio) printf(tag, format string, args ...interface{}) {
	if s.PadTags {
		tag = fmt.Sprintf("% 10s", tag)
	}
	if s.Tags {
		format = tag + " " + format
	}
	if s.Timestamps {
		ts := fmt.Sprintf("%-31s", time.Now().UTC().Format(time.RFC3339Nano))
		format = ts + " " + format
	}

	fmt.Fprintf(s.Out, format, args...)
}

// IO returns channels for reading from stdin and writing to stdout.
func (s *Stdio) IO(ctx context.Context) (chan osc.Packet, chan *Result, chan bool, error) {
	in := make(chan osc.Packet)
	done := make(chan bool)

	s.WG.Add(1)
	go func() {
		defer s.WG.Done()
		defer close(s.InputEOF)
		defer close(done)

		stdin := bufio.NewReader(s.In)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line, err := stdin.ReadString('\n')
			if err == io.EOF && strings.TrimSpace(line) == "" {
				return
			}
			if err != nil && err != io.EOF {
				log.Printf("stdin error %s", err)
				return
			}
			if strings.TrimSpace(line) == "quit" {
				return
			}
			if s.EchoInput {
				s.printf("input", "%s\n", strings.TrimRight(line, "\n"))
			}
			if strings.HasPrefix(line, "#") || len(strings.TrimSpace(line)) == 0 {
				continue
			}
			if s.ShellExpand {
				if line, err = ShellExpand(line); err != nil {
					log.Printf("stdin error %s", err)
					return
				}
			}

			p, perr := ParsePacket([]byte(line))
			if perr != nil {
				fmt.Fprintf(os.Stderr, "bad input: %s\n", perr)
				continue
			}

			select {
			case <-ctx.Done():
				return
			case in <- p:
			}

			if err == io.EOF {
				return
			}
		}
	}()

	out := make(chan *Result)

	s.WG.Add(1)
	go func() {
		defer s.WG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-out:
				if r == nil {
					return
				}
				s.WriteResult(r)
			}
		}
	}()

	return in, out, done, nil
}

// WriteResult writes the Result's lines to Out.
func (s *Stdio) WriteResult(r *Result) {
	if s.PrintDeliveries {
		for _, d := range r.Deliveries {
			s.printf("deliver", "%s %s\n", d.Method, PacketJS(d.Message))
		}
	}
	for _, p := range r.Emitted {
		s.printf("emit", "%s\n", PacketJS(p))
	}
	if r.Err != "" {
		s.printf("error", "%s\n", JS(r.Err))
	}
}
