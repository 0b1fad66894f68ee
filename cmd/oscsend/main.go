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

// Package main sends OSC packets, written in YAML or JSON, to a UDP
// address.
//
//	oscsend -to localhost:57120 '{address: /light/1, args: [0.5]}'
//
// With no arguments, packets are read from stdin, one per line.
package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Comcast/oscroute/osc"
	"github.com/Comcast/oscroute/sio"
	"github.com/Comcast/oscroute/util"
)

func main() {
	var (
		to      = flag.String("to", "localhost:57120", "Destination host:port")
		pause   = flag.Duration("pause", 0, "Pause between packets")
		verbose = flag.Bool("v", false, "Verbose")
	)

	flag.Parse()

	util.Logging = *verbose

	c, err := sio.NewUDPClient(*to)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	send := func(src string) {
		p, err := sio.ParsePacket([]byte(src))
		if err != nil {
			log.Fatalf("bad packet %s: %s", src, err)
		}
		if err = c.Send(p); err != nil {
			log.Fatal(err)
		}
		util.Logf("sent %s", sio.PacketJS(p))
		if 0 < *pause {
			time.Sleep(*pause)
		}
	}

	if 0 < flag.NArg() {
		for _, src := range flag.Args() {
			send(src)
		}
		return
	}

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, osc.MaxPacketSize), osc.MaxPacketSize)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		send(line)
	}
	if err := in.Err(); err != nil {
		log.Fatal(err)
	}
}
