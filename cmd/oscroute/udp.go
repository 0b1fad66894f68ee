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

package main

import (
	"flag"

	"github.com/Comcast/oscroute/sio"
)

func NewUDPCouplings(args []string) (*sio.UDP, *flag.FlagSet) {

	var (
		u  = &sio.UDP{}
		fs = flag.NewFlagSet("udp", flag.ExitOnError)
	)

	fs.StringVar(&u.Listen, "listen", ":57120", "host:port to receive OSC packets")
	fs.StringVar(&u.Group, "group", "", "optional IPv4 multicast group to join")
	fs.StringVar(&u.Interface, "iface", "", "network interface for -group")
	fs.StringVar(&u.SendTo, "send-to", "", "optional host:port for emitted packets")

	if args != nil {
		fs.Parse(args)
	}

	return u, fs
}
