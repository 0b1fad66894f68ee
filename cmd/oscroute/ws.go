/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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
	"context"
	"flag"
	"log"
	"net/url"

	"github.com/Comcast/oscroute/osc"
	"github.com/Comcast/oscroute/sio"
	"github.com/Comcast/oscroute/util"

	"github.com/gorilla/websocket"
)

// WebSocketCouplings reads packets from a WebSocket client
// connection and writes emitted packets back as binary frames.
//
// Binary frames are OSC.  Text frames are parsed with
// sio.ParsePacket.
type WebSocketCouplings struct {
	URL string

	in   chan osc.Packet
	out  chan *sio.Result
	done chan bool
	conn *websocket.Conn
}

func NewWebSocketCouplings(args []string) (*WebSocketCouplings, *flag.FlagSet) {
	c := &WebSocketCouplings{}
	fs := flag.NewFlagSet("ws", flag.ExitOnError)
	fs.StringVar(&c.URL, "url", "ws://localhost:8080", "Target URL for WebSocket server")
	if args == nil {
		return nil, fs
	}
	fs.Parse(args)
	return c, fs
}

// Start creates the WebSocket session and starts processing it.
func (c *WebSocketCouplings) Start(ctx context.Context) error {

	u, err := url.Parse(c.URL)
	if err != nil {
		return err
	}

	c.in = make(chan osc.Packet)
	c.out = make(chan *sio.Result)
	c.done = make(chan bool)

	log.Println("wsconnect", u.String())
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	c.conn = conn

	go func() {
		defer close(c.done)
		for {
			typ, bs, err := conn.ReadMessage()
			if err != nil {
				util.Logf("ReadMessage: %s", err)
				return
			}
			if len(bs) == 0 {
				continue
			}

			var p osc.Packet
			switch typ {
			case websocket.BinaryMessage:
				p, err = osc.Decode(bs)
			default:
				p, err = sio.ParsePacket(bs)
			}
			if err != nil {
				util.Warnf("bad frame: %s", err)
				continue
			}

			select {
			case <-ctx.Done():
				return
			case c.in <- p:
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-c.out:
				for _, p := range r.Emitted {
					bs, err := osc.Encode(p)
					if err != nil {
						util.Warnf("encoding %s: %s", sio.PacketJS(p), err)
						continue
					}
					if err = conn.WriteMessage(websocket.BinaryMessage, bs); err != nil {
						util.Warnf("WriteMessage: %s", err)
						return
					}
				}
				if r.Err != "" {
					log.Printf("ERROR %s", r.Err)
				}
			}
		}
	}()

	return nil
}

// IO just returns the channels that Start() initialized.
func (c *WebSocketCouplings) IO(ctx context.Context) (chan osc.Packet, chan *sio.Result, chan bool, error) {
	return c.in, c.out, c.done, nil
}

// Stop terminates the WebSocket connection.
func (c *WebSocketCouplings) Stop(ctx context.Context) error {
	log.Printf("Disconnecting")
	return c.conn.Close()
}
