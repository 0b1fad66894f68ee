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
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/Comcast/oscroute/osc"

	"golang.org/x/net/ipv4"
)

// UDP is a Couplings that reads OSC datagrams from a UDP socket and
// sends emitted packets to another UDP address.
type UDP struct {
	// Listen is the host:port to bind.
	Listen string

	// Group, if not empty, is an IPv4 multicast group to join.
	Group string

	// Interface names the network interface for Group.  Empty
	// means the system default.
	Interface string

	// SendTo, if not empty, is the host:port that gets emitted
	// packets.
	SendTo string

	// Verbose turns on logging.
	Verbose bool

	conn net.PacketConn
	dest net.Addr

	WG sync.WaitGroup
}

// Start binds the socket and joins the multicast group, if any.
func (u *UDP) Start(ctx context.Context) error {
	conn, err := net.ListenPacket("udp4", u.Listen)
	if err != nil {
		return err
	}

	if u.Group != "" {
		if err := u.join(conn); err != nil {
			conn.Close()
			return err
		}
	}

	if u.SendTo != "" {
		dest, err := net.ResolveUDPAddr("udp4", u.SendTo)
		if err != nil {
			conn.Close()
			return err
		}
		u.dest = dest
	}

	u.conn = conn
	u.logf("UDP listening on %s", conn.LocalAddr())

	return nil
}

func (u *UDP) join(conn net.PacketConn) error {
	group := net.ParseIP(u.Group)
	if group == nil || !group.IsMulticast() {
		return fmt.Errorf("bad multicast group '%s'", u.Group)
	}

	var ifi *net.Interface
	if u.Interface != "" {
		var err error
		if ifi, err = net.InterfaceByName(u.Interface); err != nil {
			return err
		}
	}

	p := ipv4.NewPacketConn(conn)
	if err := p.JoinGroup(ifi, &net.UDPAddr{IP: group}); err != nil {
		return err
	}
	u.logf("UDP joined %s", group)
	return nil
}

// Addr returns the bound address.
func (u *UDP) Addr() net.Addr {
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

func (u *UDP) logf(format string, args ...interface{}) {
	if u.Verbose {
		log.Printf(format, args...)
	}
}

// IO starts reading datagrams and writing emitted packets.
//
// Datagrams that don't decode are logged and dropped.
func (u *UDP) IO(ctx context.Context) (chan osc.Packet, chan *Result, chan bool, error) {
	if u.conn == nil {
		return nil, nil, nil, errors.New("UDP not started")
	}

	var (
		in   = make(chan osc.Packet)
		out  = make(chan *Result)
		done = make(chan bool)
	)

	// Unblock ReadFrom.
	go func() {
		<-ctx.Done()
		u.conn.Close()
	}()

	u.WG.Add(1)
	go func() {
		defer u.WG.Done()
		defer close(done)

		buf := make([]byte, osc.MaxPacketSize)
		for {
			n, from, err := u.conn.ReadFrom(buf)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("UDP read error %s", err)
				}
				return
			}
			p, err := osc.Decode(buf[:n])
			if err != nil {
				log.Printf("UDP dropping datagram from %s: %s", from, err)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case in <- p:
			}
		}
	}()

	u.WG.Add(1)
	go func() {
		defer u.WG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-out:
				if r == nil {
					return
				}
				if u.dest == nil {
					continue
				}
				for _, p := range r.Emitted {
					bs, err := osc.Encode(p)
					if err != nil {
						log.Printf("UDP encode error %s", err)
						continue
					}
					if _, err = u.conn.WriteTo(bs, u.dest); err != nil {
						log.Printf("UDP write error %s", err)
					}
				}
			}
		}
	}()

	return in, out, done, nil
}

// Stop closes the socket and waits for IO to finish.
func (u *UDP) Stop(ctx context.Context) error {
	if u.conn == nil {
		return nil
	}
	err := u.conn.Close()
	u.WG.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// UDPClient sends packets to a UDP address.
type UDPClient struct {
	conn net.Conn
}

// NewUDPClient makes a UDPClient for the given host:port.
func NewUDPClient(addr string) (*UDPClient, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	return &UDPClient{
		conn: conn,
	}, nil
}

// Send encodes and sends one packet.
func (c *UDPClient) Send(p osc.Packet) error {
	bs, err := osc.Encode(p)
	if err != nil {
		return err
	}
	if osc.MaxPacketSize < len(bs) {
		return fmt.Errorf("packet too large (%d bytes)", len(bs))
	}
	_, err = c.conn.Write(bs)
	return err
}

// Close closes the connection.
func (c *UDPClient) Close() error {
	return c.conn.Close()
}
