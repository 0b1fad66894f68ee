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
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/Comcast/oscroute/osc"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	// ErrNoSession is returned by Record before a session has
	// started and by Replay for an unknown session.
	ErrNoSession = errors.New("no capture session")

	sessionsBucket = []byte("sessions")
)

// Capture records batches of packets in a BoltDB file so they can be
// replayed later.
//
// Each session gets its own bucket.  A batch is stored under its
// sequence number as a list of size-prefixed OSC packets.
type Capture struct {
	Debug bool

	filename string
	db       *bolt.DB
	session  string
}

// NewCapture makes a Capture for the given filename.  Call Open
// before using it.
func NewCapture(filename string) *Capture {
	return &Capture{
		filename: filename,
	}
}

func (c *Capture) Open() error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(c.filename, 0644, opts)
	if err != nil {
		return err
	}
	c.db = db
	return nil
}

func (c *Capture) Close() error {
	return c.db.Close()
}

func (c *Capture) logf(format string, args ...interface{}) {
	if c.Debug {
		log.Printf("Capture."+format, args...)
	}
}

// StartSession begins a new session and returns its id.  Subsequent
// Records go to that session.
func (c *Capture) StartSession() (string, error) {
	id := uuid.NewString()
	c.logf("StartSession %s", id)
	err := c.db.Update(func(tx *bolt.Tx) error {
		ss, err := tx.CreateBucketIfNotExists(sessionsBucket)
		if err != nil {
			return err
		}
		if err = ss.Put([]byte(id), []byte(time.Now().UTC().Format(time.RFC3339Nano))); err != nil {
			return err
		}
		_, err = tx.CreateBucket([]byte(id))
		return err
	})
	if err != nil {
		return "", err
	}
	c.session = id
	return id, nil
}

// Record implements Recorder.
func (c *Capture) Record(ps []osc.Packet) error {
	if c.session == "" {
		return ErrNoSession
	}
	val, err := encodeBatch(ps)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(c.session))
		if b == nil {
			return ErrNoSession
		}
		n, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, n)
		c.logf("Record %s %d (%d packets)", c.session, n, len(ps))
		return b.Put(key, val)
	})
}

// Session describes a recorded session.
type Session struct {
	Id      string    `json:"id"`
	Started time.Time `json:"started"`
	Batches int       `json:"batches"`
}

// Sessions lists the recorded sessions, oldest first.
func (c *Capture) Sessions() ([]*Session, error) {
	var acc []*Session
	err := c.db.View(func(tx *bolt.Tx) error {
		ss := tx.Bucket(sessionsBucket)
		if ss == nil {
			return nil
		}
		return ss.ForEach(func(k, v []byte) error {
			t, err := time.Parse(time.RFC3339Nano, string(v))
			if err != nil {
				return err
			}
			s := &Session{
				Id:      string(k),
				Started: t,
			}
			if b := tx.Bucket(k); b != nil {
				s.Batches = b.Stats().KeyN
			}
			acc = append(acc, s)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(acc, func(i, j int) bool {
		return acc[i].Started.Before(acc[j].Started)
	})
	return acc, nil
}

// Replay calls fn with each of the session's batches in the order
// they were recorded.
func (c *Capture) Replay(ctx context.Context, session string, fn func([]osc.Packet) error) error {
	return c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(session))
		if b == nil {
			return ErrNoSession
		}
		cur := b.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ps, err := decodeBatch(v)
			if err != nil {
				return fmt.Errorf("batch %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if err = fn(ps); err != nil {
				return err
			}
		}
		return nil
	})
}

// encodeBatch writes each packet with a 4-byte big-endian size
// prefix, which is the usual framing for OSC over a stream.
func encodeBatch(ps []osc.Packet) ([]byte, error) {
	var acc []byte
	for _, p := range ps {
		bs, err := osc.Encode(p)
		if err != nil {
			return nil, err
		}
		acc = binary.BigEndian.AppendUint32(acc, uint32(len(bs)))
		acc = append(acc, bs...)
	}
	return acc, nil
}

func decodeBatch(bs []byte) ([]osc.Packet, error) {
	var acc []osc.Packet
	for 0 < len(bs) {
		if len(bs) < 4 {
			return nil, errors.New("truncated size")
		}
		n := binary.BigEndian.Uint32(bs)
		bs = bs[4:]
		if uint32(len(bs)) < n {
			return nil, errors.New("truncated packet")
		}
		p, err := osc.Decode(bs[:n])
		if err != nil {
			return nil, err
		}
		acc = append(acc, p)
		bs = bs[n:]
	}
	return acc, nil
}

// Replay processes a recorded session's batches in order and sends
// each Result to the Router's output coupling.
func (r *Router) Replay(ctx context.Context, c *Capture, session string) error {
	if r.Recorder == Recorder(c) {
		return errors.New("can't replay into the capture that's recording")
	}
	return c.Replay(ctx, session, func(ps []osc.Packet) error {
		res, err := r.ProcessBatch(ctx, ps)
		if err != nil {
			r.Logf("Router.Replay ProcessBatch %s", err)
		}
		if r.out == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r.out <- res:
		}
		return nil
	})
}
