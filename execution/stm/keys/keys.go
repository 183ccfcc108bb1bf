// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package keys interns opaque storage keys into dense integer ids that are
// valid for the lifetime of one block execution.
package keys

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/erigontech/blockstm/common/arena"
)

// Key is an opaque byte-comparable storage key.
type Key string

// KeyID is the dense id handed out by a Compressor, in first-seen order.
type KeyID uint32

type Compressor struct {
	ids   *xsync.MapOf[Key, KeyID]
	names *arena.Arena[atomic.Pointer[Key]]
	mu    sync.Mutex
	next  atomic.Uint32
}

func NewCompressor() *Compressor {
	return &Compressor{
		ids:   xsync.NewMapOf[Key, KeyID](),
		names: arena.New[atomic.Pointer[Key]](),
	}
}

// Intern returns the id of key, assigning the next free id on first sight.
func (c *Compressor) Intern(key Key) KeyID {
	if id, ok := c.ids.Load(key); ok {
		return id
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.ids.Load(key); ok {
		return id
	}
	id := KeyID(c.next.Load())
	k := key
	c.names.At(uint32(id)).Store(&k)
	c.next.Store(uint32(id) + 1)
	c.ids.Store(key, id)
	return id
}

// InternAll interns every key, preserving order.
func (c *Compressor) InternAll(ks []Key) []KeyID {
	out := make([]KeyID, len(ks))
	for i, k := range ks {
		out[i] = c.Intern(k)
	}
	return out
}

// Lookup returns the id of key without interning it.
func (c *Compressor) Lookup(key Key) (KeyID, bool) {
	return c.ids.Load(key)
}

// Resolve is the inverse of Intern. It panics on an id that was never issued.
func (c *Compressor) Resolve(id KeyID) Key {
	if uint32(id) < c.next.Load() {
		if slot, ok := c.names.Peek(uint32(id)); ok {
			if k := slot.Load(); k != nil {
				return *k
			}
		}
	}
	panic("keys: resolve of unknown id")
}

func (c *Compressor) Len() int {
	return int(c.next.Load())
}
