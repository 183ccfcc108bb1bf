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

// Package arena provides a growable table of values addressed by dense
// integer ids. Slots are allocated in fixed-size chunks on first touch and
// never move, so a *T obtained from At stays valid for the arena's lifetime
// and can be used with atomics without any table-wide lock.
package arena

import (
	"fmt"
	"sync/atomic"
)

const (
	chunkBits = 10
	chunkSize = 1 << chunkBits
	chunkMask = chunkSize - 1

	// MaxChunks bounds the arena at MaxChunks*1024 slots (16M ids).
	MaxChunks = 1 << 14
)

type chunk[T any] [chunkSize]T

type Arena[T any] struct {
	chunks [MaxChunks]atomic.Pointer[chunk[T]]
	hwm    atomic.Uint32 // one past the highest id handed out by At
}

func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// At returns the slot for id, allocating its chunk if necessary.
func (a *Arena[T]) At(id uint32) *T {
	ci := id >> chunkBits
	if ci >= MaxChunks {
		panic(fmt.Errorf("arena: id %d out of range", id))
	}
	c := a.chunks[ci].Load()
	if c == nil {
		fresh := new(chunk[T])
		if a.chunks[ci].CompareAndSwap(nil, fresh) {
			c = fresh
		} else {
			c = a.chunks[ci].Load()
		}
	}
	for {
		hwm := a.hwm.Load()
		if id < hwm || a.hwm.CompareAndSwap(hwm, id+1) {
			break
		}
	}
	return &c[id&chunkMask]
}

// Peek returns the slot for id if its chunk was already allocated.
func (a *Arena[T]) Peek(id uint32) (*T, bool) {
	ci := id >> chunkBits
	if ci >= MaxChunks {
		return nil, false
	}
	c := a.chunks[ci].Load()
	if c == nil {
		return nil, false
	}
	return &c[id&chunkMask], true
}

// Len is one past the highest id ever passed to At.
func (a *Arena[T]) Len() int {
	return int(a.hwm.Load())
}
