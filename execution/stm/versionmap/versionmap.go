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

// Package versionmap is the multi-version store of a block: for every key it
// keeps the values written by each transaction index, so a reader at index i
// observes the latest write by some index < i.
package versionmap

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tidwall/btree"

	"github.com/erigontech/blockstm/common/arena"
	"github.com/erigontech/blockstm/execution/stm/keys"
)

type Version struct {
	TxIndex     int
	Incarnation int
}

// StorageVersion is recorded for reads served by the base snapshot.
var StorageVersion = Version{TxIndex: -1, Incarnation: -1}

func (v Version) String() string {
	if v == StorageVersion {
		return "storage"
	}
	return fmt.Sprintf("%d.%d", v.TxIndex, v.Incarnation)
}

type cell struct {
	txIdx       int
	incarnation int
	estimate    atomic.Bool
	deleted     bool
	value       []byte
}

type entry struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[*cell]
}

func cellLess(a, b *cell) bool { return a.txIdx < b.txIdx }

type VersionMap struct {
	entries *arena.Arena[entry]
}

func NewVersionMap() *VersionMap {
	return &VersionMap{entries: arena.New[entry]()}
}

func (vm *VersionMap) entry(key keys.KeyID) *entry {
	e := vm.entries.At(uint32(key))
	e.mu.RLock()
	ok := e.tree != nil
	e.mu.RUnlock()
	if ok {
		return e
	}
	e.mu.Lock()
	if e.tree == nil {
		e.tree = btree.NewBTreeGOptions(cellLess, btree.Options{NoLocks: true})
	}
	e.mu.Unlock()
	return e
}

func (vm *VersionMap) Write(key keys.KeyID, v Version, value []byte) {
	vm.write(key, v, value, false)
}

// WriteDeleted records a tombstone: readers above v see the key as absent.
func (vm *VersionMap) WriteDeleted(key keys.KeyID, v Version) {
	vm.write(key, v, nil, true)
}

func (vm *VersionMap) write(key keys.KeyID, v Version, value []byte, deleted bool) {
	e := vm.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.tree.Get(&cell{txIdx: v.TxIndex}); ok {
		if c.incarnation > v.Incarnation {
			panic(fmt.Errorf("existing transaction value does not have lower incarnation: %d, %v", key, v))
		}
		c.incarnation = v.Incarnation
		c.value = value
		c.deleted = deleted
		c.estimate.Store(false)
		return
	}
	c := &cell{txIdx: v.TxIndex, incarnation: v.Incarnation, value: value, deleted: deleted}
	e.tree.Set(c)
}

// MarkEstimate flags the write of txIdx as a placeholder. Readers above txIdx
// get a dependency on txIdx until it writes the key again.
func (vm *VersionMap) MarkEstimate(key keys.KeyID, txIdx int) {
	e, ok := vm.entries.Peek(uint32(key))
	if !ok {
		panic(fmt.Errorf("mark estimate of unknown key %d", key))
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	var c *cell
	if e.tree != nil {
		c, _ = e.tree.Get(&cell{txIdx: txIdx})
	}
	if c == nil {
		panic(fmt.Errorf("mark estimate of missing write: key %d, tx %d", key, txIdx))
	}
	c.estimate.Store(true)
}

// Delete drops the write of txIdx. It is only called when a newer
// incarnation of txIdx no longer writes the key.
func (vm *VersionMap) Delete(key keys.KeyID, txIdx int) {
	e, ok := vm.entries.Peek(uint32(key))
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tree != nil {
		e.tree.Delete(&cell{txIdx: txIdx})
	}
}

// Read returns the latest write to key by a transaction below txIdx.
func (vm *VersionMap) Read(key keys.KeyID, txIdx int) ReadResult {
	res := ReadResult{depIdx: -1, incarnation: -1}
	e, ok := vm.entries.Peek(uint32(key))
	if !ok {
		return res
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.tree == nil {
		return res
	}
	e.tree.Descend(&cell{txIdx: txIdx - 1}, func(c *cell) bool {
		res.depIdx = c.txIdx
		if c.estimate.Load() {
			res.status = MVReadResultDependency
			return false
		}
		res.status = MVReadResultDone
		res.incarnation = c.incarnation
		res.value = c.value
		res.deleted = c.deleted
		return false
	})
	return res
}

// Len is the number of versions stored for key.
func (vm *VersionMap) Len(key keys.KeyID) int {
	e, ok := vm.entries.Peek(uint32(key))
	if !ok {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.tree == nil {
		return 0
	}
	return e.tree.Len()
}
