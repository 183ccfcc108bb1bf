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

// Package reservation claims storage keys for transactions whose footprint is
// known before execution. A key has at most one owner at a time; a
// transaction holding all of its keys can run without speculation.
package reservation

import (
	"sync/atomic"

	"github.com/erigontech/blockstm/common/arena"
	"github.com/erigontech/blockstm/execution/stm/keys"
)

// Table maps key ids to the owning transaction index. Slots hold owner+1 so
// the zero value means free.
type Table struct {
	owners *arena.Arena[atomic.Int64]
	held   atomic.Int64
}

func NewTable() *Table {
	return &Table{owners: arena.New[atomic.Int64]()}
}

// Reserve claims every key for txIdx. If any key is owned by another
// transaction the keys claimed so far are released and false is returned.
// Keys already owned by txIdx are accepted.
func (t *Table) Reserve(ids []keys.KeyID, txIdx int) bool {
	owner := int64(txIdx) + 1
	claimed := make([]keys.KeyID, 0, len(ids))
	for _, id := range ids {
		slot := t.owners.At(uint32(id))
		if slot.CompareAndSwap(0, owner) {
			claimed = append(claimed, id)
			continue
		}
		if slot.Load() == owner {
			continue
		}
		t.release(claimed, owner)
		return false
	}
	t.held.Add(int64(len(claimed)))
	return true
}

// Release frees the keys still owned by txIdx.
func (t *Table) Release(ids []keys.KeyID, txIdx int) {
	t.release(ids, int64(txIdx)+1)
}

func (t *Table) release(ids []keys.KeyID, owner int64) {
	for _, id := range ids {
		slot, ok := t.owners.Peek(uint32(id))
		if ok && slot.CompareAndSwap(owner, 0) {
			t.held.Add(-1)
		}
	}
}

// Owner returns the transaction holding id.
func (t *Table) Owner(id keys.KeyID) (int, bool) {
	slot, ok := t.owners.Peek(uint32(id))
	if !ok {
		return 0, false
	}
	o := slot.Load()
	if o == 0 {
		return 0, false
	}
	return int(o - 1), true
}

// Holds reports whether txIdx owns id.
func (t *Table) Holds(id keys.KeyID, txIdx int) bool {
	o, ok := t.Owner(id)
	return ok && o == txIdx
}

// Held is the number of keys currently reserved.
func (t *Table) Held() int { return int(t.held.Load()) }
