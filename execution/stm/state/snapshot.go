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

// Package state holds the read-only base state a block executes against.
package state

import (
	"github.com/google/btree"

	"github.com/erigontech/blockstm/execution/stm/keys"
	"github.com/erigontech/blockstm/execution/stm/outcome"
)

//go:generate mockgen -typed=true -destination=./snapshot_mock.go -package=state . Snapshot

// Snapshot is the state below the block. Get must be safe for concurrent use
// and return the same answer for the lifetime of a block.
type Snapshot interface {
	Get(key keys.Key) ([]byte, bool, error)
}

type memItem struct {
	key   keys.Key
	value []byte
}

func memLess(a, b memItem) bool { return a.key < b.key }

// MemSnapshot is an ordered in-memory Snapshot. Mutations are not safe
// concurrently with reads; Clone is cheap and the copies are independent.
type MemSnapshot struct {
	tree *btree.BTreeG[memItem]
}

func NewMemSnapshot() *MemSnapshot {
	return &MemSnapshot{tree: btree.NewG(32, memLess)}
}

// MemSnapshotFrom builds a snapshot holding kv.
func MemSnapshotFrom(kv map[keys.Key][]byte) *MemSnapshot {
	s := NewMemSnapshot()
	for k, v := range kv {
		s.Set(k, v)
	}
	return s
}

func (s *MemSnapshot) Get(key keys.Key) ([]byte, bool, error) {
	it, ok := s.tree.Get(memItem{key: key})
	if !ok {
		return nil, false, nil
	}
	return it.value, true, nil
}

func (s *MemSnapshot) Set(key keys.Key, value []byte) {
	s.tree.ReplaceOrInsert(memItem{key: key, value: value})
}

func (s *MemSnapshot) Delete(key keys.Key) {
	s.tree.Delete(memItem{key: key})
}

func (s *MemSnapshot) Len() int { return s.tree.Len() }

// Ascend calls fn for every key in order until fn returns false.
func (s *MemSnapshot) Ascend(fn func(key keys.Key, value []byte) bool) {
	s.tree.Ascend(func(it memItem) bool { return fn(it.key, it.value) })
}

func (s *MemSnapshot) Clone() *MemSnapshot {
	return &MemSnapshot{tree: s.tree.Clone()}
}

// Apply returns a copy of s with writes applied in order.
func (s *MemSnapshot) Apply(writes []outcome.Write) *MemSnapshot {
	next := s.Clone()
	for _, w := range writes {
		if w.Deleted {
			next.Delete(w.Key)
		} else {
			next.Set(w.Key, w.Value)
		}
	}
	return next
}

// Map copies the snapshot into a map.
func (s *MemSnapshot) Map() map[keys.Key][]byte {
	out := make(map[keys.Key][]byte, s.Len())
	s.Ascend(func(k keys.Key, v []byte) bool {
		out[k] = v
		return true
	})
	return out
}
