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

package versionmap

import (
	"sync/atomic"

	"github.com/erigontech/blockstm/execution/stm/keys"
)

const (
	ReadKindMap     = 0
	ReadKindStorage = 1
)

type VersionedRead struct {
	Key  keys.KeyID
	Kind int
	V    Version
}

type VersionedWrite struct {
	Key     keys.KeyID
	V       Version
	Val     []byte
	Deleted bool
}

type VersionedReads []VersionedRead
type VersionedWrites []VersionedWrite

// HasNewWrite reports whether txo writes a key that cmpSet does not.
func (txo VersionedWrites) HasNewWrite(cmpSet []VersionedWrite) bool {
	if len(txo) == 0 {
		return false
	} else if len(cmpSet) == 0 || len(txo) > len(cmpSet) {
		return true
	}

	cmpMap := make(map[keys.KeyID]bool, len(cmpSet))
	for _, w := range cmpSet {
		cmpMap[w.Key] = true
	}

	for _, v := range txo {
		if !cmpMap[v.Key] {
			return true
		}
	}

	return false
}

type txIO struct {
	v      Version
	reads  VersionedReads
	writes VersionedWrites
}

// VersionedIO holds the read and write set of the last recorded incarnation
// of every transaction of a block.
type VersionedIO struct {
	vm  *VersionMap
	txs []atomic.Pointer[txIO]
}

func NewVersionedIO(vm *VersionMap, numTx int) *VersionedIO {
	return &VersionedIO{vm: vm, txs: make([]atomic.Pointer[txIO], numTx)}
}

func (io *VersionedIO) Len() int { return len(io.txs) }

func (io *VersionedIO) VersionMap() *VersionMap { return io.vm }

func (io *VersionedIO) ReadSet(txIdx int) VersionedReads {
	if t := io.txs[txIdx].Load(); t != nil {
		return t.reads
	}
	return nil
}

func (io *VersionedIO) WriteSet(txIdx int) VersionedWrites {
	if t := io.txs[txIdx].Load(); t != nil {
		return t.writes
	}
	return nil
}

// Recorded is the version of the last recorded incarnation of txIdx.
func (io *VersionedIO) Recorded(txIdx int) (Version, bool) {
	if t := io.txs[txIdx].Load(); t != nil {
		return t.v, true
	}
	return Version{}, false
}

func (io *VersionedIO) HasWritten(txIdx int, key keys.KeyID) bool {
	for _, w := range io.WriteSet(txIdx) {
		if w.Key == key {
			return true
		}
	}
	return false
}

// Record publishes the write set of v into the version map, drops the keys
// the previous incarnation wrote but v no longer does and stores both sets.
// It reports whether v wrote a key the previous incarnation did not.
func (io *VersionedIO) Record(v Version, reads VersionedReads, writes VersionedWrites) bool {
	prev := io.WriteSet(v.TxIndex)

	for _, w := range writes {
		if w.Deleted {
			io.vm.WriteDeleted(w.Key, v)
		} else {
			io.vm.Write(w.Key, v, w.Val)
		}
	}

	if len(prev) > 0 {
		cmpMap := make(map[keys.KeyID]bool, len(writes))
		for _, w := range writes {
			cmpMap[w.Key] = true
		}
		for _, w := range prev {
			if !cmpMap[w.Key] {
				io.vm.Delete(w.Key, v.TxIndex)
			}
		}
	}

	io.txs[v.TxIndex].Store(&txIO{v: v, reads: reads, writes: writes})
	return writes.HasNewWrite(prev)
}

// ConvertWritesToEstimates marks every recorded write of txIdx as an
// estimate, so readers wait for its next incarnation.
func (io *VersionedIO) ConvertWritesToEstimates(txIdx int) {
	for _, w := range io.WriteSet(txIdx) {
		io.vm.MarkEstimate(w.Key, txIdx)
	}
}

// FinalWrites is the last write of every key over the whole block.
func (io *VersionedIO) FinalWrites() map[keys.KeyID]VersionedWrite {
	final := map[keys.KeyID]VersionedWrite{}
	for i := range io.txs {
		for _, w := range io.WriteSet(i) {
			final[w.Key] = w
		}
	}
	return final
}
