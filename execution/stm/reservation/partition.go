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

package reservation

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/erigontech/blockstm/execution/stm/keys"
)

// Partition is the split of a block into reserved and speculative
// transactions.
type Partition struct {
	// Fast holds the indices of transactions that reserved their keys.
	Fast *roaring.Bitmap
	// Keys is the reserved key set per transaction, nil when not reserved.
	Keys [][]keys.KeyID
	// Eligible counts transactions the classifier accepted, including those
	// that lost a key to a lower transaction.
	Eligible int
}

func (p *Partition) IsFast(txIdx int) bool {
	return p.Fast.Contains(uint32(txIdx))
}

// Demote drops txIdx from the reserved set and releases its keys.
func (p *Partition) Demote(t *Table, txIdx int) {
	if !p.IsFast(txIdx) {
		return
	}
	t.Release(p.Keys[txIdx], txIdx)
	p.Fast.Remove(uint32(txIdx))
}

// Plan classifies txs in index order and reserves the keys of every eligible
// one. A transaction that cannot reserve all of its keys stays speculative.
func Plan[T any](txs []T, c Classifier[T], kc *keys.Compressor, t *Table) *Partition {
	p := &Partition{Fast: roaring.New(), Keys: make([][]keys.KeyID, len(txs))}
	if c == nil {
		return p
	}
	for i, tx := range txs {
		cl := c.Classify(tx)
		if !cl.Eligible {
			continue
		}
		p.Eligible++
		ids := kc.InternAll(cl.Keys)
		slices.Sort(ids)
		ids = slices.Compact(ids)
		if t.Reserve(ids, i) {
			p.Keys[i] = ids
			p.Fast.Add(uint32(i))
		}
	}
	return p
}
