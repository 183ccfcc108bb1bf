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
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/blockstm/execution/stm/keys"
)

func TestReserveRollsBackOnConflict(t *testing.T) {
	t.Parallel()
	tb := NewTable()
	require.True(t, tb.Reserve([]keys.KeyID{1, 2, 3}, 0))
	require.Equal(t, 3, tb.Held())

	require.False(t, tb.Reserve([]keys.KeyID{4, 5, 2}, 1))
	_, ok := tb.Owner(4)
	require.False(t, ok)
	_, ok = tb.Owner(5)
	require.False(t, ok)
	owner, ok := tb.Owner(2)
	require.True(t, ok)
	require.Equal(t, 0, owner)
	require.Equal(t, 3, tb.Held())

	require.True(t, tb.Reserve([]keys.KeyID{1, 1}, 0))
	tb.Release([]keys.KeyID{1, 2, 3}, 1)
	require.True(t, tb.Holds(1, 0))

	tb.Release([]keys.KeyID{1, 2, 3}, 0)
	require.Zero(t, tb.Held())
	require.True(t, tb.Reserve([]keys.KeyID{4, 5, 2}, 1))
}

func TestReservationExclusive(t *testing.T) {
	t.Parallel()
	tb := NewTable()
	const workers, rounds = 8, 2000

	var inside [4]atomic.Int32
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				ids := []keys.KeyID{keys.KeyID(w % 4), keys.KeyID((w + r) % 4)}
				if !tb.Reserve(ids, w) {
					continue
				}
				for _, id := range ids {
					if inside[id].Add(1) != 1 && ids[0] != ids[1] {
						t.Errorf("key %d held by two owners", id)
					}
				}
				for _, id := range ids {
					inside[id].Add(-1)
				}
				tb.Release(ids, w)
			}
		}(w)
	}
	wg.Wait()
	require.Zero(t, tb.Held())
}

func TestPlan(t *testing.T) {
	t.Parallel()
	type tx struct {
		keys []keys.Key
		fast bool
	}
	txs := []tx{
		{keys: []keys.Key{"a", "b"}, fast: true},
		{keys: []keys.Key{"c"}},
		{keys: []keys.Key{"b", "d"}, fast: true},
		{keys: []keys.Key{"e", "e"}, fast: true},
	}
	c := ClassifierFunc[tx](func(x tx) Classification {
		if !x.fast {
			return Ineligible
		}
		return Classification{Eligible: true, Keys: x.keys}
	})

	kc := keys.NewCompressor()
	tb := NewTable()
	p := Plan(txs, c, kc, tb)

	require.Equal(t, 3, p.Eligible)
	require.Equal(t, []uint32{0, 3}, p.Fast.ToArray())
	require.Nil(t, p.Keys[2])
	require.Len(t, p.Keys[3], 1)
	require.True(t, tb.Holds(p.Keys[3][0], 3))

	p.Demote(tb, 0)
	require.False(t, p.IsFast(0))
	_, ok := tb.Owner(p.Keys[0][0])
	require.False(t, ok)
	p.Demote(tb, 1)

	none := Plan(txs, Never[tx]{}, kc, NewTable())
	require.True(t, none.Fast.IsEmpty())
}
