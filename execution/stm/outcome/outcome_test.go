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

package outcome

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommitOnce(t *testing.T) {
	t.Parallel()
	a := NewArray(2)

	_, err := a.Collect()
	require.ErrorIs(t, err, ErrIncomplete)

	require.NoError(t, a.Commit(1, Outcome{Incarnation: 2, GasUsed: 21}))
	require.ErrorIs(t, a.Commit(1, Outcome{}), ErrAlreadyCommitted)
	require.ErrorIs(t, a.Commit(2, Outcome{}), ErrOutOfRange)
	require.ErrorIs(t, a.Commit(-1, Outcome{}), ErrOutOfRange)

	o, ok := a.Get(1)
	require.True(t, ok)
	require.Equal(t, 1, o.TxIndex)
	require.Equal(t, 2, o.Incarnation)
	_, ok = a.Get(0)
	require.False(t, ok)

	require.NoError(t, a.Commit(0, Outcome{Status: StatusFailed, FailureReason: "nope"}))
	all, err := a.Collect()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, StatusFailed, all[0].Status)
	require.Equal(t, uint64(21), all[1].GasUsed)
}

func TestConcurrentCommitSingleWinner(t *testing.T) {
	t.Parallel()
	a := NewArray(1)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if a.Commit(0, Outcome{Incarnation: i}) == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
}
