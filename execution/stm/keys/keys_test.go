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

package keys

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternDense(t *testing.T) {
	t.Parallel()
	c := NewCompressor()
	require.Equal(t, KeyID(0), c.Intern("a"))
	require.Equal(t, KeyID(1), c.Intern("b"))
	require.Equal(t, KeyID(0), c.Intern("a"))
	require.Equal(t, 2, c.Len())
	require.Equal(t, Key("b"), c.Resolve(1))

	_, ok := c.Lookup("c")
	require.False(t, ok)
	require.Equal(t, []KeyID{1, 2, 0}, c.InternAll([]Key{"b", "c", "a"}))
	require.Panics(t, func() { c.Resolve(3) })
}

func TestInternConcurrent(t *testing.T) {
	t.Parallel()
	c := NewCompressor()
	const workers, n = 8, 500

	got := make([][]KeyID, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				got[w] = append(got[w], c.Intern(Key(fmt.Sprintf("k%d", (i*7+w)%n))))
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, n, c.Len())
	seen := make(map[KeyID]Key, n)
	for id := 0; id < n; id++ {
		k := c.Resolve(KeyID(id))
		require.NotContains(t, seen, KeyID(id))
		seen[KeyID(id)] = k
		back, ok := c.Lookup(k)
		require.True(t, ok)
		require.Equal(t, KeyID(id), back)
	}
	for w := range got {
		for i, id := range got[w] {
			require.Equal(t, Key(fmt.Sprintf("k%d", (i*7+w)%n)), seen[id])
		}
	}
}
