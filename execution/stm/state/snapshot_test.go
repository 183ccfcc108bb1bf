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

package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/erigontech/blockstm/execution/stm/keys"
	"github.com/erigontech/blockstm/execution/stm/outcome"
)

func TestMemSnapshot(t *testing.T) {
	t.Parallel()
	s := MemSnapshotFrom(map[keys.Key][]byte{"b": []byte("2"), "a": []byte("1")})
	v, ok, err := s.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	_, ok, _ = s.Get("z")
	require.False(t, ok)

	next := s.Apply([]outcome.Write{{Key: "c", Value: []byte("3")}, {Key: "a", Deleted: true}})
	require.Equal(t, 2, s.Len())
	require.Equal(t, map[keys.Key][]byte{"b": []byte("2"), "c": []byte("3")}, next.Map())

	var order []keys.Key
	s.Ascend(func(k keys.Key, _ []byte) bool {
		order = append(order, k)
		return true
	})
	require.Equal(t, []keys.Key{"a", "b"}, order)
}

func TestCachedSnapshot(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	inner := NewMockSnapshot(ctrl)
	inner.EXPECT().Get(keys.Key("a")).Return([]byte("1"), true, nil).Times(1)
	inner.EXPECT().Get(keys.Key("missing")).Return(nil, false, nil).Times(1)
	boom := errors.New("boom")
	inner.EXPECT().Get(keys.Key("bad")).Return(nil, false, boom).Times(2)

	s, err := NewCachedSnapshot(inner, 8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		v, ok, err := s.Get("a")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("1"), v)

		_, ok, err = s.Get("missing")
		require.NoError(t, err)
		require.False(t, ok)
	}
	for i := 0; i < 2; i++ {
		_, _, err = s.Get("bad")
		require.ErrorIs(t, err, boom)
	}

	hits, misses := s.Stats()
	require.Equal(t, uint64(4), hits)
	require.Equal(t, uint64(4), misses)

	_, err = NewCachedSnapshot(inner, 0)
	require.Error(t, err)
}
