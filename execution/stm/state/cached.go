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
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/blockstm/execution/stm/keys"
)

type cachedValue struct {
	value []byte
	ok    bool
}

// CachedSnapshot keeps recently read base values, absent keys included, in
// front of a slower Snapshot. Errors are not cached.
type CachedSnapshot struct {
	inner  Snapshot
	cache  *lru.Cache[keys.Key, cachedValue]
	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewCachedSnapshot(inner Snapshot, size int) (*CachedSnapshot, error) {
	cache, err := lru.New[keys.Key, cachedValue](size)
	if err != nil {
		return nil, fmt.Errorf("snapshot cache: %w", err)
	}
	return &CachedSnapshot{inner: inner, cache: cache}, nil
}

func (s *CachedSnapshot) Get(key keys.Key) ([]byte, bool, error) {
	if v, ok := s.cache.Get(key); ok {
		s.hits.Add(1)
		return v.value, v.ok, nil
	}
	s.misses.Add(1)
	value, ok, err := s.inner.Get(key)
	if err != nil {
		return nil, false, err
	}
	s.cache.Add(key, cachedValue{value: value, ok: ok})
	return value, ok, nil
}

func (s *CachedSnapshot) Stats() (hits, misses uint64) {
	return s.hits.Load(), s.misses.Load()
}
