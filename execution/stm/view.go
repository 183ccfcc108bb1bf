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

package stm

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/erigontech/blockstm/execution/stm/keys"
	"github.com/erigontech/blockstm/execution/stm/outcome"
	"github.com/erigontech/blockstm/execution/stm/state"
	"github.com/erigontech/blockstm/execution/stm/versionmap"
)

// View is the state a transaction sees: every write of lower transactions
// over the base snapshot, and its own writes. Writes stay local until the
// execution completes.
type View interface {
	Get(key keys.Key) ([]byte, bool, error)
	Set(key keys.Key, value []byte) error
	Delete(key keys.Key) error
}

// writeBuffer keeps the last write per key in first-write order.
type writeBuffer struct {
	index map[keys.Key]int
	list  []outcome.Write
}

func (b *writeBuffer) get(key keys.Key) (outcome.Write, bool) {
	if i, ok := b.index[key]; ok {
		return b.list[i], true
	}
	return outcome.Write{}, false
}

func (b *writeBuffer) put(w outcome.Write) {
	if b.index == nil {
		b.index = map[keys.Key]int{}
	}
	if i, ok := b.index[w.Key]; ok {
		b.list[i] = w
		return
	}
	b.index[w.Key] = len(b.list)
	b.list = append(b.list, w)
}

// txView serves one execution attempt. With reserved set it only admits the
// reserved keys and reads the base snapshot directly.
type txView struct {
	v    versionmap.Version
	kc   *keys.Compressor
	vm   *versionmap.VersionMap
	base state.Snapshot

	reserved mapset.Set[keys.KeyID]
	overrun  bool

	reads    []versionmap.VersionedRead
	observed map[keys.KeyID]observation
	writes   writeBuffer
	dep      int
}

// observation is the value a read returned. Repeated reads are served from
// it, so the attempt only ever sees the version it recorded.
type observation struct {
	value []byte
	ok    bool
}

func newTxView(v versionmap.Version, kc *keys.Compressor, vm *versionmap.VersionMap, base state.Snapshot) *txView {
	return &txView{v: v, kc: kc, vm: vm, base: base, observed: map[keys.KeyID]observation{}, dep: -1}
}

func newReservedView(v versionmap.Version, kc *keys.Compressor, base state.Snapshot, reserved []keys.KeyID) *txView {
	view := newTxView(v, kc, nil, base)
	view.reserved = mapset.NewThreadUnsafeSet(reserved...)
	return view
}

func (s *txView) admit(id keys.KeyID) error {
	if s.reserved != nil && !s.reserved.Contains(id) {
		s.overrun = true
		return ErrReservationOverrun
	}
	return nil
}

func (s *txView) Get(key keys.Key) ([]byte, bool, error) {
	if s.dep >= 0 {
		return nil, false, &ErrDependency{Dependency: s.dep}
	}
	if w, ok := s.writes.get(key); ok {
		return w.Value, !w.Deleted, nil
	}
	id := s.kc.Intern(key)
	if err := s.admit(id); err != nil {
		return nil, false, err
	}
	if o, ok := s.observed[id]; ok {
		return o.value, o.ok, nil
	}

	if s.vm != nil {
		res := s.vm.Read(id, s.v.TxIndex)
		switch res.Status() {
		case versionmap.MVReadResultDone:
			s.recordRead(id, versionmap.ReadKindMap, res.Version(), res.Value(), !res.Deleted())
			return res.Value(), !res.Deleted(), nil
		case versionmap.MVReadResultDependency:
			s.dep = res.DepIdx()
			return nil, false, &ErrDependency{Dependency: s.dep}
		}
	}

	value, ok, err := s.base.Get(key)
	if err != nil {
		return nil, false, err
	}
	s.recordRead(id, versionmap.ReadKindStorage, versionmap.StorageVersion, value, ok)
	return value, ok, nil
}

func (s *txView) recordRead(id keys.KeyID, kind int, v versionmap.Version, value []byte, ok bool) {
	s.observed[id] = observation{value: value, ok: ok}
	s.reads = append(s.reads, versionmap.VersionedRead{Key: id, Kind: kind, V: v})
}

func (s *txView) Set(key keys.Key, value []byte) error {
	return s.put(outcome.Write{Key: key, Value: slices.Clone(value)})
}

func (s *txView) Delete(key keys.Key) error {
	return s.put(outcome.Write{Key: key, Deleted: true})
}

func (s *txView) put(w outcome.Write) error {
	if s.dep >= 0 {
		return &ErrDependency{Dependency: s.dep}
	}
	if err := s.admit(s.kc.Intern(w.Key)); err != nil {
		return err
	}
	s.writes.put(w)
	return nil
}

func (s *txView) readSet() versionmap.VersionedReads { return s.reads }

// writeSet is the buffered writes keyed by id and stamped with the attempt.
func (s *txView) writeSet() versionmap.VersionedWrites {
	out := make(versionmap.VersionedWrites, len(s.writes.list))
	for i, w := range s.writes.list {
		out[i] = versionmap.VersionedWrite{Key: s.kc.Intern(w.Key), V: s.v, Val: w.Value, Deleted: w.Deleted}
	}
	return out
}

// footprint is every key the attempt read or wrote.
func (s *txView) footprint() mapset.Set[keys.KeyID] {
	fp := mapset.NewThreadUnsafeSetWithSize[keys.KeyID](len(s.reads) + len(s.writes.list))
	for _, r := range s.reads {
		fp.Add(r.Key)
	}
	for _, w := range s.writes.list {
		fp.Add(s.kc.Intern(w.Key))
	}
	return fp
}
