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
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/erigontech/blockstm/execution/stm/keys"
	"github.com/erigontech/blockstm/execution/stm/outcome"
	"github.com/erigontech/blockstm/execution/stm/state"
)

// seqView reads the writes of all previous transactions, kept in an ordered
// overlay over the base snapshot.
type seqView struct {
	overlay *treemap.Map
	base    state.Snapshot
	writes  writeBuffer
}

func (s *seqView) Get(key keys.Key) ([]byte, bool, error) {
	if w, ok := s.writes.get(key); ok {
		return w.Value, !w.Deleted, nil
	}
	if v, ok := s.overlay.Get(string(key)); ok {
		w := v.(outcome.Write)
		return w.Value, !w.Deleted, nil
	}
	return s.base.Get(key)
}

func (s *seqView) Set(key keys.Key, value []byte) error {
	s.writes.put(outcome.Write{Key: key, Value: slices.Clone(value)})
	return nil
}

func (s *seqView) Delete(key keys.Key) error {
	s.writes.put(outcome.Write{Key: key, Deleted: true})
	return nil
}

// ExecuteSequential runs txs one at a time in block order. It is the
// reference ExecuteBlock is equivalent to.
func ExecuteSequential[T any](ctx context.Context, vm VM[T], txs []T, base state.Snapshot) (*BlockResult, error) {
	start := time.Now()
	overlay := treemap.NewWithStringComparator()
	outcomes := make([]outcome.Outcome, len(txs))

	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		view := &seqView{overlay: overlay, base: base}
		out, err := vm.Execute(ctx, i, tx, view)
		if err != nil {
			return nil, fmt.Errorf("could not apply tx %d: %w", i, err)
		}
		for _, w := range view.writes.list {
			overlay.Put(string(w.Key), w)
		}
		outcomes[i] = outcome.Outcome{
			TxIndex:       i,
			Writes:        view.writes.list,
			Events:        out.Events,
			GasUsed:       out.GasUsed,
			Status:        out.Status,
			FailureReason: out.FailureReason,
		}
	}

	return &BlockResult{
		Outcomes: outcomes,
		Stats:    Stats{Txs: len(txs), Workers: 1, Execs: len(txs), Duration: time.Since(start)},
	}, nil
}
