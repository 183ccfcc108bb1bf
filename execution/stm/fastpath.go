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
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/erigontech/blockstm/execution/stm/versionmap"
)

type reservedResult struct {
	view *txView
	out  Output
	err  error
}

// runFastPath executes every reserved transaction against the base snapshot
// before speculation starts. Results that stayed inside their reservation
// are published as incarnation 0; the rest are demoted.
func (r *blockRun[T]) runFastPath(ctx context.Context) error {
	fast := r.partition.Fast.ToArray()
	if len(fast) == 0 {
		return nil
	}

	results := make([]reservedResult, len(fast))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.e.cfg.Workers)
	for i, idx := range fast {
		g.Go(func() error {
			v := versionmap.Version{TxIndex: int(idx)}
			view := newReservedView(v, r.kc, r.base, r.partition.Keys[idx])
			out, err := r.run(gctx, v, view)
			results[i] = reservedResult{view: view, out: out, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, idx := range fast {
		txIdx := int(idx)
		res := results[i]
		r.execs.Add(1)

		overrun := res.view.overrun || errors.Is(res.err, ErrReservationOverrun) ||
			!res.view.footprint().IsSubset(res.view.reserved)
		if overrun || res.err != nil {
			if overrun {
				r.e.logger.Debug("reservation overrun", "tx", txIdx)
			} else {
				r.e.logger.Debug("reserved execution failed", "tx", txIdx, "err", res.err)
			}
			r.partition.Demote(r.table, txIdx)
			r.demoted.Add(1)
			continue
		}

		v := versionmap.Version{TxIndex: txIdx}
		r.attempts[txIdx].Store(&attempt{v: v, out: res.out, writes: res.view.writes.list})
		r.io.Record(v, res.view.readSet(), res.view.writeSet())
		r.sched.PreExecuted(txIdx)
	}
	return nil
}
