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
	"runtime"
	"time"

	"github.com/erigontech/blockstm/common/dbg"
	"github.com/erigontech/blockstm/execution/stm/scheduler"
	"github.com/erigontech/blockstm/execution/stm/versionmap"
)

const idleSleep = 50 * time.Microsecond

// recoverWorker turns a panic of worker id into ErrInvariant. VM panics never
// reach it, run recovers those.
func (r *blockRun[T]) recoverWorker(id int, err *error) {
	if rec := recover(); rec != nil {
		r.e.logger.Error("worker panic", "worker", id, "err", rec, "stack", dbg.Stack())
		*err = fmt.Errorf("worker %d: %w: %v", id, ErrInvariant, rec)
	}
}

func (r *blockRun[T]) worker(ctx context.Context, id int) (err error) {
	defer r.recoverWorker(id, &err)

	idle := 0
	for !r.sched.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		task, err := r.sched.TryCommit(r)
		if err != nil {
			return err
		}
		if task.None() {
			task = r.sched.NextTask()
		}
		for !task.None() {
			switch task.Kind {
			case scheduler.TaskExecute:
				idle = 0
				task = r.execute(ctx, task.Version)
			case scheduler.TaskValidate:
				idle = 0
				task = r.validate(task.Version)
			case scheduler.TaskWait:
				r.backoff(&idle)
				task = scheduler.NoTask
			case scheduler.TaskDone:
				return nil
			}
		}
	}
	return nil
}

func (r *blockRun[T]) backoff(idle *int) {
	*idle++
	if *idle <= r.e.cfg.IdleSpins {
		runtime.Gosched()
		return
	}
	time.Sleep(idleSleep)
}

// execute runs v until it completes or is suspended on a dependency.
func (r *blockRun[T]) execute(ctx context.Context, v versionmap.Version) scheduler.Task {
	if v.Incarnation > 0 && r.sched.IsSerial(v.TxIndex) {
		r.serial.Add(1)
		r.e.logger.Warn("serial execution", "tx", v.TxIndex, "incarnation", v.Incarnation)
	}

	var view *txView
	var out Output
	var execErr error
	for {
		r.execs.Add(1)
		view = newTxView(v, r.kc, r.vm, r.base)
		out, execErr = r.run(ctx, v, view)
		if view.dep < 0 {
			break
		}
		if r.sched.AddDependency(v.TxIndex, view.dep) {
			r.deps.Add(1)
			return scheduler.NoTask
		}
	}

	if !r.sched.IsExecuting(v) {
		r.e.logger.Debug("dropping stale execution", "tx", v.TxIndex, "incarnation", v.Incarnation)
		return scheduler.NoTask
	}

	// a failed attempt keeps its reads and publishes no writes
	a := &attempt{v: v, out: out, err: execErr}
	var writes versionmap.VersionedWrites
	if execErr == nil {
		a.writes = view.writes.list
		writes = view.writeSet()
	}
	r.attempts[v.TxIndex].Store(a)
	wrote := r.io.Record(v, view.readSet(), writes)
	return r.sched.FinishExecution(v, wrote)
}

// run calls the VM, turning a panic into an error.
func (r *blockRun[T]) run(ctx context.Context, v versionmap.Version, view *txView) (out Output, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: tx %d: %v", ErrVMPanic, v.TxIndex, rec)
		}
	}()
	return r.e.vm.Execute(ctx, v.TxIndex, r.txs[v.TxIndex], view)
}

func (r *blockRun[T]) validate(v versionmap.Version) scheduler.Task {
	r.validations.Add(1)
	valid := versionmap.ValidateVersion(v.TxIndex, r.io, r.vm)
	aborted := false
	if !valid {
		r.failures.Add(1)
		aborted = r.sched.TryValidationAbort(v)
	}
	if aborted {
		r.aborts.Add(1)
		r.io.ConvertWritesToEstimates(v.TxIndex)
	}
	return r.sched.FinishValidation(v.TxIndex, aborted)
}
