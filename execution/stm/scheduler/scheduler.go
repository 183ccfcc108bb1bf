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

// Package scheduler hands out execution and validation work for the
// transactions of one block and tracks their status and incarnations.
//
// Two counters drive the work: the execution frontier, the lowest index that
// may still need executing, and the validation wave, the lowest index whose
// read set may need re-checking. Either is only ever lowered to re-cover a
// transaction that was aborted or rewrote its footprint. Transactions are
// committed strictly in index order by TryCommit.
package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/erigontech/blockstm/execution/stm/versionmap"
)

type txState struct {
	mu          sync.Mutex
	status      Status
	incarnation int
	dependents  []int
	hinted      []int
	hints       int
	serial      bool
	preExecuted bool
}

// Committer is driven by TryCommit for the lowest uncommitted transaction.
type Committer interface {
	// Validate re-checks the read set of v with every lower transaction
	// committed.
	Validate(v versionmap.Version) bool
	// Abort is called after a failed Validate, before v is re-queued.
	Abort(v versionmap.Version)
	// Commit makes the result of v final. An error is fatal for the block.
	Commit(v versionmap.Version) error
}

type Scheduler struct {
	txs             []txState
	maxIncarnations int

	executionIdx  atomic.Int64
	validationIdx atomic.Int64
	commitIdx     atomic.Int64

	commitMu sync.Mutex
}

// NewScheduler prepares n transactions at incarnation 0. A transaction whose
// incarnation reaches maxIncarnations is only executed once every lower
// transaction has committed; zero disables the limit.
func NewScheduler(n int, maxIncarnations int) *Scheduler {
	return &Scheduler{txs: make([]txState, n), maxIncarnations: maxIncarnations}
}

func (s *Scheduler) Len() int { return len(s.txs) }

// AddHints makes txIdx wait for the first execution of every blocker before
// its own first execution. Blockers not below txIdx are ignored. It must be
// called before any task is handed out.
func (s *Scheduler) AddHints(txIdx int, blockers []int) {
	for _, b := range blockers {
		if b < 0 || b >= txIdx || txIdx >= len(s.txs) {
			continue
		}
		s.txs[b].hinted = append(s.txs[b].hinted, txIdx)
		s.txs[txIdx].hints++
	}
}

// PreExecuted marks txIdx as executed at incarnation 0 outside the scheduler.
// The validation wave skips it until it is aborted; TryCommit still checks
// it. It must be called before any task is handed out.
func (s *Scheduler) PreExecuted(txIdx int) {
	st := &s.txs[txIdx]
	st.mu.Lock()
	st.status = Executed
	st.preExecuted = true
	hinted := st.hinted
	st.hinted = nil
	st.mu.Unlock()
	s.releaseHints(hinted)
}

func (s *Scheduler) Done() bool {
	return s.commitIdx.Load() >= int64(len(s.txs))
}

// CommitIdx is the lowest uncommitted transaction index.
func (s *Scheduler) CommitIdx() int { return int(s.commitIdx.Load()) }

func (s *Scheduler) Status(txIdx int) (Status, int) {
	st := &s.txs[txIdx]
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.status, st.incarnation
}

// IsSerial reports whether txIdx exhausted its incarnations.
func (s *Scheduler) IsSerial(txIdx int) bool {
	st := &s.txs[txIdx]
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.serial
}

// IsExecuting reports whether v is the incarnation currently executing.
func (s *Scheduler) IsExecuting(v versionmap.Version) bool {
	st := &s.txs[v.TxIndex]
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.status == Executing && st.incarnation == v.Incarnation
}

func (s *Scheduler) NextTask() Task {
	if s.Done() {
		return Task{Kind: TaskDone}
	}
	if s.validationIdx.Load() < s.executionIdx.Load() {
		if v, ok := s.nextVersionToValidate(); ok {
			return Task{Kind: TaskValidate, Version: v}
		}
	} else if v, ok := s.nextVersionToExecute(); ok {
		return Task{Kind: TaskExecute, Version: v}
	}
	return Task{Kind: TaskWait}
}

func (s *Scheduler) nextVersionToExecute() (versionmap.Version, bool) {
	if s.executionIdx.Load() >= int64(len(s.txs)) {
		return versionmap.Version{}, false
	}
	idx := s.executionIdx.Add(1) - 1
	return s.tryIncarnate(int(idx))
}

func (s *Scheduler) nextVersionToValidate() (versionmap.Version, bool) {
	if s.validationIdx.Load() >= int64(len(s.txs)) {
		return versionmap.Version{}, false
	}
	idx := int(s.validationIdx.Add(1) - 1)
	if idx >= len(s.txs) {
		return versionmap.Version{}, false
	}
	st := &s.txs[idx]
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.status == NeedsValidation && !st.preExecuted {
		return versionmap.Version{TxIndex: idx, Incarnation: st.incarnation}, true
	}
	return versionmap.Version{}, false
}

func (s *Scheduler) tryIncarnate(txIdx int) (versionmap.Version, bool) {
	if txIdx >= len(s.txs) {
		return versionmap.Version{}, false
	}
	st := &s.txs[txIdx]
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.status != NeedsExecution || st.hints > 0 {
		return versionmap.Version{}, false
	}
	if st.serial && s.commitIdx.Load() != int64(txIdx) {
		return versionmap.Version{}, false
	}
	st.status = Executing
	return versionmap.Version{TxIndex: txIdx, Incarnation: st.incarnation}, true
}

// AddDependency suspends txIdx until blocking finishes its current
// incarnation. It returns false if blocking already finished, in which case
// the caller retries the read.
func (s *Scheduler) AddDependency(txIdx int, blocking int) bool {
	b := &s.txs[blocking]
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.status {
	case Executed, Validating, Committed:
		return false
	}
	b.dependents = append(b.dependents, txIdx)

	st := &s.txs[txIdx]
	st.mu.Lock()
	st.status = Aborting
	st.mu.Unlock()
	return true
}

// FinishExecution moves v to Executed and wakes its dependents. When the
// validation wave already passed v, a write to a new location re-opens the
// wave from v, otherwise v itself is returned for validation.
func (s *Scheduler) FinishExecution(v versionmap.Version, wroteNewLocation bool) Task {
	st := &s.txs[v.TxIndex]
	st.mu.Lock()
	if st.status != Executing || st.incarnation != v.Incarnation {
		st.mu.Unlock()
		panic(fmt.Errorf("finish execution of %s in state %s@%d", v, st.status, st.incarnation))
	}
	st.status = Executed
	deps := st.dependents
	st.dependents = nil
	hinted := st.hinted
	st.hinted = nil
	st.mu.Unlock()

	s.resumeDependencies(deps)
	s.releaseHints(hinted)

	if s.validationIdx.Load() > int64(v.TxIndex) {
		if wroteNewLocation {
			s.decreaseValidationIdx(v.TxIndex)
		} else {
			return Task{Kind: TaskValidate, Version: v}
		}
	}
	return NoTask
}

// TryValidationAbort moves v from Executed to Aborting. It fails when v is no
// longer the executed incarnation, so only one validator aborts it.
func (s *Scheduler) TryValidationAbort(v versionmap.Version) bool {
	st := &s.txs[v.TxIndex]
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.status == Executed && st.incarnation == v.Incarnation {
		st.status = Aborting
		return true
	}
	return false
}

// FinishValidation re-queues txIdx at its next incarnation after an abort and
// re-opens the validation wave above it. The caller must have converted the
// aborted writes to estimates.
func (s *Scheduler) FinishValidation(txIdx int, aborted bool) Task {
	if !aborted {
		return NoTask
	}
	s.setReady(txIdx)
	s.decreaseValidationIdx(txIdx + 1)
	if s.executionIdx.Load() > int64(txIdx) {
		if v, ok := s.tryIncarnate(txIdx); ok {
			return Task{Kind: TaskExecute, Version: v}
		}
	}
	return NoTask
}

// TryCommit commits transactions in index order for as long as the lowest
// uncommitted one is executed and still valid. It returns without blocking
// when another worker is committing. A failed validation aborts the
// transaction and may return its re-execution; a serial transaction that
// reached the commit frontier is returned for execution.
func (s *Scheduler) TryCommit(c Committer) (Task, error) {
	if !s.commitMu.TryLock() {
		return NoTask, nil
	}
	defer s.commitMu.Unlock()

	for {
		k := int(s.commitIdx.Load())
		if k >= len(s.txs) {
			return NoTask, nil
		}
		st := &s.txs[k]
		st.mu.Lock()
		switch st.status {
		case Executed:
			st.status = Validating
			v := versionmap.Version{TxIndex: k, Incarnation: st.incarnation}
			st.mu.Unlock()

			if !c.Validate(v) {
				st.mu.Lock()
				st.status = Aborting
				st.mu.Unlock()
				c.Abort(v)
				return s.FinishValidation(k, true), nil
			}

			if err := c.Commit(v); err != nil {
				return NoTask, err
			}
			st.mu.Lock()
			st.status = Committed
			st.mu.Unlock()
			s.commitIdx.Store(int64(k + 1))
		case NeedsExecution:
			st.mu.Unlock()
			if v, ok := s.tryIncarnate(k); ok {
				return Task{Kind: TaskExecute, Version: v}, nil
			}
			return NoTask, nil
		default:
			st.mu.Unlock()
			return NoTask, nil
		}
	}
}

func (s *Scheduler) setReady(txIdx int) {
	st := &s.txs[txIdx]
	st.mu.Lock()
	defer st.mu.Unlock()
	st.incarnation++
	st.status = NeedsExecution
	st.preExecuted = false
	if s.maxIncarnations > 0 && st.incarnation >= s.maxIncarnations {
		st.serial = true
	}
}

func (s *Scheduler) resumeDependencies(deps []int) {
	if len(deps) == 0 {
		return
	}
	lowest := deps[0]
	for _, d := range deps {
		s.setReady(d)
		if d < lowest {
			lowest = d
		}
	}
	s.decreaseExecutionIdx(lowest)
}

func (s *Scheduler) releaseHints(waiters []int) {
	for _, w := range waiters {
		st := &s.txs[w]
		st.mu.Lock()
		st.hints--
		free := st.hints == 0
		st.mu.Unlock()
		if free {
			s.decreaseExecutionIdx(w)
		}
	}
}

func (s *Scheduler) decreaseExecutionIdx(target int) {
	decrease(&s.executionIdx, int64(target))
}

func (s *Scheduler) decreaseValidationIdx(target int) {
	decrease(&s.validationIdx, int64(target))
}

func decrease(idx *atomic.Int64, target int64) {
	for {
		cur := idx.Load()
		if cur <= target || idx.CompareAndSwap(cur, target) {
			return
		}
	}
}
