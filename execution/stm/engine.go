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

// Package stm executes the transactions of a block in parallel with results
// identical to executing them one by one in block order.
//
// Transactions run speculatively against a multi-version view of the block.
// Each execution records what it read; a transaction is committed, in block
// order, once its reads are confirmed against every lower committed
// transaction, otherwise it is executed again. Transactions whose keys are
// known up front can reserve them and skip speculation.
package stm

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/inconshreveable/log15"
	"golang.org/x/sync/errgroup"

	"github.com/erigontech/blockstm/common/dbg"
	"github.com/erigontech/blockstm/execution/stm/keys"
	"github.com/erigontech/blockstm/execution/stm/outcome"
	"github.com/erigontech/blockstm/execution/stm/reservation"
	"github.com/erigontech/blockstm/execution/stm/scheduler"
	"github.com/erigontech/blockstm/execution/stm/state"
	"github.com/erigontech/blockstm/execution/stm/versionmap"
)

type Engine[T any] struct {
	vm         VM[T]
	cfg        Config
	logger     log.Logger
	classifier reservation.Classifier[T]
}

type Option[T any] func(*Engine[T])

// WithClassifier selects the transactions that reserve their keys when the
// fast path is enabled.
func WithClassifier[T any](c reservation.Classifier[T]) Option[T] {
	return func(e *Engine[T]) { e.classifier = c }
}

func New[T any](vm VM[T], cfg Config, logger log.Logger, opts ...Option[T]) *Engine[T] {
	e := &Engine[T]{vm: vm, cfg: cfg.withDefaults(), logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	if e.classifier == nil {
		e.classifier = reservation.Never[T]{}
	}
	return e
}

func (e *Engine[T]) Config() Config { return e.cfg }

type blockOptions struct {
	deps map[int][]int
}

type BlockOption func(*blockOptions)

// WithDependencies declares, per transaction, lower transactions it is known
// to read from. It is not executed before they have executed once.
func WithDependencies(deps map[int][]int) BlockOption {
	return func(o *blockOptions) { o.deps = deps }
}

type attempt struct {
	v      versionmap.Version
	out    Output
	err    error
	writes []outcome.Write
}

type blockRun[T any] struct {
	e    *Engine[T]
	txs  []T
	base state.Snapshot

	kc        *keys.Compressor
	vm        *versionmap.VersionMap
	io        *versionmap.VersionedIO
	sched     *scheduler.Scheduler
	table     *reservation.Table
	partition *reservation.Partition
	outcomes  *outcome.Array
	attempts  []atomic.Pointer[attempt]

	execs, aborts, deps, validations, failures, demoted, serial atomic.Int64
	fastCommitted                                               int
}

// ExecuteBlock runs txs against base and returns the committed outcome of
// every transaction in block order.
func (e *Engine[T]) ExecuteBlock(ctx context.Context, txs []T, base state.Snapshot, opts ...BlockOption) (*BlockResult, error) {
	var bo blockOptions
	for _, opt := range opts {
		opt(&bo)
	}

	start := time.Now()
	n := len(txs)
	vm := versionmap.NewVersionMap()
	r := &blockRun[T]{
		e:        e,
		txs:      txs,
		base:     base,
		kc:       keys.NewCompressor(),
		vm:       vm,
		io:       versionmap.NewVersionedIO(vm, n),
		sched:    scheduler.NewScheduler(n, e.cfg.maxIncarnations()),
		table:    reservation.NewTable(),
		outcomes: outcome.NewArray(n),
		attempts: make([]atomic.Pointer[attempt], n),
	}
	for txIdx, blockers := range bo.deps {
		if txIdx >= 0 && txIdx < n {
			r.sched.AddHints(txIdx, blockers)
		}
	}

	var classifier reservation.Classifier[T]
	if e.cfg.FastPath {
		classifier = e.classifier
	}
	r.partition = reservation.Plan(txs, classifier, r.kc, r.table)

	if err := r.runFastPath(ctx); err != nil {
		return nil, err
	}
	if err := r.runWorkers(ctx); err != nil {
		return nil, err
	}

	outcomes, err := r.outcomes.Collect()
	if err != nil {
		return nil, err
	}

	res := &BlockResult{Outcomes: outcomes, Stats: r.stats(time.Since(start))}
	if e.cfg.Profile {
		res.Deps = versionmap.GetDep(r.io)
		d := versionmap.BuildDAG(r.io, e.logger)
		res.DAG = &d
		res.Stats.CriticalPath = d.CriticalPath()
	}
	res.Stats.export()

	summary := e.logger.Debug
	if dbg.ExecSummary {
		summary = e.logger.Info
	}
	summary("exec summary", "txs", n, "execs", res.Stats.Execs, "aborts", res.Stats.Aborts,
		"validations", res.Stats.Validations, "failures", res.Stats.ValidationFailures,
		"fast", res.Stats.FastPathCommitted, "demoted", res.Stats.FastPathDemoted,
		"#tasks/#execs", fmt.Sprintf("%.2f%%", res.Stats.Efficiency()*100), "took", res.Stats.Duration)
	return res, nil
}

func (r *blockRun[T]) runWorkers(ctx context.Context) error {
	if r.sched.Done() {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.e.cfg.Workers; i++ {
		id := i
		g.Go(func() error { return r.worker(ctx, id) })
	}
	return g.Wait()
}

func (r *blockRun[T]) stats(took time.Duration) Stats {
	return Stats{
		Txs:                len(r.txs),
		Workers:            r.e.cfg.Workers,
		Execs:              int(r.execs.Load()),
		Aborts:             int(r.aborts.Load()),
		Dependencies:       int(r.deps.Load()),
		Validations:        int(r.validations.Load()),
		ValidationFailures: int(r.failures.Load()),
		FastPathEligible:   r.partition.Eligible,
		FastPathCommitted:  r.fastCommitted,
		FastPathDemoted:    int(r.demoted.Load()),
		SerialExecutions:   int(r.serial.Load()),
		Keys:               r.kc.Len(),
		KeysWritten:        len(r.io.FinalWrites()),
		FastPath:           r.partition.Fast,
		Duration:           took,
	}
}

// Validate implements scheduler.Committer.
func (r *blockRun[T]) Validate(v versionmap.Version) bool {
	if recorded, ok := r.io.Recorded(v.TxIndex); !ok || recorded != v {
		panic(fmt.Errorf("commit of %s, recorded %s", v, recorded))
	}
	r.validations.Add(1)
	if versionmap.ValidateVersion(v.TxIndex, r.io, r.vm) {
		return true
	}
	r.failures.Add(1)
	return false
}

// Abort implements scheduler.Committer.
func (r *blockRun[T]) Abort(v versionmap.Version) {
	r.aborts.Add(1)
	r.io.ConvertWritesToEstimates(v.TxIndex)
	if r.partition.IsFast(v.TxIndex) {
		r.partition.Demote(r.table, v.TxIndex)
		r.demoted.Add(1)
		r.e.logger.Warn("fast path demoted", "tx", v.TxIndex, "reason", "lower transaction wrote a reserved key")
	}
}

// Commit implements scheduler.Committer.
func (r *blockRun[T]) Commit(v versionmap.Version) error {
	a := r.attempts[v.TxIndex].Load()
	if a == nil || a.v != v {
		return fmt.Errorf("commit of %s without its execution result", v)
	}
	if a.err != nil {
		return fmt.Errorf("could not apply tx %d: %w", v.TxIndex, a.err)
	}
	fast := r.partition.IsFast(v.TxIndex)
	err := r.outcomes.Commit(v.TxIndex, outcome.Outcome{
		Incarnation:   v.Incarnation,
		Writes:        a.writes,
		Events:        a.out.Events,
		GasUsed:       a.out.GasUsed,
		Status:        a.out.Status,
		FailureReason: a.out.FailureReason,
		FastPath:      fast,
	})
	if err != nil {
		return err
	}
	if fast {
		r.table.Release(r.partition.Keys[v.TxIndex], v.TxIndex)
		r.fastCommitted++
	}
	return nil
}
